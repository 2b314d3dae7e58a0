// Package logging provides structured logging helpers for kubedash.
//
// Every package logs through log/slog using the attribute constructors here,
// so keys stay consistent across the resolver, the patch engine and the
// server:
//
//	logger := logging.WithOperation(slog.Default(), "resource.patch")
//	logger.Info("patch applied",
//	    logging.Cluster("prod"),
//	    logging.ResourceType("Deployment"),
//	    logging.Duration(elapsed))
//
// API server addresses have IP addresses redacted (SanitizeHost, Host,
// SanitizedErr) and bearer tokens are only ever logged as a length
// (SanitizeToken).
package logging
