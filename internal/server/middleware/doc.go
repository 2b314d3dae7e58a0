// Package middleware provides HTTP middleware for the kubedash HTTP transport:
// security headers, CORS for browser MCP clients, request size limits and
// request metrics.
package middleware
