// Package server provides the ServerContext pattern and the HTTP surfaces of
// kubedash.
//
// ServerContext encapsulates every dependency the MCP tool handlers need:
//
//   - the context resolver (kubeauth.Resolver in production)
//   - the resource patch engine
//   - the registry of named clusters
//   - a leveled logger (logging.Logger)
//   - the safety configuration (non-destructive mode, dry run, allowed operations)
//   - the instrumentation provider and the tool audit logger
//
// All dependencies are injected using functional options:
//
//	sc, err := server.NewServerContext(ctx,
//		server.WithResolver(resolver),
//		server.WithEngine(engine),
//		server.WithClusters(registry),
//		server.WithNonDestructiveMode(true),
//	)
//	if err != nil {
//		return err
//	}
//	defer sc.Shutdown()
//
// Credential maps a cluster name to its kubeconfig and context. Registered
// names win. Other names are treated as contexts of the default kubeconfig
// unless AllowUnregisteredContexts is false.
//
// HTTPServer serves the MCP streamable HTTP endpoint with the /healthz,
// /readyz and /healthz/detailed probes. MetricsServer serves /metrics on a
// separate listener.
package server
