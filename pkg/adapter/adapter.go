package adapter

import (
	"context"
)

// Adapter is a network front end for the managed folder.
//
// Lifecycle:
//  1. Creation: the adapter is built from its configuration and a resolver
//  2. Startup: Serve() binds the listener and blocks until shutdown
//  3. Shutdown: Stop() or context cancellation drains connections with a timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve binds the listener and handles connections until ctx is cancelled
	// or an unrecoverable error occurs.
	//
	// When ctx is cancelled, Serve must:
	//   - Stop accepting new connections
	//   - Wait for active connections to finish (with timeout)
	//   - Return nil, or an error if connections had to be force-closed
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown. It must be idempotent, safe to call
	// concurrently with Serve(), and respect the ctx deadline.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name used in logs and metrics.
	Protocol() string

	// Port returns the TCP port the adapter listens on, or 0 before Serve()
	// has bound its listener.
	Port() int
}
