// Package lsp provides the Language Server Protocol client for the MoZuku
// Japanese analysis server.
//
// MoZuku is an external process that tokenizes Japanese prose, extracts
// natural-language spans from code comments, and grammar-checks content. This
// package owns everything between the editor and that process:
//
//   - Resolver: locates a runnable server executable through an ordered
//     chain of fallback strategies (local dev layout, well-known install
//     paths, PATH probe, interpreter probes)
//   - Transport: JSON-RPC 2.0 over stdio with Content-Length framing
//   - Session: one server process per session, with an explicit
//     Uninitialized -> Starting -> Running -> Stopped state machine
//
// The server pushes three independent highlight notification streams
// (comment, content, semantic); Session exposes them through typed
// notification subscription. Rendering of the received highlights lives in
// the highlight package.
//
// # Quick Start
//
//	resolver := lsp.NewResolver(lsp.WithWorkspaceRoot(root))
//	loc := resolver.Resolve(ctx)
//	if !loc.Available {
//	    // fatal: no server on this machine
//	}
//
//	session := lsp.NewSession(loc, lsp.WithInitializationOptions(opts))
//	if err := session.Start(ctx); err != nil {
//	    // fatal for this activation
//	}
//	defer session.Stop(ctx)
//
//	session.OnNotification(lsp.MethodSemanticHighlights, handler)
//
// # Failure Semantics
//
// Discovery exhaustion and a failed Start are fatal for the session and are
// never retried automatically. A transition to Stopped after the session
// reached Running without a caller-initiated Stop is an unexpected
// termination and is delivered to state-change handlers with a non-nil
// error; the session is not restarted.
//
// # Thread Safety
//
// Session and Transport are safe for concurrent use. Notification handlers
// run synchronously on the transport read goroutine, so per-method delivery
// order matches arrival order; handlers must not block.
package lsp
