// Package trace provides the tracing subsystem of the language server.
//
// It records server lifecycle, request handling and per-provider work so
// that slow or stuck providers can be found after the fact.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	lsbridge serve --trace=/tmp/lsbridge.ndjson --trace-level=provider
//
// The protocol owns stdout in stdio mode, so traces go to stderr or a file.
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - Nop: Zero-overhead no-op tracer when disabled
//   - StreamTracer: Immediate write to output (file/stderr)
//   - RingTracer: Circular buffer dumped when a request fails
//   - MultiTracer: Combines multiple tracers
//
// # Levels
//
//   - LevelOff: No tracing
//   - LevelError: Only failures
//   - LevelRequest: Server lifecycle and request boundaries
//   - LevelProvider: Per-provider spans
//   - LevelDebug: Everything including partial result batches
//
// # Context Propagation
//
// The tracer, the current span and the JSON-RPC request id travel in
// context.Context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx = trace.WithRequest(ctx, "7")
//	span, ctx := trace.Start(ctx, trace.ScopeRequest, "textDocument/references")
//	defer span.End("")
package trace
