// Package audit relays security events to a pluggable sink.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: buffered async relay; drops or blocks when full.
//   - [Event]: timestamped record carrying user, session, IP and metadata.
//
// Which events get emitted is decided by the engine, not here.
package audit
