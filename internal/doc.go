// Package internal contains helpers private to the sessionauth module: nonce and
// identifier generation.
//
// Sub-packages:
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: orchestration of the refresh, logout and session listing operations
//   - rate: Redis-backed login throttling
package internal
