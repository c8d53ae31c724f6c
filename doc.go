// Package sessionauth authenticates HTTP clients with paired credentials: a
// short-lived signed access token and a long-lived opaque refresh token bound
// to a server-side session.
//
// Every refresh token is sealed under the session's current nonce and carries
// the next one. Redeeming it rotates the session to that next nonce, so each
// refresh token works once. Presenting an already-redeemed token means two
// parties hold the same session; under the default policy the session is
// deleted and both have to log in again.
//
// [Engine] methods are safe for concurrent use once [Builder.Build] returns.
// Sessions live behind a [SessionStore] (Redis, SQL, bbolt) or a [ChainStore]
// (SQL refresh-token rows linked by ReplacedBy); the engine holds no session
// state in memory.
//
// Errors returned by the engine are *[Error] values; [KindOf] classifies them
// for transport mapping and Error() is safe to show to clients.
package sessionauth
