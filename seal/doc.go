// Package seal implements the symmetric primitives behind opaque tokens: AES-256-CTR
// encryption keyed by the server secret and HMAC-SHA256 signatures.
//
// # Key handling
//
// A [Sealer] is built once from the application key. The first 32 bytes key the
// cipher; the full key keys the HMAC. The key is read-only after construction.
//
// # What this package must NOT do
//
//   - Decide token structure (see package refresh).
//   - Return errors from signature checks: [Sealer.VerifySignature] reports a bool.
package seal
