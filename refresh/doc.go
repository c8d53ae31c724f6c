// Package refresh implements the opaque token codec and its refresh-token
// specialization.
//
// # Token format
//
// An opaque token is "{content}.{iv}". The content is the AES-256-CTR encryption of
// "{base64(payload)}.{hmac}". A refresh token carries the payload
// "{sessionID}.{nextNonce}" and is encrypted under the session's current nonce, so
// the IV segment is the nonce the server expects to find on the session.
//
// # What this package must NOT do
//
//   - Access any store or decide rotation outcomes.
//   - Tell callers why a refresh token was rejected: every failure is
//     [ErrInvalidRefreshToken].
package refresh
