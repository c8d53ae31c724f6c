// Package session owns the session rotation state machine.
//
// # State machine
//
// A session is Active (current nonce, unexpired), Rotated (nonce replaced, expiry
// extended; loops back to Active), Revoked (deleted on logout or detected
// compromise) or Expired (implicit by ExpiresAt). Rotation is a single compare-and-swap
// guarded by the expected nonce: of two concurrent rotations at most one wins, and the
// loser observes [ErrNonceMismatch].
//
// # Strategies
//
// [RotationStrategy] has two implementations. [NewInPlaceRotation] mutates one row
// per session through a [Store]. [NewChainRotation] keeps an audit chain of
// [RefreshToken] rows through a [ChainStore]: every rotation inserts a new row and
// marks the old one revoked and replaced. Pick one per deployment.
//
// # What this package must NOT do
//
//   - Interpret token wire formats (see packages refresh and jwt).
//   - Expose nonces outside [Session]: listings use [Info].
package session
