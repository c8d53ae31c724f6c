// Package middleware adapts access-token authentication to net/http.
//
// [Guard] reads the Authorization header, verifies the bearer token through an
// [Authenticator] (normally *sessionauth.Engine) and stores the resulting
// identity in the request context. It never touches the session store: an
// access token stays valid until it expires, even after logout.
package middleware
