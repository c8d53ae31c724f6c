// Package httpapi exposes the engine over HTTP with gin.
//
// Routes, all under /auth:
//
//	POST /register                 201 {id, name, email}
//	POST /login                    200 token pair
//	POST /logout                   204, always
//	GET  /sessions                 200 session list (refresh token)
//	POST /refresh-tokens           200 token pair
//	POST /send-verification-email  204 (access token)
//	POST /verify-email             204
//	POST /forgot-password          204
//	POST /reset-password           204
//
// Refresh tokens are read from "Authorization: Bearer" first and from the
// JSON body second. Errors are rendered as {"code": status, "message": text}.
package httpapi
