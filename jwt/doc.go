// Package jwt issues and verifies short-lived typed tokens (access, verify-email,
// reset-password) on top of golang-jwt. Every verification checks the token type:
// a token minted for one purpose never authenticates another.
package jwt
