package jwt

import (
	"errors"
	"strings"
)

// ErrMalformedSplit is returned when a token cannot be split into its two carriers.
var ErrMalformedSplit = errors.New("malformed token")

// SplitToken separates a compact JWT into the readable "header.payload" part and the
// signature, so the two can travel in different carriers (a script-readable cookie
// and an httpOnly cookie).
func SplitToken(token string) (string, string, error) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 || strings.Count(token, ".") != 2 {
		return "", "", ErrMalformedSplit
	}
	return token[:i], token[i+1:], nil
}

// JoinToken reassembles a token split by SplitToken.
func JoinToken(headerPayload, signature string) (string, error) {
	if strings.Count(headerPayload, ".") != 1 || signature == "" || strings.Contains(signature, ".") {
		return "", ErrMalformedSplit
	}
	return headerPayload + "." + signature, nil
}
