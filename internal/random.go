package internal

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// nonceRawSize encodes to exactly 16 base64 characters, one AES block.
const nonceRawSize = 12

// NewNonce returns a single-use random value that doubles as an AES-CTR IV.
func NewNonce() (string, error) {
	var raw [nonceRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// NewSessionID returns a random session identifier.
func NewSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewUserID returns a lexicographically sortable user identifier.
func NewUserID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
