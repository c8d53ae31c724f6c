package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcAlgorithm = "argon2id"

var errMalformed = errors.New("invalid PHC format")

// phc is the decoded form of an Argon2id PHC string.
type phc struct {
	memory      uint32
	passes      uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (p phc) String() string {
	b64 := base64.StdEncoding
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version,
		p.memory, p.passes, p.parallelism,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func decodePHC(s string) (phc, error) {
	var p phc

	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" {
		return p, errMalformed
	}
	if fields[1] != phcAlgorithm {
		return p, errors.New("unsupported algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return p, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return p, errors.New("unsupported argon2 version")
	}

	// Sscanf accepts trailing garbage, so re-render and compare.
	var memory, passes uint32
	var lanes uint8
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &memory, &passes, &lanes); err != nil ||
		fields[3] != fmt.Sprintf("m=%d,t=%d,p=%d", memory, passes, lanes) {
		return p, errors.New("invalid parameter format")
	}
	if memory < floorMemoryKiB || passes < floorPasses || lanes < floorLanes {
		return p, errors.New("argon2 parameters below minimum")
	}

	salt, err := base64.StdEncoding.DecodeString(fields[4])
	if err != nil || len(salt) < floorSaltBytes {
		return p, errors.New("invalid salt")
	}
	key, err := base64.StdEncoding.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return p, errors.New("invalid hash")
	}

	return phc{memory: memory, passes: passes, parallelism: lanes, salt: salt, key: key}, nil
}
