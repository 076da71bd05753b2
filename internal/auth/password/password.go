// Package password hashes account passwords with Argon2id in the PHC string
// format: $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<hash>.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// MinLength is the shortest password accepted for new credentials.
const MinLength = 8

const saltLen = 16

type params struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// current is used for every new hash. Stored hashes with other parameters
// still verify and are reported by NeedsRehash.
var current = params{memory: 64 * 1024, time: 1, threads: 4, keyLen: 32}

var encoding = base64.RawStdEncoding

// Strong reports whether password meets the minimum length.
func Strong(password string) bool {
	return len(strings.TrimSpace(password)) >= MinLength
}

// Hash returns the encoded hash stored in users.password_hash.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return encode(current, salt, current.derive(password, salt)), nil
}

// Verify checks password against an encoded hash in constant time.
func Verify(password, encoded string) bool {
	p, salt, hash, ok := decode(encoded)
	if !ok {
		return false
	}
	p.keyLen = uint32(len(hash))
	return subtle.ConstantTimeCompare(hash, p.derive(password, salt)) == 1
}

// NeedsRehash reports whether encoded was produced with parameters other
// than the current ones.
func NeedsRehash(encoded string) bool {
	p, _, hash, ok := decode(encoded)
	if !ok {
		return true
	}
	p.keyLen = uint32(len(hash))
	return p != current
}

var (
	decoyOnce sync.Once
	decoyHash string
)

// Decoy spends one verification on a throwaway hash. Login calls it for
// unknown emails so they take as long as a wrong password.
func Decoy(password string) {
	decoyOnce.Do(func() {
		decoyHash, _ = Hash("invoiceflow-decoy")
	})
	_ = Verify(password, decoyHash)
}

func (p params) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

func encode(p params, salt, hash []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		encoding.EncodeToString(salt), encoding.EncodeToString(hash))
}

func decode(encoded string) (params, []byte, []byte, bool) {
	var p params
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return p, nil, nil, false
	}
	var memory, passes, threads uint64
	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &passes, &threads); err != nil || n != 3 {
		return p, nil, nil, false
	}
	if memory == 0 || memory > 1<<32-1 || passes == 0 || passes > 1<<32-1 || threads == 0 || threads > 255 {
		return p, nil, nil, false
	}
	salt, err := encoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, false
	}
	hash, err := encoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return p, nil, nil, false
	}
	p = params{memory: uint32(memory), time: uint32(passes), threads: uint8(threads)}
	return p, salt, hash, true
}
