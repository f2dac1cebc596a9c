// Package jwt implements the shared-secret token scheme that authenticates
// authrpc (engine api) calls between an execution client and its consensus
// client: 32-byte secrets, HS256 tokens with an `iat` claim, and validation
// against a configurable clock-drift window.
package jwt

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// SecretLength is the size of the shared secret in bytes, as mandated by the
// engine api authentication spec.
const SecretLength = 32

// Secret is the shared key both sides sign and verify tokens with. It is
// deliberately opaque: the raw bytes never leave this package, and String()
// renders only a fingerprint so that a secret can't leak through logging.
type Secret struct {
	bytes [SecretLength]byte
}

// GenerateSecret draws a fresh secret from random, defaulting to the
// crypto/rand reader when random is nil. Tests pass a fixed reader to get
// deterministic secrets.
func GenerateSecret(random io.Reader) (Secret, error) {
	if random == nil {
		random = rand.Reader
	}

	var s Secret
	if _, err := io.ReadFull(random, s.bytes[:]); err != nil {
		return Secret{}, err
	}
	return s, nil
}

// SecretFromHex parses a 64-character hex string, tolerating surrounding
// whitespace and an optional 0x prefix.
func SecretFromHex(str string) (Secret, error) {
	str = strings.TrimPrefix(strings.TrimSpace(str), "0x")

	if len(str) != 2*SecretLength {
		return Secret{}, fmt.Errorf("%w: got %d hex characters, expected %d",
			ErrInvalidSecretLength, len(str), 2*SecretLength,
		)
	}

	var s Secret
	if _, err := hex.Decode(s.bytes[:], []byte(str)); err != nil {
		return Secret{}, fmt.Errorf("%w: %w",
			ErrInvalidSecretEncoding, err,
		)
	}
	return s, nil
}

// SecretFromFile reads path and parses its contents with SecretFromHex.
func SecretFromFile(path string) (Secret, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Secret{}, fmt.Errorf("%w: %s: %w",
			ErrSecretFile, path, err,
		)
	}
	return SecretFromHex(string(b))
}

// Hex renders the secret as lowercase hex without prefix (the secret-file
// format). This is the only way to get the full key material out.
func (s Secret) Hex() string {
	return hex.EncodeToString(s.bytes[:])
}

// Equal compares two secrets in constant time.
func (s Secret) Equal(other Secret) bool {
	return subtle.ConstantTimeCompare(s.bytes[:], other.bytes[:]) == 1
}

// String returns a short fingerprint, never the key itself.
func (s Secret) String() string {
	return hex.EncodeToString(s.bytes[:4]) + "..."
}
