package jwt_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flashbots/authproxy/jwt"

	"github.com/stretchr/testify/assert"
)

func TestSecretFromHex(t *testing.T) {
	hex64 := strings.Repeat("00", 32)

	{ // accepted shapes
		for _, str := range []string{
			hex64,
			"0x" + hex64,
			"  " + hex64 + "\n",
			"\t0x" + hex64 + "  \n",
		} {
			s, err := jwt.SecretFromHex(str)
			assert.NoError(t, err)
			assert.Equal(t, hex64, s.Hex())
		}
	}

	{ // wrong length
		for _, str := range []string{
			"",
			hex64[:63],
			hex64 + "0",
			"0x" + hex64[:63],
		} {
			_, err := jwt.SecretFromHex(str)
			assert.ErrorIs(t, err, jwt.ErrInvalidSecretLength)
		}
	}

	{ // non-hex characters at the right length
		_, err := jwt.SecretFromHex(strings.Repeat("zz", 32))
		assert.ErrorIs(t, err, jwt.ErrInvalidSecretEncoding)
	}
}

func TestSecretFromFile(t *testing.T) {
	hex64 := strings.Repeat("42", 32)

	{ // happy path, with prefix and trailing newline
		path := filepath.Join(t.TempDir(), "jwt.hex")
		assert.NoError(t, os.WriteFile(path, []byte("0x"+hex64+"\n"), 0o600))

		s, err := jwt.SecretFromFile(path)
		assert.NoError(t, err)
		assert.Equal(t, hex64, s.Hex())
	}

	{ // missing file
		_, err := jwt.SecretFromFile(filepath.Join(t.TempDir(), "nope.hex"))
		assert.ErrorIs(t, err, jwt.ErrSecretFile)
	}

	{ // parse errors propagate
		path := filepath.Join(t.TempDir(), "short.hex")
		assert.NoError(t, os.WriteFile(path, []byte("c0ffee"), 0o600))

		_, err := jwt.SecretFromFile(path)
		assert.ErrorIs(t, err, jwt.ErrInvalidSecretLength)
	}
}

func TestGenerateSecret(t *testing.T) {
	{ // deterministic with an injected reader
		s, err := jwt.GenerateSecret(bytes.NewReader(bytes.Repeat([]byte{0xab}, 32)))
		assert.NoError(t, err)
		assert.Equal(t, strings.Repeat("ab", 32), s.Hex())
	}

	{ // default reader produces distinct secrets
		s1, err := jwt.GenerateSecret(nil)
		assert.NoError(t, err)
		s2, err := jwt.GenerateSecret(nil)
		assert.NoError(t, err)
		assert.False(t, s1.Equal(s2))
	}

	{ // short reader fails instead of zero-padding
		_, err := jwt.GenerateSecret(bytes.NewReader([]byte{0x01}))
		assert.Error(t, err)
	}
}

func TestSecretDoesNotLeakViaString(t *testing.T) {
	s, err := jwt.SecretFromHex(strings.Repeat("ef", 32))
	assert.NoError(t, err)

	assert.NotContains(t, s.String(), s.Hex())
	assert.True(t, s.Equal(s))
}
