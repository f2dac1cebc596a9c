package jwt_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/flashbots/authproxy/jwt"

	"github.com/stretchr/testify/assert"
)

func testSecret(t *testing.T, b byte) jwt.Secret {
	t.Helper()

	s, err := jwt.SecretFromHex(strings.Repeat(string([]byte{hexDigit(b >> 4), hexDigit(b)}), 32))
	assert.NoError(t, err)
	return s
}

func hexDigit(b byte) byte {
	b &= 0x0f
	if b < 10 {
		return '0' + b
	}
	return 'a' + b - 10
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	secret := testSecret(t, 0x11)

	for _, claims := range []jwt.Claims{
		{IssuedAt: 1_700_000_000},
		{IssuedAt: 0},
		{IssuedAt: -30}, // negative skew survives the round trip, validation rejects it later
		{IssuedAt: 1_700_000_000, ID: "consensus-1"},
		{IssuedAt: 1_700_000_000, ID: "consensus-1", ClientVersion: "lighthouse/v5.1.0"},
	} {
		decoded, err := jwt.Decode(jwt.Encode(claims, secret), secret)
		assert.NoError(t, err)
		assert.Equal(t, claims, decoded)
	}
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	secret := testSecret(t, 0x22)
	token := jwt.Encode(jwt.Claims{IssuedAt: 1_700_000_000, ID: "x"}, secret)

	parts := strings.Split(token, ".")
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	assert.NoError(t, err)

	for idx := range signature {
		for bit := 0; bit < 8; bit++ {
			tampered := make([]byte, len(signature))
			copy(tampered, signature)
			tampered[idx] ^= 1 << bit

			forged := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(tampered)
			_, err := jwt.Decode(forged, secret)
			assert.ErrorIs(t, err, jwt.ErrInvalidSignature)
		}
	}
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	s1 := testSecret(t, 0x33)
	s2 := testSecret(t, 0x44)

	token := jwt.Encode(jwt.Claims{IssuedAt: 1_700_000_000}, s1)

	_, err := jwt.Decode(token, s2)
	assert.ErrorIs(t, err, jwt.ErrInvalidSignature)
}

func TestDecodeRejectsMalformedTokens(t *testing.T) {
	secret := testSecret(t, 0x55)

	{ // wrong segment count
		for _, token := range []string{
			"",
			"onesegment",
			"two.segments",
			"too.many.segments.here",
		} {
			_, err := jwt.Decode(token, secret)
			assert.ErrorIs(t, err, jwt.ErrMalformedToken)
		}
	}

	{ // segments that are not base64url
		valid := strings.Split(jwt.Encode(jwt.Claims{IssuedAt: 1}, secret), ".")

		for _, token := range []string{
			"!!!." + valid[1] + "." + valid[2],
			valid[0] + ".!!!." + valid[2],
			valid[0] + "." + valid[1] + ".!!!",
		} {
			_, err := jwt.Decode(token, secret)
			assert.ErrorIs(t, err, jwt.ErrMalformedToken)
		}
	}
}

func TestDecodeChecksSignatureBeforeClaims(t *testing.T) {
	secret := testSecret(t, 0x66)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"id":"no-iat-here"}`))
	signingInput := header + "." + payload

	{ // properly signed but missing iat => malformed claims
		token := signingInput + "." + signatureFor(t, signingInput, secret)
		_, err := jwt.Decode(token, secret)
		assert.ErrorIs(t, err, jwt.ErrMalformedClaims)
	}

	{ // same payload, bogus signature => the signature error wins
		token := signingInput + "." + base64.RawURLEncoding.EncodeToString(make([]byte, 32))
		_, err := jwt.Decode(token, secret)
		assert.ErrorIs(t, err, jwt.ErrInvalidSignature)
		assert.NotErrorIs(t, err, jwt.ErrMalformedClaims)
	}

	{ // unknown extra fields are ignored as long as iat is present
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{"iat":7,"exp":99,"custom":"x"}`))
		signingInput := header + "." + payload

		token := signingInput + "." + signatureFor(t, signingInput, secret)
		claims, err := jwt.Decode(token, secret)
		assert.NoError(t, err)
		assert.Equal(t, int64(7), claims.IssuedAt)
	}
}

// signatureFor signs an arbitrary signing input the way any external jwt
// client would, recovering the key material via its persistence format.
func signatureFor(t *testing.T, signingInput string, secret jwt.Secret) string {
	t.Helper()

	key, err := hex.DecodeString(secret.Hex())
	assert.NoError(t, err)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(signingInput))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestIssuer(t *testing.T) {
	secret := testSecret(t, 0x77)
	now := time.Unix(1_700_000_000, 0)

	{ // explicit id and client version
		issuer := jwt.NewIssuer(secret, "op-node", "op-node/v1.7.7")

		claims, err := jwt.Validate(issuer.Token(now), secret, now, jwt.DefaultDriftTolerance)
		assert.NoError(t, err)
		assert.Equal(t, now.Unix(), claims.IssuedAt)
		assert.Equal(t, "op-node", claims.ID)
		assert.Equal(t, "op-node/v1.7.7", claims.ClientVersion)
	}

	{ // empty id gets a generated one
		issuer := jwt.NewIssuer(secret, "", "")

		claims, err := jwt.Validate(issuer.Token(now), secret, now, jwt.DefaultDriftTolerance)
		assert.NoError(t, err)
		assert.NotEmpty(t, claims.ID)
	}
}
