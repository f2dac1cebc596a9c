package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Every token we mint or accept is HS256; the header is a constant.
var encodedHeader = base64.RawURLEncoding.EncodeToString(
	[]byte(`{"alg":"HS256","typ":"JWT"}`),
)

// claimsProbe mirrors Claims with a pointer iat so that a payload missing the
// claim altogether is distinguishable from an explicit zero. Unknown extra
// fields are ignored for forward compatibility.
type claimsProbe struct {
	IssuedAt      *int64 `json:"iat"`
	ID            string `json:"id"`
	ClientVersion string `json:"clv"`
}

// Encode serialises claims and signs them with secret, producing the usual
// three dot-separated base64url segments.
func Encode(claims Claims, secret Secret) string {
	payload, _ := json.Marshal(claims) // fixed field set, can not fail

	signingInput := encodedHeader + "." + base64.RawURLEncoding.EncodeToString(payload)
	signature := secret.sign([]byte(signingInput))

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature)
}

// Decode verifies token against secret and returns its claims.
//
// The signature is recomputed over the transmitted header and payload and
// compared in constant time before the payload is interpreted: untrusted
// bytes are never deserialised into claims ahead of authentication.
func Decode(token string, secret Secret) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: invalid count of segments (expected 3, got %d)",
			ErrMalformedToken, len(parts),
		)
	}

	if _, err := base64.RawURLEncoding.DecodeString(parts[0]); err != nil {
		return Claims{}, fmt.Errorf("%w: failed to base64-decode the header: %w",
			ErrMalformedToken, err,
		)
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: failed to base64-decode the payload: %w",
			ErrMalformedToken, err,
		)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: failed to base64-decode the signature: %w",
			ErrMalformedToken, err,
		)
	}

	expected := secret.sign([]byte(parts[0] + "." + parts[1]))
	if subtle.ConstantTimeCompare(signature, expected) != 1 {
		return Claims{}, ErrInvalidSignature
	}

	probe := claimsProbe{}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return Claims{}, fmt.Errorf("%w: failed to json-unmarshal the payload: %w",
			ErrMalformedClaims, err,
		)
	}
	if probe.IssuedAt == nil {
		return Claims{}, fmt.Errorf("%w: missing iat claim",
			ErrMalformedClaims,
		)
	}

	return Claims{
		IssuedAt:      *probe.IssuedAt,
		ID:            probe.ID,
		ClientVersion: probe.ClientVersion,
	}, nil
}

func (s Secret) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, s.bytes[:])
	mac.Write(data)
	return mac.Sum(nil)
}
