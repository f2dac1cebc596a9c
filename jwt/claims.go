package jwt

import "time"

// Claims is the signed payload of a token. Only IssuedAt participates in
// authorization decisions; ID and ClientVersion are diagnostic metadata and
// must never be trusted for anything else.
type Claims struct {
	IssuedAt      int64  `json:"iat"`
	ID            string `json:"id,omitempty"`
	ClientVersion string `json:"clv,omitempty"`
}

func NewClaims(issuedAt int64, id, clientVersion string) Claims {
	return Claims{
		IssuedAt:      issuedAt,
		ID:            id,
		ClientVersion: clientVersion,
	}
}

// ClaimsFromNow stamps a fresh claim set with the current wall-clock time.
func ClaimsFromNow(id, clientVersion string) Claims {
	return NewClaims(time.Now().Unix(), id, clientVersion)
}
