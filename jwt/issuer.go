package jwt

import (
	"time"

	"github.com/google/uuid"
)

// Issuer mints bearer tokens for outgoing authrpc calls, one fresh token per
// request so that issued-at always reflects send time.
type Issuer struct {
	secret        Secret
	id            string
	clientVersion string
}

// NewIssuer binds secret with the diagnostic id/clv claims. An empty id gets
// a random uuid so that the counterparty can tell callers apart in its logs.
func NewIssuer(secret Secret, id, clientVersion string) *Issuer {
	if id == "" {
		id = uuid.NewString()
	}
	return &Issuer{
		secret:        secret,
		id:            id,
		clientVersion: clientVersion,
	}
}

func (i *Issuer) Token(now time.Time) string {
	return Encode(NewClaims(now.Unix(), i.id, i.clientVersion), i.secret)
}
