package jwt

import (
	"fmt"
	"time"
)

// DefaultDriftTolerance is the maximum accepted distance between a token's
// issued-at claim and the local clock. 60 seconds is the ecosystem-wide
// convention, covering request round-trip plus clock skew between two
// independently-clocked processes.
const DefaultDriftTolerance = 60 * time.Second

// Validate decodes and verifies token against secret, then checks that its
// issued-at claim is within drift of now. Tokens from the future are rejected
// exactly like stale ones: either way the clocks disagree, or somebody is
// replaying.
func Validate(token string, secret Secret, now time.Time, drift time.Duration) (Claims, error) {
	claims, err := Decode(token, secret)
	if err != nil {
		return Claims{}, err
	}

	delta := now.Unix() - claims.IssuedAt
	if delta < 0 {
		delta = -delta
	}
	if delta > int64(drift/time.Second) {
		return Claims{}, fmt.Errorf("%w: issued-at is %ds away from now (tolerance %ds)",
			ErrTokenExpired, delta, int64(drift/time.Second),
		)
	}

	return claims, nil
}

// Authenticator binds a secret and a drift tolerance for the validation
// hot path. It holds no mutable state: concurrent Validate calls need no
// coordination.
type Authenticator struct {
	secret Secret
	drift  time.Duration
}

// NewAuthenticator wraps secret with drift tolerance. A negative drift
// selects DefaultDriftTolerance; zero is honored literally and accepts only
// tokens whose issued-at matches the local clock to the second.
func NewAuthenticator(secret Secret, drift time.Duration) *Authenticator {
	if drift < 0 {
		drift = DefaultDriftTolerance
	}
	return &Authenticator{
		secret: secret,
		drift:  drift,
	}
}

func (a *Authenticator) Validate(token string, now time.Time) (Claims, error) {
	return Validate(token, a.secret, now, a.drift)
}
