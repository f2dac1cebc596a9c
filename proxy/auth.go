package proxy

import (
	"errors"
	"strings"
	"time"

	"github.com/flashbots/authproxy/jwt"
	"github.com/flashbots/authproxy/utils"

	"github.com/valyala/fasthttp"
)

var (
	errMissingBearerToken = errors.New("missing bearer token")
)

// unauthorizedBody is the only thing a rejected caller ever sees: the exact
// failure kind goes to logs and metrics, not to the wire, so that a probing
// attacker can't tell a bad signature from an expired token.
var unauthorizedBody = []byte("unauthorized")

// authenticate is the single gate every request passes before its body is
// processed.
func (p *Proxy) authenticate(ctx *fasthttp.RequestCtx, now time.Time) (jwt.Claims, error) {
	header := utils.Str(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))

	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return jwt.Claims{}, errMissingBearerToken
	}

	return p.cfg.Authenticator.Validate(token, now)
}

// authFailureReason maps a validation error onto a bounded metrics label set.
func authFailureReason(err error) string {
	switch {
	case errors.Is(err, errMissingBearerToken):
		return "missing_token"
	case errors.Is(err, jwt.ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, jwt.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, jwt.ErrMalformedClaims):
		return "malformed_claims"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	default:
		return "other"
	}
}
