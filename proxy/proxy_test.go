package proxy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/flashbots/authproxy/config"
	"github.com/flashbots/authproxy/jwt"
	"github.com/flashbots/authproxy/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	otelapi "go.opentelemetry.io/otel/metric"
)

func newTestProxy(t *testing.T, secret jwt.Secret) *Proxy {
	t.Helper()

	p, err := New(&Config{
		Name: "authproxy-test",
		Proxy: &config.Proxy{
			BackendTimeout:              time.Second,
			BackendURL:                  "http://127.0.0.1:1", // nothing listens there
			ClientIdleConnectionTimeout: time.Minute,
			ListenAddress:               "127.0.0.1:0",
			MaxRequestSizeMb:            4,
			MaxResponseSizeMb:           4,
		},
		Authenticator: jwt.NewAuthenticator(secret, jwt.DefaultDriftTolerance),
	})
	assert.NoError(t, err)

	return p
}

func newRequestCtx(token string) *fasthttp.RequestCtx {
	req := fasthttp.AcquireRequest()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI("http://127.0.0.1:8551/")
	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	req.SetBody([]byte(`{"jsonrpc":"2.0","id":1,"method":"engine_newPayloadV4","params":[{}]}`))

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(req, nil, nil)
	return ctx
}

func TestReceive(t *testing.T) {
	err := metrics.Setup(context.Background(), func(_ context.Context, _ otelapi.Observer) error {
		return nil
	})
	assert.NoError(t, err)

	secret, err := jwt.SecretFromHex(strings.Repeat("11", 32))
	assert.NoError(t, err)
	p := newTestProxy(t, secret)

	{ // no token at all => 401 with the constant body
		ctx := newRequestCtx("")
		p.receive(ctx)

		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
		assert.Equal(t, unauthorizedBody, ctx.Response.Body())
	}

	{ // garbage token => same 401, body reveals nothing about the reason
		ctx := newRequestCtx("not.a.jwt")
		p.receive(ctx)

		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
		assert.Equal(t, unauthorizedBody, ctx.Response.Body())
	}

	{ // stale token => same 401
		stale := jwt.Encode(jwt.Claims{IssuedAt: time.Now().Unix() - 3600}, secret)
		ctx := newRequestCtx(stale)
		p.receive(ctx)

		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
		assert.Equal(t, unauthorizedBody, ctx.Response.Body())
	}

	{ // valid token passes the gate and reaches the (dead) backend
		token := jwt.Encode(jwt.Claims{IssuedAt: time.Now().Unix(), ID: "test"}, secret)
		ctx := newRequestCtx(token)
		p.receive(ctx)

		assert.NotEqual(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
		assert.NotEqual(t, unauthorizedBody, ctx.Response.Body())
	}
}

func TestAuthFailureReason(t *testing.T) {
	for reason, err := range map[string]error{
		"missing_token":     errMissingBearerToken,
		"malformed_token":   jwt.ErrMalformedToken,
		"invalid_signature": jwt.ErrInvalidSignature,
		"malformed_claims":  jwt.ErrMalformedClaims,
		"expired":           jwt.ErrTokenExpired,
		"other":             errors.New("boom"),
	} {
		assert.Equal(t, reason, authFailureReason(err))
	}
}
