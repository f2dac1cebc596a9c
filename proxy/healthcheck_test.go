package proxy

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/flashbots/authproxy/config"
	"github.com/flashbots/authproxy/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func newTestHealthcheck(t *testing.T, onUnhealthy func(context.Context)) *healthcheck {
	t.Helper()

	hc, err := newHealthcheck("authproxy-test", &config.Healthcheck{
		Interval:           time.Second,
		ThresholdHealthy:   2,
		ThresholdUnhealthy: 3,
		URL:                "http://127.0.0.1:1/healthz", // nothing listens there
	}, onUnhealthy)
	assert.NoError(t, err)
	t.Cleanup(hc.stop)

	return hc
}

func TestHealthcheckThresholds(t *testing.T) {
	ctx := context.Background()

	unhealthyTicks := 0
	hc := newTestHealthcheck(t, func(_ context.Context) {
		unhealthyTicks++
	})

	{ // sporadic failures don't flip a healthy backend
		hc.observe(ctx, false)
		hc.observe(ctx, false)
		assert.True(t, hc.IsHealthy())
		assert.Equal(t, 0, unhealthyTicks)
	}

	{ // a success in between resets the failure streak
		hc.observe(ctx, true)
		hc.observe(ctx, false)
		hc.observe(ctx, false)
		assert.True(t, hc.IsHealthy())
	}

	{ // the third consecutive failure flips it
		hc.observe(ctx, false)
		assert.False(t, hc.IsHealthy())
		assert.Equal(t, 1, unhealthyTicks)
	}

	{ // every further unhealthy tick nudges the drain handler again
		hc.observe(ctx, false)
		assert.Equal(t, 2, unhealthyTicks)
	}

	{ // one success is not enough to recover...
		hc.observe(ctx, true)
		assert.False(t, hc.IsHealthy())
		assert.Equal(t, 3, unhealthyTicks)
	}

	{ // ...two consecutive ones are
		hc.observe(ctx, true)
		assert.True(t, hc.IsHealthy())
		assert.Equal(t, 3, unhealthyTicks)
	}
}

func TestBackendUnhealthyDrainsConnections(t *testing.T) {
	secret, err := jwt.SecretFromHex(strings.Repeat("22", 32))
	assert.NoError(t, err)
	p := newTestProxy(t, secret)

	client, server := net.Pipe()
	defer client.Close()

	p.clientConnectionChanged(server, fasthttp.StateNew)
	assert.Equal(t, 1, p.connectionsCount())

	{ // an unhealthy backend marks every live connection for draining
		p.backendUnhealthy(context.Background())
		assert.Equal(t, 0, p.connectionsCount())

		p.mxConnections.Lock()
		assert.Len(t, p.drainingConnections, 1)
		p.mxConnections.Unlock()
	}

	{ // a marked connection is closed as soon as it goes idle
		p.clientConnectionChanged(server, fasthttp.StateIdle)

		p.mxConnections.Lock()
		assert.Len(t, p.drainingConnections, 0)
		p.mxConnections.Unlock()

		assert.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
		_, err := client.Read(make([]byte, 1))
		assert.ErrorIs(t, err, io.EOF)
	}

	{ // nothing to do when no connections are live
		p.backendUnhealthy(context.Background())
		assert.Equal(t, 0, p.connectionsCount())
	}
}
