package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/flashbots/authproxy/config"
	"github.com/flashbots/authproxy/logutils"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// healthcheck polls the backend and flips to unhealthy after enough
// consecutive probes fail (and back after enough succeed). While unhealthy it
// invokes handleUnhealthy on every tick so that client connections keep being
// drained until the backend recovers.
type healthcheck struct {
	cfg *config.Healthcheck

	handleUnhealthy func(ctx context.Context)

	client *fasthttp.Client
	ticker *time.Ticker
	uri    *fasthttp.URI

	streakHealthy   int
	streakUnhealthy int

	isHealthy bool
	mx        sync.Mutex
}

func newHealthcheck(
	name string,
	cfg *config.Healthcheck,
	handleUnhealthy func(context.Context),
) (*healthcheck, error) {
	uri := fasthttp.AcquireURI()
	if err := uri.Parse(nil, []byte(cfg.URL)); err != nil {
		fasthttp.ReleaseURI(uri)
		return nil, err
	}

	return &healthcheck{
		cfg:             cfg,
		handleUnhealthy: handleUnhealthy,
		isHealthy:       true,
		ticker:          time.NewTicker(cfg.Interval),
		uri:             uri,

		client: &fasthttp.Client{
			MaxConnsPerHost:     1,
			MaxConnWaitTimeout:  cfg.Interval / 2,
			MaxIdleConnDuration: 2 * cfg.Interval,
			MaxResponseBodySize: 4096,
			Name:                name + "-healthcheck",
			ReadTimeout:         cfg.Interval / 2,
			WriteTimeout:        cfg.Interval / 2,
		},
	}, nil
}

func (h *healthcheck) IsHealthy() bool {
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.isHealthy
}

func (h *healthcheck) run(ctx context.Context) {
	go func() {
		for {
			<-h.ticker.C
			h.observe(ctx, h.probe(ctx))
		}
	}()
}

func (h *healthcheck) stop() {
	h.ticker.Stop()
	fasthttp.ReleaseURI(h.uri)
}

func (h *healthcheck) probe(ctx context.Context) bool {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(res)

	req.SetURI(h.uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetTimeout(h.cfg.Interval / 2)

	if err := h.client.Do(req, res); err != nil {
		logutils.LoggerFromContext(ctx).Warn("Failed to query the healthcheck endpoint",
			zap.Error(err),
			zap.String("healthcheck_url", h.cfg.URL),
		)
		return false
	}

	switch res.StatusCode() {
	case fasthttp.StatusOK, fasthttp.StatusAccepted:
		return true
	default:
		return false
	}
}

// observe folds one probe result into the state machine.
func (h *healthcheck) observe(ctx context.Context, ok bool) {
	h.mx.Lock()
	defer h.mx.Unlock()

	l := logutils.LoggerFromContext(ctx).With(
		zap.String("healthcheck_url", h.cfg.URL),
	)

	if ok {
		h.streakHealthy++
		h.streakUnhealthy = 0
	} else {
		h.streakUnhealthy++
		h.streakHealthy = 0
	}

	if h.isHealthy && h.streakUnhealthy >= h.cfg.ThresholdUnhealthy {
		h.isHealthy = false
		l.Warn("Backend became unhealthy")
	} else if !h.isHealthy && h.streakHealthy >= h.cfg.ThresholdHealthy {
		h.isHealthy = true
		l.Info("Backend is healthy again")
	}

	if !h.isHealthy {
		h.handleUnhealthy(ctx)
	}
}
