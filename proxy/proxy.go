// Package proxy implements the authenticating reverse proxy that sits in
// front of an execution client's authrpc port. Every request must present a
// valid bearer token before its body is even looked at; accepted requests are
// forwarded to the backend, optionally re-signed with the backend's own
// secret.
package proxy

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/flashbots/authproxy/config"
	"github.com/flashbots/authproxy/jwt"
	"github.com/flashbots/authproxy/logutils"
	"github.com/flashbots/authproxy/metrics"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	otelapi "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type Config struct {
	Name string

	Healthcheck *config.Healthcheck // nil or empty url => no backend probing
	Proxy       *config.Proxy

	Authenticator *jwt.Authenticator
	Issuer        *jwt.Issuer // nil => pass bearer tokens through unchanged
}

type Proxy struct {
	cfg *Config

	backend  *fasthttp.Client
	frontend *fasthttp.Server

	backendURI  *fasthttp.URI
	healthcheck *healthcheck

	logger *zap.Logger

	connections         map[string]net.Conn
	drainingConnections map[string]net.Conn
	mxConnections       sync.Mutex
}

func New(cfg *Config) (*Proxy, error) {
	l := zap.L().With(zap.String("proxy_name", cfg.Name))

	p := &Proxy{
		cfg:                 cfg,
		logger:              l,
		connections:         make(map[string]net.Conn),
		drainingConnections: make(map[string]net.Conn),
	}

	p.frontend = &fasthttp.Server{
		ConnState:          p.clientConnectionChanged,
		Handler:            p.receive,
		IdleTimeout:        cfg.Proxy.ClientIdleConnectionTimeout,
		Logger:             logutils.FasthttpLogger(l),
		MaxConnsPerIP:      cfg.Proxy.MaxClientConnectionsPerIP,
		MaxRequestBodySize: cfg.Proxy.MaxRequestSizeMb * 1024 * 1024,
		Name:               cfg.Name,
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
	}

	if cfg.Proxy.TLSCertificate != "" && cfg.Proxy.TLSKey != "" {
		cert, err := cfg.Proxy.LoadTLSCertificate()
		if err != nil {
			return nil, err
		}

		p.frontend.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	p.backend = &fasthttp.Client{
		MaxConnsPerHost:     cfg.Proxy.MaxBackendConnectionsPerHost,
		MaxIdleConnDuration: 30 * time.Second,
		MaxResponseBodySize: cfg.Proxy.MaxResponseSizeMb * 1024 * 1024,
		Name:                cfg.Name,
		ReadTimeout:         cfg.Proxy.BackendTimeout,
		WriteTimeout:        5 * time.Second,
	}

	p.backendURI = fasthttp.AcquireURI()
	if err := p.backendURI.Parse(nil, []byte(cfg.Proxy.BackendURL)); err != nil {
		fasthttp.ReleaseURI(p.backendURI)
		return nil, err
	}

	if cfg.Healthcheck != nil && cfg.Healthcheck.URL != "" {
		hc, err := newHealthcheck(cfg.Name, cfg.Healthcheck, p.backendUnhealthy)
		if err != nil {
			fasthttp.ReleaseURI(p.backendURI)
			return nil, err
		}
		p.healthcheck = hc
	}

	return p, nil
}

func (p *Proxy) Run(ctx context.Context, failure chan<- error) {
	if p == nil {
		return
	}

	l := p.logger

	go func() { // run the proxy
		l.Info("Authrpc guard is going up...",
			zap.String("listen_address", p.cfg.Proxy.ListenAddress),
			zap.String("backend", p.cfg.Proxy.BackendURL),
			zap.Bool("re_signing", p.cfg.Issuer != nil),
		)
		if p.cfg.Proxy.TLSCertificate != "" && p.cfg.Proxy.TLSKey != "" {
			if err := p.frontend.ListenAndServeTLS(p.cfg.Proxy.ListenAddress, "", ""); err != nil {
				failure <- err
			}
		} else {
			if err := p.frontend.ListenAndServe(p.cfg.Proxy.ListenAddress); err != nil {
				failure <- err
			}
		}
		l.Info("Authrpc guard is down")
	}()

	if p.healthcheck != nil {
		p.healthcheck.run(ctx)
	}
}

func (p *Proxy) Stop(ctx context.Context) error {
	if p == nil {
		return nil
	}

	if p.healthcheck != nil {
		p.healthcheck.stop()
	}

	err := p.frontend.ShutdownWithContext(ctx)

	fasthttp.ReleaseURI(p.backendURI)

	return err
}

func (p *Proxy) ResetConnections() {
	if p == nil {
		return
	}

	p.mxConnections.Lock()
	defer p.mxConnections.Unlock()

	for addr, conn := range p.connections {
		if _, alreadyDraining := p.drainingConnections[addr]; alreadyDraining {
			p.logger.Error("Draining connection address collision",
				zap.String("remote_addr", addr),
			)
		}
		p.drainingConnections[addr] = conn
		delete(p.connections, addr)
	}
}

func (p *Proxy) connectionsCount() int {
	p.mxConnections.Lock()
	defer p.mxConnections.Unlock()

	return len(p.connections)
}

func (p *Proxy) backendUnhealthy(ctx context.Context) {
	l := logutils.LoggerFromContext(ctx)

	if p.connectionsCount() > 0 {
		l.Warn("Resetting client connections b/c backend is (still) unhealthy...",
			zap.String("proxy_name", p.cfg.Name),
		)
		p.ResetConnections()
	}
}

func (p *Proxy) Observe(ctx context.Context, o otelapi.Observer) error {
	if p == nil {
		return nil
	}

	o.ObserveInt64(metrics.FrontendConnectionsCount, int64(p.frontend.GetOpenConnectionsCount()), otelapi.WithAttributes(
		attribute.KeyValue{Key: "proxy", Value: attribute.StringValue(p.cfg.Name)},
	))

	return nil
}

func (p *Proxy) clientConnectionChanged(conn net.Conn, state fasthttp.ConnState) {
	p.mxConnections.Lock()
	defer p.mxConnections.Unlock()

	addr := conn.RemoteAddr().String()

	l := p.logger.With(
		zap.String("remote_addr", addr),
	)

	switch state {
	case fasthttp.StateNew:
		l.Info("Client connection was established")
		p.connections[addr] = conn

	case fasthttp.StateActive:
		l.Debug("Client connection became active")

	case fasthttp.StateIdle:
		l.Debug("Client connection became idle")
		if _, draining := p.drainingConnections[addr]; draining {
			delete(p.drainingConnections, addr)
			err := conn.Close()
			l.Info("Drained the client connection as it became idle",
				zap.Error(err),
				zap.Int("remaining", len(p.drainingConnections)),
			)
		}

	case fasthttp.StateHijacked:
		l.Info("Client connection was hijacked")
		delete(p.connections, addr)
		delete(p.drainingConnections, addr)

	case fasthttp.StateClosed:
		l.Info("Client connection was closed")
		delete(p.connections, addr)
		delete(p.drainingConnections, addr)
	}
}
