package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flashbots/authproxy/config"
	"github.com/flashbots/authproxy/jwt"
	"github.com/flashbots/authproxy/logutils"
	"github.com/flashbots/authproxy/metrics"
	"github.com/flashbots/authproxy/proxy"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelapi "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type Server struct {
	cfg     *config.Config
	failure chan error
	logger  *zap.Logger

	guard *proxy.Proxy

	metrics *http.Server
}

func New(cfg *config.Config) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		logger:  zap.L(),
		failure: make(chan error, 16),
	}

	secret, err := cfg.Jwt.LoadSecret()
	if err != nil {
		return nil, err
	}
	s.logger.Info("Loaded frontend jwt secret",
		zap.Stringer("secret_fingerprint", secret),
	)

	var issuer *jwt.Issuer
	if cfg.Proxy.BackendSecretPath != "" {
		backendSecret, err := cfg.Proxy.LoadBackendSecret()
		if err != nil {
			return nil, err
		}
		if backendSecret.Equal(secret) {
			s.logger.Info("Backend secret matches the frontend one; passing bearer tokens through")
		} else {
			issuer = jwt.NewIssuer(backendSecret, "", cfg.Proxy.ClientVersion)
			s.logger.Info("Loaded backend jwt secret; re-signing requests toward the backend",
				zap.Stringer("secret_fingerprint", backendSecret),
			)
		}
	}

	guard, err := proxy.New(&proxy.Config{
		Name:          "authproxy-authrpc",
		Healthcheck:   cfg.Healthcheck,
		Proxy:         cfg.Proxy,
		Authenticator: jwt.NewAuthenticator(secret, cfg.Jwt.DriftTolerance),
		Issuer:        issuer,
	})
	if err != nil {
		return nil, err
	}
	s.guard = guard

	mux := http.NewServeMux()
	mux.Handle("/", promhttp.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	s.metrics = &http.Server{
		Addr:              cfg.Metrics.ListenAddress,
		Handler:           mux,
		MaxHeaderBytes:    1024,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return s, nil
}

func (s *Server) Run() error {
	l := s.logger
	ctx := logutils.ContextWithLogger(context.Background(), l)

	if err := metrics.Setup(ctx, s.observe); err != nil {
		return err
	}

	go func() { // run the metrics server
		l.Info("Metrics server is going up...",
			zap.String("server_listen_address", s.cfg.Metrics.ListenAddress),
		)
		if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.failure <- err
		}
		l.Info("Metrics server is down")
	}()

	s.guard.Run(ctx, s.failure)

	errs := []error{}
	{ // wait until termination or internal failure
		terminator := make(chan os.Signal, 1)
		signal.Notify(terminator, os.Interrupt, syscall.SIGTERM)

		select {
		case stop := <-terminator:
			l.Info("Stop signal received; shutting down...",
				zap.String("signal", stop.String()),
			)
		case err := <-s.failure:
			l.Error("Internal failure; shutting down...",
				zap.Error(err),
			)
			errs = append(errs, err)
		exhaustErrors:
			for { // exhaust the errors
				select {
				case err := <-s.failure:
					l.Error("Extra internal failure",
						zap.Error(err),
					)
					errs = append(errs, err)
				default:
					break exhaustErrors
				}
			}
		}
	}

	{ // stop the authrpc guard
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.guard.Stop(ctx); err != nil {
			l.Error("Failed to shutdown the authrpc guard",
				zap.Error(err),
			)
		}
	}

	{ // stop metrics server
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.metrics.Shutdown(ctx); err != nil {
			l.Error("Metrics server shutdown failed",
				zap.Error(err),
			)
		}
	}

	switch len(errs) {
	default:
		return errors.Join(errs...)
	case 1:
		return errs[0]
	case 0:
		return nil
	}
}

func (s *Server) observe(ctx context.Context, o otelapi.Observer) error {
	return s.guard.Observe(ctx, o)
}
