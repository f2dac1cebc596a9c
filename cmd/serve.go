package main

import (
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/flashbots/authproxy/config"
	"github.com/flashbots/authproxy/jwt"
	"github.com/flashbots/authproxy/server"
)

const (
	categoryHealthcheck = "healthcheck"
	categoryJwt         = "jwt"
	categoryMetrics     = "metrics"
	categoryProxy       = "proxy"
)

func CommandServe(cfg *config.Config) *cli.Command {
	jwtFlags := []cli.Flag{
		&cli.DurationFlag{
			Category:    strings.ToUpper(categoryJwt),
			Destination: &cfg.Jwt.DriftTolerance,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryJwt) + "_DRIFT_TOLERANCE"},
			Name:        categoryJwt + "-drift-tolerance",
			Usage:       "maximum `distance` between a token's issued-at claim and the local clock",
			Value:       jwt.DefaultDriftTolerance,
		},

		&cli.StringFlag{
			Category:    strings.ToUpper(categoryJwt),
			Destination: &cfg.Jwt.SecretHex,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryJwt) + "_SECRET_HEX"},
			Name:        categoryJwt + "-secret-hex",
			Usage:       "64-character `hex` of the frontend jwt secret (mutually exclusive with the secret file)",
		},

		&cli.StringFlag{
			Category:    strings.ToUpper(categoryJwt),
			Destination: &cfg.Jwt.SecretPath,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryJwt) + "_SECRET_PATH"},
			Name:        categoryJwt + "-secret-path",
			Usage:       "`path` to the frontend jwt secret file",
		},
	}

	proxyFlags := []cli.Flag{
		&cli.StringFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.BackendSecretPath,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_BACKEND_SECRET_PATH"},
			Name:        categoryProxy + "-backend-secret-path",
			Usage:       "`path` to the backend jwt secret file (re-sign requests when it differs from the frontend secret)",
		},

		&cli.DurationFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.BackendTimeout,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_BACKEND_TIMEOUT"},
			Name:        categoryProxy + "-backend-timeout",
			Usage:       "`timeout` for backend requests",
			Value:       10 * time.Second,
		},

		&cli.StringFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.BackendURL,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_BACKEND"},
			Name:        categoryProxy + "-backend",
			Usage:       "`url` of the backend authrpc",
			Value:       "http://127.0.0.1:18551",
		},

		&cli.DurationFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.ClientIdleConnectionTimeout,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_CLIENT_IDLE_CONNECTION_TIMEOUT"},
			Name:        categoryProxy + "-client-idle-connection-timeout",
			Usage:       "idle `timeout` for client connections",
			Value:       30 * time.Minute,
		},

		&cli.StringFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.ClientVersion,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_CLIENT_VERSION"},
			Name:        categoryProxy + "-client-version",
			Usage:       "`clv` claim to stamp into re-signed tokens",
			Value:       appName + "/" + version,
		},

		&cli.StringFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.ListenAddress,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_LISTEN_ADDRESS"},
			Name:        categoryProxy + "-listen-address",
			Usage:       "`host:port` for the authrpc guard",
			Value:       "0.0.0.0:8551",
		},

		&cli.BoolFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.LogRequests,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_LOG_REQUESTS"},
			Name:        categoryProxy + "-log-requests",
			Usage:       "whether to log the bodies of proxied requests",
		},

		&cli.IntFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.LogRequestsMaxSize,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_LOG_REQUESTS_MAX_SIZE"},
			Name:        categoryProxy + "-log-requests-max-size",
			Usage:       "don't log request bodies larger than `size` bytes",
			Value:       4096,
		},

		&cli.IntFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.MaxBackendConnectionsPerHost,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_MAX_BACKEND_CONNECTIONS_PER_HOST"},
			Name:        categoryProxy + "-max-backend-connections-per-host",
			Usage:       "maximum `count` of backend connections per host",
			Value:       16,
		},

		&cli.IntFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.MaxClientConnectionsPerIP,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_MAX_CLIENT_CONNECTIONS_PER_IP"},
			Name:        categoryProxy + "-max-client-connections-per-ip",
			Usage:       "maximum `count` of client connections per ip",
			Value:       16,
		},

		&cli.IntFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.MaxRequestSizeMb,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_MAX_REQUEST_SIZE_MB"},
			Name:        categoryProxy + "-max-request-size-mb",
			Usage:       "maximum request `size` in megabytes",
			Value:       64,
		},

		&cli.IntFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.MaxResponseSizeMb,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_MAX_RESPONSE_SIZE_MB"},
			Name:        categoryProxy + "-max-response-size-mb",
			Usage:       "maximum response `size` in megabytes",
			Value:       64,
		},

		&cli.StringFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.TLSCertificate,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_TLS_CRT"},
			Name:        categoryProxy + "-tls-crt",
			Usage:       "`path` to the tls certificate (enables tls together with the key)",
		},

		&cli.StringFlag{
			Category:    strings.ToUpper(categoryProxy),
			Destination: &cfg.Proxy.TLSKey,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryProxy) + "_TLS_KEY"},
			Name:        categoryProxy + "-tls-key",
			Usage:       "`path` to the tls key",
		},
	}

	healthcheckFlags := []cli.Flag{
		&cli.DurationFlag{
			Category:    strings.ToUpper(categoryHealthcheck),
			Destination: &cfg.Healthcheck.Interval,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryHealthcheck) + "_INTERVAL"},
			Name:        categoryHealthcheck + "-interval",
			Usage:       "`interval` between backend healthcheck probes",
			Value:       5 * time.Second,
		},

		&cli.IntFlag{
			Category:    strings.ToUpper(categoryHealthcheck),
			Destination: &cfg.Healthcheck.ThresholdHealthy,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryHealthcheck) + "_THRESHOLD_HEALTHY"},
			Name:        categoryHealthcheck + "-threshold-healthy",
			Usage:       "`count` of consecutive successful probes after which the backend is healthy again",
			Value:       2,
		},

		&cli.IntFlag{
			Category:    strings.ToUpper(categoryHealthcheck),
			Destination: &cfg.Healthcheck.ThresholdUnhealthy,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryHealthcheck) + "_THRESHOLD_UNHEALTHY"},
			Name:        categoryHealthcheck + "-threshold-unhealthy",
			Usage:       "`count` of consecutive failed probes after which the backend is unhealthy",
			Value:       3,
		},

		&cli.StringFlag{
			Category:    strings.ToUpper(categoryHealthcheck),
			Destination: &cfg.Healthcheck.URL,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryHealthcheck) + "_URL"},
			Name:        categoryHealthcheck + "-url",
			Usage:       "`url` of the backend healthcheck endpoint (empty disables backend probing)",
		},
	}

	metricsFlags := []cli.Flag{
		&cli.StringFlag{
			Category:    strings.ToUpper(categoryMetrics),
			Destination: &cfg.Metrics.ListenAddress,
			EnvVars:     []string{envPrefix + strings.ToUpper(categoryMetrics) + "_LISTEN_ADDRESS"},
			Name:        categoryMetrics + "-listen-address",
			Usage:       "`host:port` for the metrics server",
			Value:       "0.0.0.0:6785",
		},
	}

	flags := slices.Concat(
		healthcheckFlags,
		jwtFlags,
		proxyFlags,
		metricsFlags,
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "run the authrpc guard",
		Flags: flags,

		Before: func(_ *cli.Context) error {
			return cfg.Validate()
		},

		Action: func(_ *cli.Context) error {
			s, err := server.New(cfg)
			if err != nil {
				return err
			}
			return s.Run()
		},
	}
}
