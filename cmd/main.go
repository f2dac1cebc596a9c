package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/flashbots/authproxy/config"
	"github.com/flashbots/authproxy/logutils"
)

const (
	appName  = "authproxy"
	appUsage = "jwt-authenticating proxy for the engine api (authrpc)"

	envPrefix = "AUTHPROXY_"
)

var version = "development"

func main() {
	cfg := config.New()

	flags := []cli.Flag{
		&cli.StringFlag{
			Destination: &cfg.Log.Level,
			EnvVars:     []string{envPrefix + "LOG_LEVEL"},
			Name:        "log-level",
			Usage:       "logging level",
			Value:       "info",
		},

		&cli.StringFlag{
			Destination: &cfg.Log.Mode,
			EnvVars:     []string{envPrefix + "LOG_MODE"},
			Name:        "log-mode",
			Usage:       "logging mode (dev or prod)",
			Value:       "prod",
		},
	}

	app := &cli.App{
		Name:    appName,
		Usage:   appUsage,
		Version: version,

		Flags: flags,

		Before: func(_ *cli.Context) error {
			l, err := logutils.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(l)

			return nil
		},

		Commands: []*cli.Command{
			CommandServe(cfg),
			CommandSecret(cfg),
			CommandToken(cfg),
		},
	}

	defer func() {
		_ = zap.L().Sync()
	}()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed with error:\n\n%s\n\n", err.Error())
		os.Exit(1)
	}
}
