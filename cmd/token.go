package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/flashbots/authproxy/config"
	"github.com/flashbots/authproxy/jwt"
)

func CommandToken(cfg *config.Config) *cli.Command {
	var (
		clientVersion string
		id            string
	)

	return &cli.Command{
		Name:  "token",
		Usage: "bearer token utilities",

		Subcommands: []*cli.Command{{
			Name:  "new",
			Usage: "mint a bearer token from a secret (handy for curl)",

			Flags: []cli.Flag{
				&cli.StringFlag{
					Destination: &cfg.Jwt.SecretHex,
					EnvVars:     []string{envPrefix + "JWT_SECRET_HEX"},
					Name:        "secret-hex",
					Usage:       "64-character `hex` of the jwt secret",
				},

				&cli.StringFlag{
					Destination: &cfg.Jwt.SecretPath,
					EnvVars:     []string{envPrefix + "JWT_SECRET_PATH"},
					Name:        "secret-path",
					Usage:       "`path` to the jwt secret file",
				},

				&cli.StringFlag{
					Destination: &id,
					Name:        "id",
					Usage:       "`id` claim to stamp into the token",
				},

				&cli.StringFlag{
					Destination: &clientVersion,
					Name:        "client-version",
					Usage:       "`clv` claim to stamp into the token",
					Value:       appName + "/" + version,
				},
			},

			Before: func(_ *cli.Context) error {
				return cfg.Jwt.Validate()
			},

			Action: func(_ *cli.Context) error {
				secret, err := cfg.Jwt.LoadSecret()
				if err != nil {
					return err
				}

				fmt.Println(jwt.NewIssuer(secret, id, clientVersion).Token(time.Now()))
				return nil
			},
		}},
	}
}
