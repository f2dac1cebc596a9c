package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/flashbots/authproxy/config"
	"github.com/flashbots/authproxy/jwt"
)

var (
	errSecretOutputExists = errors.New("refusing to overwrite existing secret file")
)

func CommandSecret(cfg *config.Config) *cli.Command {
	var output string

	return &cli.Command{
		Name:  "secret",
		Usage: "manage jwt secrets",

		Subcommands: []*cli.Command{
			{
				Name:  "new",
				Usage: "generate a fresh secret and write it out as hex",

				Flags: []cli.Flag{
					&cli.StringFlag{
						Destination: &output,
						Name:        "output",
						Aliases:     []string{"o"},
						Usage:       "`path` to write the secret to (stdout if empty)",
					},
				},

				Action: func(_ *cli.Context) error {
					secret, err := jwt.GenerateSecret(nil)
					if err != nil {
						return err
					}

					if output == "" {
						fmt.Println(secret.Hex())
						return nil
					}

					f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
					if err != nil {
						if os.IsExist(err) {
							return fmt.Errorf("%w: %s", errSecretOutputExists, output)
						}
						return err
					}
					defer f.Close()

					if _, err := f.WriteString(secret.Hex() + "\n"); err != nil {
						return err
					}

					fmt.Printf("Wrote a new jwt secret to %s (fingerprint %s)\n", output, secret)
					return nil
				},
			},
		},
	}
}
