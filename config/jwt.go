package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/flashbots/authproxy/jwt"
	"github.com/flashbots/authproxy/utils"
)

type Jwt struct {
	DriftTolerance time.Duration `yaml:"drift_tolerance"`
	SecretHex      string        `yaml:"secret_hex"`
	SecretPath     string        `yaml:"secret_path"`
}

var (
	errJwtAmbiguousSecret       = errors.New("jwt secret file and secret hex are mutually exclusive")
	errJwtInvalidDriftTolerance = errors.New("invalid jwt drift tolerance")
	errJwtInvalidSecret         = errors.New("invalid jwt secret")
)

func (cfg *Jwt) Validate() error {
	errs := make([]error, 0)

	{ // DriftTolerance
		if cfg.DriftTolerance < 0 {
			errs = append(errs, fmt.Errorf("%w: can't be negative: %s",
				errJwtInvalidDriftTolerance, cfg.DriftTolerance,
			))
		}
		if cfg.DriftTolerance > time.Hour {
			errs = append(errs, fmt.Errorf("%w: too high, must be <=1h: %s",
				errJwtInvalidDriftTolerance, cfg.DriftTolerance,
			))
		}
	}

	{ // SecretHex + SecretPath
		if cfg.SecretHex != "" && cfg.SecretPath != "" {
			errs = append(errs, errJwtAmbiguousSecret)
		}
		if cfg.SecretHex != "" || cfg.SecretPath != "" {
			if _, err := cfg.LoadSecret(); err != nil {
				errs = append(errs, fmt.Errorf("%w: %w",
					errJwtInvalidSecret, err,
				))
			}
		}
	}

	return utils.FlattenErrors(errs)
}

func (cfg *Jwt) LoadSecret() (jwt.Secret, error) {
	if cfg.SecretHex != "" {
		return jwt.SecretFromHex(cfg.SecretHex)
	}
	return jwt.SecretFromFile(cfg.SecretPath)
}
