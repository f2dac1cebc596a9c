package config

import (
	"errors"
	"reflect"
)

type Config struct {
	Log *Log `yaml:"log"`

	Healthcheck *Healthcheck `yaml:"healthcheck"`
	Jwt         *Jwt         `yaml:"jwt"`
	Proxy       *Proxy       `yaml:"proxy"`

	Metrics *Metrics `yaml:"metrics"`
}

func New() *Config {
	return &Config{
		Log: &Log{},

		Healthcheck: &Healthcheck{},
		Jwt:         &Jwt{},
		Proxy:       &Proxy{},

		Metrics: &Metrics{},
	}
}

var (
	errConfigNoSecret = errors.New("no jwt secret is configured, either secret file or secret hex is required")
)

func (c *Config) Validate() error {
	if c.Jwt.SecretPath == "" && c.Jwt.SecretHex == "" {
		return errConfigNoSecret
	}

	return validate(c)
}

type validatee interface {
	Validate() error
}

func validate(item interface{}) error {
	v := reflect.ValueOf(item)

	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil
	}

	errs := []error{}
	for idx := 0; idx < v.NumField(); idx++ {
		field := v.Field(idx)

		if field.Kind() == reflect.Ptr && field.IsNil() {
			continue
		}

		if v, ok := field.Interface().(validatee); ok {
			if err := v.Validate(); err != nil {
				errs = append(errs, err)
			}
		}

		if field.Kind() == reflect.Ptr {
			field = field.Elem()
		}

		switch field.Kind() {
		case reflect.Struct:
			if err := validate(field.Interface()); err != nil {
				errs = append(errs, err)
			}
		case reflect.Slice, reflect.Array:
			for jdx := 0; jdx < field.Len(); jdx++ {
				if err := validate(field.Index(jdx).Interface()); err != nil {
					errs = append(errs, err)
				}
			}
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
