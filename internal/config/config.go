// Package config loads the planner's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      string `env:"PARTYPLANNER_PORT" envDefault:"8080"`
	LogLevel  string `env:"PARTYPLANNER_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PARTYPLANNER_LOG_FORMAT" envDefault:"text"`

	APIBase    string        `env:"PARTYPLANNER_API_BASE" envDefault:"https://fsa-crud-2aa9294fe819.herokuapp.com/api"`
	Cohort     string        `env:"PARTYPLANNER_COHORT" envDefault:"2511-FTB-CT-WEB-PT-vanessa"`
	APITimeout time.Duration `env:"PARTYPLANNER_API_TIMEOUT" envDefault:"10s"`

	WriteLimit     int      `env:"PARTYPLANNER_WRITE_LIMIT" envDefault:"30"`
	OriginPatterns []string `env:"PARTYPLANNER_WS_ORIGINS" envSeparator:","`

	OTelEndpoint string `env:"PARTYPLANNER_OTEL_ENDPOINT"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("PARTYPLANNER_API_BASE %q is not an http(s) URL", c.APIBase))
	}
	if strings.Trim(c.Cohort, "/ ") == "" {
		errs = append(errs, errors.New("PARTYPLANNER_COHORT is empty"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, fmt.Errorf("PARTYPLANNER_API_TIMEOUT must be positive, got %s", c.APITimeout))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PARTYPLANNER_PORT is empty"))
	}

	return errors.Join(errs...)
}
