package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds run settings. Durations in YAML use Go syntax, e.g. "30s".
type Config struct {
	ReportRoot       string        `yaml:"report_root"`
	DefaultTimeout   time.Duration `yaml:"default_timeout"`
	SettleTimeout    time.Duration `yaml:"settle_timeout"`
	TestAttribute    string        `yaml:"test_attribute"`
	Headless         bool          `yaml:"headless"`
	Width            int           `yaml:"width"`
	Height           int           `yaml:"height"`
	ProfileDir       string        `yaml:"profile_dir"`
	FullPage         bool          `yaml:"full_page"`
	VisibleOffscreen bool          `yaml:"visible_offscreen"` // rendered elements outside the viewport count as visible
	Workers          int           `yaml:"workers"`
	Flicker          bool          `yaml:"flicker"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		ReportRoot:     "reports",
		DefaultTimeout: 30 * time.Second,
		SettleTimeout:  2 * time.Second,
		TestAttribute:  "data-testid",
		Headless:       true,
		Width:          1280,
		Height:         720,
		Workers:        1,
		Flicker:        true,
	}
}

// Load applies the YAML file at path (if non-empty) and then UICHECK_*
// environment variables on top of the defaults
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks that the settings are usable
func (c Config) Validate() error {
	var errs []error
	if c.ReportRoot == "" {
		errs = append(errs, errors.New("report_root must not be empty"))
	}
	if c.TestAttribute == "" {
		errs = append(errs, errors.New("test_attribute must not be empty"))
	}
	if c.DefaultTimeout <= 0 {
		errs = append(errs, errors.New("default_timeout must be positive"))
	}
	if c.SettleTimeout < 0 {
		errs = append(errs, errors.New("settle_timeout must not be negative"))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid viewport %dx%d", c.Width, c.Height))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	return errors.Join(errs...)
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("UICHECK_REPORT_ROOT", &c.ReportRoot)
	dur("UICHECK_DEFAULT_TIMEOUT", &c.DefaultTimeout)
	dur("UICHECK_SETTLE_TIMEOUT", &c.SettleTimeout)
	str("UICHECK_TEST_ATTRIBUTE", &c.TestAttribute)
	flag("UICHECK_HEADLESS", &c.Headless)
	num("UICHECK_WIDTH", &c.Width)
	num("UICHECK_HEIGHT", &c.Height)
	str("UICHECK_PROFILE_DIR", &c.ProfileDir)
	flag("UICHECK_FULL_PAGE", &c.FullPage)
	flag("UICHECK_VISIBLE_OFFSCREEN", &c.VisibleOffscreen)
	num("UICHECK_WORKERS", &c.Workers)
	flag("UICHECK_FLICKER", &c.Flicker)

	return errors.Join(errs...)
}
