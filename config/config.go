package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fabriziomello/pg-normalize-query/normalize"
	"github.com/fabriziomello/pg-normalize-query/query"
)

// Config holds the settings shared by pg-normalize and pg-normalized.
type Config struct {
	MaxDepth int    `yaml:"max_depth"`
	Fallback string `yaml:"fallback"`
	Daemon   Daemon `yaml:"daemon"`
}

// Daemon configures pg-normalized.
type Daemon struct {
	GRPC     string   `yaml:"grpc"`
	DSNEnv   string   `yaml:"dsn_env"`
	Interval Duration `yaml:"interval"`
	Top      int      `yaml:"top"`
	Burst    Burst    `yaml:"burst"`
}

// Burst configures repeated-query detection.
type Burst struct {
	Threshold int      `yaml:"threshold"`
	Window    Duration `yaml:"window"`
	Cooldown  Duration `yaml:"cooldown"`
}

// Duration is a time.Duration written as "1s", "250ms" and so on.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxDepth: normalize.DefaultMaxDepth,
		Fallback: query.FallbackNone.String(),
		Daemon: Daemon{
			GRPC:     ":9092",
			DSNEnv:   "DATABASE_URL",
			Interval: Duration(time.Second),
			Top:      20,
			Burst: Burst{
				Threshold: 5,
				Window:    Duration(time.Second),
				Cooldown:  Duration(10 * time.Second),
			},
		},
	}
}

// Load reads the YAML file at path on top of Default. An empty path
// returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("config: max_depth must be positive, got %d", c.MaxDepth))
	}
	if _, err := query.ParseFallback(c.Fallback); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if c.Daemon.Interval <= 0 {
		errs = append(errs, errors.New("config: daemon.interval must be positive"))
	}
	if c.Daemon.Top < 1 {
		errs = append(errs, errors.New("config: daemon.top must be positive"))
	}
	if c.Daemon.Burst.Threshold < 1 {
		errs = append(errs, errors.New("config: daemon.burst.threshold must be positive"))
	}
	return errors.Join(errs...)
}

// Normalizer builds the query normalizer described by c.
func (c Config) Normalizer() (*query.Normalizer, error) {
	fb, err := query.ParseFallback(c.Fallback)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	engine := normalize.New(normalize.WithMaxDepth(c.MaxDepth))
	return query.NewNormalizer(engine, fb), nil
}
