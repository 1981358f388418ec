// Package config loads server settings from an optional YAML file
// with environment overrides on top. Everything has a default so the
// server starts with no file at all.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen    string    `yaml:"listen"`
	Storage   Storage   `yaml:"storage"`
	Scheduler Scheduler `yaml:"scheduler"`
}

type Storage struct {
	// Mode selects the backing stores: "memory" or "local".
	Mode string `yaml:"mode"`
}

type Scheduler struct {
	RestockInterval        Duration `yaml:"restockInterval"`
	BuybackCleanupInterval Duration `yaml:"buybackCleanupInterval"`
	CounterIdleTTL         Duration `yaml:"counterIdleTTL"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "90s" or "1h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func Default() Config {
	return Config{
		Listen:  ":8080",
		Storage: Storage{Mode: "local"},
		Scheduler: Scheduler{
			RestockInterval:        Duration(time.Hour),
			BuybackCleanupInterval: Duration(10 * time.Minute),
			CounterIdleTTL:         Duration(15 * time.Minute),
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file
// is fine when the path came from the default; pass explicit=true to
// make it an error instead.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

// FromEnv loads the file named by CONFIG_PATH (default config.yaml)
// and applies LISTEN_ADDR and STORAGE_MODE overrides.
func FromEnv() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := Load(path, explicit)
	if err != nil {
		return Config{}, err
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.Listen = addr
	}
	if mode := os.Getenv("STORAGE_MODE"); mode != "" {
		cfg.Storage.Mode = mode
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Storage.Mode {
	case "memory", "local", "sqlite":
	default:
		return fmt.Errorf("unknown storage mode %q", c.Storage.Mode)
	}
	if c.Listen == "" {
		return errors.New("listen address is empty")
	}
	if c.Scheduler.RestockInterval <= 0 || c.Scheduler.BuybackCleanupInterval <= 0 || c.Scheduler.CounterIdleTTL <= 0 {
		return errors.New("scheduler intervals must be positive")
	}
	return nil
}
