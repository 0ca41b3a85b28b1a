// Package config loads project configuration for the metriq CLI and runner.
//
// Configuration is layered, highest precedence last applied:
// defaults < metriq.yaml < METRIQ_* environment variables < CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/metriq/pkg/warehouse"
)

// Defaults.
const (
	DefaultExploresDir = "explores"
	DefaultLocale      = "en"
	DefaultNullLabel   = "-"
	DefaultLimit       = 500
)

// Config is the resolved project configuration.
type Config struct {
	// Target is the warehouse the compiled queries run against.
	Target warehouse.Config `koanf:"target"`

	// ExploresDir holds the YAML explore definitions.
	ExploresDir string `koanf:"explores_dir"`

	// Display defaults consumed by result formatting.
	Locale    string `koanf:"locale"`
	Timezone  string `koanf:"timezone"`
	NullLabel string `koanf:"null_label"`

	// Limit is the default row limit applied to queries that set none.
	Limit int `koanf:"limit"`

	Verbose bool `koanf:"verbose"`
}

// Validate checks the configuration against the warehouse registry.
func (c *Config) Validate() error {
	if c.Target.Type == "" {
		return fmt.Errorf("target.type is required")
	}
	if !warehouse.IsRegistered(strings.ToLower(c.Target.Type)) {
		return &warehouse.UnknownAdapterError{
			Type:      c.Target.Type,
			Available: warehouse.List(),
		}
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return nil
}

// findConfigFile resolves the config file path. Priority: explicit path >
// metriq.yaml > metriq.yml in the current directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"metriq.yaml", "metriq.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads configuration from file, environment and flags. flags may be
// nil; only flags the user explicitly set are applied.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"explores_dir": DefaultExploresDir,
		"locale":       DefaultLocale,
		"null_label":   DefaultNullLabel,
		"limit":        DefaultLimit,
		"verbose":      false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configFile := findConfigFile(cfgFile)
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// Double underscore nests: METRIQ_TARGET__TYPE -> target.type,
	// METRIQ_EXPLORES_DIR -> explores_dir.
	if err := k.Load(env.Provider("METRIQ_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "METRIQ_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Paths in the config file resolve relative to its directory.
	if configFile != "" && !filepath.IsAbs(cfg.ExploresDir) {
		cfg.ExploresDir = filepath.Join(filepath.Dir(configFile), cfg.ExploresDir)
	}
	return &cfg, nil
}
