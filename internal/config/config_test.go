package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultExploresDir, cfg.ExploresDir)
	assert.Equal(t, DefaultLocale, cfg.Locale)
	assert.Equal(t, DefaultNullLabel, cfg.NullLabel)
	assert.Equal(t, DefaultLimit, cfg.Limit)
	assert.False(t, cfg.Verbose)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metriq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`target:
  type: duckdb
  path: warehouse.db
explores_dir: models
locale: de
limit: 100
`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Equal(t, "warehouse.db", cfg.Target.Path)
	assert.Equal(t, "de", cfg.Locale)
	assert.Equal(t, 100, cfg.Limit)
	// Relative paths resolve against the config file's directory.
	assert.Equal(t, filepath.Join(dir, "models"), cfg.ExploresDir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metriq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target:\n  type: duckdb\nlocale: en\n"), 0o644))

	t.Setenv("METRIQ_TARGET__TYPE", "postgres")
	t.Setenv("METRIQ_TARGET__HOST", "db.internal")
	t.Setenv("METRIQ_LOCALE", "fr")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, "db.internal", cfg.Target.Host)
	assert.Equal(t, "fr", cfg.Locale)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	t.Setenv("METRIQ_LIMIT", "100")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("limit", 0, "")
	flags.String("explores-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--limit=25", "--explores-dir=custom"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Limit)
	assert.Equal(t, "custom", cfg.ExploresDir)
}

func TestLoad_UnchangedFlagsIgnored(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("limit", 42, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	// Flag defaults do not shadow configured values.
	assert.Equal(t, DefaultLimit, cfg.Limit)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.Validate(), "target.type is required")

	cfg.Target.Type = "no-such-warehouse"
	assert.ErrorContains(t, cfg.Validate(), "unknown warehouse type")

	cfg.Target.Type = "no-such-warehouse"
	cfg.Limit = -1
	assert.Error(t, cfg.Validate())
}
