package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if old, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(k) })
		}
		os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, configDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFile), []byte(content), 0o644))
}

func allEnv() []string {
	return []string{envDatabaseURL, envLogLevel, envLogFormat, envProject, envWorkers}
}

func TestLoadConfig_Defaults(t *testing.T) {
	unsetEnv(t, allEnv()...)
	root := filepath.Join(t.TempDir(), "shop-web")
	require.NoError(t, os.MkdirAll(root, 0o755))

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, "shop-web", cfg.Project)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Scan.RespectGitignore)
	assert.Contains(t, cfg.Scan.Exclude, "node_modules/**")
}

func TestLoadConfig_ProjectFile(t *testing.T) {
	unsetEnv(t, allEnv()...)
	root := t.TempDir()
	writeConfig(t, root, `
version: "1"
project: storefront
include: ["src/**/*.tsx"]
exclude: ["src/legacy/**"]
respect_gitignore: false
workers: 3
cache_size: 64
log_level: debug
call_log: .uigraph/calls.jsonl
debounce_ms: 500
`)

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "storefront", cfg.Project)
	assert.Equal(t, []string{"src/**/*.tsx"}, cfg.Scan.Include)
	assert.Contains(t, cfg.Scan.Exclude, "src/legacy/**")
	assert.Contains(t, cfg.Scan.Exclude, "node_modules/**", "defaults are kept")
	assert.False(t, cfg.Scan.RespectGitignore)
	assert.Equal(t, 3, cfg.Scan.Workers)
	assert.Equal(t, 64, cfg.CacheSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ".uigraph/calls.jsonl", cfg.CallLog)
	assert.Equal(t, 500, cfg.DebounceMs)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	unsetEnv(t, allEnv()...)
	root := t.TempDir()
	writeConfig(t, root, "project: from-file\nlog_level: warn\n")
	t.Setenv(envProject, "from-env")
	t.Setenv(envWorkers, "5")

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Project)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Scan.Workers)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	unsetEnv(t, allEnv()...)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"),
		[]byte("UIGRAPH_DATABASE_URL=postgres://localhost/uigraph\nUIGRAPH_LOG_FORMAT=json\n"), 0o644))

	cfg, err := loadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/uigraph", cfg.DatabaseURL)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfig_Invalid(t *testing.T) {
	unsetEnv(t, allEnv()...)

	t.Run("bad yaml", func(t *testing.T) {
		root := t.TempDir()
		writeConfig(t, root, "project: [unclosed\n")
		_, err := loadConfig(root)
		assert.Error(t, err)
	})

	t.Run("bad workers", func(t *testing.T) {
		t.Setenv(envWorkers, "many")
		_, err := loadConfig(t.TempDir())
		assert.Error(t, err)
	})
}
