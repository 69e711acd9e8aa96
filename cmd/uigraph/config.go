package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gnana997/uigraph/pkg/scanner"
)

const (
	configDir  = ".uigraph"
	configFile = "config.yaml"

	envDatabaseURL = "UIGRAPH_DATABASE_URL"
	envLogLevel    = "UIGRAPH_LOG_LEVEL"
	envLogFormat   = "UIGRAPH_LOG_FORMAT"
	envProject     = "UIGRAPH_PROJECT"
	envWorkers     = "UIGRAPH_WORKERS"
)

// ProjectConfig holds the contents of .uigraph/config.yaml.
type ProjectConfig struct {
	Version          string   `yaml:"version"`
	Project          string   `yaml:"project"`
	Include          []string `yaml:"include"`
	Exclude          []string `yaml:"exclude"`
	RespectGitignore *bool    `yaml:"respect_gitignore"`
	Workers          int      `yaml:"workers"`
	DatabaseURL      string   `yaml:"database_url"`
	CacheSize        int      `yaml:"cache_size"`
	LogLevel         string   `yaml:"log_level"`
	LogFormat        string   `yaml:"log_format"`
	CallLog          string   `yaml:"call_log"`
	DebounceMs       int      `yaml:"debounce_ms"`
}

// Config is the resolved configuration of one command run.
type Config struct {
	Root        string
	Project     string
	Scan        scanner.ScanOptions
	DatabaseURL string
	CacheSize   int
	LogLevel    string
	LogFormat   string
	CallLog     string
	DebounceMs  int
}

// loadProjectConfig reads .uigraph/config.yaml under root.
// Returns nil (no error) if the file does not exist.
func loadProjectConfig(root string) (*ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(root, configDir, configFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Join(configDir, configFile), err)
	}
	return &cfg, nil
}

// loadConfig resolves the configuration for root. Later sources win:
//  1. Defaults (project ID is the root directory name)
//  2. .uigraph/config.yaml
//  3. Environment, including a .env file in root
//
// Command-line flags are applied on top by the caller.
func loadConfig(root string) (*Config, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	cfg := &Config{
		Root:      abs,
		Project:   filepath.Base(abs),
		Scan:      scanner.DefaultScanOptions(),
		LogLevel:  "info",
		LogFormat: "text",
	}

	pc, err := loadProjectConfig(abs)
	if err != nil {
		return nil, err
	}
	if pc != nil {
		applyProjectConfig(cfg, pc)
	}

	// A missing .env is fine; real environment variables take precedence
	// over it because godotenv never overwrites.
	if err := godotenv.Load(filepath.Join(abs, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyProjectConfig(cfg *Config, pc *ProjectConfig) {
	if pc.Project != "" {
		cfg.Project = pc.Project
	}
	if len(pc.Include) > 0 {
		cfg.Scan.Include = pc.Include
	}
	if len(pc.Exclude) > 0 {
		cfg.Scan.Exclude = append(cfg.Scan.Exclude, pc.Exclude...)
	}
	if pc.RespectGitignore != nil {
		cfg.Scan.RespectGitignore = *pc.RespectGitignore
	}
	if pc.Workers > 0 {
		cfg.Scan.Workers = pc.Workers
	}
	if pc.DatabaseURL != "" {
		cfg.DatabaseURL = pc.DatabaseURL
	}
	if pc.CacheSize > 0 {
		cfg.CacheSize = pc.CacheSize
	}
	if pc.LogLevel != "" {
		cfg.LogLevel = pc.LogLevel
	}
	if pc.LogFormat != "" {
		cfg.LogFormat = pc.LogFormat
	}
	if pc.CallLog != "" {
		cfg.CallLog = pc.CallLog
	}
	if pc.DebounceMs > 0 {
		cfg.DebounceMs = pc.DebounceMs
	}
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(envProject)); v != "" {
		cfg.Project = v
	}
	if v := strings.TrimSpace(os.Getenv(envDatabaseURL)); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(envLogFormat)); v != "" {
		cfg.LogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv(envWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s: %q", envWorkers, v)
		}
		cfg.Scan.Workers = n
	}
	return nil
}
