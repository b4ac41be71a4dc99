package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all auditpull configuration.
type Config struct {
	// File is the config file that was consulted, whether or not it existed.
	File       string
	Connector  ConnectorConfig
	Checkpoint CheckpointConfig
	Output     OutputConfig
	Log        LogConfig
}

// ConnectorConfig holds provider credentials and HTTP client settings.
type ConnectorConfig struct {
	Provider   string
	OrgID      string
	APIKey     string
	Endpoint   string
	RateLimit  float64 // requests per second; <= 0 disables limiting
	Timeout    time.Duration
	MaxRetries int
}

// CheckpointConfig selects where the watermark is persisted.
type CheckpointConfig struct {
	Backend string // "file" or "sqlite"
	Path    string
	Key     string
}

// OutputConfig holds settings for the per-run artifact.
type OutputConfig struct {
	ArtifactDir  string
	KeepArtifact bool
}

// LogConfig holds diagnostic logging settings.
type LogConfig struct {
	Level string
	File  string
}

// fileConfig is the on-disk shape of the config file.
type fileConfig struct {
	OrgID    string `json:"orgId" yaml:"orgId"`
	APIKey   string `json:"apiKey" yaml:"apiKey"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Provider string `json:"provider" yaml:"provider"`
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Load builds a Config from defaults, then the config file, then environment
// variables, and validates the result. The returned Config is populated as
// far as loading got, even when err is non-nil.
func Load() (Config, error) {
	dir := exeDir()
	cfg := Config{
		File: getenv("AUDITPULL_CONFIG", filepath.Join(dir, "config.json")),
		Connector: ConnectorConfig{
			Provider:   "openai",
			RateLimit:  10,
			Timeout:    30 * time.Second,
			MaxRetries: 5,
		},
		Checkpoint: CheckpointConfig{
			Backend: BackendFile,
			Path:    filepath.Join(dir, "state.json"),
			Key:     "lastTimestamp",
		},
		Output: OutputConfig{
			ArtifactDir: os.TempDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if err := cfg.applyFile(cfg.File); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyFile merges the config file into cfg. A missing file is not an error;
// Validate reports any credential that ends up unset.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &fc)
	} else {
		err = yaml.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setIfNotEmpty(&c.Connector.OrgID, fc.OrgID)
	setIfNotEmpty(&c.Connector.APIKey, fc.APIKey)
	setIfNotEmpty(&c.Connector.Endpoint, fc.Endpoint)
	setIfNotEmpty(&c.Connector.Provider, fc.Provider)
	return nil
}

func (c *Config) applyEnv() {
	setIfNotEmpty(&c.Connector.Provider, os.Getenv("AUDITPULL_PROVIDER"))
	setIfNotEmpty(&c.Connector.OrgID, os.Getenv("AUDITPULL_ORG_ID"))
	setIfNotEmpty(&c.Connector.APIKey, os.Getenv("AUDITPULL_API_KEY"))
	setIfNotEmpty(&c.Connector.Endpoint, os.Getenv("AUDITPULL_ENDPOINT"))
	c.Connector.RateLimit = getenvFloat("AUDITPULL_RATE_LIMIT", c.Connector.RateLimit)
	c.Connector.Timeout = getenvDuration("AUDITPULL_TIMEOUT", c.Connector.Timeout)
	c.Connector.MaxRetries = getenvInt("AUDITPULL_MAX_RETRIES", c.Connector.MaxRetries)

	setIfNotEmpty(&c.Checkpoint.Backend, strings.ToLower(os.Getenv("AUDITPULL_CHECKPOINT_BACKEND")))
	setIfNotEmpty(&c.Checkpoint.Path, os.Getenv("AUDITPULL_STATE_PATH"))
	setIfNotEmpty(&c.Checkpoint.Key, os.Getenv("AUDITPULL_CHECKPOINT_KEY"))

	setIfNotEmpty(&c.Output.ArtifactDir, os.Getenv("AUDITPULL_ARTIFACT_DIR"))
	c.Output.KeepArtifact = getenvBool("AUDITPULL_KEEP_ARTIFACT", c.Output.KeepArtifact)

	setIfNotEmpty(&c.Log.Level, os.Getenv("AUDITPULL_LOG_LEVEL"))
	setIfNotEmpty(&c.Log.File, os.Getenv("AUDITPULL_LOG_FILE"))
}

// Validate checks the configuration for errors. It returns all problems
// found, joined into a single error.
func (c Config) Validate() error {
	var errs []error

	if c.Connector.Provider == "" {
		errs = append(errs, errors.New("provider is required (AUDITPULL_PROVIDER)"))
	}
	if c.Connector.OrgID == "" {
		errs = append(errs, fmt.Errorf("orgId is required (set it in %s or AUDITPULL_ORG_ID)", c.File))
	}
	if c.Connector.APIKey == "" {
		errs = append(errs, fmt.Errorf("apiKey is required (set it in %s or AUDITPULL_API_KEY)", c.File))
	}
	if c.Connector.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Connector.Timeout))
	}
	if c.Connector.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must be >= 0, got %d", c.Connector.MaxRetries))
	}

	switch c.Checkpoint.Backend {
	case BackendFile, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("checkpoint backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Checkpoint.Backend))
	}
	if c.Checkpoint.Path == "" {
		errs = append(errs, errors.New("checkpoint path is required (AUDITPULL_STATE_PATH)"))
	}
	if c.Checkpoint.Key == "" {
		errs = append(errs, errors.New("checkpoint key is required (AUDITPULL_CHECKPOINT_KEY)"))
	}

	return errors.Join(errs...)
}

// exeDir is the directory holding the running binary, or "." if unknown.
func exeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// getenvDuration accepts Go durations ("45s") or bare seconds ("45").
func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
