package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"AUDITPULL_CONFIG", "AUDITPULL_PROVIDER", "AUDITPULL_ORG_ID",
	"AUDITPULL_API_KEY", "AUDITPULL_ENDPOINT", "AUDITPULL_RATE_LIMIT",
	"AUDITPULL_TIMEOUT", "AUDITPULL_MAX_RETRIES", "AUDITPULL_CHECKPOINT_BACKEND",
	"AUDITPULL_STATE_PATH", "AUDITPULL_CHECKPOINT_KEY", "AUDITPULL_ARTIFACT_DIR",
	"AUDITPULL_KEEP_ARTIFACT", "AUDITPULL_LOG_LEVEL", "AUDITPULL_LOG_FILE",
}

// clearEnv blanks every AUDITPULL_ variable and points the config file at a
// path that does not exist.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	t.Setenv("AUDITPULL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUDITPULL_ORG_ID", "org-1")
	t.Setenv("AUDITPULL_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Connector.Provider)
	assert.Equal(t, "", cfg.Connector.Endpoint)
	assert.Equal(t, 10.0, cfg.Connector.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Connector.Timeout)
	assert.Equal(t, 5, cfg.Connector.MaxRetries)
	assert.Equal(t, BackendFile, cfg.Checkpoint.Backend)
	assert.Equal(t, "state.json", filepath.Base(cfg.Checkpoint.Path))
	assert.Equal(t, "lastTimestamp", cfg.Checkpoint.Key)
	assert.Equal(t, os.TempDir(), cfg.Output.ArtifactDir)
	assert.False(t, cfg.Output.KeepArtifact)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_MissingCredentials(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orgId")
	assert.Contains(t, err.Error(), "apiKey")
}

func TestLoad_JSONFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"orgId": "org-file", "apiKey": "sk-file", "endpoint": "http://localhost:9000"}`)
	t.Setenv("AUDITPULL_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "org-file", cfg.Connector.OrgID)
	assert.Equal(t, "sk-file", cfg.Connector.APIKey)
	assert.Equal(t, "http://localhost:9000", cfg.Connector.Endpoint)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", "orgId: org-yaml\napiKey: sk-yaml\nprovider: openai\n")
	t.Setenv("AUDITPULL_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "org-yaml", cfg.Connector.OrgID)
	assert.Equal(t, "sk-yaml", cfg.Connector.APIKey)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"orgId": "org-file", "apiKey": "sk-file"}`)
	t.Setenv("AUDITPULL_CONFIG", path)
	t.Setenv("AUDITPULL_API_KEY", "sk-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "org-file", cfg.Connector.OrgID)
	assert.Equal(t, "sk-env", cfg.Connector.APIKey)
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUDITPULL_CONFIG", writeFile(t, "config.json", `{"orgId": `))
	t.Setenv("AUDITPULL_ORG_ID", "org-env")
	t.Setenv("AUDITPULL_API_KEY", "sk-env")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_EnvSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUDITPULL_ORG_ID", "org-1")
	t.Setenv("AUDITPULL_API_KEY", "sk-test")
	t.Setenv("AUDITPULL_CHECKPOINT_BACKEND", "SQLite")
	t.Setenv("AUDITPULL_STATE_PATH", "/var/lib/auditpull/state.db")
	t.Setenv("AUDITPULL_CHECKPOINT_KEY", "openaiWatermark")
	t.Setenv("AUDITPULL_TIMEOUT", "45")
	t.Setenv("AUDITPULL_MAX_RETRIES", "2")
	t.Setenv("AUDITPULL_RATE_LIMIT", "0.5")
	t.Setenv("AUDITPULL_KEEP_ARTIFACT", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Checkpoint.Backend)
	assert.Equal(t, "/var/lib/auditpull/state.db", cfg.Checkpoint.Path)
	assert.Equal(t, "openaiWatermark", cfg.Checkpoint.Key)
	assert.Equal(t, 45*time.Second, cfg.Connector.Timeout)
	assert.Equal(t, 2, cfg.Connector.MaxRetries)
	assert.Equal(t, 0.5, cfg.Connector.RateLimit)
	assert.True(t, cfg.Output.KeepArtifact)
}

func validConfig() Config {
	return Config{
		File:       "config.json",
		Connector:  ConnectorConfig{Provider: "openai", OrgID: "org-1", APIKey: "sk-test", Timeout: time.Second},
		Checkpoint: CheckpointConfig{Backend: BackendFile, Path: "state.json", Key: "lastTimestamp"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad backend", func(c *Config) { c.Checkpoint.Backend = "redis" }, "checkpoint backend"},
		{"zero timeout", func(c *Config) { c.Connector.Timeout = 0 }, "timeout"},
		{"negative retries", func(c *Config) { c.Connector.MaxRetries = -1 }, "max retries"},
		{"empty key", func(c *Config) { c.Checkpoint.Key = "" }, "AUDITPULL_CHECKPOINT_KEY"},
		{"empty provider", func(c *Config) { c.Connector.Provider = "" }, "AUDITPULL_PROVIDER"},
	}

	require.NoError(t, validConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Connector.APIKey = ""
	cfg.Connector.OrgID = ""
	cfg.Checkpoint.Backend = "etcd"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"AUDITPULL_API_KEY", "AUDITPULL_ORG_ID", "checkpoint backend"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestGetenvDuration(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want time.Duration
	}{
		{"empty uses fallback", "", time.Minute},
		{"go duration", "1m30s", 90 * time.Second},
		{"bare seconds", "12", 12 * time.Second},
		{"invalid falls back", "soon", time.Minute},
	}

	const key = "AUDITPULL_TEST_DURATION"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.val)
			assert.Equal(t, tt.want, getenvDuration(key, time.Minute))
		})
	}
}
