package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the variables that have no usable default.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PATENTGATE_SITE_VERIFY_URL", "https://site.test/verify")
	t.Setenv("PATENTGATE_SITE_VERIFYCODE_URL", "https://site.test/verifycode")
	t.Setenv("PATENTGATE_SITE_SEARCH_URL", "https://site.test/search")
	t.Setenv("PATENTGATE_SITE_SECUREPDF_URL", "https://site.test/securepdf")
	t.Setenv("PATENTGATE_SHARE_SECRET", "thisisasecretkeythatis32charslong!!")
}

// chdirTemp runs the test from an empty directory so no config.yaml or .env leaks in.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

// TestLoadDefaults verifies the defaults when only required values are present.
func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err, "Load() should not return an error with default values")
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "./pdfs", cfg.Storage.Dir)
	assert.Equal(t, BackendMemory, cfg.Backend.Kind)
	assert.Equal(t, 8, cfg.Task.WorkerCount)
	assert.Equal(t, 100, cfg.Task.QueueSize)
	assert.Equal(t, 3*time.Minute, cfg.Task.JobTimeout())
	assert.Equal(t, 24*time.Hour, cfg.Task.Retention())
	assert.Zero(t, cfg.Task.ChallengeTTL())
	assert.Equal(t, WrongAnswerReuse, cfg.Task.WrongAnswerPolicy)
	assert.Equal(t, time.Hour, cfg.Share.LinkTTL())
	assert.Equal(t, "gemini-2.0-flash", cfg.Solver.ModelName)
	assert.False(t, cfg.Solver.Enabled())
	assert.NotEmpty(t, cfg.Site.UserAgent)
}

// TestLoadEnvOverrides verifies that environment variables win over defaults.
func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("PATENTGATE_SERVER_PORT", "9090")
	t.Setenv("PATENTGATE_SERVER_LOG_LEVEL", "debug")
	t.Setenv("PATENTGATE_TASK_WRONG_ANSWER_POLICY", "reissue")
	t.Setenv("PATENTGATE_TASK_CHALLENGE_TTL_MINUTES", "15")
	t.Setenv("PATENTGATE_SOLVER_GEMINI_API_KEY", "test-api-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, WrongAnswerReissue, cfg.Task.WrongAnswerPolicy)
	assert.Equal(t, 15*time.Minute, cfg.Task.ChallengeTTL())
	assert.True(t, cfg.Solver.Enabled())
}

// TestLoadFromFile verifies YAML loading with env still taking precedence.
func TestLoadFromFile(t *testing.T) {
	dir := chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("PATENTGATE_TASK_WORKER_COUNT", "3")

	path := filepath.Join(dir, "custom.yaml")
	content := []byte("storage:\n  dir: /var/lib/patentgate\ntask:\n  worker_count: 2\n  queue_size: 7\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/patentgate", cfg.Storage.Dir)
	assert.Equal(t, 7, cfg.Task.QueueSize)
	assert.Equal(t, 3, cfg.Task.WorkerCount, "env should override file")
}

// TestLoadValidationErrors verifies that invalid configurations are rejected.
func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short share secret", map[string]string{"PATENTGATE_SHARE_SECRET": "short"}},
		{"invalid port", map[string]string{"PATENTGATE_SERVER_PORT": "70000"}},
		{"invalid log level", map[string]string{"PATENTGATE_SERVER_LOG_LEVEL": "verbose"}},
		{"unknown backend", map[string]string{"PATENTGATE_BACKEND_KIND": "etcd"}},
		{"unknown policy", map[string]string{"PATENTGATE_TASK_WRONG_ANSWER_POLICY": "retry"}},
		{"zero workers", map[string]string{"PATENTGATE_TASK_WORKER_COUNT": "0"}},
		{"invalid site url", map[string]string{"PATENTGATE_SITE_SEARCH_URL": "not a url"}},
		{"invalid database url", map[string]string{"PATENTGATE_DATABASE_URL": "::"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chdirTemp(t)
			setRequiredEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

// TestLoadFileMissing verifies that an explicit but missing file is an error.
func TestLoadFileMissing(t *testing.T) {
	dir := chdirTemp(t)
	setRequiredEnv(t)

	_, err := LoadFile(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

// TestValidateRedisBackendNeedsAddr covers the cross-section rule.
func TestValidateRedisBackendNeedsAddr(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.Backend.Kind = BackendRedis
	cfg.Redis.Addr = ""
	assert.Error(t, Validate(cfg))

	cfg.Redis.Addr = "localhost:6379"
	assert.NoError(t, Validate(cfg))
}
