package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workspace.RetryBudget)
	assert.Equal(t, 2*time.Minute, cfg.Verify.Timeout)
	assert.Equal(t, "lenient", cfg.Commit.SubjectStrictness)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.Workspace.Root)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
workspace:
  root: /tmp/project
  retry_budget: 5
verify:
  command: make test
  timeout: 30s
commit:
  subject_strictness: strict
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/project", cfg.Workspace.Root)
	assert.Equal(t, 5, cfg.Workspace.RetryBudget)
	assert.Equal(t, "make test", cfg.Verify.Command)
	assert.Equal(t, 30*time.Second, cfg.Verify.Timeout)
	assert.Equal(t, "strict", cfg.Commit.SubjectStrictness)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
workspace:
  retry_budget: 5
`)

	t.Setenv("FIXD_WORKSPACE_RETRY_BUDGET", "7")
	t.Setenv("FIXD_COMMIT_SUBJECT_STRICTNESS", "off")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Workspace.RetryBudget)
	assert.Equal(t, "off", cfg.Commit.SubjectStrictness)
}

func TestLoad_RejectsWorldReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_RejectsInvalidStrictness(t *testing.T) {
	path := writeConfig(t, "commit:\n  subject_strictness: pedantic\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject_strictness")
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	require.NoError(t, cfg.Validate())

	cfg.Verify.Timeout = -time.Second
	assert.Error(t, cfg.Validate())

	applyDefaults(cfg)
	cfg.Verify.Timeout = time.Minute
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}
