package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory so no stray .env or config.yaml is read
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("CONFIG_PATH", "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sql", cfg.Storage.Backend)
	assert.Equal(t, "sqlite3", cfg.Storage.DBType)
	assert.Equal(t, "groq", cfg.AI.Provider)
	assert.Equal(t, DefaultGroqModel, cfg.AI.Model)
	assert.Equal(t, 15*time.Second, cfg.Correction.Timeout)
	assert.Equal(t, 2, cfg.Correction.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Correction.BaseDelay)
	assert.Equal(t, "memory", cfg.Lock.Backend)
	assert.Equal(t, 60*time.Second, cfg.Lock.TTL)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Error(t, cfg.RequireTelegram())
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("AI_PROVIDER", "anthropic")
	t.Setenv("CORRECTION_TIMEOUT", "3s")
	t.Setenv("ADMIN_USER_IDS", "1, 2,x")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.DBType)
	assert.Equal(t, DefaultAnthropicModel, cfg.AI.Model)
	assert.Equal(t, 3*time.Second, cfg.Correction.Timeout)
	assert.NoError(t, cfg.RequireTelegram())
	assert.Equal(t, map[int64]bool{1: true, 2: true}, cfg.Telegram.AdminUserIDs())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_FORMAT=text\nAI_MODEL=custom-model\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("LOG_FORMAT")
		os.Unsetenv("AI_MODEL")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "custom-model", cfg.AI.Model)
}

func TestLoad_YAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tutor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: xlsx
  workbook_path: "sheets/users.xlsx"
ai:
  provider: openai
scheduler:
  start_hour: 9
  end_hour: 18
`), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "xlsx", cfg.Storage.Backend)
	assert.Equal(t, "sheets/users.xlsx", cfg.Storage.WorkbookPath)
	assert.Equal(t, DefaultOpenAIModel, cfg.AI.Model)
	assert.Equal(t, 9, cfg.Scheduler.StartHour)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	t.Setenv("CONFIG_PATH", "/does/not/exist.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage:    StorageConfig{Backend: "sql", DBType: "sqlite3"},
			AI:         AIConfig{Provider: "groq"},
			Correction: CorrectionConfig{Timeout: time.Second, MaxRetries: 2},
			Lock:       LockConfig{Backend: "memory"},
			Scheduler:  SchedulerConfig{StartHour: 8, EndHour: 20},
			Log:        LogConfig{Level: "info", Format: "json"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"storage backend", func(c *Config) { c.Storage.Backend = "sheets" }},
		{"db type", func(c *Config) { c.Storage.DBType = "mysql" }},
		{"provider", func(c *Config) { c.AI.Provider = "gemini" }},
		{"timeout", func(c *Config) { c.Correction.Timeout = 0 }},
		{"retries", func(c *Config) { c.Correction.MaxRetries = -1 }},
		{"lock", func(c *Config) { c.Lock.Backend = "etcd" }},
		{"hours range", func(c *Config) { c.Scheduler.EndHour = 24 }},
		{"hours order", func(c *Config) { c.Scheduler.StartHour = 21 }},
		{"log level", func(c *Config) { c.Log.Level = "trace" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
