package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("GENERATION_API_URL", "http://api.test")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("GENERATION_MAX_POLLS", "10")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "http://api.test", cfg.Generation.APIBaseURL)
	assert.Equal(t, 2*time.Second, cfg.Generation.PollInterval)
	assert.Equal(t, 10, cfg.Generation.MaxPolls)
	assert.Equal(t, 100, cfg.Generation.MaxActiveTasks)
	assert.Equal(t, 20*time.Second+time.Minute, cfg.Generation.LockTTL())
	assert.Equal(t, "cuentee_images", cfg.Storage.Bucket)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "postgres://postgres:@localhost:5432/cuentee?sslmode=disable", cfg.Database.DSN())
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: production
server:
  port: "9090"
generation:
  api_base_url: http://file.test
  max_active_tasks: 8
auth:
  jwt_secret: from-file
`), 0o600))

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 8, cfg.Generation.MaxActiveTasks)
}

func TestLoadConfig_RequiresJWTSecret(t *testing.T) {
	t.Setenv("GENERATION_API_URL", "http://api.test")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"), nil)
	assert.Error(t, err)
}

func TestLoadCLIConfig(t *testing.T) {
	t.Setenv("CUENTEE_API_URL", "http://cli.test")
	t.Setenv("CUENTEE_EMAIL", "kid@example.com")

	cfg, err := LoadCLIConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://cli.test", cfg.APIURL)
	assert.Equal(t, 300, cfg.MaxPolls)
	assert.False(t, cfg.HasCredentials())
}
