package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa-editor/story"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CYOA_ENV", "development")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.HTTPPort)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, story.DefaultPlayerName, cfg.PlayerName)
	assert.Equal(t, developmentSecret, cfg.JWTSecret)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Len(t, cfg.AllowedOrigins(), 2)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CYOA_HTTP_PORT=9090\nCYOA_PLAYER_NAME=Ana\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("CYOA_HTTP_PORT")
		os.Unsetenv("CYOA_PLAYER_NAME")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "Ana", cfg.PlayerName)
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("CYOA_ENV", "production")
	t.Setenv("CYOA_JWT_SECRET", "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: " http://a , ,http://b"}
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.AllowedOrigins())
}
