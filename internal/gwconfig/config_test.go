package gwconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("PLURIBUS_SECRET", "")
	t.Setenv("PLURIBUS_ENV_FILE", "/nonexistent/.env")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("PLURIBUS_SECRET", "s3cret")
	t.Setenv("PLURIBUS_ENV_FILE", "/nonexistent/.env")
	t.Setenv("PLURIBUS_HOST", "")
	t.Setenv("PLURIBUS_PORT", "")
	t.Setenv("PLURIBUS_DISABLE_TLS_VERIFY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.False(t, cfg.DisableTLSVerify)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("PLURIBUS_SECRET", "s3cret")
	t.Setenv("PLURIBUS_ENV_FILE", "/nonexistent/.env")
	t.Setenv("PLURIBUS_HOST", "127.0.0.1")
	t.Setenv("PLURIBUS_PORT", "9000")
	t.Setenv("PLURIBUS_DISABLE_TLS_VERIFY", "TRUE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.True(t, cfg.DisableTLSVerify)
}

func TestLoadEnablesFileLoggingWhenDirSet(t *testing.T) {
	t.Setenv("PLURIBUS_SECRET", "s3cret")
	t.Setenv("PLURIBUS_ENV_FILE", "/nonexistent/.env")
	t.Setenv("PLURIBUS_LOG_DIR", "/tmp/pluribus-logs")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.LogToFile)
	assert.Equal(t, "/tmp/pluribus-logs", cfg.LogDir)
}
