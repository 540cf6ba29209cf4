package server

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "API_READ_HEADER_TIMEOUT", "API_SHUTDOWN_TIMEOUT"} {
		// restored on cleanup
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg := GetConfig()
	assert.Equal(t, ":9898", cfg.Addr())
	assert.Equal(t, 10*time.Second, cfg.ReadHeaderTimeout)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("API_READ_HEADER_TIMEOUT", "2s")
	t.Setenv("API_SHUTDOWN_TIMEOUT", "30s")

	cfg := GetConfig()
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 2*time.Second, cfg.ReadHeaderTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestGetConfigPanicsOnBadDuration(t *testing.T) {
	t.Setenv("API_READ_HEADER_TIMEOUT", "soon")
	assert.Panics(t, func() { GetConfig() })
}
