package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults apply when only the secret is set", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		c, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 15, c.MazeWidth)
		assert.Equal(t, 15, c.MazeHeight)
		assert.Equal(t, StoreMemory, c.StoreBackend)
		assert.Equal(t, RoundsNone, c.RoundBackend)
		assert.Equal(t, "mazesync", c.JWTIssuer)
		assert.False(t, c.OtelEnabled)
	})

	t.Run("Missing secret is an error", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("Bad values are reported together", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("MAZE_WIDTH", "wide")
		t.Setenv("STORE_BACKEND", "etcd")
		t.Setenv("OTEL_ENABLED", "maybe")
		_, err := Load()
		require.Error(t, err)
		assert.ErrorContains(t, err, "MAZE_WIDTH")
		assert.ErrorContains(t, err, "STORE_BACKEND")
		assert.ErrorContains(t, err, "OTEL_ENABLED")
	})

	t.Run("YAML file provides values the environment overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mazesync.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"jwt_secret: from-file\nmaze_width: 21\nmaze_height: 9\nstore_backend: redis\notel_enabled: true\n",
		), 0o600))
		t.Setenv("CONFIG_FILE", path)
		t.Setenv("JWT_SECRET", "")
		os.Unsetenv("JWT_SECRET")
		t.Setenv("MAZE_HEIGHT", "11")

		c, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "from-file", c.JWTSecret)
		assert.Equal(t, 21, c.MazeWidth)
		assert.Equal(t, 11, c.MazeHeight)
		assert.Equal(t, StoreRedis, c.StoreBackend)
		assert.True(t, c.OtelEnabled)
	})

	t.Run("Unreadable YAML file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})
}
