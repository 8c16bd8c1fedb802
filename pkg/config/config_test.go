package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDriver, cfg.Driver)

	cfg, err = Load(t.TempDir())
	require.NoError(t, err, "missing config.yaml is tolerated")
	assert.Equal(t, DefaultDriver, cfg.Driver)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `driver: redis
host: cache.local
port: 6380
database: app
read_timeout: 2s
options:
  db: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0o644))
	t.Setenv("NOSQLAPI_HOST", "override.local")
	t.Setenv("NOSQLAPI_SSL", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Driver)
	assert.Equal(t, "override.local", cfg.Host)
	assert.Equal(t, 6380, cfg.Port)
	assert.Equal(t, "app", cfg.Database)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.True(t, cfg.SSL)
	assert.EqualValues(t, 3, cfg.Option("db", 0))
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 70000\n"), 0o644))
	_, err := Load(path)
	assert.ErrorIs(t, err, types.ErrPortRange)

	require.NoError(t, os.WriteFile(path, []byte("driver: [unclosed\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := WriteDefault(dir, types.Config{Database: "app", Password: "secret", DataDir: "/srv/data"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "app", cfg.Database)
	assert.Equal(t, "/srv/data", cfg.DataDir)

	require.NoError(t, os.WriteFile(path, []byte("driver: surreal\n"), 0o644))
	_, err = WriteDefault(dir, types.Config{Driver: "redis"})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "driver: surreal\n", string(data), "existing file is kept")
}
