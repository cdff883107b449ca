package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
server:
  http_port: 9090
  shutdown_timeout: 10s

storage:
  path: /tmp/test.db

auth:
  operator_user: admin
  access_token_ttl: 15m

instrument_profiles:
  search_paths:
    - ./profiles

roster:
  path: ./instruments.yaml
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/tmp/test.db", cfg.Storage.Path)
	assert.Equal(t, "admin", cfg.Auth.OperatorUser)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, []string{"./profiles"}, cfg.Profiles.SearchPaths)
	assert.Equal(t, "./instruments.yaml", cfg.Roster.Path)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "server: {}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "operator", cfg.Auth.OperatorUser)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestGetJWTSecretFromEnv(t *testing.T) {
	a := AuthConfig{JWTSecretEnv: "SCOPECORE_TEST_JWT_SECRET"}
	t.Setenv("SCOPECORE_TEST_JWT_SECRET", "a-secret-of-at-least-32-characters!!")

	assert.Equal(t, "a-secret-of-at-least-32-characters!!", a.GetJWTSecret())
	assert.True(t, a.IsProductionReady())
}

func TestGetJWTSecretDevFallback(t *testing.T) {
	a := AuthConfig{JWTSecretEnv: "SCOPECORE_TEST_UNSET_SECRET"}

	secret := a.GetJWTSecret()
	assert.NotEmpty(t, secret)
	assert.False(t, a.IsProductionReady())
}

func TestLoadRoster(t *testing.T) {
	path := writeFile(t, t.TempDir(), "instruments.yaml", `
instruments:
  - name: cam0
    profile: sim-camera
  - name: laser488
    profile: sim-laser
`)

	roster, err := LoadRoster(path)
	require.NoError(t, err)
	require.Len(t, roster.Instruments, 2)
	assert.Equal(t, Instrument{Name: "cam0", Profile: "sim-camera"}, roster.Instruments[0])
}

func TestLoadRosterDuplicateName(t *testing.T) {
	path := writeFile(t, t.TempDir(), "instruments.yaml", `
instruments:
  - name: cam0
    profile: sim-camera
  - name: cam0
    profile: sim-camera
`)

	_, err := LoadRoster(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate instrument name")
}

func TestLoadRosterMissingFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "instruments.yaml", `
instruments:
  - name: cam0
`)

	_, err := LoadRoster(path)
	require.Error(t, err)
}

func TestLoadRosterMissingFile(t *testing.T) {
	_, err := LoadRoster(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
