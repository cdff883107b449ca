package profiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCameraProfile = `{
  "instrument_profile": {
    "id": "unit-cam",
    "vendor": "test",
    "model": "unit",
    "version": "1.0"
  },
  "kind": "camera",
  "triggering": {
    "supported_combinations": [
      { "mode": "once", "type": "software" }
    ],
    "buffer_capacity": 16,
    "frame_period_ms": 5
  },
  "properties": [
    {
      "name": "exposure_ms",
      "data_type": "float64",
      "min": 0.01,
      "max": 100,
      "access": "read_write",
      "live_adjustable": true,
      "default": 10.0
    }
  ]
}`

const validLaserProfile = `{
  "instrument_profile": {
    "id": "unit-laser",
    "vendor": "test",
    "model": "unit",
    "version": "1.0"
  },
  "kind": "laser",
  "properties": [
    {
      "name": "power_mw",
      "data_type": "float64",
      "min": 0,
      "max": 100,
      "access": "read_write",
      "default": 0.0
    }
  ]
}`

func writeProfile(t *testing.T, dir, ref, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ref+".json"), []byte(content), 0o644))
}

func newTestLoader(t *testing.T) (*Loader, string) {
	t.Helper()
	dir := t.TempDir()
	loader, err := NewLoader([]string{dir})
	require.NoError(t, err)
	return loader, dir
}

func TestLoadValidProfile(t *testing.T) {
	loader, dir := newTestLoader(t)
	writeProfile(t, dir, "unit-cam", validCameraProfile)

	profile, err := loader.Load("unit-cam")
	require.NoError(t, err)

	assert.Equal(t, "unit-cam", profile.Profile.ID)
	require.NotNil(t, profile.Triggering)
	assert.Equal(t, 16, profile.Triggering.BufferCapacity)
	require.Len(t, profile.Properties, 1)
	assert.Equal(t, "exposure_ms", profile.Properties[0].Name)
	assert.True(t, profile.Properties[0].LiveAdjustable)
}

func TestLoadCachesProfile(t *testing.T) {
	loader, dir := newTestLoader(t)
	writeProfile(t, dir, "unit-cam", validCameraProfile)

	first, err := loader.Load("unit-cam")
	require.NoError(t, err)

	// The file is gone but the cached definition survives.
	require.NoError(t, os.Remove(filepath.Join(dir, "unit-cam.json")))
	second, err := loader.Load("unit-cam")
	require.NoError(t, err)
	assert.Same(t, first, second)

	loader.ClearCache()
	_, err = loader.Load("unit-cam")
	require.Error(t, err)
}

func TestLoadSearchesPathsInOrder(t *testing.T) {
	primary := t.TempDir()
	fallback := t.TempDir()
	writeProfile(t, fallback, "unit-laser", validLaserProfile)

	loader, err := NewLoader([]string{primary, fallback})
	require.NoError(t, err)

	profile, err := loader.Load("unit-laser")
	require.NoError(t, err)
	assert.Equal(t, "unit-laser", profile.Profile.ID)
}

func TestLoadUnknownProfile(t *testing.T) {
	loader, _ := newTestLoader(t)

	_, err := loader.Load("does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile not found")
}

func TestLoadRejectsCameraWithoutTriggering(t *testing.T) {
	loader, dir := newTestLoader(t)
	writeProfile(t, dir, "bad-cam", `{
  "instrument_profile": {"id": "bad-cam", "vendor": "t", "model": "m", "version": "1"},
  "kind": "camera",
  "properties": []
}`)

	_, err := loader.Load("bad-cam")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	loader, dir := newTestLoader(t)
	writeProfile(t, dir, "bad-kind", `{
  "instrument_profile": {"id": "bad-kind", "vendor": "t", "model": "m", "version": "1"},
  "kind": "centrifuge",
  "properties": []
}`)

	_, err := loader.Load("bad-kind")
	require.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	loader, dir := newTestLoader(t)
	writeProfile(t, dir, "broken", `{ not json`)

	_, err := loader.Load("broken")
	require.Error(t, err)
}

func TestValidateRejectsBadTriggerCombination(t *testing.T) {
	validator, err := NewValidator()
	require.NoError(t, err)

	err = validator.ValidateProfile([]byte(`{
  "instrument_profile": {"id": "x", "vendor": "t", "model": "m", "version": "1"},
  "kind": "camera",
  "triggering": {
    "supported_combinations": [ { "mode": "sometimes", "type": "software" } ]
  },
  "properties": []
}`))
	require.Error(t, err)
}
