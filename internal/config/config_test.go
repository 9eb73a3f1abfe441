package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/retarget"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2*time.Second, cfg.SinkTimeoutDuration())
	assert.Equal(t, time.Second/30, cfg.TickInterval())

	rc := cfg.Retarget.Config()
	assert.True(t, rc.InputRotation.ApproxEqual(geom.Identity(), 1e-12))
	assert.True(t, rc.PreRotation.ApproxEqual(geom.Identity(), 1e-12))
	assert.Equal(t, 5, rc.HistoryWindowSize)
}

func TestLoad(t *testing.T) {
	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeConfig(t, "c.json", `{"addr": ":9000", "retarget": {"use_flip": true, "offset": [0, 1, 0]}}`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.Addr)
		assert.Equal(t, 30, cfg.TickRate)
		assert.True(t, cfg.Retarget.UseFlip)
		assert.Equal(t, 5, cfg.Retarget.HistoryWindowSize)
		assert.Equal(t, geom.Vec3{Y: 1}, cfg.Retarget.Config().Offset)
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := writeConfig(t, "c.yaml", `addr: x`)
		_, err := Load(path)
		assert.ErrorContains(t, err, ".json extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("bad json", func(t *testing.T) {
		_, err := Load(writeConfig(t, "c.json", `{`))
		assert.ErrorContains(t, err, "parse")
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := Load(writeConfig(t, "c.json", `{"tick_rate": 0}`))
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"tick rate", func(c *Config) { c.TickRate = 1000 }},
		{"layout", func(c *Config) { c.Layout = "a-pose" }},
		{"sink timeout", func(c *Config) { c.SinkTimeout = "soon" }},
		{"motion threshold", func(c *Config) { c.MotionThreshold = 150 }},
		{"camera without estimator", func(c *Config) { c.Camera = "0"; c.Estimator = nil }},
		{"window", func(c *Config) { c.Retarget.HistoryWindowSize = 0 }},
		{"radius", func(c *Config) { c.Retarget.SpatialSmoothingRadius = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RETARGET_ADDR", ":7000")
	t.Setenv("RETARGET_TICK_RATE", "60")
	t.Setenv("RETARGET_FLIP", "true")
	t.Setenv("RETARGET_MOBILE", "1")
	t.Setenv("RETARGET_ROOT_MOTION", "not-a-bool")
	t.Setenv("RETARGET_CAMERA", "1")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 60, cfg.TickRate)
	assert.True(t, cfg.Retarget.UseFlip)
	assert.False(t, cfg.Retarget.RootMotion)
	assert.Equal(t, "1", cfg.Camera)

	rc := cfg.Retarget.Config()
	assert.True(t, rc.InputRotation.ApproxEqual(retarget.MobileInputRotation(), 1e-12))
}

func TestRetarget_Merge(t *testing.T) {
	base := DefaultRetarget()

	same, err := base.Merge(nil)
	require.NoError(t, err)
	assert.Equal(t, base, same)

	merged, err := base.Merge([]byte(`{"root_motion": true, "pre_rotation": [0, 180, 0]}`))
	require.NoError(t, err)
	assert.True(t, merged.RootMotion)
	assert.Equal(t, base.HistoryWindowSize, merged.HistoryWindowSize)

	rc := merged.Config()
	turned := rc.PreRotation.Rotate(geom.Forward)
	assert.True(t, geom.ApproxEqualVec(geom.Back, turned, 1e-9), "expected back, got %v", turned)

	_, err = base.Merge([]byte(`{"history_window_size": -2}`))
	assert.ErrorIs(t, err, ErrInvalid)
}
