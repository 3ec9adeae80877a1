package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, ":3838", c.Listen)
	assert.Equal(t, ProviderRemote, c.Provider)
	assert.Equal(t, DefaultWidth, c.Width)
	assert.Equal(t, DefaultHeight, c.Height)
	assert.Equal(t, 1, c.Scale)
	assert.Equal(t, 35, c.FPS)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout.Duration)
	assert.Equal(t, "json", c.Screen.Encoding)
	assert.True(t, c.Screen.OmitEmptyColumns)
	assert.Equal(t, 1000, c.Series.Capacity)
	require.NoError(t, c.Validate())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gsdoom.yaml")
	content := `
listen: ":9000"
provider: image
scale: 2
shutdown_timeout: 3s
image:
  path: /tmp/doom.png
screen:
  omit_empty_columns: false
  encoding: msgpack
series:
  capacity: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.Listen)
	assert.Equal(t, ProviderImage, c.Provider)
	assert.Equal(t, 2, c.Scale)
	assert.Equal(t, 3*time.Second, c.ShutdownTimeout.Duration)
	assert.Equal(t, "/tmp/doom.png", c.Image.Path)
	assert.False(t, c.Screen.OmitEmptyColumns)
	assert.Equal(t, "msgpack", c.Screen.Encoding)
	assert.Equal(t, 50, c.Series.Capacity)
	// untouched keys still get defaults
	assert.Equal(t, DefaultWidth, c.Width)
	require.NoError(t, c.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gsdoom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shutdown_timeout: soon\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GSDOOM_LISTEN":   ":7000",
		"GSDOOM_PROVIDER": "screencap",
		"GSDOOM_SCALE":    "3",
		"GSDOOM_DEBUG":    "true",
		"GSDOOM_NATS_URL": "nats://localhost:4222",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	c := &Config{}
	require.NoError(t, c.applyEnv(lookup))

	assert.Equal(t, ":7000", c.Listen)
	assert.Equal(t, ProviderScreenCapture, c.Provider)
	assert.Equal(t, 3, c.Scale)
	assert.True(t, c.Debug)
	assert.Equal(t, "nats://localhost:4222", c.Metrics.NATSURL)
}

func TestApplyEnv_Invalid(t *testing.T) {
	for _, kv := range [][2]string{
		{"GSDOOM_SCALE", "two"},
		{"GSDOOM_DEBUG", "maybe"},
	} {
		c := &Config{}
		err := c.applyEnv(func(k string) (string, bool) {
			if k == kv[0] {
				return kv[1], true
			}
			return "", false
		})
		assert.Error(t, err, kv[0])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Provider = "vnc" }, true},
		{"image without path", func(c *Config) { c.Provider = ProviderImage }, true},
		{"image with path", func(c *Config) { c.Provider = ProviderImage; c.Image.Path = "a.png" }, false},
		{"odd width", func(c *Config) { c.Width = 321 }, true},
		{"largest height", func(c *Config) { c.Height = 32766 }, false},
		{"height beyond int16 rows", func(c *Config) { c.Height = 32768 }, true},
		{"width beyond int16 rows", func(c *Config) { c.Width = 40000 }, true},
		{"zero scale", func(c *Config) { c.Scale = 0 }, true},
		{"bad encoding", func(c *Config) { c.Screen.Encoding = "xml" }, true},
		{"negative capacity", func(c *Config) { c.Series.Capacity = -1 }, true},
		{"zero fps", func(c *Config) { c.FPS = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
