package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var cfg Config
	cfg.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerAddr)
	assert.Equal(t, 3*time.Second, cfg.ProbeInterval)
	assert.Equal(t, "listvault.db", cfg.DatabasePath)
}

func TestParseFlags_Overrides(t *testing.T) {
	orig := os.Args
	defer func() { os.Args = orig }()
	os.Args = []string{"listvault", "-a", "http://example.com", "-i", "7", "-d", "/tmp/lv.db"}

	var cfg Config
	cfg.LoadDefaults()
	parseFlags(&cfg)

	assert.Equal(t, "http://example.com", cfg.ServerAddr)
	assert.Equal(t, 7*time.Second, cfg.ProbeInterval)
	assert.Equal(t, "/tmp/lv.db", cfg.DatabasePath)
}

func TestParseFlags_IgnoresUnknownFlags(t *testing.T) {
	orig := os.Args
	defer func() { os.Args = orig }()
	os.Args = []string{"listvault", "-x", "whatever", "-a", "http://example.com"}

	var cfg Config
	cfg.LoadDefaults()
	parseFlags(&cfg)

	assert.Equal(t, "http://example.com", cfg.ServerAddr)
}

func TestParseJson_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_addr":"http://json:9","probe_interval":"5s"}`), 0o600))

	orig := os.Args
	defer func() { os.Args = orig }()
	os.Args = []string{"listvault", "-c", path}

	var cfg Config
	cfg.LoadDefaults()
	parseJson(&cfg)

	assert.Equal(t, "http://json:9", cfg.ServerAddr)
	assert.Equal(t, 5*time.Second, cfg.ProbeInterval)
	assert.Equal(t, "listvault.db", cfg.DatabasePath, "absent fields keep defaults")
}
