package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTransferConfig(t *testing.T) {
	cfg := DefaultTransferConfig()
	assert.Equal(t, 8, cfg.MaxConnections)
	assert.Equal(t, MiB, cfg.BufferSize)
	assert.True(t, cfg.AdaptiveBuffering)
	assert.Equal(t, int64(MiB), cfg.MinChunkThreshold)
	assert.Equal(t, 30*time.Second, cfg.ConnectionTimeout)
	assert.Zero(t, cfg.RateLimit)
	assert.NoError(t, cfg.Validate())
}

func TestTransferConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TransferConfig)
	}{
		{name: "zero connections", mutate: func(c *TransferConfig) { c.MaxConnections = 0 }},
		{name: "zero buffer", mutate: func(c *TransferConfig) { c.BufferSize = 0 }},
		{name: "buffer above 1 GiB", mutate: func(c *TransferConfig) { c.BufferSize = 1024*MiB + 1 }},
		{name: "negative threshold", mutate: func(c *TransferConfig) { c.MinChunkThreshold = -1 }},
		{name: "negative timeout", mutate: func(c *TransferConfig) { c.ConnectionTimeout = -time.Second }},
		{name: "negative rate limit", mutate: func(c *TransferConfig) { c.RateLimit = -5 }},
		{name: "proxy without scheme", mutate: func(c *TransferConfig) { c.HTTP.ProxyURL = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTransferConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestTransferConfig_BufferSizeCeiling(t *testing.T) {
	cfg := DefaultTransferConfig()
	cfg.BufferSize = 1024 * MiB
	assert.NoError(t, cfg.Validate())

	cfg.BufferSize = 10_000_000 * KiB
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "BufferSize")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dw.yaml")
	content := `connections: 16
buffer_size: 262144
adaptive: false
timeout: 5s
http:
  proxy: http://proxy.local:3128
  headers:
    Authorization: Bearer token
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.MaxConnections)
	assert.Equal(t, 256*KiB, cfg.BufferSize)
	assert.False(t, cfg.AdaptiveBuffering)
	assert.Equal(t, 5*time.Second, cfg.ConnectionTimeout)
	assert.Equal(t, "http://proxy.local:3128", cfg.HTTP.ProxyURL)
	assert.Equal(t, "Bearer token", cfg.HTTP.Headers["Authorization"])
	// untouched keys keep their defaults
	assert.Equal(t, int64(DefaultMinChunkThreshold), cfg.MinChunkThreshold)
	assert.Equal(t, ToolUserAgent, cfg.HTTP.UserAgent)
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	path := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connections: 0\n"), 0o644))
	_, err = LoadConfigFile(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTransferError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(KindNetwork, "chunk 3", cause)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrFilesystem)
	assert.Equal(t, "chunk 3: network error: connection reset", err.Error())

	statusErr := StatusError("head", 404)
	assert.ErrorIs(t, statusErr, ErrResourceUnavailable)
	assert.Equal(t, "head: resource unavailable (status 404)", statusErr.Error())

	var wrapped error = statusErr
	var target *TransferError
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, 404, target.StatusCode)
}

func TestHTTPClient_SetsHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer ts.Close()

	cfg := DefaultTransferConfig()
	cfg.HTTP.Headers = map[string]string{"X-Custom": "yes", "Accept": "application/octet-stream"}
	pool := NewClientPool(cfg)
	require.Len(t, pool, cfg.MaxConnections)

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	resp, err := pool[0].Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, ToolUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "yes", got.Get("X-Custom"))
	assert.Equal(t, "application/octet-stream", got.Get("Accept"))
	assert.Equal(t, "en-US,en;q=0.5", got.Get("Accept-Language"))
}
