package dwhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/dw/internal/utils"
)

func headServer(t *testing.T, status int, headers map[string]string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		headers  map[string]string
		expected utils.ResourceDescriptor
	}{
		{
			name:     "size and ranges",
			status:   http.StatusOK,
			headers:  map[string]string{"Content-Length": "10000000", "Accept-Ranges": "bytes"},
			expected: utils.ResourceDescriptor{TotalSize: 10_000_000, SupportsRanges: true},
		},
		{
			name:     "ranges none",
			status:   http.StatusOK,
			headers:  map[string]string{"Content-Length": "42", "Accept-Ranges": "none"},
			expected: utils.ResourceDescriptor{TotalSize: 42},
		},
		{
			name:     "ranges in a list",
			status:   http.StatusOK,
			headers:  map[string]string{"Content-Length": "42", "Accept-Ranges": "none, Bytes"},
			expected: utils.ResourceDescriptor{TotalSize: 42, SupportsRanges: true},
		},
		{
			name:     "no length",
			status:   http.StatusOK,
			headers:  map[string]string{"Accept-Ranges": "bytes"},
			expected: utils.ResourceDescriptor{SupportsRanges: true},
		},
		{
			name:   "disposition filename",
			status: http.StatusOK,
			headers: map[string]string{
				"Content-Length":      "7",
				"Content-Disposition": `attachment; filename="report 2024.pdf"`,
			},
			expected: utils.ResourceDescriptor{TotalSize: 7, FileName: "report 2024.pdf"},
		},
		{
			name:   "disposition filename sanitized",
			status: http.StatusOK,
			headers: map[string]string{
				"Content-Length":      "7",
				"Content-Disposition": `attachment; filename="../../etc/passwd"`,
			},
			expected: utils.ResourceDescriptor{TotalSize: 7, FileName: ".._.._etc_passwd"},
		},
		{
			name:     "disposition only dots",
			status:   http.StatusOK,
			headers:  map[string]string{"Content-Disposition": `attachment; filename=".."`},
			expected: utils.ResourceDescriptor{},
		},
		{
			name:     "head not allowed",
			status:   http.StatusMethodNotAllowed,
			expected: utils.ResourceDescriptor{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := headServer(t, tt.status, tt.headers)
			desc, err := Probe(context.Background(), ts.Client(), ts.URL)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, desc)
		})
	}
}

func TestProbe_Failures(t *testing.T) {
	ts := headServer(t, http.StatusGone, nil)
	_, err := Probe(context.Background(), ts.Client(), ts.URL)
	assert.ErrorIs(t, err, utils.ErrResourceUnavailable)

	_, err = Probe(context.Background(), ts.Client(), "ftp://example.com/file")
	assert.ErrorIs(t, err, utils.ErrInvalidConfig)

	_, err = Probe(context.Background(), ts.Client(), "://bad")
	assert.ErrorIs(t, err, utils.ErrInvalidConfig)
}

func TestParseContentLength(t *testing.T) {
	assert.Equal(t, int64(0), parseContentLength(""))
	assert.Equal(t, int64(0), parseContentLength("abc"))
	assert.Equal(t, int64(0), parseContentLength("-5"))
	assert.Equal(t, int64(104857600), parseContentLength(" 104857600 "))
}
