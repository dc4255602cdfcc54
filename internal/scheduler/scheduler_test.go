package scheduler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/dw/internal/utils"
)

func TestMain(m *testing.M) {
	utils.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newBatchServer(files map[string][]byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(content))
	}))
}

func batchJob(url, dest string) utils.TransferJob {
	cfg := utils.DefaultTransferConfig()
	cfg.MaxConnections = 3
	cfg.MinChunkThreshold = 1024
	return utils.TransferJob{URL: url, OutputPath: dest, Config: cfg}
}

func TestRun_AllSucceed(t *testing.T) {
	files := map[string][]byte{
		"/one.bin":   bytes.Repeat([]byte("1"), 300*utils.KiB),
		"/two.bin":   bytes.Repeat([]byte("2"), 10),
		"/three.bin": bytes.Repeat([]byte("3"), 2*utils.MiB+7),
	}
	ts := newBatchServer(files)
	defer ts.Close()

	dir := t.TempDir()
	var jobs []utils.TransferJob
	for name := range files {
		jobs = append(jobs, batchJob(ts.URL+name, filepath.Join(dir, filepath.Base(name))))
	}

	summary, err := Run(context.Background(), jobs, 2, utils.NopProgressFactory)
	require.NoError(t, err)
	success, failures, total := summary.Counts()
	assert.Equal(t, 3, success)
	assert.Zero(t, failures)
	assert.Equal(t, 3, total)

	for name, content := range files {
		written, err := os.ReadFile(filepath.Join(dir, filepath.Base(name)))
		require.NoError(t, err)
		assert.Equal(t, content, written)
	}
}

func TestRun_CollectsFailures(t *testing.T) {
	ts := newBatchServer(map[string][]byte{"/ok.bin": []byte("payload")})
	defer ts.Close()

	dir := t.TempDir()
	jobs := []utils.TransferJob{
		batchJob(ts.URL+"/ok.bin", filepath.Join(dir, "ok.bin")),
		batchJob(ts.URL+"/missing.bin", filepath.Join(dir, "missing.bin")),
	}
	invalid := batchJob(ts.URL+"/ok.bin", filepath.Join(dir, "invalid.bin"))
	invalid.Config.MaxConnections = 0
	jobs = append(jobs, invalid)

	summary, err := Run(context.Background(), jobs, 1, utils.NopProgressFactory)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrResourceUnavailable)
	assert.ErrorIs(t, err, utils.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "/missing.bin")

	success, failures, total := summary.Counts()
	assert.Equal(t, 1, success)
	assert.Equal(t, 2, failures)
	assert.Equal(t, 3, total)
	assert.FileExists(t, filepath.Join(dir, "ok.bin"))
	assert.NoFileExists(t, filepath.Join(dir, "missing.bin"))
}

func TestRun_SameDerivedNameGetsDistinctFiles(t *testing.T) {
	content := bytes.Repeat([]byte("s"), 512*utils.KiB)
	ts := newBatchServer(map[string][]byte{"/same.bin": content})
	defer ts.Close()
	t.Chdir(t.TempDir())

	jobs := []utils.TransferJob{
		batchJob(ts.URL+"/same.bin", ""),
		batchJob(ts.URL+"/same.bin", ""),
		batchJob(ts.URL+"/same.bin", ""),
	}
	_, err := Run(context.Background(), jobs, 3, utils.NopProgressFactory)
	require.NoError(t, err)

	for _, name := range []string{"same.bin", "same-(1).bin", "same-(2).bin"} {
		written, err := os.ReadFile(name)
		require.NoError(t, err, name)
		assert.Equal(t, content, written, name)
	}
}

func TestRun_CancelledContextSkipsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	jobs := []utils.TransferJob{
		batchJob("http://127.0.0.1:1/a", filepath.Join(dir, "a")),
		batchJob("http://127.0.0.1:1/b", filepath.Join(dir, "b")),
	}
	summary, err := Run(ctx, jobs, 4, utils.NopProgressFactory)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	_, failures, _ := summary.Counts()
	assert.Equal(t, 2, failures)
}

func TestRun_NoJobs(t *testing.T) {
	summary, err := Run(context.Background(), nil, 4, utils.NopProgressFactory)
	require.NoError(t, err)
	_, _, total := summary.Counts()
	assert.Zero(t, total)
}
