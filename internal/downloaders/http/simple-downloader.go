package dwhttp

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/tanq16/dw/internal/bandwidth"
	"github.com/tanq16/dw/internal/utils"
)

const (
	adaptInterval     = 5 * utils.MiB
	maxAdaptiveBuffer = 4 * utils.MiB
	minAdaptiveBuffer = 64 * utils.KiB
	fastSpeedMiBps    = 50.0
	slowSpeedMiBps    = 5.0
)

// bufferTuner holds the read size of the single-stream loop. Each time the
// downloaded total crosses a multiple of adaptInterval the current speed is
// sampled once and the size doubled or halved within its bounds.
type bufferTuner struct {
	size      int
	adaptive  bool
	nextCheck int64
}

func newBufferTuner(initial int, adaptive bool) *bufferTuner {
	return &bufferTuner{size: initial, adaptive: adaptive, nextCheck: adaptInterval}
}

// observe reports whether the size changed.
func (t *bufferTuner) observe(downloaded int64, speed func() float64) bool {
	if !t.adaptive || downloaded < t.nextCheck {
		return false
	}
	t.nextCheck = (downloaded/adaptInterval + 1) * adaptInterval
	next := nextBufferSize(t.size, speed())
	changed := next != t.size
	t.size = next
	return changed
}

func nextBufferSize(current int, speed float64) int {
	switch {
	case speed > fastSpeedMiBps && current < maxAdaptiveBuffer:
		return min(current*2, maxAdaptiveBuffer)
	case speed < slowSpeedMiBps && current > minAdaptiveBuffer:
		return max(current/2, minAdaptiveBuffer)
	}
	return current
}

// single streams an unranged GET into dest in arrival order. The tuner's
// size is the exact amount requested from the body per read.
func (d *HTTPDownloader) single(ctx context.Context, log zerolog.Logger, rawURL, dest string, knownSize int64, monitor *bandwidth.Monitor) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return utils.NewError(utils.KindNetwork, "get", err)
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := d.clients[0].Do(req)
	if err != nil {
		return utils.NewError(utils.KindNetwork, "get", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return utils.StatusError("get", resp.StatusCode)
	}

	total := knownSize
	if total <= 0 {
		total = resp.ContentLength // -1 when unknown
	}
	progress := d.progress(total, dest)
	if err := d.stream(ctx, log, resp.Body, dest, monitor, progress); err != nil {
		progress.Finish("Download failed")
		return err
	}
	progress.Finish("Download complete")
	return nil
}

func (d *HTTPDownloader) stream(ctx context.Context, log zerolog.Logger, body io.Reader, dest string, monitor *bandwidth.Monitor, progress utils.ProgressSink) error {
	outFile, err := os.Create(dest)
	if err != nil {
		return utils.NewError(utils.KindFilesystem, "create", err)
	}
	defer outFile.Close()

	m := meter{monitor: monitor, progress: progress, limiter: d.limiter}
	tuner := newBufferTuner(d.cfg.BufferSize, d.cfg.AdaptiveBuffering)
	buffer := make([]byte, tuner.size)
	var downloaded int64
	for {
		if cap(buffer) < tuner.size {
			buffer = make([]byte, tuner.size)
		}
		bytesRead, readErr := readBlock(body, buffer[:tuner.size])
		if bytesRead > 0 {
			if _, err := outFile.Write(buffer[:bytesRead]); err != nil {
				return utils.NewError(utils.KindFilesystem, "write", err)
			}
			downloaded += int64(bytesRead)
			if err := m.observe(ctx, bytesRead); err != nil {
				return utils.NewError(utils.KindNetwork, "get", err)
			}
			if tuner.observe(downloaded, monitor.CurrentSpeed) {
				log.Debug().Int("bufferSize", tuner.size).Int64("downloaded", downloaded).Msg("Read buffer resized")
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return utils.NewError(utils.KindNetwork, "get", readErr)
		}
	}
	if err := outFile.Sync(); err != nil {
		return utils.NewError(utils.KindFilesystem, "sync", err)
	}
	if err := outFile.Close(); err != nil {
		return utils.NewError(utils.KindFilesystem, "close", err)
	}
	return nil
}

// readBlock fills buf unless the body ends first; unlike io.ReadFull it
// passes io.EOF through so a truncated body stays distinguishable.
func readBlock(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		nn, err := r.Read(buf[n:])
		n += nn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
