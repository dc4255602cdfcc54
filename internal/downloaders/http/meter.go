package dwhttp

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/tanq16/dw/internal/bandwidth"
	"github.com/tanq16/dw/internal/utils"
)

// meter fans each received block out to the rate limiter, the bandwidth
// monitor and the progress sink.
type meter struct {
	monitor  *bandwidth.Monitor
	progress utils.ProgressSink
	limiter  *rate.Limiter
}

func (m meter) observe(ctx context.Context, n int) error {
	if err := waitBytes(ctx, m.limiter, n); err != nil {
		return err
	}
	m.monitor.RecordBytes(int64(n))
	m.progress.Add(int64(n))
	return nil
}

// newLimiter returns nil for an unlimited transfer. The burst is one
// second worth of bytes.
func newLimiter(bytesPerSecond int64) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))
}

// WaitN rejects n above the burst, so large blocks wait in burst-sized steps.
func waitBytes(ctx context.Context, limiter *rate.Limiter, n int) error {
	if limiter == nil {
		return nil
	}
	for n > 0 {
		step := min(n, limiter.Burst())
		if err := limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
