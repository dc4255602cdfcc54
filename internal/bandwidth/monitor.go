// Package bandwidth tracks bytes received across concurrent fetchers and
// estimates current throughput over a sliding window.
package bandwidth

import (
	"sync"
	"sync/atomic"
	"time"
)

// Retention is how long a sample stays in the window.
const Retention = 10 * time.Second

const bytesPerMiB = 1024 * 1024

type sample struct {
	at    time.Time
	bytes int64
}

// Monitor is safe for concurrent use. The cumulative counter is lock-free;
// the sample window is guarded by mu.
type Monitor struct {
	total   atomic.Int64
	mu      sync.Mutex
	samples []sample
	now     func() time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{now: time.Now}
}

// RecordBytes adds n to the cumulative total and appends a sample, evicting
// anything older than Retention.
func (m *Monitor) RecordBytes(n int64) {
	if n <= 0 {
		return
	}
	m.total.Add(n)
	m.mu.Lock()
	now := m.now()
	m.samples = append(m.samples, sample{at: now, bytes: n})
	m.evictLocked(now)
	m.mu.Unlock()
}

// CurrentSpeed returns throughput in MiB/s over the retained window, or 0
// when there is not enough data to estimate a rate.
func (m *Monitor) CurrentSpeed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(m.now())
	if len(m.samples) == 0 {
		return 0
	}
	var sum int64
	for _, s := range m.samples {
		sum += s.bytes
	}
	elapsed := m.samples[len(m.samples)-1].at.Sub(m.samples[0].at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(sum) / elapsed / bytesPerMiB
}

// Total is the cumulative byte count since the monitor was created.
func (m *Monitor) Total() int64 {
	return m.total.Load()
}

func (m *Monitor) evictLocked(now time.Time) {
	keep := 0
	for keep < len(m.samples) && now.Sub(m.samples[keep].at) >= Retention {
		keep++
	}
	if keep == 0 {
		return
	}
	// timestamps are taken under the lock, so expired samples form a prefix
	m.samples = append(m.samples[:0], m.samples[keep:]...)
}
