package output

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/tanq16/dw/internal/utils"
)

const barThrottle = 100 * time.Millisecond

// ProgressBar adapts a progressbar/v3 bar to utils.ProgressSink. Add is
// called from every chunk goroutine; the bar serialises internally.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar draws on stderr. A total of -1 renders a byte spinner.
func NewProgressBar(total int64, label string) utils.ProgressSink {
	return newProgressBar(stderr, total, label)
}

func newProgressBar(w io.Writer, total int64, label string) *ProgressBar {
	width := min(40, max(10, getTerminalWidth()/3))
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(filepath.Base(label)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(width),
		progressbar.OptionThrottle(barThrottle),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			io.WriteString(w, "\n")
		}),
	}
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		opts = append(opts, progressbar.OptionEnableColorCodes(true))
	}
	if total <= 0 {
		total = -1
		opts = append(opts, progressbar.OptionSpinnerType(14))
	}
	return &ProgressBar{bar: progressbar.NewOptions64(total, opts...)}
}

func (p *ProgressBar) Add(n int64) {
	p.bar.Add64(n)
}

func (p *ProgressBar) Finish(message string) {
	p.bar.Describe(message)
	p.bar.Finish()
}

// ProgressFactory returns the sink builder for a run; quiet runs and
// concurrent batch workers get no bar.
func ProgressFactory(quiet bool) utils.ProgressFactory {
	if quiet {
		return utils.NopProgressFactory
	}
	return NewProgressBar
}
