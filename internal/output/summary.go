package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type TransferStatus string

const (
	StatusPending TransferStatus = "pending"
	StatusSuccess TransferStatus = "success"
	StatusError   TransferStatus = "error"
)

type TransferOutput struct {
	ID          int
	URL         string
	OutputPath  string
	Status      TransferStatus
	Message     string
	Bytes       int64
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	URL   string
	Error error
	Time  time.Time
}

// Summary collects per-job outcomes of a batch run. Safe for concurrent use
// by scheduler workers.
type Summary struct {
	mu      sync.RWMutex
	outputs map[int]*TransferOutput
	errors  []ErrorReport
	count   int
}

func NewSummary() *Summary {
	return &Summary{
		outputs: make(map[int]*TransferOutput),
	}
}

func (s *Summary) Register(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	now := time.Now()
	s.outputs[s.count] = &TransferOutput{
		ID:          s.count,
		URL:         url,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
	}
	return s.count
}

// Start marks the moment a worker picks the job up, so queue time is not
// counted as transfer time.
func (s *Summary) Start(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, exists := s.outputs[id]; exists {
		now := time.Now()
		info.StartTime = now
		info.LastUpdated = now
	}
}

func (s *Summary) Complete(id int, outputPath string, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, exists := s.outputs[id]; exists {
		info.Status = StatusSuccess
		info.OutputPath = outputPath
		info.Bytes = bytes
		info.Message = fmt.Sprintf("Completed %s", outputPath)
		info.LastUpdated = time.Now()
	}
}

func (s *Summary) ReportError(id int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, exists := s.outputs[id]; exists {
		now := time.Now()
		info.Status = StatusError
		info.Error = err
		info.Message = fmt.Sprintf("Failed %s", info.URL)
		info.LastUpdated = now
		s.errors = append(s.errors, ErrorReport{URL: info.URL, Error: err, Time: now})
	}
}

// Counts returns the number of succeeded and failed jobs.
func (s *Summary) Counts() (success, failures, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, info := range s.outputs {
		switch info.Status {
		case StatusSuccess:
			success++
		case StatusError:
			failures++
		}
	}
	return success, failures, len(s.outputs)
}

func statusIndicator(status TransferStatus) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case StatusError:
		return errorStyle.Render(StyleSymbols["fail"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (s *Summary) sorted() []*TransferOutput {
	all := make([]*TransferOutput, 0, len(s.outputs))
	for _, info := range s.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})
	return all
}

// Render writes one line per job in registration order, the totals and
// the collected errors.
func (s *Summary) Render(w io.Writer) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	indent := strings.Repeat(" ", 2)
	fmt.Fprintln(w)
	var success, failures int
	for _, info := range s.sorted() {
		elapsed := info.LastUpdated.Sub(info.StartTime).Round(time.Millisecond)
		line := info.Message
		switch info.Status {
		case StatusSuccess:
			success++
			line = successStyle.Render(fmt.Sprintf("%s (%s)", line, FormatBytes(uint64(max(info.Bytes, 0)))))
		case StatusError:
			failures++
			line = errorStyle.Render(line)
		default:
			line = infoStyle.Render("Not started " + info.URL)
		}
		fmt.Fprintf(w, "%s%s %s %s\n", indent, statusIndicator(info.Status), debugStyle.Render(elapsed.String()), line)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, indent+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(s.outputs))))
	if failures > 0 {
		fmt.Fprintln(w, indent+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(s.outputs))))
	}
	s.renderErrors(w)
	fmt.Fprintln(w)
}

func (s *Summary) renderErrors(w io.Writer) {
	if len(s.errors) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, err := range s.errors {
		fmt.Fprintf(w, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(fmt.Sprintf("URL: %s", err.URL)))
		fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

// ShowSummary prints the rendered summary to stdout.
func (s *Summary) ShowSummary() {
	s.Render(stdout)
}
