package output

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed reports the average rate of a finished transfer.
func FormatSpeed(bytes int64, elapsed time.Duration) string {
	if elapsed <= 0 || bytes <= 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed.Seconds()
	return FormatBytes(uint64(bps)) + "/s"
}

// PrintTransferResult prints the line scripts look for after a download.
func PrintTransferResult(path string, bytes int64, elapsed time.Duration) {
	PrintSuccess(fmt.Sprintf("Download saved as: %s", path))
	fmt.Fprintf(stdout, "%s %s %s %s %s\n",
		FDebug(StyleSymbols["arrow"]),
		FDetail(FormatBytes(uint64(max(bytes, 0)))),
		FDebug(StyleSymbols["bullet"]),
		FInfo(FormatSpeed(bytes, elapsed)),
		FDebug(fmt.Sprintf("in %s", elapsed.Round(time.Millisecond))))
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return 80 // Default fallback width
	}
	return width
}
