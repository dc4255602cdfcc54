package utils

import "time"

const (
	KiB = 1024
	MiB = 1024 * KiB
)

const (
	DefaultConnections       = 8
	DefaultBufferSize        = 1 * MiB
	DefaultMinChunkThreshold = 1 * MiB
	DefaultConnectionTimeout = 30 * time.Second
	DefaultKATimeout         = 90 * time.Second
	DefaultFileName          = "downloaded_file"

	// above this many connections the client pool enables larger socket buffers
	HighThreadThreshold = 5
)

const ToolUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
}
