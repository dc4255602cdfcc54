package utils

import (
	"context"
	"fmt"
	"time"
)

// Downloader runs a single transfer job to completion.
type Downloader interface {
	Download(ctx context.Context, job *TransferJob) error
}

// ProgressSink receives byte deltas as blocks arrive and a final message.
type ProgressSink interface {
	Add(n int64)
	Finish(message string)
}

// ProgressFactory builds a sink for a transfer; total is -1 when unknown.
type ProgressFactory func(total int64, label string) ProgressSink

type TransferJob struct {
	ID         string
	URL        string
	OutputPath string
	Config     TransferConfig
	Metadata   map[string]any
}

// TransferConfig is fixed for the lifetime of a transfer.
type TransferConfig struct {
	MaxConnections    int              `yaml:"connections" validate:"gte=1"`
	BufferSize        int              `yaml:"buffer_size" validate:"gte=1,lte=1073741824"` // allocated per connection, capped at 1 GiB
	AdaptiveBuffering bool             `yaml:"adaptive"`
	MinChunkThreshold int64            `yaml:"min_chunk" validate:"gte=0"`
	ConnectionTimeout time.Duration    `yaml:"timeout" validate:"gte=0"`
	RateLimit         int64            `yaml:"rate_limit" validate:"gte=0"` // bytes per second, 0 disables
	HTTP              HTTPClientConfig `yaml:"http"`
}

type HTTPClientConfig struct {
	Timeout        time.Duration     `yaml:"-"`
	KATimeout      time.Duration     `yaml:"keep_alive_timeout" validate:"gte=0"`
	ProxyURL       string            `yaml:"proxy" validate:"omitempty,url"`
	ProxyUsername  string            `yaml:"proxy_username"`
	ProxyPassword  string            `yaml:"proxy_password"`
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
	HighThreadMode bool              `yaml:"-"` // larger socket buffers for many connections
}

// ResourceDescriptor is derived once from the HEAD response.
type ResourceDescriptor struct {
	TotalSize      int64 // 0 when unknown
	SupportsRanges bool
	FileName       string // from Content-Disposition, if any
}

// Chunk is an end-inclusive byte range of the remote resource.
type Chunk struct {
	Index int
	Start int64
	End   int64
}

func (c Chunk) Len() int64 {
	return c.End - c.Start + 1
}

func (c Chunk) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", c.Start, c.End)
}

type BatchEntry struct {
	OutputPath string `yaml:"op,omitempty"`
	URL        string `yaml:"link"`
}

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) Add(int64)     {}
func (NopProgress) Finish(string) {}

func NopProgressFactory(int64, string) ProgressSink {
	return NopProgress{}
}
