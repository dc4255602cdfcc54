package dwhttp

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tanq16/dw/internal/bandwidth"
	"github.com/tanq16/dw/internal/utils"
)

type Strategy int

const (
	StrategySingle Strategy = iota
	StrategyParallel
)

func (s Strategy) String() string {
	if s == StrategyParallel {
		return "parallel"
	}
	return "single-stream"
}

type Result struct {
	Path       string
	Bytes      int64
	Strategy   Strategy
	Elapsed    time.Duration
	Descriptor utils.ResourceDescriptor
}

// HTTPDownloader owns the client pool and concurrency limiter shared by every
// transfer it runs. Bandwidth state is created fresh per transfer.
type HTTPDownloader struct {
	cfg      utils.TransferConfig
	clients  []utils.HTTPDoer
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	progress utils.ProgressFactory
}

var _ utils.Downloader = (*HTTPDownloader)(nil)

type Option func(*HTTPDownloader)

// WithClients replaces the pool built from the config.
func WithClients(clients ...utils.HTTPDoer) Option {
	return func(d *HTTPDownloader) {
		if len(clients) > 0 {
			d.clients = clients
		}
	}
}

func WithProgress(factory utils.ProgressFactory) Option {
	return func(d *HTTPDownloader) {
		if factory != nil {
			d.progress = factory
		}
	}
}

func NewHTTPDownloader(cfg utils.TransferConfig, opts ...Option) (*HTTPDownloader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool := utils.NewClientPool(cfg)
	clients := make([]utils.HTTPDoer, len(pool))
	for i, c := range pool {
		clients[i] = c
	}
	d := &HTTPDownloader{
		cfg:     cfg,
		clients: clients,
		// twice the chunk count: headroom only, never binding with one chunk per connection
		sem:      semaphore.NewWeighted(int64(2 * cfg.MaxConnections)),
		limiter:  newLimiter(cfg.RateLimit),
		progress: utils.NopProgressFactory,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Download satisfies utils.Downloader for the batch scheduler. An empty
// OutputPath is derived from the server or the URL.
func (d *HTTPDownloader) Download(ctx context.Context, job *utils.TransferJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	log := transferLogger(job.ID, job.URL)
	desc, err := Probe(ctx, d.clients[0], job.URL)
	if err != nil {
		log.Error().Err(err).Msg("Probe failed")
		return err
	}
	job.OutputPath, err = utils.ResolveOutputPath(job.OutputPath, job.URL, desc.FileName)
	if err != nil {
		return err
	}
	res, err := d.run(ctx, log, job.URL, job.OutputPath, desc)
	if err != nil {
		return err
	}
	job.Metadata["fileSize"] = res.Bytes
	job.Metadata["strategy"] = res.Strategy.String()
	job.Metadata["totalTime"] = res.Elapsed.Seconds()
	return nil
}

// Transfer fetches rawURL into dest, choosing parallel or single-stream mode
// from the HEAD response.
func (d *HTTPDownloader) Transfer(ctx context.Context, rawURL, dest string) (*Result, error) {
	log := transferLogger(uuid.NewString(), rawURL)
	desc, err := Probe(ctx, d.clients[0], rawURL)
	if err != nil {
		log.Error().Err(err).Msg("Probe failed")
		return nil, err
	}
	return d.run(ctx, log, rawURL, dest, desc)
}

func (d *HTTPDownloader) run(ctx context.Context, log zerolog.Logger, rawURL, dest string, desc utils.ResourceDescriptor) (*Result, error) {
	start := time.Now()
	monitor := bandwidth.NewMonitor()
	strategy := ChooseStrategy(desc, d.cfg)
	log.Debug().Int64("size", desc.TotalSize).Bool("ranges", desc.SupportsRanges).Str("strategy", strategy.String()).Str("output", dest).Msg("Strategy selected")

	var err error
	if strategy == StrategyParallel {
		err = d.parallel(ctx, log, rawURL, dest, desc.TotalSize, monitor)
	} else {
		err = d.single(ctx, log, rawURL, dest, desc.TotalSize, monitor)
	}
	if err != nil {
		log.Error().Err(err).Str("output", dest).Msg("Transfer failed")
		return nil, err
	}
	res := &Result{
		Path:       dest,
		Bytes:      monitor.Total(),
		Strategy:   strategy,
		Elapsed:    time.Since(start),
		Descriptor: desc,
	}
	log.Info().Str("output", dest).Int64("bytes", res.Bytes).Dur("elapsed", res.Elapsed).Msg("Transfer complete")
	return res, nil
}

// ChooseStrategy picks parallel mode only when ranges are supported, the
// resource is larger than the threshold and more than one connection is allowed.
func ChooseStrategy(desc utils.ResourceDescriptor, cfg utils.TransferConfig) Strategy {
	if desc.SupportsRanges && desc.TotalSize > cfg.MinChunkThreshold && cfg.MaxConnections > 1 {
		return StrategyParallel
	}
	return StrategySingle
}

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

// Probe issues the HEAD request. Servers that reject HEAD itself (405, 501)
// yield an unknown descriptor so the GET can decide.
func Probe(ctx context.Context, client utils.HTTPDoer, rawURL string) (utils.ResourceDescriptor, error) {
	var desc utils.ResourceDescriptor
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return desc, utils.NewError(utils.KindConfig, "parse url", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return desc, utils.NewError(utils.KindConfig, "parse url", fmt.Errorf("unsupported scheme %q", parsedURL.Scheme))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return desc, utils.NewError(utils.KindNetwork, "head", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return desc, utils.NewError(utils.KindNetwork, "head", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		return desc, nil
	case resp.StatusCode >= 400:
		return desc, utils.StatusError("head", resp.StatusCode)
	}
	desc.TotalSize = parseContentLength(resp.Header.Get("Content-Length"))
	desc.SupportsRanges = acceptsByteRanges(resp.Header)
	desc.FileName = filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	return desc, nil
}

func parseContentLength(value string) int64 {
	if value == "" {
		return 0
	}
	size, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || size < 0 {
		return 0
	}
	return size
}

func acceptsByteRanges(header http.Header) bool {
	for _, value := range header.Values("Accept-Ranges") {
		for _, unit := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(unit), "bytes") {
				return true
			}
		}
	}
	return false
}

func filenameFromDisposition(contentDisposition string) string {
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	// mime decodes RFC 2231 filename* into "filename"
	fn := filenameRegex.ReplaceAllString(params["filename"], "_")
	if strings.Trim(fn, ". ") == "" {
		return ""
	}
	return fn
}

func transferLogger(id, rawURL string) zerolog.Logger {
	return utils.GetLogger("http").With().Str("transferId", id).Str("url", rawURL).Logger()
}
