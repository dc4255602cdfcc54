package cmd

import (
	"context"
	"fmt"
	u "net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	dwhttp "github.com/tanq16/dw/internal/downloaders/http"
	"github.com/tanq16/dw/internal/output"
	"github.com/tanq16/dw/internal/utils"
)

var DWVersion = "dev"

type options struct {
	output        string
	configFile    string
	connections   int
	bufferKiB     int
	adaptive      bool
	minChunkMiB   int64
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	rateLimitKiB  int64
	quiet         bool
	debug         bool
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dw [URL]",
		Short:   "dw is a fast parallel HTTP download accelerator",
		Version: DWVersion,
		Args:    cobra.MaximumNArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			utils.InitLogger(opts.debug)
		},
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				cmd.Usage()
				os.Exit(1)
			}
			url := args[0]
			if _, err := u.Parse(url); err != nil {
				output.PrintError("Invalid URL format")
				os.Exit(1)
			}
			cfg, err := opts.transferConfig(cmd)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			dest, err := download(ctx, url, opts.output, cfg, output.ProgressFactory(opts.quiet))
			if err != nil {
				output.PrintError(fmt.Sprintf("Download failed: %v", err))
				if _, statErr := os.Stat(dest); dest != "" && statErr == nil {
					output.PrintWarning(fmt.Sprintf("Partial file left at %s (remove with: dw clean %s)", dest, dest))
				}
				stop()
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (inferred from the server or URL if not provided)")

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file; explicit flags take precedence")
	flags.IntVarP(&opts.connections, "connections", "c", utils.DefaultConnections, "Number of parallel connections per download")
	flags.IntVarP(&opts.bufferKiB, "buffer-size", "b", utils.DefaultBufferSize/utils.KiB, "Initial read buffer size in KiB")
	flags.BoolVar(&opts.adaptive, "adaptive", true, "Resize the read buffer with the observed speed (single-stream mode)")
	flags.Int64Var(&opts.minChunkMiB, "min-chunk", utils.DefaultMinChunkThreshold/utils.MiB, "Minimum file size in MiB for parallel mode")
	flags.DurationVarP(&opts.timeout, "timeout", "t", utils.DefaultConnectionTimeout, "Connect and response header timeout (eg. 5s, 1m)")
	flags.DurationVarP(&opts.kaTimeout, "keep-alive-timeout", "k", utils.DefaultKATimeout, "Keep-alive timeout for idle connections (eg. 10s, 1m)")
	flags.StringVarP(&opts.userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent")
	flags.StringVarP(&opts.proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., http://proxy.example.com:8080)")
	flags.StringVar(&opts.proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.StringVar(&opts.proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayVarP(&opts.headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	flags.Int64Var(&opts.rateLimitKiB, "rate-limit", 0, "Bandwidth cap in KiB/s shared by all connections (0 for unlimited)")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress bar")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newBatchCmd(opts))
	cmd.AddCommand(newCleanCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// transferConfig layers the config file over the defaults and then every
// flag the user actually set over both.
func (o *options) transferConfig(cmd *cobra.Command) (utils.TransferConfig, error) {
	cfg := utils.DefaultTransferConfig()
	if o.configFile != "" {
		loaded, err := utils.LoadConfigFile(o.configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	changed := cmd.Flags().Changed
	if changed("connections") {
		cfg.MaxConnections = o.connections
	}
	if changed("buffer-size") {
		cfg.BufferSize = o.bufferKiB * utils.KiB
	}
	if changed("adaptive") {
		cfg.AdaptiveBuffering = o.adaptive
	}
	if changed("min-chunk") {
		cfg.MinChunkThreshold = o.minChunkMiB * utils.MiB
	}
	if changed("timeout") {
		cfg.ConnectionTimeout = o.timeout
	}
	if changed("keep-alive-timeout") {
		cfg.HTTP.KATimeout = o.kaTimeout
	}
	if changed("user-agent") {
		cfg.HTTP.UserAgent = o.userAgent
	}
	if changed("rate-limit") {
		cfg.RateLimit = o.rateLimitKiB * utils.KiB
	}
	if changed("proxy") {
		cfg.HTTP.ProxyURL, cfg.HTTP.ProxyUsername, cfg.HTTP.ProxyPassword = splitProxyAuth(o.proxyURL)
	}
	if changed("proxy-username") {
		cfg.HTTP.ProxyUsername = o.proxyUsername
	}
	if changed("proxy-password") {
		cfg.HTTP.ProxyPassword = o.proxyPassword
	}
	if len(o.headers) > 0 {
		headers := make(map[string]string, len(cfg.HTTP.Headers)+len(o.headers))
		for k, v := range cfg.HTTP.Headers {
			headers[k] = v
		}
		for k, v := range utils.ParseHeaderArgs(o.headers) {
			headers[k] = v
		}
		cfg.HTTP.Headers = headers
	}
	return cfg, cfg.Validate()
}

// splitProxyAuth moves credentials embedded in the proxy URL out of it.
func splitProxyAuth(proxyURL string) (string, string, string) {
	parsedProxy, err := u.Parse(proxyURL)
	if err != nil || parsedProxy.User == nil {
		return proxyURL, "", ""
	}
	username := parsedProxy.User.Username()
	password, _ := parsedProxy.User.Password()
	parsedProxy.User = nil
	return parsedProxy.String(), username, password
}

// download returns the resolved destination even on failure so the caller
// can point at a partial file.
func download(ctx context.Context, url, outputPath string, cfg utils.TransferConfig, progress utils.ProgressFactory) (string, error) {
	downloader, err := dwhttp.NewHTTPDownloader(cfg, dwhttp.WithProgress(progress))
	if err != nil {
		return "", err
	}
	job := &utils.TransferJob{URL: url, OutputPath: outputPath, Config: cfg}
	if err := downloader.Download(ctx, job); err != nil {
		return job.OutputPath, err
	}
	size, _ := job.Metadata["fileSize"].(int64)
	seconds, _ := job.Metadata["totalTime"].(float64)
	output.PrintTransferResult(job.OutputPath, size, time.Duration(seconds*float64(time.Second)))
	return job.OutputPath, nil
}
