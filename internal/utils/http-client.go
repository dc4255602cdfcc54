package utils

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

const socketBufferSize = 1024 * 1024

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type HTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

// NewHTTPClient builds an HTTP/1.1-only client with keep-alive and no
// transparent decompression, so byte ranges map to raw file offsets.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.KATimeout == 0 {
		cfg.KATimeout = DefaultKATimeout
	}
	connectTimeout := cfg.Timeout
	if connectTimeout == 0 {
		connectTimeout = DefaultConnectionTimeout
	}
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 15 * time.Second,
	}
	if cfg.HighThreadMode {
		dialer.Control = func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				setSocketBuffers(fd, socketBufferSize)
			})
		}
	}
	// ResponseHeaderTimeout bounds the wait for headers only; bodies stream as long as they need
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		IdleConnTimeout:       cfg.KATimeout,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		DisableCompression:    true,
		ForceAttemptHTTP2:     false,
		TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			log.Error().Err(err).Str("proxy", cfg.ProxyURL).Msg("Invalid proxy URL, proceeding without proxy")
		} else {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
		},
		config: cfg,
	}
}

// NewClientPool builds one client per connection; chunk i uses pool[i%len(pool)].
func NewClientPool(cfg TransferConfig) []*HTTPClient {
	httpCfg := cfg.HTTP
	httpCfg.Timeout = cfg.ConnectionTimeout
	httpCfg.HighThreadMode = cfg.MaxConnections > HighThreadThreshold
	size := max(cfg.MaxConnections, 1)
	pool := make([]*HTTPClient, size)
	for i := range pool {
		pool[i] = NewHTTPClient(httpCfg)
	}
	return pool
}

func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", ToolUserAgent)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}
