// Package clients provides the HTTP client used to talk to the source API
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

// HTTPClient wraps net/http with a tuned transport, optional rate limiting and
// request accounting. It never retries.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport

	totalRequests  int64
	failedRequests int64

	rateLimiter *rate.Limiter
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	DisableCompression  bool          `json:"disable_compression"`

	// HTTP/2 settings
	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout"`
	// RequestTimeout bounds the whole exchange, including reading the body
	RequestTimeout time.Duration `json:"request_timeout"`
	KeepAlive      time.Duration `json:"keep_alive"`

	// TLS settings
	TLSMinVersion uint16 `json:"tls_min_version"`

	// Rate limiting (requests per second, 0 = unlimited)
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	UserAgent string `json:"user_agent"`
}

// DefaultHTTPConfig returns the defaults used for the source API
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		RequestTimeout:        30 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSMinVersion:         tls.VersionTLS12,
		RateBurst:             1,
		UserAgent:             "lakeflow/1.0",
	}
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config: config,
		logger: logger.With(zap.String("component", "http_client")),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		DisableCompression:    config.DisableCompression,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: config.TLSMinVersion,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		client.rateLimiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return client
}

// Get performs an HTTP GET request
func (c *HTTPClient) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, headers)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Do performs an HTTP request
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			atomic.AddInt64(&c.failedRequests, 1)
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	atomic.AddInt64(&c.totalRequests, 1)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		c.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	if resp.StatusCode >= 400 {
		atomic.AddInt64(&c.failedRequests, 1)
	}

	c.logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	return resp, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, url string, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	if req.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	return req, nil
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	return HTTPStats{
		TotalRequests:  atomic.LoadInt64(&c.totalRequests),
		FailedRequests: atomic.LoadInt64(&c.failedRequests),
	}
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64 `json:"total_requests"`
	FailedRequests int64 `json:"failed_requests"`
}
