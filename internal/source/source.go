// Package source fetches dataset collections from the e-commerce HTTP API.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/lakeflow/pkg/clients"
	"github.com/ajitpratap0/lakeflow/pkg/config"
	"github.com/ajitpratap0/lakeflow/pkg/errors"
	"github.com/ajitpratap0/lakeflow/pkg/json"
	"github.com/ajitpratap0/lakeflow/pkg/logger"
	"github.com/ajitpratap0/lakeflow/pkg/models"
)

// maxBodySize caps a single collection response
const maxBodySize = 64 << 20

// endpoints maps dataset names to their path under the base URL
var endpoints = map[string]string{
	models.DatasetProducts: "/products",
	models.DatasetUsers:    "/users",
	models.DatasetCarts:    "/carts",
}

// Fetcher is implemented by anything that can produce a dataset
type Fetcher interface {
	Fetch(ctx context.Context, dataset string) (*models.Dataset, error)
}

// Client fetches whole collections with a single GET each. It never retries.
type Client struct {
	baseURL string
	http    *clients.HTTPClient
	logger  *zap.Logger
	now     func() time.Time
}

// NewClient creates a source client from cfg
func NewClient(cfg config.SourceConfig, log *zap.Logger) *Client {
	if log == nil {
		log = logger.Get()
	}

	httpCfg := clients.DefaultHTTPConfig()
	if cfg.Timeout > 0 {
		httpCfg.RequestTimeout = cfg.Timeout
		httpCfg.ResponseHeaderTimeout = cfg.Timeout
	}
	httpCfg.RateLimit = cfg.RateLimit
	if cfg.UserAgent != "" {
		httpCfg.UserAgent = cfg.UserAgent
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    clients.NewHTTPClient(httpCfg, log),
		logger:  log.With(zap.String("component", "source")),
		now:     time.Now,
	}
}

// Endpoint returns the URL of dataset
func (c *Client) Endpoint(dataset string) (string, error) {
	path, ok := endpoints[dataset]
	if !ok {
		return "", errors.Newf(errors.ErrorTypeValidation, "unknown dataset %q", dataset).
			WithDetail("dataset", dataset)
	}
	return c.baseURL + path, nil
}

// Fetch retrieves the full collection for dataset. Any transport failure,
// non-2xx status, timeout or non-array body is a SourceUnavailable error.
func (c *Client) Fetch(ctx context.Context, dataset string) (*models.Dataset, error) {
	url, err := c.Endpoint(dataset)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(logger.WithDataset(ctx, dataset), c.logger)
	log.Info("fetching dataset", zap.String("url", url))

	resp, err := c.http.Get(ctx, url, nil)
	if err != nil {
		return nil, unavailable(err, dataset, url, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable,
			"source returned status %d for %s", resp.StatusCode, dataset).
			WithDetail("dataset", dataset).
			WithDetail("url", url).
			WithDetail("status", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, unavailable(err, dataset, url, "failed to read response body")
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.Newf(errors.ErrorTypeSourceUnavailable,
			"response body for %s is not a JSON array", dataset).
			WithDetail("dataset", dataset).
			WithDetail("url", url)
	}

	records := []json.RawMessage{}
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, unavailable(err, dataset, url, "response body is not a JSON array")
	}

	log.Info("fetched dataset", zap.Int("records", len(records)))

	return &models.Dataset{
		Name:      dataset,
		Records:   records,
		FetchedAt: c.now().UTC(),
	}, nil
}

// Close releases idle connections
func (c *Client) Close() error {
	return c.http.Close()
}

func unavailable(err error, dataset, url, msg string) error {
	return errors.Wrap(err, errors.ErrorTypeSourceUnavailable, fmt.Sprintf("%s: %s", dataset, msg)).
		WithDetail("dataset", dataset).
		WithDetail("url", url)
}

var _ Fetcher = (*Client)(nil)
