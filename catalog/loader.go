package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"vavoo-proxy/faults"
	"vavoo-proxy/logger"
)

const maxBundleSize = 64 << 20

// Fetcher produces the filtered channel list of one upstream fetch.
type Fetcher interface {
	Load(ctx context.Context) ([]Channel, error)
}

// Loader fetches the bundle over HTTP and parses it.
type Loader struct {
	client    *http.Client
	bundleURL string
	group     string
	timeout   time.Duration
	logger    logger.Logger
}

func NewLoader(client *http.Client, bundleURL, group string, timeout time.Duration, logger logger.Logger) *Loader {
	return &Loader{
		client:    client,
		bundleURL: bundleURL,
		group:     group,
		timeout:   timeout,
		logger:    logger,
	}
}

func (l *Loader) Load(ctx context.Context) ([]Channel, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.bundleURL, nil)
	if err != nil {
		return nil, faults.New(faults.ErrCatalogFetch, "catalog.load", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, faults.New(faults.ErrCatalogFetch, "catalog.load", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, faults.Errorf(faults.ErrCatalogFetch, "catalog.load", "unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleSize+1))
	if err != nil {
		return nil, faults.New(faults.ErrCatalogFetch, "catalog.load", err)
	}
	if len(body) > maxBundleSize {
		return nil, faults.New(faults.ErrCatalogFetch, "catalog.load", fmt.Errorf("bundle exceeds %d bytes", maxBundleSize))
	}

	channels, err := ParseBundle(body, l.group, l.logger)
	if err != nil {
		return nil, err
	}

	l.logger.Logf("Channels loaded: %d in group %q", len(channels), l.group)
	return channels, nil
}
