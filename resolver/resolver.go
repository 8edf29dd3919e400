package resolver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"vavoo-proxy/faults"
	"vavoo-proxy/logger"
	"vavoo-proxy/utils"
)

// Resolver probes a signed stream URL once and reports where the upstream
// redirects to. The first hop is bound to the address that requested it, so
// resolving it here lets a client elsewhere play the next hop directly.
type Resolver struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    logger.Logger
}

func New(client *http.Client, userAgent string, timeout time.Duration, logger logger.Logger) *Resolver {
	return &Resolver{
		client:    utils.NoRedirect(client),
		userAgent: userAgent,
		timeout:   timeout,
		logger:    logger,
	}
}

// Resolve returns the redirect target of signedURL. The boolean is false on
// any transport failure or when the upstream does not redirect.
func (r *Resolver) Resolve(ctx context.Context, signedURL string) (string, bool) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		r.logger.Debugf("Redirect probe skipped: %v", faults.New(faults.ErrRedirectResolution, "resolver.request", err))
		return "", false
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debugf("Redirect probe failed: %v", faults.New(faults.ErrRedirectResolution, "resolver.probe", err))
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return "", false
	}

	location, err := resp.Location()
	if err != nil {
		if !errors.Is(err, http.ErrNoLocation) {
			r.logger.Debugf("Redirect probe returned a bad location: %v", err)
		}
		return "", false
	}

	return location.String(), true
}
