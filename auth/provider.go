package auth

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"vavoo-proxy/faults"
	"vavoo-proxy/logger"
)

// DefaultValidity applies when the signing endpoint does not say when to
// ping again.
const DefaultValidity = 5 * time.Minute

// Issuer hands out a fresh signed credential and how long it stays valid.
type Issuer interface {
	IssueSignature(ctx context.Context) (string, time.Duration, error)
}

type pingResponse struct {
	Response struct {
		Signed   string `json:"signed"`
		NextPing int64  `json:"nextPing"`
	} `json:"response"`
}

// Provider exchanges a token from the pool for a signature at the upstream
// ping endpoint.
type Provider struct {
	client    *http.Client
	pool      *TokenPool
	pingURL   string
	userAgent string
	logger    logger.Logger
}

func NewProvider(client *http.Client, pool *TokenPool, pingURL, userAgent string, logger logger.Logger) *Provider {
	return &Provider{
		client:    client,
		pool:      pool,
		pingURL:   pingURL,
		userAgent: userAgent,
		logger:    logger,
	}
}

func (p *Provider) IssueSignature(ctx context.Context) (string, time.Duration, error) {
	token, err := p.pool.Draw()
	if err != nil {
		return "", 0, faults.New(faults.ErrUpstreamAuth, "auth.pool", err)
	}

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.pingURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, faults.New(faults.ErrUpstreamAuth, "auth.ping", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, faults.New(faults.ErrUpstreamAuth, "auth.ping", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, faults.Errorf(faults.ErrUpstreamAuth, "auth.ping", "unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, faults.New(faults.ErrUpstreamAuth, "auth.ping", err)
	}

	var parsed pingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, faults.New(faults.ErrUpstreamAuth, "auth.ping", err)
	}
	if parsed.Response.Signed == "" {
		return "", 0, faults.Errorf(faults.ErrUpstreamAuth, "auth.ping", "response carries no signed token")
	}

	validity := time.Duration(parsed.Response.NextPing) * time.Millisecond
	if validity <= 0 {
		p.logger.Debugf("Ping response without nextPing, using %s", DefaultValidity)
		validity = DefaultValidity
	}

	return parsed.Response.Signed, validity, nil
}

// StaticIssuer always returns the same configured signature.
type StaticIssuer struct {
	Signature string
	Validity  time.Duration
}

func (s StaticIssuer) IssueSignature(context.Context) (string, time.Duration, error) {
	if s.Signature == "" {
		return "", 0, faults.Errorf(faults.ErrUpstreamAuth, "auth.static", "no signature configured")
	}
	validity := s.Validity
	if validity <= 0 {
		validity = DefaultValidity
	}
	return s.Signature, validity, nil
}
