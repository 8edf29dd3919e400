package auth

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"vavoo-proxy/faults"
	"vavoo-proxy/logger"
	"vavoo-proxy/metrics"
)

// Credential is a signed token and the moment the cache stops handing it out.
type Credential struct {
	Token  string
	Expiry time.Time
}

// SignatureCache keeps at most one credential. Once it expires, the first
// caller refreshes it and everyone arriving meanwhile waits for that same
// refresh.
type SignatureCache struct {
	issuer  Issuer
	timeout time.Duration
	logger  logger.Logger
	now     func() time.Time

	current  atomic.Pointer[Credential]
	inflight singleflight.Group
}

type SignatureCacheOption func(*SignatureCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SignatureCacheOption {
	return func(c *SignatureCache) {
		c.now = now
	}
}

// WithRefreshTimeout bounds a single refresh.
func WithRefreshTimeout(timeout time.Duration) SignatureCacheOption {
	return func(c *SignatureCache) {
		c.timeout = timeout
	}
}

func NewSignatureCache(issuer Issuer, logger logger.Logger, opts ...SignatureCacheOption) *SignatureCache {
	cache := &SignatureCache{
		issuer: issuer,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// GetSignature returns a signature that has not reached its expiry.
func (c *SignatureCache) GetSignature(ctx context.Context) (string, error) {
	if cred := c.valid(); cred != nil {
		return cred.Token, nil
	}

	ch := c.inflight.DoChan("signature", func() (any, error) {
		if cred := c.valid(); cred != nil {
			return cred, nil
		}
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", faults.New(faults.ErrSignatureRefresh, "auth.signature", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*Credential).Token, nil
	}
}

// Cached returns the held credential, expired or not.
func (c *SignatureCache) Cached() *Credential {
	return c.current.Load()
}

// Invalidate drops the held credential so the next call refreshes. Only a
// credential still carrying token is dropped, so a signature refreshed in
// the meantime survives. It reports whether a credential was dropped.
func (c *SignatureCache) Invalidate(token string) bool {
	cred := c.current.Load()
	if cred == nil || cred.Token != token {
		return false
	}
	if !c.current.CompareAndSwap(cred, nil) {
		return false
	}
	c.logger.Warn("Signature invalidated, refreshing on next request")
	return true
}

func (c *SignatureCache) valid() *Credential {
	cred := c.current.Load()
	if cred == nil || !c.now().Before(cred.Expiry) {
		return nil
	}
	return cred
}

func (c *SignatureCache) refresh(ctx context.Context) (*Credential, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := c.now()
	token, validity, err := c.issuer.IssueSignature(ctx)
	metrics.SignatureRefreshes.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		c.logger.Errorf("Error refreshing signature: %v", err)
		return nil, faults.New(faults.ErrSignatureRefresh, "auth.signature", err)
	}

	// Expiry sits at 98% of the advertised window.
	cred := &Credential{
		Token:  token,
		Expiry: started.Add(validity * 98 / 100),
	}
	c.current.Store(cred)
	c.logger.Debugf("Signature refreshed, valid until %s", cred.Expiry.Format(time.RFC3339))

	return cred, nil
}
