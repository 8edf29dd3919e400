package handlers

import (
	"context"

	"vavoo-proxy/catalog"
	"vavoo-proxy/proxy"
	"vavoo-proxy/proxy/client"
)

type Catalog interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

type Signer interface {
	GetSignature(ctx context.Context) (string, error)

	// Invalidate drops signature when it is still the cached one.
	Invalidate(signature string) bool
}

type RedirectResolver interface {
	Resolve(ctx context.Context, signedURL string) (string, bool)
}

type StreamProxier interface {
	ProxyStream(ctx context.Context, ch catalog.Channel, credential string, sc *client.StreamClient) proxy.Result
}
