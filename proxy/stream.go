package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"syscall"

	"vavoo-proxy/catalog"
	"vavoo-proxy/faults"
	"vavoo-proxy/logger"
	"vavoo-proxy/metrics"
	"vavoo-proxy/proxy/client"
	"vavoo-proxy/utils"
)

const DefaultChunkSize = 32 * 1024

// Hop-by-hop headers plus Content-Length, which no longer holds once the
// body is relayed in chunks.
var droppedHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Content-Length":      {},
}

// Result is the outcome of one proxied session.
type Result struct {
	SessionID string
	State     State

	// UpstreamStatus is the status the upstream answered with, or zero when
	// no response arrived.
	UpstreamStatus int
	BytesWritten   int64
	Err            error
}

type StreamProxy struct {
	client    *http.Client
	userAgent string
	chunkSize int
	registry  *SessionRegistry
	logger    logger.Logger
	buffers   sync.Pool
}

func NewStreamProxy(client *http.Client, userAgent string, chunkSize int, registry *SessionRegistry, logger logger.Logger) *StreamProxy {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if registry == nil {
		registry = NewSessionRegistry()
	}

	p := &StreamProxy{
		client:    client,
		userAgent: userAgent,
		chunkSize: chunkSize,
		registry:  registry,
		logger:    logger,
	}
	p.buffers.New = func() any {
		buf := make([]byte, p.chunkSize)
		return &buf
	}
	return p
}

func (p *StreamProxy) Registry() *SessionRegistry {
	return p.registry
}

// SignedQuery is the query every signed upstream request carries.
func SignedQuery(credential string) url.Values {
	return url.Values{
		ParamN:         {"1"},
		ParamB:         {"5"},
		ParamSignature: {credential},
	}
}

// SignedURL merges the signed query into rawURL.
func SignedURL(rawURL, credential string) (string, error) {
	return utils.WithQuery(rawURL, SignedQuery(credential))
}

// ProxyStream relays one upstream response to sc until either side ends.
// Cancelling ctx aborts the upstream request.
func (p *StreamProxy) ProxyStream(ctx context.Context, ch catalog.Channel, credential string, sc *client.StreamClient) Result {
	ctx, cancel := context.WithCancel(ctx)
	session := p.registry.open(sc, ch, cancel)
	defer p.registry.close(session)

	log := p.logger.With(session.ID)
	log.Debugf("Opening upstream for channel %s (%s) from %s", ch.ID, ch.Name, sc.RemoteAddr())

	result := Result{SessionID: session.ID}
	done := func(state State, err error) Result {
		session.finish(state)
		result.State = session.State()
		result.Err = err
		return result
	}

	upstreamURL, err := SignedURL(ch.URL, credential)
	if err != nil {
		err = faults.New(faults.ErrStreamTransport, "proxy.url", err)
		sc.Fail(http.StatusBadRequest, "stream error")
		return done(StateClosedError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		err = faults.New(faults.ErrStreamTransport, "proxy.request", err)
		sc.Fail(http.StatusBadRequest, "stream error")
		return done(StateClosedError, err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			log.Debug("Client went away before upstream answered")
			return done(StateClosedClient, nil)
		}
		err = faults.New(faults.ErrStreamTransport, "proxy.connect", err)
		log.Errorf("Upstream connection failed: %v", err)
		sc.Fail(http.StatusBadRequest, "stream error")
		return done(StateClosedError, err)
	}
	session.attach(resp.Body)
	result.UpstreamStatus = resp.StatusCode

	header := sc.Header()
	for key, values := range resp.Header {
		if _, drop := droppedHeaders[http.CanonicalHeaderKey(key)]; drop {
			continue
		}
		for _, value := range values {
			header.Add(key, value)
		}
	}
	header.Set("Cache-Control", "no-cache")
	header.Set("Access-Control-Allow-Origin", "*")

	sc.WriteHeader(resp.StatusCode)
	session.stream()
	sc.Flush()

	state, err := p.relay(ctx, resp.Body, sc, &result.BytesWritten)
	switch state {
	case StateClosedNormal:
		log.Debugf("Upstream ended after %d bytes", result.BytesWritten)
	case StateClosedClient:
		log.Debugf("Client disconnected after %d bytes", result.BytesWritten)
	case StateClosedError:
		log.Errorf("Stream interrupted after %d bytes: %v", result.BytesWritten, err)
	}
	return done(state, err)
}

func (p *StreamProxy) relay(ctx context.Context, body io.Reader, sc *client.StreamClient, written *int64) (State, error) {
	bufPtr := p.buffers.Get().(*[]byte)
	defer p.buffers.Put(bufPtr)
	buf := *bufPtr

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			w, writeErr := sc.Write(buf[:n])
			*written += int64(w)
			metrics.BytesRelayed.Add(float64(w))
			if writeErr != nil {
				return StateClosedClient, nil
			}
			sc.Flush()
		}

		if readErr == nil {
			continue
		}

		switch {
		case ctx.Err() != nil:
			return StateClosedClient, nil
		case errors.Is(readErr, io.EOF), errors.Is(readErr, syscall.ECONNRESET):
			return StateClosedNormal, nil
		default:
			return StateClosedError, faults.New(faults.ErrStreamTransport, "proxy.relay", readErr)
		}
	}
}
