package handlers

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vavoo-proxy/logger"
	"vavoo-proxy/metrics"
	"vavoo-proxy/proxy"
	"vavoo-proxy/proxy/client"
)

type StreamHTTPHandler struct {
	catalog    Catalog
	signer     Signer
	resolver   RedirectResolver
	proxy      StreamProxier
	agentMatch string
	logger     logger.Logger
}

func NewStreamHTTPHandler(catalog Catalog, signer Signer, resolver RedirectResolver, proxy StreamProxier, agentMatch string, logger logger.Logger) *StreamHTTPHandler {
	return &StreamHTTPHandler{
		catalog:    catalog,
		signer:     signer,
		resolver:   resolver,
		proxy:      proxy,
		agentMatch: strings.ToLower(agentMatch),
		logger:     logger,
	}
}

// channelID accepts both /stream/42 and /stream/42.ts.
func channelID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = path.Base(r.URL.Path)
	}
	if i := strings.IndexByte(id, '.'); i > 0 {
		id = id[:i]
	}
	return id
}

// isProviderClient reports whether the caller is the provider's own player,
// which is redirected instead of proxied.
func (h *StreamHTTPHandler) isProviderClient(userAgent string) bool {
	return h.agentMatch != "" && strings.Contains(strings.ToLower(userAgent), h.agentMatch)
}

func (h *StreamHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc := client.NewStreamClient(w, r)
	log := h.logger.With(sc.ID)

	id := channelID(r)
	log.Logf("Received request from %s (%s) for channel %s", sc.RemoteAddr(), sc.UserAgent(), id)

	snapshot, err := h.catalog.Snapshot(ctx)
	if err != nil {
		log.Errorf("Catalog unavailable: %v", err)
		writeError(w, msgCatalogUnavailable)
		return
	}

	ch, ok := snapshot.Get(id)
	if !ok {
		log.Warnf("Unknown channel requested: %s", id)
		writeError(w, msgUnknownChannel+id)
		return
	}

	signature, err := h.signer.GetSignature(ctx)
	if err != nil {
		log.Errorf("Signature unavailable: %v", err)
		writeError(w, msgSignatureUnavailable)
		return
	}

	if h.isProviderClient(sc.UserAgent()) {
		signed, err := proxy.SignedURL(ch.URL, signature)
		if err != nil {
			log.Errorf("Invalid channel URL for %s: %v", ch.ID, err)
			writeError(w, msgStreamError)
			return
		}

		target, resolved := h.resolver.Resolve(ctx, signed)
		if !resolved {
			target = signed
		}
		metrics.Redirects.WithLabelValues(strconv.FormatBool(resolved)).Inc()

		log.Debugf("Redirecting provider client to %s", target)
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	result := h.proxy.ProxyStream(ctx, ch, signature, sc)
	if rejectsSignature(result.UpstreamStatus) && h.signer.Invalidate(signature) {
		log.Warnf("Upstream answered %d for channel %s, signature dropped", result.UpstreamStatus, ch.ID)
	}

	elapsed := time.Since(sc.StartedAt).Round(time.Millisecond)
	if result.Err != nil {
		log.Warnf("Stream for channel %s ended as %s after %s: %v", ch.ID, result.State, elapsed, result.Err)
		return
	}
	log.Logf("Stream for channel %s ended as %s after %d bytes in %s", ch.ID, result.State, result.BytesWritten, elapsed)
}

func rejectsSignature(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
