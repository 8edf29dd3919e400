package handlers

import (
	"io"
	"net/http"

	"vavoo-proxy/catalog"
	"vavoo-proxy/logger"
	"vavoo-proxy/m3u"
	"vavoo-proxy/utils"
)

type renderFunc func(io.Writer, []catalog.Channel, m3u.Options) (int64, error)

type M3UHTTPHandler struct {
	catalog Catalog
	options m3u.Options
	render  renderFunc
	logger  logger.Logger
}

// NewM3UHTTPHandler serves the extended M3U playlist. An empty
// opts.BaseURL is derived from each request.
func NewM3UHTTPHandler(catalog Catalog, opts m3u.Options, logger logger.Logger) *M3UHTTPHandler {
	return &M3UHTTPHandler{catalog: catalog, options: opts, render: m3u.WriteM3U, logger: logger}
}

// NewBouquetHTTPHandler serves the set-top-box bouquet.
func NewBouquetHTTPHandler(catalog Catalog, opts m3u.Options, logger logger.Logger) *M3UHTTPHandler {
	return &M3UHTTPHandler{catalog: catalog, options: opts, render: m3u.WriteBouquet, logger: logger}
}

func (h *M3UHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		h.logger.Errorf("Catalog unavailable for %s: %v", r.URL.Path, err)
		writeError(w, msgCatalogUnavailable)
		return
	}

	opts := h.options
	opts.BaseURL = utils.DetermineBaseURL(r, h.options.BaseURL)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if _, err := h.render(w, snapshot.Channels(), opts); err != nil {
		h.logger.Debugf("Failed writing %s to %s: %v", r.URL.Path, r.RemoteAddr, err)
		return
	}
	h.logger.Debugf("Served %s with %d channels to %s", r.URL.Path, snapshot.Len(), r.RemoteAddr)
}
