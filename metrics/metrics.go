// Package metrics holds the Prometheus instrumentation of the proxy.
//
// Exposed at GET /metrics next to the Go runtime and process collectors:
//
//	vavoo_proxy_catalog_loads_total        counter: catalog fetches by result
//	vavoo_proxy_signature_refreshes_total  counter: signing calls by result
//	vavoo_proxy_redirects_total            counter: provider redirects by resolution
//	vavoo_proxy_active_sessions            gauge: open stream proxy sessions
//	vavoo_proxy_sessions_closed_total      counter: finished sessions by terminal state
//	vavoo_proxy_bytes_relayed_total        counter: stream bytes written to clients
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var CatalogLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vavoo_proxy_catalog_loads_total",
	Help: "Catalog bundle fetches by result.",
}, []string{"result"})

var SignatureRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vavoo_proxy_signature_refreshes_total",
	Help: "Upstream signature refreshes by result.",
}, []string{"result"})

var Redirects = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vavoo_proxy_redirects_total",
	Help: "Provider client redirects by whether a further hop was resolved.",
}, []string{"resolved"})

var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "vavoo_proxy_active_sessions",
	Help: "Stream proxy sessions currently open.",
})

var SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vavoo_proxy_sessions_closed_total",
	Help: "Finished stream proxy sessions by terminal state.",
}, []string{"state"})

var BytesRelayed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vavoo_proxy_bytes_relayed_total",
	Help: "Stream bytes written to clients.",
})

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
