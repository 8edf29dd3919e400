package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}

func TestHandlerExposesProxyMetrics(t *testing.T) {
	before := testutil.ToFloat64(CatalogLoads.WithLabelValues("ok"))
	CatalogLoads.WithLabelValues("ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CatalogLoads.WithLabelValues("ok")))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vavoo_proxy_catalog_loads_total")
	assert.Contains(t, rec.Body.String(), "vavoo_proxy_active_sessions")
}
