package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vavoo-proxy/catalog"
	"vavoo-proxy/logger"
	"vavoo-proxy/m3u"
	"vavoo-proxy/proxy"
	"vavoo-proxy/proxy/client"
)

var testLogger = logger.New(io.Discard, true, false)

type fakeCatalog struct {
	snapshot *catalog.Snapshot
	err      error
}

func (f *fakeCatalog) Snapshot(context.Context) (*catalog.Snapshot, error) {
	return f.snapshot, f.err
}

type fakeSigner struct {
	signature   string
	err         error
	calls       atomic.Int32
	invalidated []string
}

func (f *fakeSigner) GetSignature(context.Context) (string, error) {
	f.calls.Add(1)
	return f.signature, f.err
}

func (f *fakeSigner) Invalidate(signature string) bool {
	f.invalidated = append(f.invalidated, signature)
	return true
}

type fakeResolver struct {
	location string
	ok       bool
	got      string
}

func (f *fakeResolver) Resolve(_ context.Context, signedURL string) (string, bool) {
	f.got = signedURL
	return f.location, f.ok
}

type fakeProxier struct {
	calls      atomic.Int32
	channel    catalog.Channel
	credential string
	status     int
}

func (f *fakeProxier) ProxyStream(_ context.Context, ch catalog.Channel, credential string, sc *client.StreamClient) proxy.Result {
	f.calls.Add(1)
	f.channel = ch
	f.credential = credential

	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	sc.Header().Set("Content-Type", "video/mp2t")
	sc.WriteHeader(status)
	n, _ := sc.Write([]byte("ts-data"))
	return proxy.Result{SessionID: sc.ID, State: proxy.StateClosedNormal, UpstreamStatus: status, BytesWritten: int64(n)}
}

func newTestCatalog(t *testing.T) *fakeCatalog {
	t.Helper()
	snap, dups, err := catalog.NewSnapshot([]catalog.Channel{
		{ID: "42", Name: "Das Erste", Group: "Germany", URL: "https://upstream.example/live2/play/42.ts"},
		{ID: "43", Name: "ZDF", Group: "Germany", URL: "https://upstream.example/live2/play/43.ts"},
	}, time.Now())
	require.NoError(t, err)
	require.Empty(t, dups)
	return &fakeCatalog{snapshot: snap}
}

type fixture struct {
	catalog  *fakeCatalog
	signer   *fakeSigner
	resolver *fakeResolver
	proxier  *fakeProxier
	router   http.Handler
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		catalog:  newTestCatalog(t),
		signer:   &fakeSigner{signature: "sig-abc"},
		resolver: &fakeResolver{},
		proxier:  &fakeProxier{},
	}

	opts := m3u.Options{UserAgent: "VAVOO/2.6"}
	f.router = NewRouter(Routes{
		Stream:   NewStreamHTTPHandler(f.catalog, f.signer, f.resolver, f.proxier, "vavoo", testLogger),
		Playlist: NewM3UHTTPHandler(f.catalog, opts, testLogger),
		Bouquet:  NewBouquetHTTPHandler(f.catalog, opts, testLogger),
	})
	return f
}

func (f *fixture) get(path, userAgent string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Host = "proxy:8888"
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestStreamHandler_UnknownChannel(t *testing.T) {
	for _, ua := range []string{"VLC/3.0", "VAVOO/2.6", ""} {
		t.Run("ua="+ua, func(t *testing.T) {
			f := newFixture(t)
			rec := f.get("/stream/999", ua)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "unknown channel: 999\n", rec.Body.String())
			assert.Zero(t, f.signer.calls.Load())
			assert.Zero(t, f.proxier.calls.Load())
		})
	}
}

func TestStreamHandler_ProxiesRegularClients(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/stream/42", "VLC/3.0.18")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ts-data", rec.Body.String())
	assert.EqualValues(t, 1, f.proxier.calls.Load())
	assert.Equal(t, "42", f.proxier.channel.ID)
	assert.Equal(t, "sig-abc", f.proxier.credential)
}

func TestStreamHandler_InvalidatesRejectedSignature(t *testing.T) {
	tests := []struct {
		status      int
		invalidated []string
	}{
		{status: http.StatusOK},
		{status: http.StatusNotFound},
		{status: http.StatusUnauthorized, invalidated: []string{"sig-abc"}},
		{status: http.StatusForbidden, invalidated: []string{"sig-abc"}},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			f := newFixture(t)
			f.proxier.status = tt.status

			rec := f.get("/stream/42", "VLC/3.0.18")

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.invalidated, f.signer.invalidated)
		})
	}
}

func TestStreamHandler_AcceptsExtension(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/stream/43.ts", "VLC/3.0.18")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "43", f.proxier.channel.ID)
}

func TestStreamHandler_RedirectsProviderClients(t *testing.T) {
	tests := []struct {
		name     string
		ua       string
		location string
		resolved bool
		want     string
	}{
		{
			name:     "resolved hop",
			ua:       "VAVOO/2.6",
			location: "https://edge.example/segment.ts",
			resolved: true,
			want:     "https://edge.example/segment.ts",
		},
		{
			name: "no further hop",
			ua:   "okhttp vavoo player",
			want: "https://upstream.example/live2/play/42.ts?b=5&n=1&vavoo_auth=sig-abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.resolver.location = tt.location
			f.resolver.ok = tt.resolved

			rec := f.get("/stream/42", tt.ua)

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
			assert.Equal(t, "https://upstream.example/live2/play/42.ts?b=5&n=1&vavoo_auth=sig-abc", f.resolver.got)
			assert.Zero(t, f.proxier.calls.Load())
		})
	}
}

func TestStreamHandler_SignatureUnavailable(t *testing.T) {
	for _, ua := range []string{"VLC/3.0", "VAVOO/2.6"} {
		f := newFixture(t)
		f.signer.err = errors.New("ping endpoint returned 503 for https://secret.example")

		rec := f.get("/stream/42", ua)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "signature unavailable\n", rec.Body.String())
		assert.Zero(t, f.proxier.calls.Load())
	}
}

func TestStreamHandler_CatalogUnavailable(t *testing.T) {
	f := newFixture(t)
	f.catalog.snapshot = nil
	f.catalog.err = errors.New("bundle fetch failed")

	rec := f.get("/stream/42", "VLC/3.0")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "catalog unavailable\n", rec.Body.String())
}

func TestPlaylistHandler(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/channels.m3u8", "VLC/3.0")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "#EXTM3U\n"))
	assert.Contains(t, body, `#EXTINF:-1 tvg-name="Das Erste" group-title="Germany" tvg-logo="" tvg-id="Das Erste",Das Erste`+"\n")
	assert.Contains(t, body, "#EXTVLCOPT:http-user-agent=VAVOO/2.6\n")
	assert.Contains(t, body, "http://proxy:8888/stream/42\n")
	assert.NotContains(t, body, "upstream.example")
}

func TestPlaylistHandler_CatalogUnavailable(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = errors.New("down")

	rec := f.get("/channels.m3u8", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "catalog unavailable\n", rec.Body.String())
}

func TestBouquetHandler(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/channels.bouquet", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "#NAME iptv - All Channels\n"))
	assert.Contains(t, body, "#SERVICE 1:0:1:0:0:0:0:0:0:0:http%3A%2F%2Fproxy%3A8888%2Fstream%2F43#sapp_tvgid=ZDF&User-Agent=VAVOO/2.6:ZDF\n")
	assert.Contains(t, body, "#DESCRIPTION ZDF\n")
}

func TestRouter_AuxiliaryRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = f.get("/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = f.get("/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
