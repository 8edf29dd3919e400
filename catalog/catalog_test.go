package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vavoo-proxy/faults"
	"vavoo-proxy/logger"
)

var testLogger = logger.New(io.Discard, true, false)

const testPlaylist = `#EXTM3U
#EXTINF:-1 tvg-name="Das Erste" group-title="Germany",Das Erste
https://cdn.test/live/42.ts
#EXTINF:-1 tvg-name="BBC One" group-title="United Kingdom",BBC One
https://cdn.test/live/7.ts
#EXTINF:-1 tvg-name="ZDF" group-title="germany",ZDF
#EXTVLCOPT:http-user-agent=VAVOO/2.6
https://cdn.test/live/43.ts
#EXTINF:-1 tvg-name="Broken" group-title="Germany",Broken
https://cdn.test/live/broken.m3u8
#EXTINF:-1 group-title="GERMANY",Sat.1
https://cdn.test/live/44.ts
`

func TestParseBundle_Playlist(t *testing.T) {
	channels, err := ParseBundle([]byte(testPlaylist), "germany", testLogger)
	require.NoError(t, err)

	require.Len(t, channels, 3)
	assert.Equal(t, Channel{ID: "42", Name: "Das Erste", URL: "https://cdn.test/live/42.ts", Group: "Germany"}, channels[0])
	assert.Equal(t, "43", channels[1].ID)
	assert.Equal(t, "ZDF", channels[1].Name)
	assert.Equal(t, "44", channels[2].ID)
	assert.Equal(t, "Sat.1", channels[2].Name)
}

func TestParseBundle_OnlyWantedGroup(t *testing.T) {
	testCases := []struct {
		name  string
		group string
	}{
		{"lowercase", "germany"},
		{"capitalised", "Germany"},
		{"uppercase", "GERMANY"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			channels, err := ParseBundle([]byte(testPlaylist), tc.group, testLogger)
			require.NoError(t, err)
			for _, ch := range channels {
				assert.True(t, strings.EqualFold(ch.Group, "germany"), "unexpected group %q", ch.Group)
				assert.NotEqual(t, "BBC One", ch.Name)
			}
		})
	}
}

func TestParseBundle_MalformedEntries(t *testing.T) {
	bundle := strings.Join([]string{
		`#EXTINF:-1 tvg-name="No Media" group-title="Germany",No Media`,
		`#EXTINF:-1 tvg-name="Nameless Pattern" group-title="Germany"`,
		`https://cdn.test/live/no-id`,
		`https://cdn.test/live/99.ts`,
		`#EXTINF:-1 tvg-name="" group-title="Germany",`,
		`https://cdn.test/live/100.ts`,
		`#EXTINF:-1 tvg-name="Last" group-title="Germany",Last`,
	}, "\r\n")

	var channels []Channel
	require.NotPanics(t, func() {
		var err error
		channels, err = ParseBundle([]byte(bundle), "germany", testLogger)
		require.NoError(t, err)
	})
	assert.Empty(t, channels)
}

func TestParseBundle_Records(t *testing.T) {
	body := `[
		{"group": "Germany", "url": "https://cdn.test/a", "name": "Das Erste"},
		{"group": "France", "url": "https://cdn.test/b", "name": "TF1"},
		{"group": "germany", "url": "https://cdn.test/c", "name": "ZDF"},
		{"group": "germany", "url": "", "name": "Empty"}
	]`

	channels, err := ParseBundle([]byte(body), "germany", testLogger)
	require.NoError(t, err)

	require.Len(t, channels, 2)
	assert.Equal(t, "0", channels[0].ID)
	assert.Equal(t, "Das Erste", channels[0].Name)
	assert.Equal(t, "2", channels[1].ID)
	assert.Equal(t, "https://cdn.test/c", channels[1].URL)
}

func TestParseBundle_MalformedRecords(t *testing.T) {
	_, err := ParseBundle([]byte(`[{"group": "Germany",`), "germany", testLogger)
	assert.True(t, faults.Is(err, faults.ErrCatalogFetch))
}

func TestSnapshot(t *testing.T) {
	snap, duplicates, err := NewSnapshot([]Channel{
		{ID: "1", Name: "One"},
		{ID: "2", Name: "Two"},
		{ID: "1", Name: "Again"},
	}, time.Unix(100, 0))
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Len())
	require.Len(t, duplicates, 1)
	assert.Equal(t, "Again", duplicates[0].Name)

	ch, ok := snap.Get("2")
	assert.True(t, ok)
	assert.Equal(t, "Two", ch.Name)

	_, ok = snap.Get("3")
	assert.False(t, ok)

	list := snap.Channels()
	list[0].Name = "mutated"
	again, _ := snap.Get("1")
	assert.Equal(t, "One", again.Name)
	assert.Equal(t, "One", snap.Channels()[0].Name)
}

func TestLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bundle":
			_, _ = io.WriteString(w, testPlaylist)
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	channels, err := NewLoader(srv.Client(), srv.URL+"/bundle", "germany", time.Second, testLogger).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, channels, 3)

	_, err = NewLoader(srv.Client(), srv.URL+"/missing", "germany", time.Second, testLogger).Load(context.Background())
	assert.True(t, faults.Is(err, faults.ErrCatalogFetch))
}

func TestLoader_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewLoader(http.DefaultClient, url, "germany", time.Second, testLogger).Load(context.Background())
	require.Error(t, err)
	assert.True(t, faults.Is(err, faults.ErrCatalogFetch))
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int32
	results []fetchResult
	gate    chan struct{}
}

type fetchResult struct {
	channels []Channel
	err      error
}

func (f *fakeFetcher) Load(ctx context.Context) ([]Channel, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res.channels, res.err
}

func TestStore_LazyLoadSharedByConcurrentCallers(t *testing.T) {
	fetcher := &fakeFetcher{
		results: []fetchResult{{channels: []Channel{{ID: "42", Name: "Das Erste"}}}},
		gate:    make(chan struct{}),
	}
	store := NewStore(fetcher, testLogger)
	assert.Nil(t, store.Current())

	var wg sync.WaitGroup
	snaps := make([]*Snapshot, 10)
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := store.Snapshot(context.Background())
			assert.NoError(t, err)
			snaps[i] = snap
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
	for _, snap := range snaps {
		assert.Same(t, snaps[0], snap)
	}

	_, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestStore_FailedLoadIsRetried(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{
		{err: faults.New(faults.ErrCatalogFetch, "test", errors.New("unreachable"))},
		{channels: []Channel{{ID: "42", Name: "Das Erste"}}},
	}}
	store := NewStore(fetcher, testLogger)

	_, err := store.Snapshot(context.Background())
	require.Error(t, err)
	assert.True(t, faults.Is(err, faults.ErrCatalogFetch))
	assert.Nil(t, store.Current())

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetcher.calls))
}

func TestStore_ReloadKeepsPreviousOnFailure(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{
		{channels: []Channel{{ID: "1", Name: "One"}}},
		{err: faults.New(faults.ErrCatalogFetch, "test", errors.New("timeout"))},
		{channels: []Channel{{ID: "1", Name: "One"}, {ID: "2", Name: "Two"}}},
	}}
	store := NewStore(fetcher, testLogger)

	first, err := store.Snapshot(context.Background())
	require.NoError(t, err)

	_, err = store.Reload(context.Background())
	require.Error(t, err)
	assert.Same(t, first, store.Current())

	next, err := store.Reload(context.Background())
	require.NoError(t, err)
	assert.Same(t, next, store.Current())
	assert.Equal(t, 2, next.Len())
	assert.Equal(t, 1, first.Len())
}

func TestStore_CallerCancellation(t *testing.T) {
	fetcher := &fakeFetcher{
		results: []fetchResult{{channels: []Channel{{ID: "1", Name: "One"}}}},
		gate:    make(chan struct{}),
	}
	store := NewStore(fetcher, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, faults.Is(err, faults.ErrCatalogFetch))

	close(fetcher.gate)
	require.Eventually(t, func() bool { return store.Current() != nil }, time.Second, 10*time.Millisecond)
}
