package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"image-engine/internal/action"
	"image-engine/internal/bitmap"
	"image-engine/internal/core/service"
	"image-engine/internal/decode"
	"image-engine/internal/store"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, maxBytes int, from bitmap.LoadedFrom) (*server, http.Handler) {
	t.Helper()
	cache, err := store.New(maxBytes)
	require.NoError(t, err)
	decoder := decode.NewSynthetic(from, logr.Discard())
	s := &server{
		cache:   cache,
		svc:     service.New(cache, decoder, logr.Discard()),
		decoder: decoder,
		arena:   action.NewArena(),
		log:     logr.Discard(),
	}
	return s, s.routes()
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeLoad(t *testing.T, rec *httptest.ResponseRecorder) loadResponse {
	t.Helper()
	var resp loadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestLoad_DecodeThenMemoryHit(t *testing.T) {
	s, h := newTestServer(t, 1<<20, bitmap.Disk)

	rec := do(t, h, http.MethodGet, "/load?uri=synthetic://400x200&w=100&h=100&inside")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeLoad(t, rec)
	assert.Equal(t, 100, first.Width)
	assert.Equal(t, 50, first.Height)
	assert.Equal(t, 100*50*4, first.Bytes)
	assert.Equal(t, "disk", first.From)
	assert.Equal(t, "#0000ff", first.DebugColor)

	rec = do(t, h, http.MethodGet, "/load?uri=synthetic://400x200&w=100&h=100&inside")
	second := decodeLoad(t, rec)
	assert.Equal(t, "memory", second.From)
	assert.Equal(t, "#00ff00", second.DebugColor)
	assert.Equal(t, first.Key, second.Key)

	// consumers are released once the response is written
	assert.Equal(t, 0, s.arena.Len())
	assert.Equal(t, 1, s.cache.Stats().HitCount)
}

func TestLoad_BadRequests(t *testing.T) {
	_, h := newTestServer(t, 1<<20, bitmap.Disk)

	for _, target := range []string{
		"/load",
		"/load?uri=synthetic://4x4&w=abc",
		"/load?uri=synthetic://4x4&inside&crop",
		"/load?uri=synthetic://4x4&config=CMYK",
		"/load?uri=synthetic://4x4&priority=urgent",
	} {
		rec := do(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	rec := do(t, h, http.MethodGet, "/load?uri=http://a.com/x.png")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeLoad(t, rec).Error)
}

func TestLoad_OfflineNetworkFailure(t *testing.T) {
	s, h := newTestServer(t, 1<<20, bitmap.Network)

	rec := do(t, h, http.MethodGet, "/load?uri=synthetic://4x4&offline")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeLoad(t, rec)
	assert.False(t, resp.WillReplay)
	assert.Equal(t, 0, s.svc.ReplayPending())
}

func TestInvalidateAndClear(t *testing.T) {
	s, h := newTestServer(t, 1<<20, bitmap.Disk)

	do(t, h, http.MethodGet, "/load?uri=synthetic://8x8/a&w=4")
	do(t, h, http.MethodGet, "/load?uri=synthetic://8x8/a&w=2")
	do(t, h, http.MethodGet, "/load?uri=synthetic://8x8/ab")
	require.Equal(t, 3, s.cache.Len())

	rec := do(t, h, http.MethodPost, "/invalidate?uri=synthetic://8x8/a")
	require.Equal(t, http.StatusOK, rec.Code)
	var removed map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&removed))
	assert.Equal(t, 2, removed["removed"])
	assert.Equal(t, 1, s.cache.Len())

	rec = do(t, h, http.MethodPost, "/invalidate")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/clear")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.cache.Len())
	assert.Equal(t, 0, s.cache.Size())
}

func TestStatsAndConnectivity(t *testing.T) {
	_, h := newTestServer(t, 1000, bitmap.Disk)

	do(t, h, http.MethodGet, "/load?uri=synthetic://10x15/a")
	do(t, h, http.MethodGet, "/load?uri=synthetic://10x15/b")

	rec := do(t, h, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats statsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 600, stats.Size)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.EvictionCount)
	assert.Equal(t, 2, stats.PutCount)

	rec = do(t, h, http.MethodPost, "/connectivity")
	require.Equal(t, http.StatusOK, rec.Code)
	var conn connectivityResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conn))
	assert.True(t, conn.Connected)
	assert.Equal(t, 0, conn.Replayed)

	rec = do(t, h, http.MethodGet, "/connectivity")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConnectivity_ReplaysParkedLoads(t *testing.T) {
	s, h := newTestServer(t, 1<<20, bitmap.Network)

	rec := do(t, h, http.MethodPost, "/connectivity?state=down")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, s.decoder.Connected())

	rec = do(t, h, http.MethodGet, "/load?uri=synthetic://40x20/a&w=10")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeLoad(t, rec)
	assert.True(t, resp.WillReplay)
	assert.NotEmpty(t, resp.Error)

	// the parked load keeps its consumer past the response
	assert.Equal(t, 1, s.svc.ReplayPending())
	assert.Equal(t, 1, s.arena.Len())

	rec = do(t, h, http.MethodPost, "/connectivity")
	require.Equal(t, http.StatusOK, rec.Code)
	var conn connectivityResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conn))
	assert.True(t, conn.Connected)
	assert.Equal(t, 1, conn.Replayed)

	rec = do(t, h, http.MethodGet, "/stats")
	var stats statsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.LateDeliveries)
	assert.Equal(t, 0, stats.ReplayPending)
	assert.Equal(t, 0, stats.Consumers)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 10*5*4, stats.Size)
}

func TestLoad_FailedLoadReleasesConsumer(t *testing.T) {
	s, h := newTestServer(t, 1<<20, bitmap.Network)

	rec := do(t, h, http.MethodGet, "/load?uri=synthetic://4x4&offline")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, s.arena.Len())
}
