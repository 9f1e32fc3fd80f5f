package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"image-engine/internal/action"
	"image-engine/internal/bitmap"
	"image-engine/internal/core/service"
	"image-engine/internal/decode"
	logutil "image-engine/internal/logging"
	"image-engine/internal/request"
	"image-engine/internal/store"

	"github.com/go-logr/logr"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// server exposes the engine over the admin HTTP surface.
type server struct {
	cache   *store.Store
	svc     *service.ServiceImpl
	decoder *decode.Synthetic
	arena   *action.Arena
	log     logr.Logger

	lateDeliveries atomic.Int64
}

type loadResponse struct {
	Key        string `json:"key"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Bytes      int    `json:"bytes,omitempty"`
	From       string `json:"from,omitempty"`
	DebugColor string `json:"debug_color,omitempty"`
	Error      string `json:"error,omitempty"`
	WillReplay bool   `json:"will_replay,omitempty"`
}

type statsResponse struct {
	store.Stats
	ReplayPending  int   `json:"replay_pending"`
	Consumers      int   `json:"consumers"`
	LateDeliveries int64 `json:"late_deliveries"`
	Connected      bool  `json:"connected"`
}

type connectivityResponse struct {
	Connected bool `json:"connected"`
	Replayed  int  `json:"replayed"`
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /load", s.handleLoad)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /invalidate", s.handleInvalidate)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("POST /connectivity", s.handleConnectivity)
	mux.Handle("/metrics", promhttp.Handler())
	// pprof registers itself on the default mux
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return mux
}

func (s *server) handleLoad(w http.ResponseWriter, r *http.Request) {
	req, mem, netw, err := parseLoad(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c := &loadConsumer{srv: s}
	c.handle = s.arena.Register(action.CallbackTarget{
		OnSuccess: c.onSuccess,
		OnError:   c.onError,
	}, action.Inline{})

	opts := action.Options{
		Target:        c.handle,
		Request:       req,
		MemoryPolicy:  mem,
		NetworkPolicy: netw,
	}
	if tag := r.URL.Query().Get("tag"); tag != "" {
		opts.Tag = tag
	}
	a, err := action.New(s.arena, opts)
	if err != nil {
		s.arena.Release(c.handle)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.action = a

	loadErr := s.svc.Load(r.Context(), a)
	resp, delivered := c.finish()
	if loadErr != nil && delivered == nil {
		// abandoned: the client went away before a result was delivered
		s.log.V(logutil.VERBOSE).Info("Load abandoned", "key", a.Key(), "error", loadErr.Error())
		return
	}

	status := http.StatusOK
	if delivered != nil {
		status = statusFor(delivered)
	}
	writeJSON(w, status, resp)
}

// loadConsumer receives the result of one /load request. While the request
// is open it fills the response; a load parked for replay keeps its consumer
// registered after the response is written, and the replayed result is
// counted as a late delivery.
type loadConsumer struct {
	srv    *server
	handle action.Handle
	action *action.Action

	mu   sync.Mutex
	done bool
	resp loadResponse
	err  error
}

func (c *loadConsumer) onSuccess(img bitmap.Decoded, from bitmap.LoadedFrom) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		c.srv.lateDeliveries.Add(1)
		c.srv.log.V(logutil.VERBOSE).Info("Replayed load delivered", "key", c.action.Key(), "from", from)
		c.srv.arena.Release(c.handle)
		return
	}
	defer c.mu.Unlock()

	c.err = nil
	c.resp.Error = ""
	c.resp.Bytes = img.ByteSize()
	if b, ok := img.(*bitmap.Bitmap); ok {
		c.resp.Width, c.resp.Height = b.Width, b.Height
	}
	col := from.DebugColor()
	c.resp.From = from.String()
	c.resp.DebugColor = fmt.Sprintf("#%02x%02x%02x", col.R, col.G, col.B)
}

func (c *loadConsumer) onError(err error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		c.srv.lateDeliveries.Add(1)
		if !c.action.WillReplay() {
			c.srv.arena.Release(c.handle)
		}
		return
	}
	defer c.mu.Unlock()
	c.err = err
}

// finish closes the request side and returns the response and the delivered
// failure, if any. The consumer stays registered only while its action waits
// for a replay.
func (c *loadConsumer) finish() (loadResponse, error) {
	c.mu.Lock()
	c.done = true
	resp, err := c.resp, c.err
	resp.Key = c.action.Key()
	parked := err != nil && c.action.WillReplay()
	if err != nil {
		resp.Error = err.Error()
		resp.WillReplay = parked
	}
	c.mu.Unlock()

	if !parked {
		c.srv.arena.Release(c.handle)
	}
	return resp, err
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:          s.cache.Stats(),
		ReplayPending:  s.svc.ReplayPending(),
		Consumers:      s.arena.Len(),
		LateDeliveries: s.lateDeliveries.Load(),
		Connected:      s.decoder.Connected(),
	})
}

func (s *server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	removed, err := s.cache.InvalidateByKeyPrefix(r.URL.Query().Get("uri"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.cache.EvictAll()
	w.Write([]byte("ok"))
}

// handleConnectivity is the connectivity signal: state=down takes the
// simulated network away, anything else restores it and replays parked loads.
func (s *server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("state") == "down" {
		s.decoder.SetConnected(false)
		s.log.Info("Network disconnected")
		writeJSON(w, http.StatusOK, connectivityResponse{Connected: false})
		return
	}

	s.decoder.SetConnected(true)
	n, err := s.svc.Replay(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("Network connected", "replayed", n)
	writeJSON(w, http.StatusOK, connectivityResponse{Connected: true, Replayed: n})
}

// parseLoad builds a request from query parameters: uri, w, h, inside,
// crop, config, priority, nocache, nostore and offline.
func parseLoad(r *http.Request) (request.Request, request.MemoryPolicy, request.NetworkPolicy, error) {
	q := r.URL.Query()
	req := request.Request{
		URI:          q.Get("uri"),
		CenterInside: q.Has("inside"),
		CenterCrop:   q.Has("crop"),
	}
	if req.URI == "" {
		return req, 0, 0, platformerrors.New(platformerrors.CodeInvalidInput, "missing uri")
	}
	if req.CenterInside && req.CenterCrop {
		return req, 0, 0, platformerrors.New(platformerrors.CodeInvalidInput, "inside and crop are exclusive")
	}

	var err error
	if req.TargetWidth, err = intParam(q.Get("w")); err != nil {
		return req, 0, 0, err
	}
	if req.TargetHeight, err = intParam(q.Get("h")); err != nil {
		return req, 0, 0, err
	}
	if c := q.Get("config"); c != "" {
		cfg, ok := parseConfig(c)
		if !ok {
			return req, 0, 0, platformerrors.Newf(platformerrors.CodeInvalidInput, "unknown config %q", c)
		}
		req.Config = cfg
	}
	switch q.Get("priority") {
	case "", "normal":
		req.Priority = request.PriorityNormal
	case "low":
		req.Priority = request.PriorityLow
	case "high":
		req.Priority = request.PriorityHigh
	default:
		return req, 0, 0, platformerrors.Newf(platformerrors.CodeInvalidInput, "unknown priority %q", q.Get("priority"))
	}

	var mem request.MemoryPolicy
	var netw request.NetworkPolicy
	if q.Has("nocache") {
		mem |= request.MemoryNoCache
	}
	if q.Has("nostore") {
		mem |= request.MemoryNoStore
	}
	if q.Has("offline") {
		netw |= request.NetworkOffline
	}
	return req, mem, netw, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, platformerrors.Newf(platformerrors.CodeInvalidInput, "invalid dimension %q", s)
	}
	return n, nil
}

func parseConfig(s string) (bitmap.Config, bool) {
	for _, c := range []bitmap.Config{bitmap.ARGB8888, bitmap.Alpha8, bitmap.RGB565, bitmap.ARGB4444, bitmap.RGBAF16} {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

func statusFor(err error) int {
	switch platformerrors.GetCode(err) {
	case platformerrors.CodeInvalidInput:
		return http.StatusBadRequest
	case platformerrors.CodeNetwork, platformerrors.CodeTimeout, platformerrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
