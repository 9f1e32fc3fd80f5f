package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"image-engine/internal/action"
	"image-engine/internal/bitmap"
	"image-engine/internal/core/ports"
	logutil "image-engine/internal/logging"
	"image-engine/internal/observability"

	"github.com/go-logr/logr"
	platformerrors "github.com/jmgilman/go/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ensure implementation
var _ ports.Loader = (*ServiceImpl)(nil)

// maxSharedAttempts bounds how often a caller rejoins a shared decode whose
// leader's context ended.
const maxSharedAttempts = 3

var errLeaderAbandoned = errors.New("shared decode abandoned by its caller")

// ServiceImpl runs the cache-then-decode flow for issued actions and keeps
// failed, retry-eligible actions until connectivity returns.
type ServiceImpl struct {
	cache   ports.ImageCache
	decoder ports.Decoder
	log     logr.Logger

	decodes singleflight.Group

	mu      sync.Mutex
	pending map[*action.Action]struct{}
	replay  map[*action.Action]struct{}
}

func New(cache ports.ImageCache, decoder ports.Decoder, log logr.Logger) *ServiceImpl {
	return &ServiceImpl{
		cache:   cache,
		decoder: decoder,
		log:     log,
		pending: make(map[*action.Action]struct{}),
		replay:  make(map[*action.Action]struct{}),
	}
}

// Load resolves a from the memory cache or decodes it, then delivers the
// result. Concurrent loads of the same key share one decode. It blocks the
// calling worker until delivery has been handed to the consumer's executor.
// The returned error is the decode failure, already delivered to a.
func (s *ServiceImpl) Load(ctx context.Context, a *action.Action) error {
	if a.IsCancelled() {
		return nil
	}
	log := s.log.WithValues("action", a.ID(), "key", a.Key())

	if a.MemoryPolicy().ShouldReadFromMemoryCache() {
		img, found, err := s.cache.Get(a.Key())
		if err != nil {
			a.Error(err)
			return err
		}
		if found {
			log.V(logutil.TRACE).Info("Memory cache hit")
			a.Complete(img, bitmap.Memory)
			return nil
		}
	}

	s.track(a)
	defer s.untrack(a)

	var (
		v      interface{}
		err    error
		shared bool
	)
	for attempt := 0; ; attempt++ {
		v, err, shared = s.decodes.Do(a.Key(), func() (interface{}, error) {
			res, err := s.decode(ctx, a)
			if err != nil && ctx.Err() != nil {
				return res, errLeaderAbandoned
			}
			return res, err
		})
		if !errors.Is(err, errLeaderAbandoned) {
			break
		}
		if ctx.Err() != nil {
			// this caller's own context ended; nothing is delivered
			log.V(logutil.DEBUG).Info("Load abandoned", "reason", ctx.Err())
			return ctx.Err()
		}
		// the decode was led by a caller that went away; try again
		if attempt+1 >= maxSharedAttempts {
			err = platformerrors.Wrap(err, platformerrors.CodeUnavailable, "shared decode abandoned")
			break
		}
		s.decodes.Forget(a.Key())
	}
	if err != nil {
		s.fail(log, a, err)
		return err
	}

	res := v.(ports.DecodeResult)
	log.V(logutil.DEBUG).Info("Decoded", "from", res.From, "shared", shared)
	a.Complete(res.Image, res.From)
	return nil
}

func (s *ServiceImpl) decode(ctx context.Context, a *action.Action) (ports.DecodeResult, error) {
	start := time.Now()
	res, err := s.decoder.Decode(ctx, a.Request(), a.NetworkPolicy())
	if err == nil && res.Image == nil {
		err = platformerrors.Newf(platformerrors.CodeInternal, "decoder returned no image for %q", a.Key())
	}
	if err != nil {
		observability.DecodeDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return ports.DecodeResult{}, err
	}
	observability.DecodeDurationSeconds.WithLabelValues("success").Observe(time.Since(start).Seconds())

	if a.MemoryPolicy().ShouldWriteToMemoryCache() {
		if err := s.cache.Set(a.Key(), res.Image); err != nil {
			return ports.DecodeResult{}, err
		}
	}
	return res, nil
}

// fail delivers err and parks a for replay when the failure is transient and
// the request may use the network.
func (s *ServiceImpl) fail(log logr.Logger, a *action.Action, err error) {
	if !platformerrors.IsRetryable(err) || a.NetworkPolicy().IsOffline() {
		log.Error(err, "Load failed")
		a.Error(err)
		return
	}

	a.SetWillReplay(true)
	// the error is scheduled before Replay can see the action
	a.Error(err)
	s.mu.Lock()
	s.replay[a] = struct{}{}
	s.mu.Unlock()
	log.V(logutil.VERBOSE).Info("Load failed, will replay on reconnect", "error", err.Error())
}

// Replay re-issues every parked action whose consumer is still alive. It is
// driven by the connectivity collaborator and returns how many actions were
// re-issued.
func (s *ServiceImpl) Replay(ctx context.Context) (int, error) {
	s.mu.Lock()
	parked := s.replay
	s.replay = make(map[*action.Action]struct{})
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	n := 0
	for a := range parked {
		a.Reissue()
		if a.IsCancelled() {
			continue
		}
		if _, ok := a.Target(); !ok {
			continue
		}
		n++
		observability.ActionReplaysTotal.Inc()
		g.Go(func() error {
			// failures are delivered to the action and may park it again
			_ = s.Load(ctx, a)
			return nil
		})
	}
	err := g.Wait()
	s.log.V(logutil.VERBOSE).Info("Replayed actions", "count", n)
	return n, err
}

// CancelTag cancels every pending or parked action carrying tag.
func (s *ServiceImpl) CancelTag(tag any) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for a := range s.pending {
		if a.Tag() == tag {
			a.Cancel()
			n++
		}
	}
	for a := range s.replay {
		if a.Tag() == tag {
			a.Cancel()
			delete(s.replay, a)
			if _, counted := s.pending[a]; !counted {
				n++
			}
		}
	}
	return n
}

// Cancel cancels a and forgets it if parked for replay.
func (s *ServiceImpl) Cancel(a *action.Action) {
	a.Cancel()
	s.mu.Lock()
	delete(s.replay, a)
	s.mu.Unlock()
}

// ReplayPending returns the number of actions parked for replay.
func (s *ServiceImpl) ReplayPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replay)
}

func (s *ServiceImpl) track(a *action.Action) {
	s.mu.Lock()
	s.pending[a] = struct{}{}
	s.mu.Unlock()
}

func (s *ServiceImpl) untrack(a *action.Action) {
	s.mu.Lock()
	delete(s.pending, a)
	s.mu.Unlock()
}
