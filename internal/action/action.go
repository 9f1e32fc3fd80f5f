// Package action binds a pending image load to the consumer that will
// receive it.
//
// An Action is created when a load is issued and ends in exactly one terminal
// delivery, Complete or Error, unless it is cancelled first. The consumer is
// held through an Arena Handle, never directly, so actions parked in caches,
// dispatchers or replay queues cannot keep a torn-down consumer alive or
// paint into it.
package action

import (
	"reflect"
	"slices"
	"sync/atomic"

	"image-engine/internal/bitmap"
	"image-engine/internal/observability"
	"image-engine/internal/request"

	"github.com/google/uuid"
	platformerrors "github.com/jmgilman/go/errors"
)

// Options describes a new Action. Only Request is required.
type Options struct {
	// Target is the consumer Handle; the zero Handle means no consumer
	// (prefetch).
	Target        Handle
	Request       request.Request
	MemoryPolicy  request.MemoryPolicy
	NetworkPolicy request.NetworkPolicy
	// Fallback is shown by visual and remote consumers on failure.
	Fallback bitmap.Decoded
	// Key overrides the cache key derived from Request.
	Key string
	// Tag groups actions for bulk cancellation and must be comparable.
	// Defaults to the Action.
	Tag any
}

// Action is one pending load and its delivery rules.
type Action struct {
	id            uuid.UUID
	arena         *Arena
	target        Handle
	req           request.Request
	memoryPolicy  request.MemoryPolicy
	networkPolicy request.NetworkPolicy
	fallback      bitmap.Decoded
	key           string
	tag           any

	cancelled  atomic.Bool
	willReplay atomic.Bool
	// delivered latches the single terminal delivery until Reissue.
	delivered atomic.Bool
}

// New creates an Action delivering into consumers registered in arena.
func New(arena *Arena, opts Options) (*Action, error) {
	if opts.Tag != nil && !reflect.TypeOf(opts.Tag).Comparable() {
		return nil, platformerrors.Newf(platformerrors.CodeInvalidInput,
			"tag of type %T is not comparable", opts.Tag)
	}

	key := opts.Key
	if key == "" {
		var err error
		if key, err = opts.Request.Key(); err != nil {
			return nil, err
		}
	}

	req := opts.Request
	req.Transformations = slices.Clone(req.Transformations)

	a := &Action{
		id:            uuid.New(),
		arena:         arena,
		target:        opts.Target,
		req:           req,
		memoryPolicy:  opts.MemoryPolicy,
		networkPolicy: opts.NetworkPolicy,
		fallback:      opts.Fallback,
		key:           key,
		tag:           opts.Tag,
	}
	if a.tag == nil {
		a.tag = a
	}
	return a, nil
}

// Complete delivers img to the consumer on the consumer's executor. It
// reports whether a delivery was scheduled: nothing is delivered once the
// action is cancelled, the consumer has been released or a terminal delivery
// was already scheduled. Cancellation and release are checked again when the
// executor runs.
func (a *Action) Complete(img bitmap.Decoded, from bitmap.LoadedFrom) bool {
	if img == nil {
		return false
	}
	return a.dispatch("completed", func(t Target) {
		deliverImage(t, img, from)
	})
}

// Error delivers a failure to the consumer. Same suppression rules as
// Complete.
func (a *Action) Error(err error) bool {
	return a.dispatch("failed", func(t Target) {
		deliverError(t, err, a.fallback)
	})
}

func (a *Action) dispatch(outcome string, deliver func(Target)) bool {
	if a.cancelled.Load() {
		observability.ActionDeliveriesTotal.WithLabelValues("suppressed_cancelled").Inc()
		return false
	}
	_, exec, ok := a.resolve()
	if !ok {
		observability.ActionDeliveriesTotal.WithLabelValues("suppressed_released").Inc()
		return false
	}
	if !a.delivered.CompareAndSwap(false, true) {
		observability.ActionDeliveriesTotal.WithLabelValues("suppressed_terminal").Inc()
		return false
	}

	exec.Post(func() {
		if a.cancelled.Load() {
			observability.ActionDeliveriesTotal.WithLabelValues("suppressed_cancelled").Inc()
			return
		}
		t, _, ok := a.resolve()
		if !ok {
			observability.ActionDeliveriesTotal.WithLabelValues("suppressed_released").Inc()
			return
		}
		deliver(t)
		observability.ActionDeliveriesTotal.WithLabelValues(outcome).Inc()
	})
	return true
}

func (a *Action) resolve() (Target, Executor, bool) {
	if a.arena == nil {
		return nil, nil, false
	}
	return a.arena.resolve(a.target)
}

// Cancel stops any later delivery. It is idempotent and does not interrupt
// work already in flight.
func (a *Action) Cancel() {
	a.cancelled.Store(true)
}

// IsCancelled reports whether Cancel has been called.
func (a *Action) IsCancelled() bool {
	return a.cancelled.Load()
}

// SetWillReplay marks the action for re-issue on the next connectivity
// change.
func (a *Action) SetWillReplay(v bool) {
	a.willReplay.Store(v)
}

func (a *Action) WillReplay() bool {
	return a.willReplay.Load()
}

// Reissue readies the action for another attempt after a replay: it clears
// willReplay and reopens the terminal delivery.
func (a *Action) Reissue() {
	a.willReplay.Store(false)
	a.delivered.Store(false)
}

// Delivered reports whether a terminal delivery has been scheduled since the
// action was issued or last reissued.
func (a *Action) Delivered() bool {
	return a.delivered.Load()
}

// Target resolves the consumer, returning false once it has been released.
func (a *Action) Target() (Target, bool) {
	t, _, ok := a.resolve()
	return t, ok
}

func (a *Action) Handle() Handle                       { return a.target }
func (a *Action) ID() uuid.UUID                        { return a.id }
func (a *Action) Key() string                          { return a.key }
func (a *Action) Request() request.Request             { return a.req }
func (a *Action) MemoryPolicy() request.MemoryPolicy   { return a.memoryPolicy }
func (a *Action) NetworkPolicy() request.NetworkPolicy { return a.networkPolicy }
func (a *Action) Priority() request.Priority           { return a.req.Priority }
func (a *Action) Tag() any                             { return a.tag }
