package action

import (
	"context"
	"sync"
)

// Executor runs deliveries on a consumer's owning context. Post must not
// block on the work it schedules.
type Executor interface {
	Post(fn func())
}

// Inline runs every posted function immediately on the caller's goroutine.
type Inline struct{}

func (Inline) Post(fn func()) { fn() }

// Loop is a serial executor: functions posted from any goroutine run one at
// a time, in order, on the goroutine that calls Run.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewLoop creates an idle Loop. Nothing runs until Run is called.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn and returns immediately.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes queued functions until ctx is done. Functions still queued
// at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			fn()
		}
	}
}
