package action

import "sync"

// Handle is a non-owning reference to a consumer registered in an Arena.
// The zero Handle never resolves.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool { return h.generation == 0 }

type slot struct {
	target     Target
	executor   Executor
	generation uint32
	live       bool
}

// Arena owns the consumers that actions deliver into. Actions keep only
// Handles, so an action that outlives its consumer cannot reach or retain
// it: once the owner calls Release, every Handle to that slot stops
// resolving.
type Arena struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
	live  int
}

// NewArena returns an empty Arena.
func NewArena() *Arena {
	return &Arena{}
}

// Register adds a consumer whose deliveries run on exec and returns its
// Handle. A nil exec means Inline.
func (a *Arena) Register(t Target, exec Executor) Handle {
	if exec == nil {
		exec = Inline{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}

	s := &a.slots[idx]
	s.generation++
	if s.generation == 0 {
		// skip the zero generation on wrap-around
		s.generation = 1
	}
	s.target = t
	s.executor = exec
	s.live = true
	a.live++
	return Handle{index: idx, generation: s.generation}
}

// Resolve returns the consumer for h, or false once it has been released.
func (a *Arena) Resolve(h Handle) (Target, bool) {
	t, _, ok := a.resolve(h)
	return t, ok
}

func (a *Arena) resolve(h Handle) (Target, Executor, bool) {
	if h.IsZero() {
		return nil, nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if int(h.index) >= len(a.slots) {
		return nil, nil, false
	}
	s := a.slots[h.index]
	if !s.live || s.generation != h.generation {
		return nil, nil, false
	}
	return s.target, s.executor, true
}

// Release drops the consumer for h. It reports false if h was already
// released or never valid.
func (a *Arena) Release(h Handle) bool {
	if h.IsZero() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if int(h.index) >= len(a.slots) {
		return false
	}
	s := &a.slots[h.index]
	if !s.live || s.generation != h.generation {
		return false
	}
	s.target = nil
	s.executor = nil
	s.live = false
	a.free = append(a.free, h.index)
	a.live--
	return true
}

// Len returns the number of registered consumers.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}
