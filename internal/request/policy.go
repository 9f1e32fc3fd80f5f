package request

// MemoryPolicy is a bitmask controlling use of the memory cache.
type MemoryPolicy int

const (
	// MemoryNoCache skips the memory cache lookup.
	MemoryNoCache MemoryPolicy = 1 << iota
	// MemoryNoStore skips writing the decoded result to the memory cache.
	MemoryNoStore
)

// ShouldReadFromMemoryCache reports whether a lookup is allowed.
func (p MemoryPolicy) ShouldReadFromMemoryCache() bool { return p&MemoryNoCache == 0 }

// ShouldWriteToMemoryCache reports whether the result may be cached.
func (p MemoryPolicy) ShouldWriteToMemoryCache() bool { return p&MemoryNoStore == 0 }

// NetworkPolicy is a bitmask passed through to the fetch collaborator.
type NetworkPolicy int

const (
	NetworkNoCache NetworkPolicy = 1 << iota
	NetworkNoStore
	NetworkOffline
)

func (p NetworkPolicy) ShouldReadFromDiskCache() bool { return p&NetworkNoCache == 0 }

func (p NetworkPolicy) ShouldWriteToDiskCache() bool { return p&NetworkNoStore == 0 }

// IsOffline reports whether the request forbids network access. Offline
// requests are never replayed on connectivity changes.
func (p NetworkPolicy) IsOffline() bool { return p&NetworkOffline != 0 }

// Priority orders pending work in the dispatcher.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}
