package policy

// EvictionPolicy tracks recency for the image store and names the next
// victim. Implementations are not synchronized: the store drives them only
// while holding its own lock, so order and map contents change together.
type EvictionPolicy interface {
	// OnAccess is called when a resident key is read.
	OnAccess(key string)

	// OnAdd is called when a key is inserted or replaced.
	OnAdd(key string)

	// OnRemove is called when a key leaves the store for any reason.
	OnRemove(key string)

	// SelectVictim returns the key that should be evicted next.
	// Returns an empty string if no victim is available (e.g., empty store).
	SelectVictim() string

	// Len returns the number of tracked keys.
	Len() int
}
