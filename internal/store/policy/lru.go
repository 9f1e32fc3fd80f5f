package policy

import (
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// LRUPolicy implements the Least Recently Used (LRU) eviction strategy.
// The underlying list is unbounded; capacity is enforced in bytes by the
// store, which asks for victims explicitly.
type LRUPolicy struct {
	order *simplelru.LRU[string, struct{}]
}

// NewLRU creates a new LRU policy instance.
func NewLRU() *LRUPolicy {
	order, err := simplelru.NewLRU[string, struct{}](math.MaxInt, nil)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &LRUPolicy{order: order}
}

func (p *LRUPolicy) OnAccess(key string) {
	p.order.Get(key)
}

func (p *LRUPolicy) OnAdd(key string) {
	// Add promotes an existing key to most recent.
	p.order.Add(key, struct{}{})
}

func (p *LRUPolicy) OnRemove(key string) {
	p.order.Remove(key)
}

func (p *LRUPolicy) SelectVictim() string {
	key, _, ok := p.order.GetOldest()
	if !ok {
		return ""
	}
	return key
}

func (p *LRUPolicy) Len() int {
	return p.order.Len()
}

// Keys returns the tracked keys from least to most recently used.
func (p *LRUPolicy) Keys() []string {
	return p.order.Keys()
}
