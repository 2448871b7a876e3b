package dedup

import (
	"context"
	"sync"
)

// EvictionPolicy decides what happens when a MemoryCache is full
type EvictionPolicy int

const (
	// ResetOnOverflow clears the whole set before inserting once it holds more
	// than capacity keys
	ResetOnOverflow EvictionPolicy = iota
	// DropOldest evicts the single oldest key
	DropOldest
)

// ParsePolicy reads a configured policy name, "reset" or "drop_oldest"
func ParsePolicy(name string) (EvictionPolicy, bool) {
	switch name {
	case "", "reset":
		return ResetOnOverflow, true
	case "drop_oldest":
		return DropOldest, true
	}
	return ResetOnOverflow, false
}

// DefaultCapacity bounds the in-memory set
const DefaultCapacity = 1000

// MemoryCache is a process-local Cache. It is not shared across instances.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	policy   EvictionPolicy
	keys     map[string]struct{}
	order    []string // insertion order, only kept for DropOldest
}

// NewMemoryCache returns a bounded cache. ResetOnOverflow holds up to
// capacity+1 keys, DropOldest exactly capacity.
func NewMemoryCache(capacity int, policy EvictionPolicy) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryCache{
		capacity: capacity,
		policy:   policy,
		keys:     make(map[string]struct{}, capacity+1),
	}
}

func (c *MemoryCache) Add(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.keys[key]; ok {
		return false, nil
	}

	switch {
	case c.policy == DropOldest && len(c.keys) >= c.capacity:
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.keys, oldest)
	case c.policy != DropOldest && len(c.keys) > c.capacity:
		c.keys = make(map[string]struct{}, c.capacity+1)
	}

	c.keys[key] = struct{}{}
	if c.policy == DropOldest {
		c.order = append(c.order, key)
	}
	return true, nil
}

// Len returns the number of keys held
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}
