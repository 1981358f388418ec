package shop

import (
	"log"
	"sync"
	"time"
)

// Registry hands out one live counter per shop and reaps counters
// that have gone idle.
type Registry struct {
	mu       sync.Mutex
	counters map[string]*Counter
	deps     Deps
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		deps:     deps,
	}
}

// Counter returns the live counter for shopID, starting one if needed.
func (r *Registry) Counter(shopID string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[shopID]; ok && !c.IsClosed() {
		return c
	}
	c := newCounter(shopID, r.deps)
	r.counters[shopID] = c
	return c
}

// Drop stops and forgets the counter for shopID, if any.
func (r *Registry) Drop(shopID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[shopID]; ok {
		c.Stop()
		delete(r.counters, shopID)
	}
}

// ReapIdle stops counters with no traffic for ttl and reports how
// many were reaped.
func (r *Registry) ReapIdle(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	reaped := 0
	for id, c := range r.counters {
		if c.IsIdleFor(ttl) {
			c.Stop()
			delete(r.counters, id)
			reaped++
		}
	}
	if reaped > 0 {
		log.Printf("[Shop] reaped %d idle counters", reaped)
	}
	return reaped
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.counters {
		c.Stop()
		delete(r.counters, id)
	}
}
