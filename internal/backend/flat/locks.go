package flat

import "sync"

// lockRegistry hands out one RWMutex per index name so unrelated indices
// never contend. Mutations take the exclusive side around the whole
// load-apply-persist sequence; searches take the shared side, which gives
// them snapshot semantics: a search observes the state before or after a
// given upsert, never a partially replaced blob.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]*sync.RWMutex)}
}

// get returns the mutex for name, creating it on first use. Locks are never
// evicted: an entry is a few dozen bytes and index names are few.
func (r *lockRegistry) get(name string) *sync.RWMutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.RWMutex{}
		r.locks[name] = l
	}
	return l
}
