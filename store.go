package taskweave

import "sync"

// ResultStore maps tool names to their most recent output. One store belongs
// to one orchestrator; concurrent runs must use separate stores.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]Result
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]Result)}
}

// Get returns the recorded output of a tool.
func (s *ResultStore) Get(name string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[name]
	return r, ok
}

// Set records a tool's output. Last write wins.
func (s *ResultStore) Set(name string, r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[name] = r
}

// Clear drops every recorded output.
func (s *ResultStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]Result)
}

// Len returns the number of recorded outputs.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Snapshot returns a shallow copy of the store contents.
func (s *ResultStore) Snapshot() map[string]Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Result, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}
