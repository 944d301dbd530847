package instrument

import (
	"fmt"
	"sync"
)

// AppendFunc is notified after every append.
type AppendFunc func(sink string, obs Observation)

// Store is the append-only observation log of one environment. The sink set
// is fixed at construction.
type Store struct {
	mu        sync.RWMutex
	sinks     []string
	entries   map[string][]Observation
	listeners []AppendFunc
}

// NewStore creates a store accepting exactly the given sinks.
func NewStore(sinks []string) *Store {
	s := &Store{
		sinks:   append([]string(nil), sinks...),
		entries: make(map[string][]Observation, len(sinks)),
	}
	for _, sink := range sinks {
		s.entries[sink] = []Observation{}
	}
	return s
}

// Append adds obs to the end of sink's sequence. No lock is held while
// listeners run, so a listener may append again.
func (s *Store) Append(sink string, obs Observation) error {
	s.mu.Lock()
	seq, ok := s.entries[sink]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSink, sink)
	}
	s.entries[sink] = append(seq, obs)
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(sink, obs)
	}
	return nil
}

// OnAppend registers fn to run after each append.
func (s *Store) OnAppend(fn AppendFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners[:len(s.listeners):len(s.listeners)], fn)
}

// Get returns a copy of sink's observations, or nil for an unknown sink.
func (s *Store) Get(sink string) []Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq, ok := s.entries[sink]
	if !ok {
		return nil
	}
	out := make([]Observation, len(seq))
	for i, obs := range seq {
		out[i] = obs.clone()
	}
	return out
}

// Has reports whether sink is configured.
func (s *Store) Has(sink string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[sink]
	return ok
}

// Len returns the number of observations recorded for sink.
func (s *Store) Len(sink string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[sink])
}

// Total returns the number of observations across all sinks.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, seq := range s.entries {
		n += len(seq)
	}
	return n
}

// Sinks returns the configured sinks in catalogue order.
func (s *Store) Sinks() []string {
	return append([]string(nil), s.sinks...)
}

// Snapshot deep-copies the whole log.
func (s *Store) Snapshot() map[string][]Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]Observation, len(s.entries))
	for sink, seq := range s.entries {
		cp := make([]Observation, len(seq))
		for i, obs := range seq {
			cp[i] = obs.clone()
		}
		out[sink] = cp
	}
	return out
}
