package session

import (
	"sort"
	"sync"
)

// Store caches the last-known record per session so that snapshot
// broadcasts and HTTP reads don't have to touch the OS source. Records
// are copied on the way in and out; callers can mutate what they get back.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*Record),
	}
}

func (s *Store) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// GetAll returns copies of all cached records, sorted by session ID.
func (s *Store) GetAll() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		result = append(result, r.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) Update(r *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r.Clone()
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// PlayingCount returns the number of cached sessions currently playing.
func (s *Store) PlayingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.records {
		if r.Playing() {
			count++
		}
	}
	return count
}

// UpdateAndNotify stores the record and runs notify while still holding the
// write lock, so readers cannot observe the new record before the
// notification (e.g. a broadcast enqueue) has been issued.
func (s *Store) UpdateAndNotify(r *Record, notify func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r.Clone()
	if notify != nil {
		notify()
	}
}

// RemoveAndNotify removes the record and runs notify under the same write
// lock, mirroring UpdateAndNotify.
func (s *Store) RemoveAndNotify(id string, notify func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	if notify != nil {
		notify()
	}
}

// ReplaceAll swaps the cache contents for the given records. Used when a
// fresh enumeration supersedes everything previously cached.
func (s *Store) ReplaceAll(records []*Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Record, len(records))
	for _, r := range records {
		s.records[r.ID] = r.Clone()
	}
}
