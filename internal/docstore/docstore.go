// Package docstore holds the server-side registry of document records for the
// lifetime of the process. Records are created by the submission handlers and
// mutated only by lifecycle events, through the same merge the clients use.
package docstore

import (
	"fmt"
	"sync"

	"github.com/docpolish/docpolish/internal/document"
)

// Store is a mutex-guarded keyed collection of document records.
type Store struct {
	mu   sync.RWMutex
	docs map[string]document.Record
}

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[string]document.Record)}
}

// Create inserts a fresh record. The submission flow mints UUIDs, so a
// duplicate id is a programming error, not a runtime condition.
func (s *Store) Create(rec document.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[rec.ID]; ok {
		return fmt.Errorf("document %s already exists", rec.ID)
	}
	s.docs[rec.ID] = rec
	return nil
}

// ApplyEvent merges ev into the matching record. Events for unknown ids are
// discarded: the submission that minted the id always registers the record
// before the pipeline can emit for it.
func (s *Store) ApplyEvent(ev document.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[ev.DocumentID]
	if !ok {
		return
	}
	s.docs[ev.DocumentID] = document.Merge(rec, ev)
}

// Get returns the record for id.
func (s *Store) Get(id string) (document.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[id]
	return rec, ok
}

// List returns a snapshot of all records in unspecified order. Callers apply
// their own sort.
func (s *Store) List() []document.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]document.Record, 0, len(s.docs))
	for _, rec := range s.docs {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of tracked documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
