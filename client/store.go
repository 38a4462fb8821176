// Package client implements the consumer side of the document service: a
// state store that folds lifecycle events into document records, a websocket
// event channel feeding it, read-only view projections, and an HTTP client
// for the submission endpoints.
package client

import (
	"fmt"
	"sync"

	"github.com/docpolish/docpolish/internal/document"
)

// Store is an observable keyed collection of document records. All mutation
// goes through Create and ApplyEvent, both serialised by one mutex, so no
// update is ever partially applied. Views subscribe for change notifications
// and derive their own projections.
type Store struct {
	mu      sync.Mutex
	docs    map[string]document.Record
	focused string

	subs    map[int]func()
	nextSub int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		docs: make(map[string]document.Record),
		subs: make(map[int]func()),
	}
}

// Create registers a freshly submitted document. Submission responses mint
// fresh ids, so an existing id is a programming error.
func (s *Store) Create(rec document.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	if _, ok := s.docs[rec.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("document %s already exists", rec.ID)
	}
	s.docs[rec.ID] = rec
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs)
	return nil
}

// ApplyEvent merges one lifecycle event into the matching record. Events for
// unknown ids are discarded, and events against terminal records are no-ops
// inside the merge; neither case notifies subscribers.
func (s *Store) ApplyEvent(ev document.Event) {
	s.mu.Lock()
	rec, ok := s.docs[ev.DocumentID]
	if !ok {
		s.mu.Unlock()
		return
	}
	merged := document.Merge(rec, ev)
	if merged == rec {
		s.mu.Unlock()
		return
	}
	s.docs[ev.DocumentID] = merged
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs)
}

// Focus marks id as the currently focused document for the detail view.
// Focusing an id does not require the record to exist yet.
func (s *Store) Focus(id string) {
	s.mu.Lock()
	changed := s.focused != id
	s.focused = id
	subs := s.snapshotSubs()
	s.mu.Unlock()

	if changed {
		notify(subs)
	}
}

// Focused returns the focused record, if any.
func (s *Store) Focused() (document.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focused == "" {
		return document.Record{}, false
	}
	rec, ok := s.docs[s.focused]
	return rec, ok
}

// Get returns the record for id.
func (s *Store) Get(id string) (document.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[id]
	return rec, ok
}

// Documents returns a snapshot of all records in unspecified order; ordering
// is a projection concern.
func (s *Store) Documents() []document.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]document.Record, 0, len(s.docs))
	for _, rec := range s.docs {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of tracked documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Subscribe registers fn to run after every store change. The returned cancel
// removes the subscription and is safe to call more than once.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// snapshotSubs must be called with the mutex held. Callbacks run outside the
// lock so subscribers may read the store.
func (s *Store) snapshotSubs() []func() {
	out := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}
