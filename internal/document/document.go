// Package document defines the document lifecycle data model and the pure
// merge function that folds lifecycle events into a record. The merge is
// idempotent and monotonic so at-least-once, possibly reordered delivery
// never regresses observed state.
package document

import "time"

// Status is the lifecycle state of a tracked document.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further lifecycle transitions are accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Source describes how a document entered the system.
type Source string

const (
	SourceUpload Source = "upload"
	SourceURL    Source = "url"
)

// Record is the tracked state of one submitted document. ID, Filename,
// Source, SourceURL and CreatedAt are immutable after creation; the rest is
// mutated only through Merge.
type Record struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	Source       Source     `json:"source"`
	SourceURL    string     `json:"source_url,omitempty"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress"`
	OriginalText string     `json:"original_text,omitempty"`
	ImprovedText string     `json:"improved_text,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
	Model        string     `json:"model,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Event is a lifecycle event reporting a status or progress change for one
// document. Fields other than DocumentID and Status are optional and only
// meaningful for the status they accompany.
type Event struct {
	DocumentID   string     `json:"document_id"`
	Status       Status     `json:"status,omitempty"`
	Progress     *int       `json:"progress,omitempty"`
	ImprovedText string     `json:"improved_text,omitempty"`
	Error        string     `json:"error,omitempty"`
	Model        string     `json:"model,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Merge folds ev into rec and returns the updated record. It is a pure
// function: no I/O, no mutation of its inputs.
//
// Rules, in order:
//  1. events for a terminal record are discarded whole;
//  2. an absent status means "keep the current status", and status never
//     moves backward (submitted cannot replace processing);
//  3. progress only moves forward (stale or duplicate values are a no-op for
//     that field; other fields in the same event still apply);
//  4. improved_text applies only on the transition into completed,
//     error only on the transition into error.
//
// Applying the same event twice yields the same record as applying it once.
func Merge(rec Record, ev Event) Record {
	if rec.Status.Terminal() {
		return rec
	}

	next := ev.Status
	if next == "" || !next.Valid() {
		next = rec.Status
	}
	// a redelivered or late initial event must not pull a processing record
	// back to submitted; other fields it carries still apply
	if next == StatusSubmitted && rec.Status == StatusProcessing {
		next = rec.Status
	}
	rec.Status = next

	if ev.Progress != nil && *ev.Progress > rec.Progress {
		p := *ev.Progress
		if p > 100 {
			p = 100
		}
		rec.Progress = p
	}
	if ev.Model != "" {
		rec.Model = ev.Model
	}

	switch next {
	case StatusCompleted:
		if ev.ImprovedText != "" {
			rec.ImprovedText = ev.ImprovedText
		}
		rec.Progress = 100
		if ev.CompletedAt != nil {
			rec.CompletedAt = ev.CompletedAt
		}
	case StatusError:
		if ev.Error != "" {
			rec.ErrorMessage = ev.Error
		}
	}
	return rec
}
