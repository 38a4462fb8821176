package client

import (
	"testing"
	"time"

	"github.com/docpolish/docpolish/internal/document"
)

func intp(v int) *int { return &v }

func TestSubmitThenLifecycle(t *testing.T) {
	s := NewStore()
	if err := s.Create(document.Record{
		ID:        "d1",
		Filename:  "report.txt",
		Source:    document.SourceUpload,
		Status:    document.StatusSubmitted,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	s.ApplyEvent(document.Event{DocumentID: "d1", Status: document.StatusProcessing, Progress: intp(40)})
	rec, _ := s.Get("d1")
	if rec.Status != document.StatusProcessing || rec.Progress != 40 {
		t.Fatalf("after first event: %+v", rec)
	}

	// stale progress must not regress
	s.ApplyEvent(document.Event{DocumentID: "d1", Status: document.StatusProcessing, Progress: intp(20)})
	rec, _ = s.Get("d1")
	if rec.Progress != 40 {
		t.Fatalf("progress regressed to %d", rec.Progress)
	}

	s.ApplyEvent(document.Event{DocumentID: "d1", Status: document.StatusCompleted, ImprovedText: "polished"})
	rec, _ = s.Get("d1")
	if rec.Status != document.StatusCompleted || rec.ImprovedText != "polished" || rec.Progress != 100 {
		t.Fatalf("after completion: %+v", rec)
	}

	// terminal records ignore everything afterwards
	s.ApplyEvent(document.Event{DocumentID: "d1", Status: document.StatusProcessing, Progress: intp(50)})
	rec, _ = s.Get("d1")
	if rec.Status != document.StatusCompleted || rec.Progress != 100 || rec.ImprovedText != "polished" {
		t.Fatalf("terminal record changed: %+v", rec)
	}
}

func TestUnknownDocumentIsDiscarded(t *testing.T) {
	s := NewStore()
	notified := 0
	s.Subscribe(func() { notified++ })

	s.ApplyEvent(document.Event{DocumentID: "ghost", Status: document.StatusProcessing, Progress: intp(10)})
	if s.Len() != 0 {
		t.Fatalf("store changed by unknown id")
	}
	if notified != 0 {
		t.Fatalf("subscribers notified for a no-op")
	}
}

func TestDuplicateCreateFails(t *testing.T) {
	s := NewStore()
	rec := document.Record{ID: "d1", Filename: "a.txt", Status: document.StatusSubmitted}
	if err := s.Create(rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(rec); err == nil {
		t.Fatalf("duplicate create succeeded")
	}
}

func TestInterleavedDocumentsStayIndependent(t *testing.T) {
	s := NewStore()
	now := time.Now().UTC()
	for _, id := range []string{"d1", "d2"} {
		if err := s.Create(document.Record{ID: id, Filename: id + ".txt", Status: document.StatusSubmitted, CreatedAt: now}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	// d2 completes before d1 even starts processing
	s.ApplyEvent(document.Event{DocumentID: "d2", Status: document.StatusProcessing, Progress: intp(10)})
	s.ApplyEvent(document.Event{DocumentID: "d2", Status: document.StatusCompleted, ImprovedText: "second"})
	s.ApplyEvent(document.Event{DocumentID: "d1", Status: document.StatusProcessing, Progress: intp(10)})
	s.ApplyEvent(document.Event{DocumentID: "d1", Status: document.StatusCompleted, ImprovedText: "first"})

	d1, _ := s.Get("d1")
	d2, _ := s.Get("d2")
	if d1.ImprovedText != "first" || d2.ImprovedText != "second" {
		t.Fatalf("cross-talk between documents: d1=%+v d2=%+v", d1, d2)
	}
}

func TestSubscribeNotifyAndCancel(t *testing.T) {
	s := NewStore()
	count := 0
	cancel := s.Subscribe(func() { count++ })

	if err := s.Create(document.Record{ID: "d1", Filename: "a.txt", Status: document.StatusSubmitted}); err != nil {
		t.Fatalf("create: %v", err)
	}
	s.ApplyEvent(document.Event{DocumentID: "d1", Status: document.StatusProcessing, Progress: intp(10)})
	if count != 2 {
		t.Fatalf("expected 2 notifications got %d", count)
	}

	// duplicate event changes nothing, so no notification
	s.ApplyEvent(document.Event{DocumentID: "d1", Status: document.StatusProcessing, Progress: intp(10)})
	if count != 2 {
		t.Fatalf("notified for a no-op merge")
	}

	cancel()
	cancel() // safe to call twice
	s.ApplyEvent(document.Event{DocumentID: "d1", Status: document.StatusCompleted})
	if count != 2 {
		t.Fatalf("cancelled subscriber still notified")
	}
}

func TestSubscriberMayReadStore(t *testing.T) {
	s := NewStore()
	var seen document.Status
	s.Subscribe(func() {
		if rec, ok := s.Get("d1"); ok {
			seen = rec.Status
		}
	})
	if err := s.Create(document.Record{ID: "d1", Filename: "a.txt", Status: document.StatusSubmitted}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if seen != document.StatusSubmitted {
		t.Fatalf("subscriber read %q", seen)
	}
}

func TestProjections(t *testing.T) {
	s := NewStore()
	base := time.Now().UTC()
	for i, id := range []string{"old", "new"} {
		if err := s.Create(document.Record{
			ID:        id,
			Filename:  id + ".md",
			Source:    document.SourceUpload,
			Status:    document.StatusSubmitted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	list := ListProjection(s)
	if len(list) != 2 || list[0].ID != "new" || list[1].ID != "old" {
		t.Fatalf("list projection not newest first: %+v", list)
	}

	if _, ok := DetailProjection(s); ok {
		t.Fatalf("detail projection without focus")
	}
	s.Focus("old")
	detail, ok := DetailProjection(s)
	if !ok || detail.ID != "old" || detail.Filename != "old.md" {
		t.Fatalf("detail projection: %+v ok=%v", detail, ok)
	}

	s.Focus("missing")
	if _, ok := DetailProjection(s); ok {
		t.Fatalf("detail projection for untracked focus id")
	}
}
