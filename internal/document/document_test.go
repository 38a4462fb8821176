package document

import (
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func newRecord() Record {
	return Record{
		ID:        "d1",
		Filename:  "report.txt",
		Source:    SourceUpload,
		Status:    StatusSubmitted,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMergeProgressMonotonic(t *testing.T) {
	rec := newRecord()

	rec = Merge(rec, Event{DocumentID: "d1", Status: StatusProcessing, Progress: intp(40)})
	if rec.Status != StatusProcessing || rec.Progress != 40 {
		t.Fatalf("expected processing/40, got %s/%d", rec.Status, rec.Progress)
	}

	// stale progress is a no-op for the field
	rec = Merge(rec, Event{DocumentID: "d1", Status: StatusProcessing, Progress: intp(20)})
	if rec.Progress != 40 {
		t.Fatalf("progress regressed to %d", rec.Progress)
	}
}

func TestMergeProgressOrderIndependent(t *testing.T) {
	e1 := Event{DocumentID: "d1", Status: StatusProcessing, Progress: intp(30)}
	e2 := Event{DocumentID: "d1", Status: StatusProcessing, Progress: intp(70)}

	a := Merge(Merge(newRecord(), e1), e2)
	b := Merge(Merge(newRecord(), e2), e1)
	if a.Progress != b.Progress || a.Progress != 70 {
		t.Fatalf("order dependent result: %d vs %d", a.Progress, b.Progress)
	}
}

func TestMergeIdempotent(t *testing.T) {
	ev := Event{DocumentID: "d1", Status: StatusProcessing, Progress: intp(55)}
	once := Merge(newRecord(), ev)
	twice := Merge(once, ev)
	if once != twice {
		t.Fatalf("merge not idempotent: %+v vs %+v", once, twice)
	}
}

func TestMergeTerminalSticky(t *testing.T) {
	rec := Merge(newRecord(), Event{DocumentID: "d1", Status: StatusCompleted, ImprovedText: "better"})
	if rec.Status != StatusCompleted || rec.ImprovedText != "better" || rec.Progress != 100 {
		t.Fatalf("unexpected completed record: %+v", rec)
	}

	after := Merge(rec, Event{DocumentID: "d1", Status: StatusProcessing, Progress: intp(10)})
	if after != rec {
		t.Fatalf("terminal record mutated: %+v", after)
	}
	after = Merge(rec, Event{DocumentID: "d1", Status: StatusError, Error: "boom"})
	if after.Status != StatusCompleted || after.ErrorMessage != "" {
		t.Fatalf("terminal record accepted error transition: %+v", after)
	}
}

func TestMergeErrorTerminal(t *testing.T) {
	rec := Merge(newRecord(), Event{DocumentID: "d1", Status: StatusProcessing, Progress: intp(10)})
	rec = Merge(rec, Event{DocumentID: "d1", Status: StatusError, Error: "llm unreachable"})
	if rec.Status != StatusError || rec.ErrorMessage != "llm unreachable" {
		t.Fatalf("unexpected error record: %+v", rec)
	}
	after := Merge(rec, Event{DocumentID: "d1", Status: StatusCompleted, ImprovedText: "late"})
	if after.Status != StatusError || after.ImprovedText != "" {
		t.Fatalf("error record accepted completion: %+v", after)
	}
}

func TestMergeOmittedStatusKeepsCurrent(t *testing.T) {
	rec := Merge(newRecord(), Event{DocumentID: "d1", Status: StatusProcessing, Progress: intp(10)})
	rec = Merge(rec, Event{DocumentID: "d1", Progress: intp(60)})
	if rec.Status != StatusProcessing || rec.Progress != 60 {
		t.Fatalf("expected processing/60, got %s/%d", rec.Status, rec.Progress)
	}
}

func TestMergeIgnoresLateSubmittedStatus(t *testing.T) {
	rec := Merge(newRecord(), Event{DocumentID: "d1", Status: StatusProcessing, Progress: intp(40)})

	// a redelivered initial event must not drag the record back
	rec = Merge(rec, Event{DocumentID: "d1", Status: StatusSubmitted})
	if rec.Status != StatusProcessing || rec.Progress != 40 {
		t.Fatalf("status regressed: %s/%d", rec.Status, rec.Progress)
	}

	// other fields on such an event still apply
	rec = Merge(rec, Event{DocumentID: "d1", Status: StatusSubmitted, Progress: intp(60)})
	if rec.Status != StatusProcessing || rec.Progress != 60 {
		t.Fatalf("expected processing/60, got %s/%d", rec.Status, rec.Progress)
	}
}

func TestMergeProgressClamped(t *testing.T) {
	rec := Merge(newRecord(), Event{DocumentID: "d1", Status: StatusProcessing, Progress: intp(250)})
	if rec.Progress != 100 {
		t.Fatalf("expected clamp to 100, got %d", rec.Progress)
	}
}

func TestStatusTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusSubmitted:  false,
		StatusProcessing: false,
		StatusCompleted:  true,
		StatusError:      true,
	}
	for s, want := range cases {
		if s.Terminal() != want {
			t.Fatalf("Terminal(%s) = %v, want %v", s, !want, want)
		}
	}
}
