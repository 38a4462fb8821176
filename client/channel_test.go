package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/docpolish/docpolish/internal/document"
)

// fakePushServer accepts one websocket connection, sends the connected ack,
// then replays the given frames.
func fakePushServer(t *testing.T, frames []frame) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		if err := conn.WriteJSON(frame{Type: "connected", Message: "ok"}); err != nil {
			return
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestEventChannelFeedsStore(t *testing.T) {
	p40, p20 := 40, 20
	frames := []frame{
		{Type: "document_update", EventID: "e1", Event: document.Event{DocumentID: "d1", Status: document.StatusProcessing, Progress: &p40}},
		// reordered duplicate with lower progress, must not regress
		{Type: "document_update", EventID: "e0", Event: document.Event{DocumentID: "d1", Status: document.StatusProcessing, Progress: &p20}},
		{Type: "document_update", EventID: "e2", Event: document.Event{DocumentID: "d1", Status: document.StatusCompleted, ImprovedText: "polished"}},
	}
	ts := fakePushServer(t, frames)
	defer ts.Close()

	store := NewStore()
	if err := store.Create(document.Record{ID: "d1", Filename: "a.txt", Status: document.StatusSubmitted}); err != nil {
		t.Fatalf("create: %v", err)
	}

	done := make(chan struct{})
	store.Subscribe(func() {
		if rec, ok := store.Get("d1"); ok && rec.Status.Terminal() {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := NewEventChannel("ws"+strings.TrimPrefix(ts.URL, "http"), store, nil)
	go ch.Run(ctx)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		rec, _ := store.Get("d1")
		t.Fatalf("store never converged, last state %+v", rec)
	}

	rec, _ := store.Get("d1")
	if rec.Status != document.StatusCompleted || rec.ImprovedText != "polished" || rec.Progress != 100 {
		t.Fatalf("final record: %+v", rec)
	}
}

func TestConsumeReportsDelivery(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	// sends the ack, then drops the connection
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn.WriteJSON(frame{Type: "connected", Message: "ok"})
		conn.Close()
	}))
	defer ts.Close()

	ch := NewEventChannel("ws"+strings.TrimPrefix(ts.URL, "http"), NewStore(), nil)
	delivered, err := ch.consume(context.Background())
	if err == nil {
		t.Fatalf("expected read error after server close")
	}
	if !delivered {
		t.Fatalf("session that delivered a frame not reported; backoff would keep growing")
	}

	// a failed dial reports no delivery
	ts.Close()
	delivered, err = ch.consume(context.Background())
	if err == nil || delivered {
		t.Fatalf("dead server reported delivery: delivered=%v err=%v", delivered, err)
	}
}

func TestEventChannelStopsOnCancel(t *testing.T) {
	ts := fakePushServer(t, nil)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := NewEventChannel("ws"+strings.TrimPrefix(ts.URL, "http"), NewStore(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- ch.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestAPIUploadAndErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/documents/upload":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			_, fh, err := r.FormFile("file")
			if err != nil {
				t.Errorf("form file: %v", err)
				return
			}
			json.NewEncoder(w).Encode(Submission{
				DocumentID: "d1",
				Filename:   fh.Filename,
				Status:     document.StatusSubmitted,
				Message:    "Document uploaded and processing started",
			})
		case "/api/documents/ingest-url":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid url format: must start with http:// or https://"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	api := NewAPI(ts.URL)

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("raw text"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	sub, err := api.UploadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if sub.DocumentID != "d1" || sub.Filename != "notes.txt" {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	rec := sub.Record()
	if rec.Source != document.SourceUpload || rec.Status != document.StatusSubmitted {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// failed submission surfaces the server's error and creates nothing
	store := NewStore()
	if _, err := api.IngestURL(context.Background(), "ftp://example.com"); err == nil {
		t.Fatalf("expected error for rejected url")
	} else if !strings.Contains(err.Error(), "invalid url format") {
		t.Fatalf("error lost server message: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("record created for failed submission")
	}
}
