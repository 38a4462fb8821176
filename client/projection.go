package client

import (
	"sort"
	"time"

	"github.com/docpolish/docpolish/internal/document"
)

// ListItem is one row of the document list view.
type ListItem struct {
	ID        string
	Filename  string
	Source    document.Source
	Status    document.Status
	Progress  int
	CreatedAt time.Time
}

// ListProjection derives the list view from the store: every tracked document,
// newest first. It never mutates the store.
func ListProjection(s *Store) []ListItem {
	docs := s.Documents()
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	out := make([]ListItem, len(docs))
	for i, rec := range docs {
		out[i] = ListItem{
			ID:        rec.ID,
			Filename:  rec.Filename,
			Source:    rec.Source,
			Status:    rec.Status,
			Progress:  rec.Progress,
			CreatedAt: rec.CreatedAt,
		}
	}
	return out
}

// Detail is the detail view of one document.
type Detail struct {
	ID           string
	Filename     string
	Source       document.Source
	SourceURL    string
	Status       document.Status
	Progress     int
	OriginalText string
	ImprovedText string
	ErrorMessage string
	Model        string
	CompletedAt  *time.Time
}

// DetailProjection derives the detail view for the focused document. The
// second return is false when nothing is focused or the focused id is not
// tracked.
func DetailProjection(s *Store) (Detail, bool) {
	rec, ok := s.Focused()
	if !ok {
		return Detail{}, false
	}
	return Detail{
		ID:           rec.ID,
		Filename:     rec.Filename,
		Source:       rec.Source,
		SourceURL:    rec.SourceURL,
		Status:       rec.Status,
		Progress:     rec.Progress,
		OriginalText: rec.OriginalText,
		ImprovedText: rec.ImprovedText,
		ErrorMessage: rec.ErrorMessage,
		Model:        rec.Model,
		CompletedAt:  rec.CompletedAt,
	}, true
}
