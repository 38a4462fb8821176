package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/docpolish/docpolish/internal/document"
	"github.com/docpolish/docpolish/internal/extract"
)

// SubmissionResponse is returned by both submission endpoints.
type SubmissionResponse struct {
	DocumentID string          `json:"document_id"`
	Filename   string          `json:"filename"`
	Status     document.Status `json:"status"`
	Message    string          `json:"message"`
	SourceURL  string          `json:"source_url,omitempty"`
}

// ResultResponse is returned once a document has completed.
type ResultResponse struct {
	DocumentID   string     `json:"document_id"`
	OriginalText string     `json:"original_text"`
	ImprovedText string     `json:"improved_text"`
	Filename     string     `json:"filename"`
	Model        string     `json:"model,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func (s *Server) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file provided")
	}
	if fh.Filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "No file selected")
	}
	if !extract.AllowedExtension(fh.Filename, s.cfg.Uploads.AllowedExtensions) {
		return echo.NewHTTPError(http.StatusBadRequest, "File type not allowed")
	}
	if fh.Size > s.cfg.Uploads.MaxBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File exceeds maximum size")
	}

	id := uuid.NewString()
	filename := extract.SanitizeFilename(fh.Filename)
	path := filepath.Join(s.cfg.Uploads.Dir, fmt.Sprintf("%s_%s", id, filename))
	if err := s.saveUpload(fh, path); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	originalText, err := extract.FromFile(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec := document.Record{
		ID:           id,
		Filename:     filename,
		Source:       document.SourceUpload,
		Status:       document.StatusSubmitted,
		OriginalText: originalText,
		Model:        s.currentModel(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(rec); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.proc.Submit(c.Request().Context(), rec)

	s.logger.Printf("document %s: uploaded %s (%d bytes)", id, filename, fh.Size)
	return c.JSON(http.StatusOK, SubmissionResponse{
		DocumentID: id,
		Filename:   filename,
		Status:     rec.Status,
		Message:    "Document uploaded and processing started",
	})
}

func (s *Server) saveUpload(fh *multipart.FileHeader, path string) error {
	if err := os.MkdirAll(s.cfg.Uploads.Dir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, io.LimitReader(src, s.cfg.Uploads.MaxBytes+1)); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (s *Server) ingestURL(c echo.Context) error {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "URL not provided")
	}
	if _, err := extract.ValidateURL(req.URL); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id := uuid.NewString()
	s.logger.Printf("document %s: ingesting %s", id, req.URL)

	originalText, err := s.fetcher.FromURL(c.Request().Context(), req.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec := document.Record{
		ID:           id,
		Filename:     fmt.Sprintf("url_document_%s.txt", id[:8]),
		Source:       document.SourceURL,
		SourceURL:    req.URL,
		Status:       document.StatusSubmitted,
		OriginalText: originalText,
		Model:        s.currentModel(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(rec); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.proc.Submit(c.Request().Context(), rec)

	return c.JSON(http.StatusOK, SubmissionResponse{
		DocumentID: id,
		Filename:   rec.Filename,
		Status:     rec.Status,
		Message:    "URL content ingested and processing started",
		SourceURL:  req.URL,
	})
}

func (s *Server) listDocuments(c echo.Context) error {
	docs := s.store.List()
	// newest first; ordering is a presentation concern, the store keeps none
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return c.JSON(http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) getDocument(c echo.Context) error {
	rec, ok := s.store.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Document not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) getResult(c echo.Context) error {
	rec, ok := s.store.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Document not found")
	}
	if rec.Status != document.StatusCompleted {
		return echo.NewHTTPError(http.StatusBadRequest, "Document processing not completed")
	}
	return c.JSON(http.StatusOK, ResultResponse{
		DocumentID:   rec.ID,
		OriginalText: rec.OriginalText,
		ImprovedText: rec.ImprovedText,
		Filename:     rec.Filename,
		Model:        rec.Model,
		CompletedAt:  rec.CompletedAt,
	})
}
