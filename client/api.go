package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docpolish/docpolish/internal/document"
)

// Submission is the server's response to either submission endpoint. It
// carries everything needed to register the initial record in the store.
type Submission struct {
	DocumentID string          `json:"document_id"`
	Filename   string          `json:"filename"`
	Status     document.Status `json:"status"`
	Message    string          `json:"message"`
	SourceURL  string          `json:"source_url,omitempty"`
}

// Record converts the submission response into the initial document record.
func (s Submission) Record() document.Record {
	source := document.SourceUpload
	if s.SourceURL != "" {
		source = document.SourceURL
	}
	return document.Record{
		ID:        s.DocumentID,
		Filename:  s.Filename,
		Source:    source,
		SourceURL: s.SourceURL,
		Status:    s.Status,
		CreatedAt: time.Now().UTC(),
	}
}

// API is an HTTP client for the document service.
type API struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPI creates a client for the service at baseURL, for example
// http://localhost:5000.
func NewAPI(baseURL string) *API {
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// UploadFile submits the file at path for rewriting.
func (a *API) UploadFile(ctx context.Context, path string) (Submission, error) {
	f, err := os.Open(path)
	if err != nil {
		return Submission{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Submission{}, fmt.Errorf("build form: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return Submission{}, fmt.Errorf("read file: %w", err)
	}
	if err := w.Close(); err != nil {
		return Submission{}, fmt.Errorf("build form: %w", err)
	}

	var out Submission
	if err := a.post(ctx, "/api/documents/upload", w.FormDataContentType(), &buf, &out); err != nil {
		return Submission{}, err
	}
	return out, nil
}

// IngestURL submits a URL for ingestion and rewriting.
func (a *API) IngestURL(ctx context.Context, url string) (Submission, error) {
	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return Submission{}, fmt.Errorf("marshal request: %w", err)
	}
	var out Submission
	if err := a.post(ctx, "/api/documents/ingest-url", "application/json", bytes.NewReader(body), &out); err != nil {
		return Submission{}, err
	}
	return out, nil
}

// ListDocuments fetches the current server-side document collection, used to
// seed the store on startup or after a reconnect.
func (a *API) ListDocuments(ctx context.Context) ([]document.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/documents", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out struct {
		Documents []document.Record `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Documents, nil
}

func (a *API) post(ctx context.Context, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError extracts the unified {"error": ...} body the server returns on
// every failure.
func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("%s (status %d)", body.Error, resp.StatusCode)
	}
	return fmt.Errorf("request failed: status %d", resp.StatusCode)
}
