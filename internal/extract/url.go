package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// Fetcher downloads a page and extracts its main text content.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBody    int64
}

// NewFetcher builds a Fetcher. maxBody caps the response body read; zero
// means 8 MiB.
func NewFetcher(timeout time.Duration, userAgent string, maxBody int64) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBody <= 0 {
		maxBody = 8 << 20
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		maxBody:    maxBody,
	}
}

// ValidateURL checks that raw is a well-formed absolute http(s) URL.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url format: must start with http:// or https://")
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url: missing host")
	}
	return u, nil
}

// FromURL fetches the page at raw and returns its readable text content.
func (f *Fetcher) FromURL(ctx context.Context, raw string) (string, error) {
	u, err := ValidateURL(raw)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to extract content from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to extract content from URL: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), u)
	if err != nil {
		// fall back to the raw body with tags stripped by readability's
		// failure mode being non-HTML content
		text := strings.TrimSpace(string(body))
		if text == "" {
			return "", fmt.Errorf("failed to extract content from URL: empty body")
		}
		return text, nil
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("failed to extract content from URL: no readable text")
	}
	return text, nil
}
