// Package provider abstracts the model inference service behind an interface
// so the pipeline and handlers never talk to a concrete API directly.
package provider

import (
	"context"
	"errors"
	"time"

	ollama_provider "github.com/docpolish/docpolish/provider/ollama"
)

// Client represents the supported inference backends.
type Client string

const (
	Ollama Client = "ollama"
)

// ModelInfo describes one model known to the inference service.
type ModelInfo = ollama_provider.ModelInfo

// GenerateOptions tune a single completion request.
type GenerateOptions = ollama_provider.GenerateOptions

// Provider is the interface all inference implementations must satisfy.
type Provider interface {
	// Generate runs a single non-streaming completion.
	Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error)
	// ListModels returns the models currently available on the service.
	ListModels(ctx context.Context) ([]ModelInfo, error)
	// Pull downloads a model by name so it can serve completions.
	Pull(ctx context.Context, name string) error
}

// Options configures a provider constructed by NewProvider.
type Options struct {
	BaseURL         string
	GenerateTimeout time.Duration
	ListTimeout     time.Duration
	PullTimeout     time.Duration
}

// NewProvider creates an inference client for the requested backend.
func NewProvider(client Client, opts Options) (Provider, error) {
	switch client {
	case Ollama:
		return ollama_provider.NewClient(opts.BaseURL, opts.GenerateTimeout, opts.ListTimeout, opts.PullTimeout), nil
	default:
		return nil, errors.New("unsupported inference provider")
	}
}
