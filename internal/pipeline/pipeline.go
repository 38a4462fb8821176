// Package pipeline runs the asynchronous rewriting job for each submitted
// document and reports its lifecycle through the event bus. The processor is
// the single producer of lifecycle events per document; duplicates and
// reordering introduced by the transport are handled by the consumers' merge.
package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/docpolish/docpolish/internal/document"
	"github.com/docpolish/docpolish/internal/docstore"
	"github.com/docpolish/docpolish/internal/events"
	"github.com/docpolish/docpolish/provider"
)

const progressStarted = 10

// Options tune the processor.
type Options struct {
	Model         string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	MaxConcurrent int
}

// Processor owns the background rewriting jobs.
type Processor struct {
	logger *log.Logger
	store  *docstore.Store
	bus    events.Bus
	llm    provider.Provider
	opts   Options
	sem    chan struct{}
}

// NewProcessor constructs a Processor. MaxConcurrent bounds simultaneous
// inference jobs; local model servers serialise work anyway, so a small bound
// keeps queueing visible instead of timing out requests.
func NewProcessor(logger *log.Logger, store *docstore.Store, bus events.Bus, llm provider.Provider, opts Options) *Processor {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Processor{
		logger: logger,
		store:  store,
		bus:    bus,
		llm:    llm,
		opts:   opts,
		sem:    make(chan struct{}, opts.MaxConcurrent),
	}
}

// Submit schedules the rewriting job for rec and returns immediately. The
// record must already be registered in the store. The job detaches from the
// caller's cancellation: submission handlers return long before inference
// finishes, and a request context dies with its handler.
func (p *Processor) Submit(ctx context.Context, rec document.Record) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		p.process(ctx, rec)
	}()
}

func (p *Processor) process(ctx context.Context, rec document.Record) {
	// the record is annotated with the model active at submission time;
	// switching the active model later must not affect jobs in flight
	model := rec.Model
	if model == "" {
		model = p.opts.Model
	}
	p.logger.Printf("document %s: starting rewrite with model %s (%d chars)", rec.ID, model, len(rec.OriginalText))

	started := progressStarted
	p.emit(ctx, document.Event{
		DocumentID: rec.ID,
		Status:     document.StatusProcessing,
		Progress:   &started,
		Model:      model,
	})

	improved, err := p.llm.Generate(ctx, model, rewritePrompt(rec.OriginalText), provider.GenerateOptions{
		Temperature: p.opts.Temperature,
		TopP:        p.opts.TopP,
		NumPredict:  p.opts.MaxTokens,
	})
	// a completed record must carry a rewritten text; a blank generation is a
	// failure, not a result
	if err == nil && strings.TrimSpace(improved) == "" {
		err = errors.New("llm returned an empty response")
	}
	if err != nil {
		p.logger.Printf("document %s: rewrite failed: %v", rec.ID, err)
		p.emit(ctx, document.Event{
			DocumentID: rec.ID,
			Status:     document.StatusError,
			Error:      err.Error(),
		})
		return
	}

	done := 100
	now := time.Now().UTC()
	p.logger.Printf("document %s: rewrite complete (%d chars)", rec.ID, len(improved))
	p.emit(ctx, document.Event{
		DocumentID:   rec.ID,
		Status:       document.StatusCompleted,
		Progress:     &done,
		ImprovedText: improved,
		Model:        model,
		CompletedAt:  &now,
	})
}

// emit applies the event to the server-side store first, then publishes it so
// connected clients converge on the same record.
func (p *Processor) emit(ctx context.Context, ev document.Event) {
	p.store.ApplyEvent(ev)
	if err := p.bus.Publish(ctx, events.EventTypeDocumentUpdate, ev); err != nil {
		p.logger.Printf("warn: publish lifecycle event for %s: %v", ev.DocumentID, err)
	}
}
