// Package server exposes the HTTP API and the websocket push endpoint.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docpolish/docpolish/config"
	"github.com/docpolish/docpolish/internal/docstore"
	"github.com/docpolish/docpolish/internal/events"
	"github.com/docpolish/docpolish/internal/extract"
	"github.com/docpolish/docpolish/internal/pipeline"
	"github.com/docpolish/docpolish/provider"
)

// Server wires the HTTP handlers to the store, pipeline and event bus.
type Server struct {
	echo    *echo.Echo
	logger  *log.Logger
	cfg     *config.Config
	store   *docstore.Store
	proc    *pipeline.Processor
	fetcher *extract.Fetcher
	llm     provider.Provider
	hub     *Hub

	modelMu sync.RWMutex
	model   string
}

// New builds the server. All dependencies are injected so tests can
// instantiate isolated instances.
func New(cfg *config.Config, logger *log.Logger, store *docstore.Store, proc *pipeline.Processor, bus events.Bus, llm provider.Provider) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[SERVER] ", log.LstdFlags)
	}

	s := &Server{
		logger:  logger,
		cfg:     cfg,
		store:   store,
		proc:    proc,
		fetcher: extract.NewFetcher(cfg.Ingest.FetchTimeout, cfg.Ingest.UserAgent, cfg.Ingest.MaxBodyBytes),
		llm:     llm,
		hub:     NewHub(logger),
		model:   cfg.LLM.Model,
	}
	// the hub is just another bus subscriber; redelivered or reordered
	// envelopes are harmless because clients merge idempotently
	bus.Subscribe(s.hub.Broadcast)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/ws", s.serveWS)

	api := e.Group("/api")
	api.GET("/health", s.health)
	api.POST("/documents/upload", s.upload)
	api.POST("/documents/ingest-url", s.ingestURL)
	api.GET("/documents", s.listDocuments)
	api.GET("/documents/:id", s.getDocument)
	api.GET("/documents/:id/result", s.getResult)
	api.GET("/models", s.listModels)
	api.POST("/models/load", s.loadModel)
	api.POST("/models/auto-load", s.autoLoadModel)

	s.echo = e
	return s
}

// Run starts the listener and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", s.cfg.General.Listen)
		errCh <- s.echo.Start(s.cfg.General.Listen)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.Close()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) currentModel() string {
	s.modelMu.RLock()
	defer s.modelMu.RUnlock()
	return s.model
}

func (s *Server) setCurrentModel(name string) {
	s.modelMu.Lock()
	s.model = name
	s.modelMu.Unlock()
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"llm_service_url": s.cfg.LLM.BaseURL,
		"model_name":      s.currentModel(),
	})
}
