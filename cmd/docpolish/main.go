package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/docpolish/docpolish/client"
	"github.com/docpolish/docpolish/config"
	"github.com/docpolish/docpolish/internal/docstore"
	"github.com/docpolish/docpolish/internal/events"
	"github.com/docpolish/docpolish/internal/pipeline"
	"github.com/docpolish/docpolish/internal/server"
	"github.com/docpolish/docpolish/provider"
)

func main() {
	root := &cobra.Command{Use: "docpolish", Short: "Document rewriting service"}

	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and document pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath)
		},
	}
	serve.Flags().StringVar(&cfgPath, "config", "", "path to config file (JSON)")

	var serverURL string
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Follow document lifecycle updates from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(serverURL)
		},
	}
	watch.Flags().StringVar(&serverURL, "server", "http://localhost:5000", "server base URL")

	submit := &cobra.Command{
		Use:   "submit [files...]",
		Short: "Upload files for rewriting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := client.NewAPI(serverURL)
			for _, path := range args {
				sub, err := api.UploadFile(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Printf("%s  %s  %s\n", sub.DocumentID, sub.Filename, sub.Status)
			}
			return nil
		},
	}
	submit.Flags().StringVar(&serverURL, "server", "http://localhost:5000", "server base URL")

	ingest := &cobra.Command{
		Use:   "ingest [url]",
		Short: "Submit a URL for ingestion and rewriting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := client.NewAPI(serverURL)
			sub, err := api.IngestURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s  %s\n", sub.DocumentID, sub.Filename, sub.Status)
			return nil
		},
	}
	ingest.Flags().StringVar(&serverURL, "server", "http://localhost:5000", "server base URL")

	root.AddCommand(serve, watch, submit, ingest)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cfgPath string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	logger := log.New(os.Stdout, "[DOCPOLISH] ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bus events.Bus
	switch cfg.Events.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rb, err := events.NewRedisBus(ctx, rdb, events.RedisBusConfig{
			Stream:       cfg.Events.Stream,
			Group:        cfg.Events.Group,
			Consumer:     cfg.Events.Consumer,
			MaxLenApprox: cfg.Events.MaxLenApprox,
		}, nil)
		if err != nil {
			return err
		}
		go func() {
			if err := rb.Run(ctx); err != nil {
				logger.Printf("event consumer stopped: %v", err)
			}
		}()
		bus = rb
	default:
		broker := events.NewBroker()
		defer broker.Close()
		bus = broker
	}

	llm, err := provider.NewProvider(provider.Ollama, provider.Options{
		BaseURL:         cfg.LLM.BaseURL,
		GenerateTimeout: cfg.LLM.GenerateTimeout,
		ListTimeout:     cfg.LLM.ListTimeout,
		PullTimeout:     cfg.LLM.PullTimeout,
	})
	if err != nil {
		return err
	}

	store := docstore.New()
	proc := pipeline.NewProcessor(nil, store, bus, llm, pipeline.Options{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
	})

	srv := server.New(cfg, logger, store, proc, bus, llm)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runWatch(serverURL string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := client.NewStore()
	api := client.NewAPI(serverURL)

	// seed from the server so documents submitted before we attached show up
	docs, err := api.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for _, rec := range docs {
		if err := store.Create(rec); err != nil {
			return err
		}
	}

	render := func() {
		items := client.ListProjection(store)
		fmt.Printf("\n%-38s %-24s %-10s %s\n", "ID", "FILENAME", "STATUS", "PROGRESS")
		for _, it := range items {
			fmt.Printf("%-38s %-24s %-10s %d%%\n", it.ID, it.Filename, it.Status, it.Progress)
		}
	}
	cancel := store.Subscribe(render)
	defer cancel()
	render()

	ch := client.NewEventChannel(wsURL(serverURL), store, nil)
	if err := ch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func wsURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	default:
		return "ws://" + base + "/ws"
	}
}
