package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/planqa/planqa/pkg/agent"
	"github.com/planqa/planqa/pkg/answer"
	"github.com/planqa/planqa/pkg/config"
	"github.com/planqa/planqa/pkg/embedders"
	"github.com/planqa/planqa/pkg/ingest"
	"github.com/planqa/planqa/pkg/knowledge"
	"github.com/planqa/planqa/pkg/llms"
	"github.com/planqa/planqa/pkg/observability"
	"github.com/planqa/planqa/pkg/orchestrator"
	"github.com/planqa/planqa/pkg/prompts"
	"github.com/planqa/planqa/pkg/retrieval"
	"github.com/planqa/planqa/pkg/server"
	"github.com/planqa/planqa/pkg/session"
	"github.com/planqa/planqa/pkg/tools"
	"github.com/planqa/planqa/pkg/utils"
)

// loadConfig loads the config file when given, otherwise runs with
// defaults.
func loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path == "" {
		slog.Info("No config file given, using defaults")
		return config.Default(), nil, nil
	}

	cfg, loader, err := config.LoadConfigFile(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, loader, nil
}

// backends holds the external clients shared by the commands.
type backends struct {
	store    *retrieval.QdrantStore
	embedder *embedders.OpenAIEmbedder
	provider *llms.OpenAIProvider
}

func connectBackends(cfg *config.Config) (*backends, error) {
	store, err := retrieval.NewQdrantStore(cfg.Qdrant)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	embedder, err := embedders.NewOpenAIEmbedder(cfg.Embedder)
	if err != nil {
		store.Close()
		return nil, err
	}

	provider, err := llms.NewOpenAIProvider(cfg.LLM)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &backends{store: store, embedder: embedder, provider: provider}, nil
}

func (b *backends) Close() {
	b.provider.Close()
	b.embedder.Close()
	b.store.Close()
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)."`
	Watch bool `help:"Watch config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	if _, err := observability.InitGlobalTracer(ctx, observability.TracerConfig{
		Enabled:      cfg.Observability.Tracing.Enabled,
		EndpointURL:  cfg.Observability.Tracing.EndpointURL,
		SamplingRate: cfg.Observability.Tracing.SamplingRate,
		ServiceName:  cfg.Observability.Tracing.ServiceName,
	}); err != nil {
		return err
	}
	metrics, err := observability.InitMetrics(ctx, observability.MetricsConfig{
		Enabled: cfg.Observability.Metrics.Enabled,
	})
	if err != nil {
		return err
	}
	observability.SetGlobalMetrics(metrics)

	b, err := connectBackends(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	engine := retrieval.NewEngine(b.store, b.embedder, cfg.Retrieval, nil)
	summaries := knowledge.NewService(cfg.Knowledge, b.store, b.provider, cfg.LLM.SummaryMaxTokens, nil)
	builder := prompts.NewBuilder(cfg.LLM.Model, 0)
	generator := answer.NewGenerator(b.provider, builder, summaries, nil)

	registry, err := tools.NewDefaultRegistry(engine, b.provider)
	if err != nil {
		return err
	}
	runner := agent.NewRunner(b.provider, registry, cfg.Agent, nil)

	orch := orchestrator.New(engine, generator, runner, session.NewManager(),
		cfg.Server.RequestDeadlineSeconds, nil)

	if exists, err := b.store.CollectionExists(ctx); err != nil {
		slog.Warn("Could not check index", "error", err)
	} else if !exists {
		slog.Warn("Regulation index missing, run build-index", "collection", cfg.Qdrant.Collection)
	}

	srv := server.New(cfg.Server, orch, summaries, b.store, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// BuildIndexCmd rebuilds the regulation index.
type BuildIndexCmd struct {
	Docs string `arg:"" help:"Directory with regulation documents (.pdf or .jsonl chunk records)." type:"path"`
}

func (c *BuildIndexCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	b, err := connectBackends(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	counter, err := utils.NewTokenCounter(cfg.LLM.Model)
	if err != nil {
		slog.Warn("Token counter unavailable, using character approximation", "error", err)
	}

	summaries := knowledge.NewService(cfg.Knowledge, b.store, b.provider, cfg.LLM.SummaryMaxTokens, nil)
	builder := ingest.NewBuilder(b.store, b.embedder, summaries, ingest.NewChunker(counter), nil)

	stats, err := builder.Build(ctx, c.Docs)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d chunks from %d documents in %s\n",
		stats.Chunks, stats.Documents, stats.Duration.Round(time.Second))
	return nil
}

// ValidateCmd validates the configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}

	cfg, loader, err := loadConfig(context.Background(), cli.Config)
	if err != nil {
		return err
	}
	defer loader.Close()

	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Println("Configuration is valid")
	return nil
}
