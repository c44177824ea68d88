// Command worker runs the claim-process-commit loop that drives queued
// runs through the pipeline, grounded on cmd/tarsy/main.go's flag +
// godotenv + config.Initialize bootstrap idiom, generalized from one HTTP
// process to a worker pool process with no HTTP surface of its own.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/researchops/runcore/internal/config"
	"github.com/researchops/runcore/internal/connectors"
	"github.com/researchops/runcore/internal/database"
	"github.com/researchops/runcore/internal/llm"
	"github.com/researchops/runcore/internal/llm/anthropic"
	"github.com/researchops/runcore/internal/model"
	"github.com/researchops/runcore/internal/pipeline"
	"github.com/researchops/runcore/internal/queue"
	"github.com/researchops/runcore/internal/runstate"
	"github.com/researchops/runcore/internal/stages/evaluator"
	"github.com/researchops/runcore/internal/stages/evidencepack"
	"github.com/researchops/runcore/internal/stages/exporter"
	"github.com/researchops/runcore/internal/stages/outline"
	"github.com/researchops/runcore/internal/stages/repair"
	"github.com/researchops/runcore/internal/stages/retrieve"
	"github.com/researchops/runcore/internal/stages/writer"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configFile := flag.String("config", getEnv("CONFIG_FILE", "./config/runcore.yaml"), "Path to configuration YAML file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()

	sink := runstate.NewPoolEventSink(dbClient.Pool)
	runStore := runstate.NewRunStore(sink)

	var client llm.Client
	if cfg.LLM.Provider == "disabled" {
		client = disabledClient{}
	} else {
		anthropicClient, err := anthropic.NewClient(anthropic.Config{
			Model:            cfg.LLM.Model,
			DefaultMaxTokens: cfg.LLM.MaxTokens,
		})
		if err != nil {
			log.Fatalf("failed to configure LLM client: %v", err)
		}
		client = anthropicClient
	}

	embedder := llm.NewNoopEmbedder(1536)

	// No live academic-source catalog client is wired here: spec.md §1
	// keeps external connectors out of scope, specified only as the
	// connectors.SourceConnector interface. Deployments that have one wrap
	// it in connectors.NewRateLimited and add it to this slice.
	sourceConnectors := []connectors.SourceConnector{
		connectors.NewNopConnector("default"),
	}

	stages := map[string]pipeline.Stage{
		model.StageRetrieve:     retrieve.New(sink, client, embedder, sourceConnectors),
		model.StageEvidencePack: evidencepack.New(sink, embedder),
		model.StageOutline:      outline.New(sink, client),
		model.StageDraft:        writer.New(sink, client),
		model.StageEvaluate:     evaluator.New(sink, client),
		model.StageRepair:       repair.New(sink, client),
		model.StageExport:       exporter.New(sink),
	}

	coordinator := pipeline.NewCoordinator(dbClient.Pool, runStore, sink, stages)
	pool := queue.NewWorkerPool(dbClient.Pool, coordinator, cfg.Queue)

	slog.Info("worker pool starting", "worker_count", cfg.Queue.WorkerCount)
	pool.Start(ctx)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining workers")
	pool.Stop()
}

// disabledClient implements llm.Client for LLM_PROVIDER=disabled
// deployments (e.g. CI, local development without credentials): every call
// fails with llm.ErrNotConfigured rather than silently returning empty
// text, matching original_source's get_llm_client "unavailable" outcome
// that every node treats as fatal.
type disabledClient struct{}

func (disabledClient) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	return llm.Response{}, &llm.Error{Err: llm.ErrNotConfigured}
}

var _ llm.Client = disabledClient{}
