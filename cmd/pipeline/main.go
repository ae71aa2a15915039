package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bunka-lab/epstein-files/internal/util"
	"github.com/Bunka-lab/epstein-files/pkg/ai"
	oai "github.com/Bunka-lab/epstein-files/pkg/ai/ollama"
	gai "github.com/Bunka-lab/epstein-files/pkg/ai/openai"
	"github.com/Bunka-lab/epstein-files/pkg/config"
	"github.com/Bunka-lab/epstein-files/pkg/logger"
	"github.com/Bunka-lab/epstein-files/pkg/logger/console"
	"github.com/Bunka-lab/epstein-files/pkg/pipeline"
	pgxstore "github.com/Bunka-lab/epstein-files/pkg/store/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	// extraction client
	adapter := util.GetEnv("AI_ADAPTER")
	var aiClient ai.ExtractionAIClient

	switch adapter {
	case "ollama":
		client, err := oai.NewExtractOllamaClient(oai.NewExtractOllamaClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(cfg.ExtractionParallel),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		aiClient = client
	default:
		aiClient = gai.NewExtractOpenAIClient(gai.NewExtractOpenAIClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			ChatURL: util.GetEnv("AI_CHAT_URL"),
			ChatKey: util.GetEnv("AI_CHAT_KEY"),
		})
	}

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	storage := pgxstore.NewPipelineDBStorage(pgConn)
	if err := storage.EnsureSchema(ctx); err != nil {
		logger.Fatal("Unable to prepare database schema", "err", err)
	}

	pipe, err := pipeline.NewPipeline(pipeline.NewPipelineParams{
		Client:  aiClient,
		Storage: storage,
		Config:  cfg,
	})
	if err != nil {
		logger.Fatal("Could not create pipeline", "err", err)
	}

	report, err := pipe.Run(ctx)
	if err != nil {
		logger.Fatal("Pipeline run failed", "err", err)
	}

	logger.Info("Run report",
		"duration", report.Duration.Round(time.Millisecond),
		"discussions", report.Discussions,
		"mentions", report.Mentions,
		"skipped", len(report.Skipped),
		"identities", report.Identities,
		"removed", len(report.RemovedVariants),
		"conflicts", len(report.MergeConflicts),
		"nodes", report.Nodes,
		"edges", report.Edges,
		"pruned", len(report.PrunedIdentities),
		"communities", report.Communities,
		"total_tokens", report.Metrics.TotalTokens)
	for _, skipped := range report.Skipped {
		logger.Warn("Discussion skipped", "thread_id", skipped.ThreadID, "reason", skipped.Reason)
	}
	for _, conflict := range report.MergeConflicts {
		logger.Warn("Merge conflict",
			"variant", conflict.Variant,
			"pass", conflict.Pass,
			"kept", conflict.Kept,
			"rejected", conflict.Rejected)
	}
}

// loadConfig builds the pipeline configuration from the environment,
// falling back to defaults per value. The seed table is read from an
// optional JSON file mapping variant to canonical name.
func loadConfig() *config.Config {
	cfg := config.Default()

	if passes := util.GetEnvString("CANON_PASS_ORDER", ""); passes != "" {
		cfg.PassOrder = splitList(passes)
	}
	if removal := util.GetEnvString("CANON_REMOVAL_LIST", ""); removal != "" {
		cfg.RemovalList = splitList(removal)
	}
	if path := util.GetEnvString("CANON_SEED_TABLE_PATH", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Fatal("Unable to read seed table", "path", path, "err", err)
		}
		if err := json.Unmarshal(data, &cfg.SeedTable); err != nil {
			logger.Fatal("Unable to parse seed table", "path", path, "err", err)
		}
	}

	cfg.MinOccurrence = int(util.GetEnvNumeric("NETWORK_MIN_OCCURRENCE", cfg.MinOccurrence))
	cfg.EdgeExampleCap = int(util.GetEnvNumeric("NETWORK_EDGE_EXAMPLE_CAP", cfg.EdgeExampleCap))
	cfg.CommunityIterations = int(util.GetEnvNumeric("COMMUNITY_ITERATIONS", cfg.CommunityIterations))
	cfg.CommunitySeed = int64(util.GetEnvNumeric("COMMUNITY_SEED", int(cfg.CommunitySeed)))
	cfg.ExtractionMaxRetries = int(util.GetEnvNumeric("EXTRACTION_MAX_RETRIES", cfg.ExtractionMaxRetries))
	cfg.ExtractionParallel = int(util.GetEnvNumeric("EXTRACTION_PARALLEL", cfg.ExtractionParallel))

	return cfg
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
