package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"finquery/backend/internal/adapter"
	"finquery/backend/internal/agent"
	"finquery/backend/internal/graph"
	"finquery/backend/internal/memory"
	"finquery/backend/internal/sqldb"
	"finquery/backend/internal/tools"
	"finquery/backend/pkg/config"
)

// Services owns the long-lived resources behind the query graph
type Services struct {
	App    *graph.App
	DB     *sqldb.Database
	Memory *memory.VectorMemory
	LLM    adapter.LLM
	logger *zap.Logger
}

// Build opens the database and vector index named in cfg and wires
// memory, tools, agent, orchestrator and graph together. Missing persisted
// state fails here rather than on the first query.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Services, error) {
	db, err := sqldb.Open(ctx, cfg.DatabasePath, sqldb.Options{
		SampleRows:    cfg.SQLSampleRows,
		MaxResultRows: cfg.SQLMaxResultRows,
	}, log)
	if err != nil {
		return nil, err
	}

	if cfg.IsDevelopment() && cfg.EmbeddingAPIKey == "" {
		log.Warn("No embedding API key set, using placeholder key")
	}
	embedder := adapter.NewOpenAIEmbedder(
		cfg.EmbeddingBaseURL,
		cfg.APIKeyOrPlaceholder(cfg.EmbeddingAPIKey),
		cfg.EmbeddingModel,
		log,
	)
	mem, err := memory.New(ctx, memory.Config{
		IndexPath:  cfg.VectorIndexPath,
		Collection: cfg.VectorCollection,
		TopK:       cfg.RetrievalTopK,
	}, embedder, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	llm, err := NewLLM(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app, err := Assemble(db, mem, llm, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("Query pipeline ready",
		zap.String("provider", cfg.LLMProvider),
		zap.String("model", llm.Model()),
		zap.String("database", cfg.DatabasePath),
		zap.Int("memory_snippets", mem.Count()),
	)

	return &Services{
		App:    app,
		DB:     db,
		Memory: mem,
		LLM:    llm,
		logger: log,
	}, nil
}

// Assemble builds the query graph over already opened collaborators
func Assemble(db tools.SQLDatabase, mem agent.Retriever, llm adapter.LLM, cfg *config.Config, log *zap.Logger) (*graph.App, error) {
	executor := tools.NewExecutor(db, llm, log)
	sqlAgent := agent.NewSQLAgent(llm, executor, agent.SQLAgentConfig{
		MaxSteps: cfg.MaxAgentSteps,
		Timeout:  cfg.AgentTimeout,
		Dialect:  db.Dialect(),
	}, log)

	queryAgent := agent.NewQueryAgent(mem, sqlAgent,
		agent.WithMaxPromptChars(cfg.MaxPromptChars),
		agent.WithLogger(log),
	)
	return graph.NewApp(agent.NewOrchestrator(queryAgent), log)
}

// NewLLM returns the reasoning model adapter for cfg.LLMProvider
func NewLLM(cfg *config.Config, log *zap.Logger) (adapter.LLM, error) {
	if cfg.IsDevelopment() && providerKey(cfg) == "" {
		log.Warn("No model API key set, using placeholder key", zap.String("provider", cfg.LLMProvider))
	}

	switch cfg.LLMProvider {
	case config.ProviderOpenAI, "":
		return adapter.NewOpenAIAdapter(
			cfg.ModelBaseURL,
			cfg.APIKeyOrPlaceholder(cfg.ModelAPIKey),
			cfg.ModelID,
			log,
		), nil
	case config.ProviderAnthropic:
		return adapter.NewAnthropicAdapter(
			cfg.APIKeyOrPlaceholder(cfg.AnthropicAPIKey),
			cfg.AnthropicModel,
			log,
		), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}

func providerKey(cfg *config.Config) string {
	if cfg.LLMProvider == config.ProviderAnthropic {
		return cfg.AnthropicAPIKey
	}
	return cfg.ModelAPIKey
}

// Close releases the database handle
func (s *Services) Close() error {
	if err := s.DB.Close(); err != nil {
		s.logger.Warn("Failed to close database", zap.Error(err))
		return err
	}
	return nil
}
