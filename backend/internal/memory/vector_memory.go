package memory

import (
	"context"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"finquery/backend/internal/constants"
	"finquery/backend/internal/state"
	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

// Embedder turns text into a vector. Its signature matches chromem.EmbeddingFunc.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config locates the persisted index
type Config struct {
	IndexPath  string
	Collection string
	TopK       int
}

// VectorMemory answers similarity searches against a pre-built, read-only index
type VectorMemory struct {
	collection *chromem.Collection
	topK       int
	logger     *zap.Logger
}

// New loads the index at cfg.IndexPath. It fails if the directory or the
// collection does not exist, rather than serving empty results forever.
func New(ctx context.Context, cfg Config, embedder Embedder, log *zap.Logger) (*VectorMemory, error) {
	if cfg.Collection == "" {
		cfg.Collection = constants.DefaultVectorCollection
	}
	if cfg.TopK <= 0 {
		cfg.TopK = constants.DefaultRetrievalTopK
	}

	// chromem creates missing directories, so check first.
	info, err := os.Stat(cfg.IndexPath)
	if err != nil {
		return nil, apperrors.NewMemoryIndexLoad(cfg.IndexPath, cfg.Collection, err)
	}
	if !info.IsDir() {
		return nil, apperrors.NewMemoryIndexLoad(cfg.IndexPath, cfg.Collection, fmt.Errorf("not a directory"))
	}

	db, err := chromem.NewPersistentDB(cfg.IndexPath, false)
	if err != nil {
		return nil, apperrors.NewMemoryIndexLoad(cfg.IndexPath, cfg.Collection, err)
	}

	col := db.GetCollection(cfg.Collection, embedder.Embed)
	if col == nil {
		return nil, apperrors.NewMemoryIndexLoad(cfg.IndexPath, cfg.Collection, fmt.Errorf("collection not found"))
	}

	l := logger.For(log, "memory")
	l.Info("Vector index loaded",
		zap.String("path", cfg.IndexPath),
		zap.String("collection", cfg.Collection),
		zap.Int("documents", col.Count()),
	)

	return &VectorMemory{
		collection: col,
		topK:       cfg.TopK,
		logger:     l,
	}, nil
}

// Count returns the number of indexed snippets
func (m *VectorMemory) Count() int {
	return m.collection.Count()
}

// Search returns up to TopK snippets most similar to query, best first.
// An empty index yields an empty context and no error.
func (m *VectorMemory) Search(ctx context.Context, query string) (state.MemoryContext, error) {
	n := m.topK
	if count := m.collection.Count(); count < n {
		n = count
	}
	if n == 0 {
		return state.MemoryContext{}, nil
	}

	results, err := m.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, apperrors.NewMemoryRetrievalFailed(query, err)
	}

	mc := make(state.MemoryContext, 0, len(results))
	for i, r := range results {
		mc = append(mc, state.Snippet{
			ID:         r.ID,
			Content:    r.Content,
			Rank:       i + 1,
			Similarity: r.Similarity,
			Metadata:   r.Metadata,
		})
	}
	if err := mc.Validate(); err != nil {
		return nil, apperrors.NewMemoryRetrievalFailed(query, err)
	}
	return mc, nil
}

// Retrieve is Search with failures treated as "no relevant memories".
// The error is logged and the caller proceeds with an empty context.
func (m *VectorMemory) Retrieve(ctx context.Context, query string) state.MemoryContext {
	mc, err := m.Search(ctx, query)
	if err != nil {
		m.logger.Warn("Memory retrieval failed, continuing without context",
			zap.Error(err),
		)
		return state.MemoryContext{}
	}

	m.logger.Debug("Memory retrieved",
		zap.Int("count", mc.Len()),
		zap.Strings("snippets", mc.Texts()),
	)
	return mc
}
