package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finquery/backend/internal/constants"
	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

// Record is one snippet to be indexed
type Record struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Indexer writes snippets into the persistent index. The query path never
// uses it; it exists for building the index offline.
type Indexer struct {
	collection  *chromem.Collection
	embedder    Embedder
	concurrency int
	logger      *zap.Logger
}

// NewIndexer opens or creates the index at path
func NewIndexer(path, collection string, embedder Embedder, concurrency int, log *zap.Logger) (*Indexer, error) {
	if collection == "" {
		collection = constants.DefaultVectorCollection
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, apperrors.NewMemoryIndexLoad(path, collection, err)
	}
	col, err := db.GetOrCreateCollection(collection, nil, embedder.Embed)
	if err != nil {
		return nil, apperrors.NewMemoryIndexLoad(path, collection, err)
	}

	return &Indexer{
		collection:  col,
		embedder:    embedder,
		concurrency: concurrency,
		logger:      logger.For(log, "indexer"),
	}, nil
}

// Index embeds records concurrently and adds them to the collection.
// Records without an ID get a random one. Returns the number indexed.
func (ix *Indexer) Index(ctx context.Context, records []Record) (int, error) {
	for i, rec := range records {
		if strings.TrimSpace(rec.Content) == "" {
			return 0, fmt.Errorf("record %d has no content", i)
		}
	}

	docs := make([]chromem.Document, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			emb, err := ix.embedder.Embed(gctx, rec.Content)
			if err != nil {
				return fmt.Errorf("embedding record %d: %w", i, err)
			}
			id := rec.ID
			if id == "" {
				id = uuid.NewString()
			}
			docs[i] = chromem.Document{
				ID:        id,
				Content:   rec.Content,
				Metadata:  rec.Metadata,
				Embedding: emb,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if len(docs) == 0 {
		return 0, nil
	}
	if err := ix.collection.AddDocuments(ctx, docs, ix.concurrency); err != nil {
		return 0, fmt.Errorf("adding documents: %w", err)
	}

	ix.logger.Info("Indexed snippets",
		zap.Int("count", len(docs)),
		zap.Int("total", ix.collection.Count()),
	)
	return len(docs), nil
}

// ReadRecords parses one record per line. Lines starting with '{' are JSON
// records; any other non-blank line is taken as plain snippet text.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if strings.HasPrefix(text, "{") {
			var rec Record
			if err := json.Unmarshal([]byte(text), &rec); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			records = append(records, rec)
			continue
		}
		records = append(records, Record{Content: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
