package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finquery/backend/internal/adapter"
	"finquery/backend/internal/memory"
	"finquery/backend/pkg/config"
)

func TestRun_IndexesSnippetsFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object": "list", "data": [{"object": "embedding", "index": 0, "embedding": [0.6, 0.8, 0]}]}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "snippets.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(
		"# fiscal notes\n"+
			`{"id": "fy", "content": "The fiscal year starts in January."}`+"\n"+
			"Revenue is reported in US dollars.\n",
	), 0o644))

	cfg := config.FromEnv()
	cfg.Env = "development"
	cfg.EmbeddingBaseURL = srv.URL + "/v1"
	cfg.VectorIndexPath = filepath.Join(dir, "index")
	cfg.VectorCollection = "memory"

	n, err := run(context.Background(), cfg, input, 2, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	embedder := adapter.NewOpenAIEmbedder(cfg.EmbeddingBaseURL, "k", cfg.EmbeddingModel, zap.NewNop())
	mem, err := memory.New(context.Background(), memory.Config{
		IndexPath:  cfg.VectorIndexPath,
		Collection: cfg.VectorCollection,
		TopK:       4,
	}, embedder, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Count())
}

func TestRun_MissingInput(t *testing.T) {
	cfg := config.FromEnv()
	cfg.VectorIndexPath = filepath.Join(t.TempDir(), "index")

	_, err := run(context.Background(), cfg, filepath.Join(t.TempDir(), "nope.txt"), 1, zap.NewNop())
	assert.Error(t, err)
}
