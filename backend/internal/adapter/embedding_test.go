package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.25, 0.5, 0.75]}]
		}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL+"/v1", "test-key", "text-embedding-3-small", zap.NewNop())
	vec, err := e.Embed(context.Background(), "Q1 revenue")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.5, 0.75}, vec)
}

func TestOpenAIEmbedder_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object": "list", "data": []}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL+"/v1", "test-key", "text-embedding-3-small", zap.NewNop())
	_, err := e.Embed(context.Background(), "Q1 revenue")
	assert.Error(t, err)
}
