package services

import (
	"context"
	"database/sql"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"finquery/backend/internal/adapter"
	"finquery/backend/internal/memory"
	"finquery/backend/internal/sqldb"
	"finquery/backend/internal/tools"
	"finquery/backend/pkg/config"
	apperrors "finquery/backend/pkg/errors"
)

type wordEmbedder struct{}

func (wordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(strings.Trim(word, "?.,$")))
		vec[f.Sum32()%64]++
	}
	return vec, nil
}

// scriptedLLM replays responses in order and records what it was sent
type scriptedLLM struct {
	responses []*adapter.Response
	seen      [][]adapter.Message
}

func (s *scriptedLLM) Generate(ctx context.Context, messages []adapter.Message, defs []adapter.Tool) (*adapter.Response, error) {
	s.seen = append(s.seen, append([]adapter.Message(nil), messages...))
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func (s *scriptedLLM) Model() string { return "scripted" }

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finance.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE quarterly_financials (quarter TEXT PRIMARY KEY, revenue REAL NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO quarterly_financials VALUES ('Q1', 5000000), ('Q2', 6200000)`)
	require.NoError(t, err)
	return path
}

func seedIndex(t *testing.T, texts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index")
	ix, err := memory.NewIndexer(path, "memory", wordEmbedder{}, 1, zap.NewNop())
	require.NoError(t, err)

	records := make([]memory.Record, 0, len(texts))
	for _, text := range texts {
		records = append(records, memory.Record{Content: text})
	}
	_, err = ix.Index(context.Background(), records)
	require.NoError(t, err)
	return path
}

func testConfig(dbPath, indexPath string) *config.Config {
	cfg := config.FromEnv()
	cfg.Env = "development"
	cfg.LLMProvider = config.ProviderOpenAI
	cfg.DatabasePath = dbPath
	cfg.VectorIndexPath = indexPath
	cfg.VectorCollection = "memory"
	return cfg
}

func TestAssemble_AnswersFromDatabase(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(seedDatabase(t), seedIndex(t, "Q1 revenue figures are stored in quarterly_financials"))

	db, err := sqldb.Open(ctx, cfg.DatabasePath, sqldb.Options{}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	mem, err := memory.New(ctx, memory.Config{IndexPath: cfg.VectorIndexPath, Collection: "memory", TopK: 2}, wordEmbedder{}, zap.NewNop())
	require.NoError(t, err)

	llm := &scriptedLLM{responses: []*adapter.Response{
		{ToolCalls: []adapter.ToolCall{{ID: "c1", Name: tools.ToolSQLListTables}}},
		{ToolCalls: []adapter.ToolCall{{ID: "c2", Name: tools.ToolSQLQuery, Arguments: map[string]interface{}{
			"query": "SELECT revenue FROM quarterly_financials WHERE quarter = 'Q1'",
		}}}},
		{Content: "Q1 revenue was $5,000,000."},
	}}

	app, err := Assemble(db, mem, llm, cfg, zap.NewNop())
	require.NoError(t, err)

	answer, err := app.Execute(ctx, "What was Q1 revenue?")
	require.NoError(t, err)
	assert.Equal(t, "Q1 revenue was $5,000,000.", answer)

	require.Len(t, llm.seen, 3)
	prompt := llm.seen[0][1].Content
	assert.True(t, strings.HasPrefix(prompt, "User query: What was Q1 revenue?\nMemory context: "))
	assert.Contains(t, prompt, "quarterly_financials")

	last := llm.seen[2]
	assert.Equal(t, "quarterly_financials", last[3].Content)
	assert.Contains(t, last[5].Content, "5000000")
}

func TestBuild_MissingDatabase(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.db"), seedIndex(t, "x"))

	s, err := Build(context.Background(), cfg, zap.NewNop())
	assert.Nil(t, s)
	var openErr *apperrors.ErrDatabaseOpen
	assert.ErrorAs(t, err, &openErr)
}

func TestBuild_MissingIndex(t *testing.T) {
	cfg := testConfig(seedDatabase(t), filepath.Join(t.TempDir(), "no-index"))

	s, err := Build(context.Background(), cfg, zap.NewNop())
	assert.Nil(t, s)
	var loadErr *apperrors.ErrMemoryIndexLoad
	assert.ErrorAs(t, err, &loadErr)
}

func TestBuild_Ready(t *testing.T) {
	cfg := testConfig(seedDatabase(t), seedIndex(t, "fiscal year starts in January"))

	s, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.App)
	assert.Equal(t, 1, s.Memory.Count())
	assert.Equal(t, cfg.ModelID, s.LLM.Model())
}

func TestNewLLM_Provider(t *testing.T) {
	cfg := testConfig("db", "index")

	llm, err := NewLLM(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &adapter.OpenAIAdapter{}, llm)

	cfg.LLMProvider = config.ProviderAnthropic
	llm, err = NewLLM(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &adapter.AnthropicAdapter{}, llm)
	assert.Equal(t, cfg.AnthropicModel, llm.Model())

	cfg.LLMProvider = "mystery"
	_, err = NewLLM(cfg, zap.NewNop())
	assert.Error(t, err)
}
