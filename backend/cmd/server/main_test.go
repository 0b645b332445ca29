package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "finquery/backend/pkg/errors"
)

type stubExecutor struct {
	answer string
	err    error
	got    string
}

func (s *stubExecutor) Execute(ctx context.Context, input string) (string, error) {
	s.got = input
	return s.answer, s.err
}

func serve(t *testing.T, app QueryExecutor, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := newRouter(app, zap.NewNop())

	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestHealthEndpoint(t *testing.T) {
	w := serve(t, &stubExecutor{}, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestQueryEndpoint_Answer(t *testing.T) {
	app := &stubExecutor{answer: "Q1 revenue was $5,000,000."}
	w := serve(t, app, http.MethodPost, "/api/query", `{"query": "What was Q1 revenue?"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Q1 revenue was $5,000,000.", decode(t, w)["answer"])
	assert.Equal(t, "What was Q1 revenue?", app.got)
}

func TestQueryEndpoint_InvalidRequest(t *testing.T) {
	for _, body := range []string{`{}`, `not json`, `{"query": "   "}`} {
		w := serve(t, &stubExecutor{}, http.MethodPost, "/api/query", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestQueryEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		wantType  string
		retryable bool
	}{
		{
			name:     "agent failure",
			err:      apperrors.NewAgentExecutionFailed(3, errors.New("no such table")),
			status:   http.StatusBadGateway,
			wantType: "agent",
		},
		{
			name:      "llm unavailable",
			err:       apperrors.NewAgentExecutionFailed(0, apperrors.NewAgentLLMFailed("gpt-4o-mini", 3, true, errors.New("503"))),
			status:    http.StatusBadGateway,
			wantType:  "agent",
			retryable: true,
		},
		{
			name:     "timeout",
			err:      apperrors.NewContextTimeout("agent run", time.Minute, context.DeadlineExceeded),
			status:   http.StatusGatewayTimeout,
			wantType: "context",
		},
		{
			name:     "untyped",
			err:      errors.New("boom"),
			status:   http.StatusBadGateway,
			wantType: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, &stubExecutor{err: tt.err}, http.MethodPost, "/api/query", `{"query": "q"}`)
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.wantType, body["error_type"])
			assert.Equal(t, tt.err.Error(), body["error"])
			assert.Equal(t, tt.retryable, body["retryable"])
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	w := serve(t, &stubExecutor{}, http.MethodOptions, "/api/query", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
