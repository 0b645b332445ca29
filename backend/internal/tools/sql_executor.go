package tools

import (
	"context"
	"fmt"
	"strings"

	"finquery/backend/internal/adapter"
	apperrors "finquery/backend/pkg/errors"
)

// ============================================================================
// SQL Tool Implementations
// ============================================================================

func (e *Executor) executeListTables(ctx context.Context) *ToolResult {
	tables, err := e.db.ListTables(ctx)
	if err != nil {
		return errorResult(err)
	}
	return &ToolResult{
		Success: true,
		Data:    strings.Join(tables, ", "),
	}
}

func (e *Executor) executeSchema(ctx context.Context, args map[string]interface{}) *ToolResult {
	raw, _ := args["table_names"].(string)
	tables := splitTableNames(raw)
	if len(tables) == 0 {
		return &ToolResult{Success: false, Error: "table_names is required"}
	}

	info, err := e.db.TableInfo(ctx, tables...)
	if err != nil {
		return errorResult(err)
	}
	return &ToolResult{Success: true, Data: info}
}

func (e *Executor) executeQuery(ctx context.Context, args map[string]interface{}) *ToolResult {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return &ToolResult{Success: false, Error: "query is required"}
	}

	out, err := e.db.Run(ctx, query)
	if err != nil {
		return errorResult(err)
	}
	if out == "" {
		return &ToolResult{Success: true, Message: "Query returned no rows."}
	}
	return &ToolResult{Success: true, Data: out}
}

func (e *Executor) executeQueryCheck(ctx context.Context, args map[string]interface{}) *ToolResult {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return &ToolResult{Success: false, Error: "query is required"}
	}

	resp, err := e.checker.Generate(ctx, []adapter.Message{
		adapter.SystemMessage(fmt.Sprintf(queryCheckerPrompt, e.db.Dialect())),
		adapter.UserMessage(query),
	}, nil)
	if err != nil {
		return errorResult(apperrors.NewToolExecutionFailed(ToolSQLQueryCheck, "checker model failed", err))
	}

	checked := stripCodeFence(resp.Content)
	if checked == "" {
		checked = query
	}
	return &ToolResult{Success: true, Data: checked}
}

func splitTableNames(raw string) []string {
	var tables []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.Trim(strings.TrimSpace(part), "`\"'")
		if name != "" {
			tables = append(tables, name)
		}
	}
	return tables
}

// stripCodeFence removes a surrounding ```sql fence from model output
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
