package tools

import (
	"finquery/backend/internal/adapter"
)

// Tool names - SQL Tools
const (
	ToolSQLListTables = "sql_db_list_tables"
	ToolSQLSchema     = "sql_db_schema"
	ToolSQLQuery      = "sql_db_query"
	ToolSQLQueryCheck = "sql_db_query_checker"
)

// GetSQLTools returns the read-only database toolkit. The query checker is
// only offered when a model is available to run it.
func GetSQLTools(withChecker bool) []adapter.Tool {
	tools := []adapter.Tool{
		{
			Type: "function",
			Function: adapter.FunctionDefinition{
				Name:        ToolSQLListTables,
				Description: "List the tables in the database as a comma-separated string. Call this first to see what data is available.",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
		{
			Type: "function",
			Function: adapter.FunctionDefinition{
				Name:        ToolSQLSchema,
				Description: "Get the schema and a few sample rows for the given tables. Make sure the tables exist by calling " + ToolSQLListTables + " first.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"table_names": map[string]interface{}{
							"type":        "string",
							"description": "Comma-separated list of table names, e.g. 'accounts, transactions'",
						},
					},
					"required": []string{"table_names"},
				},
			},
		},
		{
			Type: "function",
			Function: adapter.FunctionDefinition{
				Name:        ToolSQLQuery,
				Description: "Run a detailed and correct read-only SQL query and get the rows back. If the query fails an error is returned; rewrite the query and try again. If a column is unknown, use " + ToolSQLSchema + " to look up the correct fields.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "A single SELECT statement",
						},
					},
					"required": []string{"query"},
				},
			},
		},
	}

	if withChecker {
		tools = append(tools, adapter.Tool{
			Type: "function",
			Function: adapter.FunctionDefinition{
				Name:        ToolSQLQueryCheck,
				Description: "Double check a SQL query for common mistakes before running it. Always use this before calling " + ToolSQLQuery + ".",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "The SQL query to check",
						},
					},
					"required": []string{"query"},
				},
			},
		})
	}

	return tools
}
