package agent

import (
	"fmt"
	"strings"

	"finquery/backend/internal/tools"
)

// buildSystemPrompt creates the SQL agent instructions
func buildSystemPrompt(dialect string, topK int, withChecker bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are an agent that answers questions by querying a %s database.
Given a question, write a syntactically correct %s query, run it, look at the results and answer.
Unless the user asks for a specific number of examples, limit your query to at most %d results.
Order the results by a relevant column to return the most interesting examples.
Never select every column of a table; only ask for the columns relevant to the question.
`, dialect, dialect, topK)

	b.WriteString(`
## Tools
Only use the provided tools, and only use information they return to build your final answer.
Start by calling ` + tools.ToolSQLListTables + ` to see which tables exist, then ` + tools.ToolSQLSchema + ` for the relevant ones.
`)
	if withChecker {
		b.WriteString("Always check a query with " + tools.ToolSQLQueryCheck + " before running it with " + tools.ToolSQLQuery + ".\n")
	}
	b.WriteString(`If a query fails, rewrite it and try again.
Do not issue any statement that modifies data (INSERT, UPDATE, DELETE, DROP and so on).

## Input
The user message has the question after "User query:" and notes recalled from earlier work after "Memory context:".
Use the notes when they help interpret the question, but answer from the database.
If the question has nothing to do with the database, answer "I don't know".

## Answer
When you are done, reply with the final answer in plain text and no further tool calls.
`)
	return b.String()
}
