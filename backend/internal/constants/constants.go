package constants

// Persisted state defaults
const (
	// DefaultDatabasePath is the read-only SQLite file queried by the agent
	DefaultDatabasePath = "data/sample_financial_data.db"
	// DefaultVectorIndexPath is the pre-built chromem-go index directory
	DefaultVectorIndexPath = "memory/index"
	// DefaultVectorCollection is the collection name inside the index
	DefaultVectorCollection = "memory"
)

// Flow graph constants
const (
	// HandleQueryNode is the name of the single node bound to the orchestrator
	HandleQueryNode = "handle_query"
	// GraphInputKey is the graph state key holding the user query
	GraphInputKey = "input"
	// GraphOutputKey is the graph state key holding the final answer
	GraphOutputKey = "output"
	// DefaultGraphStepLimit caps node visits per run so cyclic graphs terminate
	DefaultGraphStepLimit = 25
)

// Agent execution constants
const (
	// DefaultMaxAgentSteps is the maximum number of model turns in one reasoning run.
	// This prevents infinite loops when the model keeps issuing tool calls.
	DefaultMaxAgentSteps = 15
	// DefaultRetrievalTopK is the number of memory snippets retrieved per query
	DefaultRetrievalTopK = 4
	// LLMMaxAttempts is the number of attempts for a single model request
	LLMMaxAttempts = 3
)

// SQL toolkit constants
const (
	// DefaultSampleRows is the number of example rows shown with each table schema
	DefaultSampleRows = 3
	// DefaultMaxResultRows caps rows returned to the model from a single query
	DefaultMaxResultRows = 50
	// SQLDialect is reported to the model in the agent prompt
	SQLDialect = "sqlite"
)

// Discord constants
const (
	// DiscordMaxMessageLength is the maximum character limit for Discord messages
	DiscordMaxMessageLength = 2000
)
