package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"finquery/backend/internal/constants"
	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

// LLM is a chat model with tool calling
type LLM interface {
	Generate(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
	Model() string
}

// Role identifies the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation sent to the model
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // assistant turns that requested tools
	ToolCallID string     // tool results
	Name       string     // tool name for tool results
}

// SystemMessage returns a system prompt message
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user message
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage echoes a model response back into the conversation
func AssistantMessage(resp *Response) Message {
	return Message{Role: RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}
}

// ToolMessage carries the result of a tool call
func ToolMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, Name: call.Name}
}

// Tool represents a function that can be called by the LLM
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition defines a function that can be called
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Response represents the LLM's response
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolCall represents a function call from the LLM
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// OpenAIAdapter talks to any OpenAI-compatible chat completion endpoint
type OpenAIAdapter struct {
	client      *openai.Client
	model       string
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewOpenAIAdapter creates a new OpenAI-compatible adapter
func NewOpenAIAdapter(baseURL, apiKey, modelID string, log *zap.Logger) *OpenAIAdapter {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAIAdapter{
		client:      openai.NewClientWithConfig(config),
		model:       modelID,
		maxAttempts: constants.LLMMaxAttempts,
		backoff:     time.Second,
		logger:      logger.For(log, "llm").With(zap.String("provider", "openai")),
	}
}

// Model returns the configured model ID
func (a *OpenAIAdapter) Model() string {
	return a.model
}

// Generate sends the conversation to the model and returns its response
func (a *OpenAIAdapter) Generate(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
		// Zero is dropped by omitempty and the server would default to 1.
		Temperature: math.SmallestNonzeroFloat32,
	}

	var resp openai.ChatCompletionResponse
	err := retry(ctx, a.logger, a.maxAttempts, a.backoff, a.model, isRetryableOpenAI, func() error {
		var callErr error
		resp, callErr = a.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, apperrors.ErrAgentNoResponse
	}

	choice := resp.Choices[0]
	response := &Response{
		Content:   choice.Message.Content,
		ToolCalls: make([]ToolCall, 0, len(choice.Message.ToolCalls)),
	}

	for _, tc := range choice.Message.ToolCalls {
		args, err := parseJSONArguments(tc.Function.Arguments)
		if err != nil {
			a.logger.Warn("Failed to parse tool call arguments",
				zap.String("tool_id", tc.ID),
				zap.Error(err),
			)
			args = make(map[string]interface{})
		}
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	a.logger.Debug("LLM response generated",
		zap.String("model", a.model),
		zap.Int("tool_calls", len(response.ToolCalls)),
		zap.Bool("has_content", response.Content != ""),
	)

	return response, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == RoleTool {
			msg.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: encodeArguments(tc.Arguments),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}
	return out
}

// isRetryableOpenAI retries rate limits, server errors and transport failures
func isRetryableOpenAI(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError || code == 0
}

// retry runs call up to maxAttempts times with linear backoff. Context errors
// and non-retryable errors stop immediately.
func retry(ctx context.Context, log *zap.Logger, maxAttempts int, backoff time.Duration, model string, retryable func(error) bool, call func() error) error {
	var err error
	attempt := 0
	for attempt < maxAttempts {
		if attempt > 0 {
			wait := time.Duration(attempt) * backoff
			log.Warn("Retrying LLM request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
			)
			select {
			case <-ctx.Done():
				return apperrors.NewContextCancelled("llm request", ctx.Err())
			case <-time.After(wait):
			}
		}
		attempt++

		err = call()
		if err == nil {
			return nil
		}

		log.Error("LLM request failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.String("model", model),
		)

		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return apperrors.NewContextTimeout("llm request", 0, err)
			}
			return apperrors.NewContextCancelled("llm request", err)
		}
		if !retryable(err) {
			return apperrors.NewAgentLLMFailed(model, attempt, false, err)
		}
	}
	return apperrors.NewAgentLLMFailed(model, attempt, true, err)
}

// parseJSONArguments parses the JSON string arguments into a map
func parseJSONArguments(jsonStr string) (map[string]interface{}, error) {
	var args map[string]interface{}
	if jsonStr == "" {
		return make(map[string]interface{}), nil
	}

	err := json.Unmarshal([]byte(jsonStr), &args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse arguments: %w", err)
	}
	if args == nil {
		args = make(map[string]interface{})
	}

	return args, nil
}

func encodeArguments(args map[string]interface{}) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
