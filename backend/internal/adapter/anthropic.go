package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"finquery/backend/internal/constants"
	apperrors "finquery/backend/pkg/errors"
	"finquery/backend/pkg/logger"
)

const anthropicMaxTokens = 4096

// AnthropicAdapter talks to the Claude Messages API
type AnthropicAdapter struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewAnthropicAdapter creates a new Anthropic adapter. The SDK's own retries
// are disabled so that retry is the only policy; opts are applied after that.
func NewAnthropicAdapter(apiKey, modelID string, log *zap.Logger, opts ...option.RequestOption) *AnthropicAdapter {
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &AnthropicAdapter{
		client:      anthropic.NewClient(clientOpts...),
		model:       modelID,
		maxTokens:   anthropicMaxTokens,
		maxAttempts: constants.LLMMaxAttempts,
		backoff:     time.Second,
		logger:      logger.For(log, "llm").With(zap.String("provider", "anthropic")),
	}
}

// Model returns the configured model ID
func (a *AnthropicAdapter) Model() string {
	return a.model
}

// Generate sends the conversation to Claude and returns its response
func (a *AnthropicAdapter) Generate(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	system, params := toAnthropicMessages(messages)

	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Messages:    params,
		Temperature: anthropic.Float(0),
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		req.Tools = toAnthropicTools(tools)
	}

	var resp *anthropic.Message
	err := retry(ctx, a.logger, a.maxAttempts, a.backoff, a.model, isRetryableAnthropic, func() error {
		var callErr error
		resp, callErr = a.client.Messages.New(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Content) == 0 {
		return nil, apperrors.ErrAgentNoResponse
	}

	response := &Response{ToolCalls: []ToolCall{}}
	var text []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "tool_use":
			args := make(map[string]interface{})
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					a.logger.Warn("Failed to parse tool call arguments",
						zap.String("tool_id", block.ID),
						zap.Error(err),
					)
					args = make(map[string]interface{})
				}
			}
			response.ToolCalls = append(response.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}
	response.Content = strings.Join(text, "\n")

	a.logger.Debug("LLM response generated",
		zap.String("model", a.model),
		zap.Int("tool_calls", len(response.ToolCalls)),
		zap.Bool("has_content", response.Content != ""),
	)

	return response, nil
}

// toAnthropicMessages splits out the system prompt and groups consecutive
// tool results into a single user turn, as the Messages API requires.
func toAnthropicMessages(messages []Message) (string, []anthropic.MessageParam) {
	var system []string
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		case RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args := tc.Arguments
				if args == nil {
					args = map[string]interface{}{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	flush()

	return strings.Join(system, "\n\n"), out
}

func toAnthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Properties: tool.Function.Parameters["properties"],
		}
		switch required := tool.Function.Parameters["required"].(type) {
		case []string:
			schema.Required = required
		case []interface{}:
			for _, r := range required {
				if name, ok := r.(string); ok {
					schema.Required = append(schema.Required, name)
				}
			}
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Function.Name,
				Description: anthropic.String(tool.Function.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

func isRetryableAnthropic(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	return true
}
