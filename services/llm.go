package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles shared by all model providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Stop reasons normalized across providers.
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// ToolDefinition describes one capability offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// StepMessage is one entry of the provider-neutral conversation history.
// Assistant messages may carry ToolCalls; tool messages carry the ToolCallID
// they respond to.
type StepMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// StepRequest is one bounded model call within a tool-calling loop.
type StepRequest struct {
	ModelID   string
	System    string
	Messages  []StepMessage
	Tools     []ToolDefinition
	MaxTokens int
}

// StepResult is the normalized outcome of one model call.
type StepResult struct {
	Text         string
	ToolCalls    []ToolCall
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// ModelClient is the contract the agent runner drives. One call, one step;
// the runner owns the loop and the history.
type ModelClient interface {
	CreateStep(ctx context.Context, req StepRequest) (*StepResult, error)
}

// ModelRouter dispatches to the provider that serves a given model id. Each
// agent is bound to exactly one model, so routing is a pure function of the
// id.
type ModelRouter struct {
	openai  *OpenAIService
	bedrock *BedrockService
}

// NewModelRouter creates a router over the configured providers. Either
// provider may be nil when its credentials are absent.
func NewModelRouter(openai *OpenAIService, bedrock *BedrockService) *ModelRouter {
	return &ModelRouter{openai: openai, bedrock: bedrock}
}

// CreateStep routes the step to the owning provider.
func (r *ModelRouter) CreateStep(ctx context.Context, req StepRequest) (*StepResult, error) {
	if isAnthropicModel(req.ModelID) {
		if r.bedrock == nil {
			return nil, fmt.Errorf("model %s requires bedrock, which is not configured", req.ModelID)
		}
		return r.bedrock.CreateStep(ctx, req)
	}

	if r.openai == nil {
		return nil, fmt.Errorf("model %s requires openai, which is not configured", req.ModelID)
	}
	return r.openai.CreateStep(ctx, req)
}

func isAnthropicModel(modelID string) bool {
	return strings.HasPrefix(modelID, "anthropic.") || strings.Contains(modelID, "claude")
}
