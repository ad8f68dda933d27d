package services

import (
	"context"
	"encoding/json"
	"fmt"

	appconfig "prediction-fleet/config"
	"prediction-fleet/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// bedrockInvoker defines the Bedrock API surface used by the service (for testing)
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockService serves tool-calling steps for Anthropic models via AWS Bedrock
type BedrockService struct {
	client           bedrockInvoker
	anthropicVersion string
}

// ClaudeRequest represents the request format for Claude models via Bedrock
type ClaudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []ClaudeMessage `json:"messages"`
	Tools            []ClaudeTool    `json:"tools,omitempty"`
}

// ClaudeMessage represents a message in the Claude conversation. Content is a
// list of blocks: text, tool_use (assistant) or tool_result (user).
type ClaudeMessage struct {
	Role    string        `json:"role"`
	Content []ClaudeBlock `json:"content"`
}

// ClaudeBlock is one content block of a Claude message
type ClaudeBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "tool_use"
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// type == "tool_result"
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// ClaudeTool declares one tool available to the model
type ClaudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ClaudeResponse represents the response from Claude models
type ClaudeResponse struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Role       string        `json:"role"`
	Content    []ClaudeBlock `json:"content"`
	StopReason string        `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockService creates a new BedrockService instance
func NewBedrockService(ctx context.Context, cfg *appconfig.Config) (*BedrockService, error) {
	if cfg.Bedrock.Region == "" {
		return nil, fmt.Errorf("AWS_REGION is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Bedrock.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &BedrockService{
		client:           bedrockruntime.NewFromConfig(awsCfg),
		anthropicVersion: cfg.Bedrock.AnthropicVersion,
	}, nil
}

// newBedrockServiceWithClient creates a BedrockService with a custom client (for testing)
func newBedrockServiceWithClient(client bedrockInvoker, anthropicVersion string) *BedrockService {
	return &BedrockService{client: client, anthropicVersion: anthropicVersion}
}

// CreateStep executes one tool-calling step against Bedrock.
func (s *BedrockService) CreateStep(ctx context.Context, req StepRequest) (*StepResult, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerBedrock, "create_step")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerBedrock, func() (*StepResult, error) {
		request := ClaudeRequest{
			AnthropicVersion: s.anthropicVersion,
			MaxTokens:        req.MaxTokens,
			System:           req.System,
			Messages:         buildClaudeMessages(req.Messages),
		}
		for _, tool := range req.Tools {
			request.Tools = append(request.Tools, ClaudeTool{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			})
		}

		reqBody, err := json.Marshal(request)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		output, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(req.ModelID),
			Body:        reqBody,
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to invoke model: %w", err)
		}

		var response ClaudeResponse
		if err := json.Unmarshal(output.Body, &response); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		step := &StepResult{
			StopReason:   StopEndTurn,
			InputTokens:  response.Usage.InputTokens,
			OutputTokens: response.Usage.OutputTokens,
		}
		for _, block := range response.Content {
			switch block.Type {
			case "text":
				step.Text += block.Text
			case "tool_use":
				step.ToolCalls = append(step.ToolCalls, ToolCall{
					ID:        block.ID,
					Name:      block.Name,
					Arguments: block.Input,
				})
			}
		}
		if response.StopReason == "tool_use" || len(step.ToolCalls) > 0 {
			step.StopReason = StopToolUse
		}

		return step, nil
	})

	timer.ObserveExternalAPI(BreakerBedrock, "create_step")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerBedrock, "create_step", categorizeAPIError(err))
	}
	return result, err
}

// buildClaudeMessages converts the neutral history to Claude's block format.
// Tool results become tool_result blocks on user messages, per the Anthropic
// messages API.
func buildClaudeMessages(messages []StepMessage) []ClaudeMessage {
	out := make([]ClaudeMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			out = append(out, ClaudeMessage{
				Role:    "user",
				Content: []ClaudeBlock{{Type: "text", Text: msg.Content}},
			})
		case RoleAssistant:
			blocks := make([]ClaudeBlock, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, ClaudeBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, ClaudeBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Arguments,
				})
			}
			out = append(out, ClaudeMessage{Role: "assistant", Content: blocks})
		case RoleTool:
			block := ClaudeBlock{
				Type:      "tool_result",
				ToolUseID: msg.ToolCallID,
				Content:   msg.Content,
			}
			// Consecutive tool results collapse onto one user message
			if n := len(out); n > 0 && out[n-1].Role == "user" && len(out[n-1].Content) > 0 && out[n-1].Content[0].Type == "tool_result" {
				out[n-1].Content = append(out[n-1].Content, block)
			} else {
				out = append(out, ClaudeMessage{Role: "user", Content: []ClaudeBlock{block}})
			}
		}
	}
	return out
}
