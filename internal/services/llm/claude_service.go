package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
)

// ClaudeService implements the Planner interface using the Anthropic Claude
// API. Tool calls are carried natively as tool_use / tool_result content
// blocks rather than being parsed out of prose.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// NewClaudeService creates a Claude-backed planner
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for the Claude planner (set ANTHROPIC_API_KEY or claude.api_key)")
	}

	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	service := &ClaudeService{
		config:    config,
		logger:    logger,
		client:    client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude planner initialized")

	return service, nil
}

// StepTurn runs one planner turn with the given tool menu
func (s *ClaudeService) StepTurn(ctx context.Context, system string, messages []interfaces.PlannerMessage, tools []interfaces.ToolSpec) (*interfaces.PlannerTurn, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages:  convertMessagesToClaude(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if len(tools) > 0 {
		params.Tools = convertToolsToClaude(tools)
	}

	resp, err := s.call(ctx, params)
	if err != nil {
		return nil, err
	}

	turn := &interfaces.PlannerTurn{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			turn.ToolCalls = append(turn.ToolCalls, interfaces.ToolCall{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: json.RawMessage(variant.Input),
			})
		}
	}
	turn.Text = text.String()
	turn.Done = len(turn.ToolCalls) == 0

	return turn, nil
}

// Complete is the plain prompt/response primitive
func (s *ClaudeService) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	resp, err := s.call(ctx, params)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}
	return text.String(), nil
}

// call makes the API request with rate-limit-aware retry
func (s *ClaudeService) call(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp *anthropic.Message
	var apiErr error
	retryConfig := NewDefaultRetryConfig()

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		resp, apiErr = s.client.Messages.New(callCtx, params)
		if apiErr == nil {
			break
		}
		if attempt == retryConfig.MaxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if IsRateLimitError(apiErr) {
			backoff = retryConfig.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		}

		s.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Claude API call")

		select {
		case <-callCtx.Done():
			return nil, callCtx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return nil, fmt.Errorf("Claude API call failed after %d retries: %w", retryConfig.MaxRetries, apiErr)
	}
	return resp, nil
}

// Close releases the client. The HTTP client has no persistent resources.
func (s *ClaudeService) Close() error {
	return nil
}

// convertMessagesToClaude maps the provider-neutral conversation onto Claude
// MessageParam content blocks, preserving chronological ordering
func convertMessagesToClaude(messages []interfaces.PlannerMessage) []anthropic.MessageParam {
	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		var blocks []anthropic.ContentBlockParamUnion

		if msg.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
		}
		for _, tc := range msg.ToolCalls {
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Input,
				},
			})
		}
		for _, tr := range msg.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		if len(blocks) == 0 {
			continue
		}

		if msg.Role == "assistant" {
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(blocks...))
		} else {
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(blocks...))
		}
	}

	return claudeMessages
}

// convertToolsToClaude maps tool specs onto Claude tool declarations
func convertToolsToClaude(tools []interfaces.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, spec := range tools {
		properties := spec.InputSchema["properties"]
		var required []string
		if req, ok := spec.InputSchema["required"].([]string); ok {
			required = req
		}

		tool := anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

// Ensure interface compliance
var _ interfaces.Planner = (*ClaudeService)(nil)
