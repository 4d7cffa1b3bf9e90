package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
)

// GeminiService implements the Planner interface using the Google Gemini
// API. Tool calls are carried as function-call / function-response parts.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiService creates a Gemini-backed planner
func NewGeminiService(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for the Gemini planner (set GEMINI_API_KEY or gemini.api_key)")
	}

	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	service := &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Gemini planner initialized")

	return service, nil
}

// StepTurn runs one planner turn with the given tool menu
func (s *GeminiService) StepTurn(ctx context.Context, system string, messages []interfaces.PlannerMessage, tools []interfaces.ToolSpec) (*interfaces.PlannerTurn, error) {
	contents, err := convertMessagesToGemini(messages)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(tools) > 0 {
		declarations, err := convertToolsToGemini(tools)
		if err != nil {
			return nil, err
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	resp, err := s.call(ctx, contents, config)
	if err != nil {
		return nil, err
	}

	turn := &interfaces.PlannerTurn{}
	if resp.UsageMetadata != nil {
		turn.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		turn.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	for _, fc := range resp.FunctionCalls() {
		input, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode function call args: %w", err)
		}
		id := fc.ID
		if id == "" {
			// Gemini does not always assign call IDs; the name is unique
			// enough within one turn for result correlation.
			id = fc.Name
		}
		turn.ToolCalls = append(turn.ToolCalls, interfaces.ToolCall{
			ID:    id,
			Name:  fc.Name,
			Input: input,
		})
	}

	turn.Text = resp.Text()
	turn.Done = len(turn.ToolCalls) == 0

	return turn, nil
}

// Complete is the plain prompt/response primitive
func (s *GeminiService) Complete(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := s.call(ctx, contents, config)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini API")
	}
	return text, nil
}

// call makes the API request with rate-limit-aware retry
func (s *GeminiService) call(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp *genai.GenerateContentResponse
	var apiErr error
	retryConfig := NewDefaultRetryConfig()

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		resp, apiErr = s.client.Models.GenerateContent(callCtx, s.config.Model, contents, config)
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
			Msg("Retrying Gemini API call")

		select {
		case <-callCtx.Done():
			return nil, callCtx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return nil, fmt.Errorf("Gemini API call failed after %d retries: %w", retryConfig.MaxRetries, apiErr)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}
	return resp, nil
}

// Close releases the client
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}

// convertMessagesToGemini maps the provider-neutral conversation onto Gemini
// content parts. Function responses need the original function name, so tool
// call names are indexed by call ID as the conversation is walked.
func convertMessagesToGemini(messages []interfaces.PlannerMessage) ([]*genai.Content, error) {
	callNames := make(map[string]string)
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		var parts []*genai.Part

		if msg.Text != "" {
			parts = append(parts, genai.NewPartFromText(msg.Text))
		}
		for _, tc := range msg.ToolCalls {
			callNames[tc.ID] = tc.Name
			var args map[string]any
			if len(tc.Input) > 0 {
				if err := json.Unmarshal(tc.Input, &args); err != nil {
					return nil, fmt.Errorf("failed to decode tool call input: %w", err)
				}
			}
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args},
			})
		}
		for _, tr := range msg.ToolResults {
			name := callNames[tr.ToolCallID]
			if name == "" {
				name = tr.ToolCallID
			}
			response := map[string]any{"result": tr.Content}
			if tr.IsError {
				response = map[string]any{"error": tr.Content}
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{ID: tr.ToolCallID, Name: name, Response: response},
			})
		}
		if len(parts) == 0 {
			continue
		}

		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	return contents, nil
}

// convertToolsToGemini maps tool specs onto Gemini function declarations
func convertToolsToGemini(tools []interfaces.ToolSpec) ([]*genai.FunctionDeclaration, error) {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, spec := range tools {
		schema, err := convertToGenaiSchema(spec.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", spec.Name, err)
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  schema,
		})
	}
	return declarations, nil
}

// convertToGenaiSchema converts a map[string]interface{} representation of a
// JSON schema to a genai.Schema structure
func convertToGenaiSchema(schemaMap map[string]interface{}) (*genai.Schema, error) {
	if len(schemaMap) == 0 {
		return nil, nil
	}

	schema := &genai.Schema{}

	if typeStr, ok := schemaMap["type"].(string); ok {
		switch strings.ToLower(typeStr) {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		}
	}

	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}

	if reqVals, ok := schemaMap["required"].([]interface{}); ok {
		for _, v := range reqVals {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	} else if reqVals, ok := schemaMap["required"].([]string); ok {
		schema.Required = reqVals
	}

	if itemsMap, ok := schemaMap["items"].(map[string]interface{}); ok {
		itemSchema, err := convertToGenaiSchema(itemsMap)
		if err != nil {
			return nil, fmt.Errorf("failed to convert items schema: %w", err)
		}
		schema.Items = itemSchema
	}

	if propsMap, ok := schemaMap["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for propName, propVal := range propsMap {
			if propMap, ok := propVal.(map[string]interface{}); ok {
				propSchema, err := convertToGenaiSchema(propMap)
				if err != nil {
					return nil, fmt.Errorf("failed to convert property '%s': %w", propName, err)
				}
				schema.Properties[propName] = propSchema
			}
		}
	}

	return schema, nil
}

// Ensure interface compliance
var _ interfaces.Planner = (*GeminiService)(nil)
