package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/common"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
)

// NewPlanner creates the configured planner provider
func NewPlanner(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.Planner, error) {
	switch config.LLM.Provider {
	case common.LLMProviderClaude:
		return NewClaudeService(&config.Claude, logger)
	case common.LLMProviderGemini:
		return NewGeminiService(ctx, &config.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want claude or gemini)", config.LLM.Provider)
	}
}
