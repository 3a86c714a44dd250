package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/attachment-triage/internal/adapters/bedrock"
	"github.com/mikey/attachment-triage/internal/adapters/gemini"
	"github.com/mikey/attachment-triage/internal/adapters/openai"
	"github.com/mikey/attachment-triage/internal/config"
	"github.com/mikey/attachment-triage/internal/core"
)

// LLMFactory creates LLM clients
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLLMClient creates a new LLM client based on the configuration
func (f *LLMFactory) CreateLLMClient() (core.LLMClient, error) {
	switch provider := f.cfg.GetLLM().Provider; provider {
	case "openai":
		c := f.cfg.GetOpenAI()
		return openai.NewClient(c.APIKey, c.ModelName, c.MaxTokens, c.Temperature, c.TopP, f.logger)
	case "gemini":
		c := f.cfg.GetGemini()
		return gemini.NewClient(c.APIKey, c.ModelName, c.MaxTokens, c.Temperature, c.TopP, f.logger)
	case "bedrock":
		c := f.cfg.GetBedrock()
		return bedrock.NewClient(context.Background(), c.Region, c.ModelID, c.MaxTokens, c.Temperature, c.TopP, f.logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
