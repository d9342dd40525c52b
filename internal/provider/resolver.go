package provider

import (
	"fmt"
	"strings"

	"github.com/ToolLoop/ToolLoop/internal/config"
)

// Resolve creates the appropriate LLMProvider for the configured model.
// Model names starting with "gemini" select the Gemini client; everything
// else goes through the OpenAI-compatible client.
func Resolve(cfg *config.Config) (LLMProvider, error) {
	model := strings.TrimSpace(cfg.Model.Name)
	if strings.HasPrefix(strings.ToLower(model), "gemini") {
		if cfg.Providers.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini API key not configured")
		}
		return NewGeminiProvider(cfg.Providers.Gemini.APIKey, model), nil
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}
	return NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, model), nil
}
