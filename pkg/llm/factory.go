package llm

import (
	"fmt"

	"NewsRadar/pkg/config"
)

// NewClient 按配置选择模型提供方
func NewClient(cfg *config.Config) (ChatClient, error) {
	c := cfg.LLM
	switch c.Provider {
	case "openai":
		if c.APIKey == "" {
			return nil, fmt.Errorf("未配置 LLM_API_KEY")
		}
		return NewOpenAIClient(c.APIKey, c.Model, c.APIURL, c.MaxTokens), nil
	case "anthropic":
		if c.APIKey == "" {
			return nil, fmt.Errorf("未配置 LLM_API_KEY")
		}
		return NewAnthropicClient(c.APIKey, c.Model, c.MaxTokens), nil
	case "compatible":
		if c.APIURL == "" {
			return nil, fmt.Errorf("未配置 LLM_API_URL")
		}
		return NewLLMClient(c.APIURL, c.APIKey, c.Model, c.MaxTokens, c.Timeout), nil
	default:
		return nil, fmt.Errorf("未知的LLM提供方: %s", c.Provider)
	}
}
