// Package llm wraps the OpenAI-compatible chat and embedding APIs used by the
// agent and the product search tool.
package llm

import (
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Config describes one OpenAI or Azure OpenAI endpoint.
type Config struct {
	Provider    string // openai, azure
	APIKey      string
	BaseURL     string
	Model       string // model name, or deployment name on azure
	APIVersion  string
	Timeout     time.Duration
	Temperature float32
}

const defaultTimeout = 60 * time.Second

func newClient(cfg Config) *openai.Client {
	var clientConfig openai.ClientConfig

	switch cfg.Provider {
	case "azure":
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientConfig.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Model
		clientConfig.AzureModelMapperFunc = func(string) string {
			return deployment
		}
	default:
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
	}

	// The per-call context deadline is the real bound; this only catches hung connections.
	clientConfig.HTTPClient = &http.Client{
		Timeout: timeoutOrDefault(cfg.Timeout) + 5*time.Second,
	}

	return openai.NewClientWithConfig(clientConfig)
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}
