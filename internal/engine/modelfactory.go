package engine

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
)

// EndpointConfig is the subset of config.ModelEndpoint the factory needs,
// kept local to engine so this package doesn't import internal/config
// (the dependency runs the other way: cmd/devteam wires config into engine).
type EndpointConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// BuildModel constructs the langchaingo llms.Model for an endpoint, per
// spec.md §6's declarative role→endpoint mapping. Supported providers
// mirror what the teacher's own clients talk to: "openai" and "anthropic".
func BuildModel(cfg EndpointConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "", "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}
