package configbuilder

import (
	"fmt"

	"github.com/texttoaction/tta/internal/config"
	"github.com/texttoaction/tta/internal/llm"
	llmollama "github.com/texttoaction/tta/internal/llm/providers/ollama"
	llmopenai "github.com/texttoaction/tta/internal/llm/providers/openai"
)

// BuildRegistryFromConfig constructs a registry and providers from config.
func BuildRegistryFromConfig(cfg *config.Config) (*llm.Registry, error) {
	reg := llm.NewRegistry()

	for name, pCfg := range cfg.Providers {
		p, err := buildProvider(name, pCfg)
		if err != nil {
			return nil, err
		}
		reg.RegisterProvider(name, p)
	}

	for name, mCfg := range cfg.Models {
		reg.RegisterModel(name, llm.ModelRoute{
			Provider:    mCfg.Provider,
			Model:       mCfg.Model,
			Temperature: mCfg.Temperature,
			MaxTokens:   mCfg.MaxTokens,
		}, mCfg.Default)
	}

	if _, _, err := reg.Resolve(cfg.Generation.Route); err != nil {
		return nil, err
	}

	return reg, nil
}

// BuildGenerator wires a Generator for the configured generation route.
func BuildGenerator(cfg *config.Config) (*llm.Generator, *llm.Registry, error) {
	reg, err := BuildRegistryFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	gen := llm.NewGenerator(reg, llm.GeneratorOptions{
		Route:       cfg.Generation.Route,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
	})
	return gen, reg, nil
}

func buildProvider(name string, cfg config.ProviderConfig) (llm.Provider, error) {
	switch cfg.Type {
	case "openai", "openrouter", "vllm", "lmstudio", "custom":
		return llmopenai.NewProvider(name, cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	case "ollama":
		return llmollama.NewProvider(name, cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.Type, name)
	}
}
