package main

import (
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/meetnav/internal/config"
	"github.com/MrWong99/meetnav/internal/resilience"
	"github.com/MrWong99/meetnav/pkg/provider/llm"
	"github.com/MrWong99/meetnav/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/meetnav/pkg/provider/llm/openai"
)

// defaultAzureAPIVersion is used when an azure-openai entry sets no
// options.api_version.
const defaultAzureAPIVersion = "2024-10-21"

// registerBuiltinProviders wires all built-in LLM factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// Vendors served by any-llm-go share the same pattern: optional APIKey
	// plus optional BaseURL. Without a key the backend reads the vendor's
	// environment variable.
	for _, name := range anyllm.SupportedProviders {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// Any server speaking the OpenAI chat completions API (vLLM, LM Studio,
	// LiteLLM, ...).
	reg.RegisterLLM("openai-compatible", func(entry config.ProviderEntry) (llm.Provider, error) {
		return oaillm.New(entry.APIKey, entry.Model, openAIOptions(entry)...)
	})

	// Azure deployments: BaseURL is the resource endpoint, Model the
	// deployment name.
	reg.RegisterLLM("azure-openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		version := optString(entry.Options, "api_version")
		if version == "" {
			version = defaultAzureAPIVersion
		}
		opts := append(openAIOptions(entry), oaillm.WithAzure(version))
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	slog.Debug("registered llm providers", "names", reg.LLMNames())
}

func openAIOptions(entry config.ProviderEntry) []oaillm.Option {
	var opts []oaillm.Option
	if entry.BaseURL != "" {
		opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
	}
	if org := optString(entry.Options, "organization"); org != "" {
		opts = append(opts, oaillm.WithOrganization(org))
	}
	if d, err := time.ParseDuration(optString(entry.Options, "timeout")); err == nil && d > 0 {
		opts = append(opts, oaillm.WithTimeout(d))
	}
	if n := optInt(entry.Options, "context_window"); n > 0 {
		opts = append(opts, oaillm.WithContextWindow(n))
	}
	return opts
}

// buildLLM creates the configured provider behind a circuit breaker, with
// the fallbacks in order. It returns nil when no provider is configured.
func buildLLM(cfg *config.Config, reg *config.Registry, logger *slog.Logger) (llm.Provider, error) {
	entry := cfg.Providers.LLM
	if entry.Name == "" {
		return nil, nil
	}
	primary, err := reg.CreateLLM(entry)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
	}
	group := resilience.NewLLM(entry.Name, primary, resilience.CircuitBreakerConfig{
		Name:   "llm/" + entry.Name,
		Logger: logger,
	})
	logger.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)

	for i, fb := range cfg.Providers.Fallbacks {
		p, err := reg.CreateLLM(fb)
		if err != nil {
			return nil, fmt.Errorf("create fallback llm provider %d %q: %w", i, fb.Name, err)
		}
		group.AddFallback(fb.Name, p)
		logger.Info("provider created", "kind", "llm-fallback", "name", fb.Name, "model", fb.Model)
	}
	return group, nil
}
