package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidLLMNames lists the LLM provider names registered by the meetnav
// binary. Used by [Validate] to warn about unrecognised provider names.
var ValidLLMNames = []string{
	"openai", "openai-compatible", "azure-openai",
	"anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// MinPollInterval is the fastest accepted capture cadence.
const MinPollInterval = 100 * time.Millisecond

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	c := cfg.Capture
	if c.WindowClass == "" {
		errs = append(errs, errors.New("capture.window_class is required"))
	}
	if c.Identity != "draft" && c.Identity != "final" {
		errs = append(errs, fmt.Errorf("capture.identity %q is invalid; valid values: draft, final", c.Identity))
	}
	if c.PollInterval < MinPollInterval {
		errs = append(errs, fmt.Errorf("capture.poll_interval %s is below the minimum of %s", c.PollInterval, MinPollInterval))
	}
	if c.MaxBackfillPages < 0 {
		errs = append(errs, fmt.Errorf("capture.max_backfill_pages %d must not be negative", c.MaxBackfillPages))
	}

	validateProvider("providers.llm", cfg.Providers.LLM)
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; summarize, viewpoints, navigate and minutes will be unavailable")
		if len(cfg.Providers.Fallbacks) > 0 {
			errs = append(errs, errors.New("providers.fallbacks requires providers.llm to be configured"))
		}
	}
	for i, fb := range cfg.Providers.Fallbacks {
		key := fmt.Sprintf("providers.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", key))
			continue
		}
		validateProvider(key, fb)
	}

	if cfg.Meeting.Live && cfg.Meeting.LiveInterval < 5*time.Second {
		errs = append(errs, fmt.Errorf("meeting.live_interval %s is below the minimum of 5s", cfg.Meeting.LiveInterval))
	}

	for _, action := range Actions {
		tmpl, _ := cfg.Prompts.Template(action)
		if _, _, err := tmpl.Render(placeholderData()); err != nil {
			errs = append(errs, fmt.Errorf("prompts.%s: %w", action, err))
		}
	}

	return errors.Join(errs...)
}

// validateProvider logs a warning if the entry names a provider not found in
// [ValidLLMNames].
func validateProvider(key string, entry ProviderEntry) {
	if entry.Name == "" || slices.Contains(ValidLLMNames, entry.Name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"key", key,
		"name", entry.Name,
		"known", ValidLLMNames,
	)
}
