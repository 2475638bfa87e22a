package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/meetnav/internal/config"
	"github.com/MrWong99/meetnav/pkg/provider/llm"
	llmmock "github.com/MrWong99/meetnav/pkg/provider/llm/mock"
)

const transcript = `[10:00:01] Alice: Let's settle the budget today.
[10:00:09] Bob: I need two more engineers.
[10:00:15] Alice: Then travel has to go.
`

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// testGlobals registers provider "mock" backed by p.
func testGlobals(p *llmmock.Provider) *globals {
	return &globals{
		registry: func() *config.Registry {
			reg := config.NewRegistry()
			reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) { return p, nil })
			return reg
		},
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command and returns stdout and stderr.
func execute(t *testing.T, g *globals, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd(g)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

const mockConfig = `
server:
  log_level: error
providers:
  llm:
    name: mock
    model: test-model
meeting:
  topic: Budget
  key_stakeholders: Alice, Bob
`

func TestRegisterBuiltinProviders(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	got := reg.LLMNames()
	for _, name := range config.ValidLLMNames {
		if !slices.Contains(got, name) {
			t.Errorf("provider %q not registered; got %v", name, got)
		}
	}

	// Construction failures surface as errors, not panics.
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "azure-openai", APIKey: "k", Model: "gpt-4o"}); err == nil {
		t.Error("azure-openai without base_url succeeded")
	}
	p, err := reg.CreateLLM(config.ProviderEntry{
		Name:    "openai-compatible",
		APIKey:  "k",
		Model:   "local-model",
		BaseURL: "http://127.0.0.1:1234/v1",
		Options: map[string]any{"timeout": "30s"},
	})
	if err != nil || p == nil {
		t.Errorf("openai-compatible = %v, %v", p, err)
	}
}

func TestBuildLLM(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		p, err := buildLLM(&config.Config{}, config.NewRegistry(), quiet())
		if p != nil || err != nil {
			t.Errorf("buildLLM() = %v, %v; want nil, nil", p, err)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Providers: config.ProvidersConfig{LLM: config.ProviderEntry{Name: "nope"}}}
		if _, err := buildLLM(cfg, config.NewRegistry(), quiet()); !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("err = %v, want ErrProviderNotRegistered", err)
		}
	})

	t.Run("fallback answers when primary fails", func(t *testing.T) {
		t.Parallel()
		primary := &llmmock.Provider{CompleteErr: errors.New("rate limited")}
		backup := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from backup"}}
		reg := config.NewRegistry()
		reg.RegisterLLM("primary", func(config.ProviderEntry) (llm.Provider, error) { return primary, nil })
		reg.RegisterLLM("backup", func(config.ProviderEntry) (llm.Provider, error) { return backup, nil })
		cfg := &config.Config{Providers: config.ProvidersConfig{
			LLM:       config.ProviderEntry{Name: "primary"},
			Fallbacks: []config.ProviderEntry{{Name: "backup"}},
		}}

		p, err := buildLLM(cfg, reg, quiet())
		if err != nil {
			t.Fatal(err)
		}
		resp, err := p.Complete(context.Background(), llm.CompletionRequest{})
		if err != nil || resp.Content != "from backup" {
			t.Errorf("Complete() = %+v, %v", resp, err)
		}
	})
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  Budget agreed.  "}}
	cfgPath := writeTemp(t, "meetnav.yaml", mockConfig)
	path := writeTemp(t, "zoom_20261012100000.txt", transcript)

	stdout, _, err := execute(t, testGlobals(p), "analyze", path, "--config", cfgPath, "--action", "summarize")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if stdout != "Budget agreed.\n" {
		t.Errorf("stdout = %q", stdout)
	}
	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	user := calls[0].Req.Messages[0].Content
	if !strings.Contains(user, "[10:00:09] Bob: I need two more engineers.") {
		t.Errorf("prompt lacks the transcript: %q", user)
	}
}

func TestAnalyze_MinutesExport(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "# Minutes\n\n- Budget agreed"}}
	cfgPath := writeTemp(t, "meetnav.yaml", mockConfig)
	path := writeTemp(t, "zoom_20261012100000.txt", transcript)

	_, stderr, err := execute(t, testGlobals(p), "analyze", path, "-c", cfgPath, "-a", "minutes")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	dir := filepath.Dir(path)
	for _, name := range []string{"zoom_20261012100000_minutes.md", "zoom_20261012100000_minutes.html"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if !strings.Contains(stderr, "minutes written to") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	t.Parallel()
	cfgPath := writeTemp(t, "meetnav.yaml", mockConfig)
	path := writeTemp(t, "zoom.txt", transcript)
	empty := writeTemp(t, "empty.txt", "not a transcript line\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown action", []string{"analyze", path, "-c", cfgPath, "-a", "dance"}, "unknown action"},
		{"missing file", []string{"analyze", filepath.Join(t.TempDir(), "nope.txt"), "-c", cfgPath}, "no such file"},
		{"empty transcript", []string{"analyze", empty, "-c", cfgPath}, "transcript is empty"},
		{"explicit config missing", []string{"analyze", path, "-c", filepath.Join(t.TempDir(), "x.yaml")}, "not found"},
		{"no arguments", []string{"analyze"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := execute(t, testGlobals(&llmmock.Provider{}), tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestAnalyze_DefaultConfigWithoutProvider(t *testing.T) {
	t.Parallel()
	path := writeTemp(t, "zoom.txt", transcript)
	// The default config path does not exist in the test directory, so the
	// defaults apply and no provider is configured.
	_, _, err := execute(t, testGlobals(&llmmock.Provider{}), "analyze", path)
	if err == nil || !strings.Contains(err.Error(), "no LLM provider configured") {
		t.Errorf("err = %v", err)
	}
}

func TestOpenLogFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg := &config.Config{Capture: config.CaptureConfig{OutputDir: filepath.Join(dir, "transcripts")}}
	f, err := openLogFile(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if want := filepath.Join(dir, "transcripts", "meetnav.log"); f.Name() != want {
		t.Errorf("log file = %s, want %s", f.Name(), want)
	}

	cfg.Server.LogFile = filepath.Join(dir, "logs", "custom.log")
	f, err = openLogFile(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if f.Name() != cfg.Server.LogFile {
		t.Errorf("log file = %s, want %s", f.Name(), cfg.Server.LogFile)
	}
}

func TestOptString(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"api_version": "2024-10-21", "timeout": 30}
	if got := optString(opts, "api_version"); got != "2024-10-21" {
		t.Errorf("api_version = %q", got)
	}
	if got := optString(opts, "timeout"); got != "" {
		t.Errorf("non-string value = %q, want empty", got)
	}
	if got := optString(nil, "x"); got != "" {
		t.Errorf("nil map = %q", got)
	}
}

func TestOptInt(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"context_window": 8192, "ratio": 4096.0, "name": "x"}
	for key, want := range map[string]int{"context_window": 8192, "ratio": 4096, "name": 0, "missing": 0} {
		if got := optInt(opts, key); got != want {
			t.Errorf("optInt(%q) = %d, want %d", key, got, want)
		}
	}
}
