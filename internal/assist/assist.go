// Package assist turns the captured transcript into meeting guidance.
//
// An [Assistant] renders one of the configured prompt templates with the
// transcript and the meeting [Context], sends it to an [llm.Provider] and
// returns the model's answer. The four actions (summarize, viewpoints,
// navigate, minutes) differ only in their templates. [Live] re-runs the
// in-meeting actions on a fixed cadence.
//
// Assistants are safe for concurrent use; prompts can be swapped at runtime
// with [Assistant.SetPrompts] when the configuration file changes.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/meetnav/internal/config"
	"github.com/MrWong99/meetnav/internal/observe"
	llm "github.com/MrWong99/meetnav/pkg/provider/llm"
)

// ErrEmptyTranscript is returned when an action is requested before anything
// has been captured. No request is sent to the model in that case.
var ErrEmptyTranscript = errors.New("assist: transcript is empty")

const (
	defaultTemperature = 0.3

	// reserveTokens is kept free in the context window for the answer.
	reserveTokens = 1024
)

// Context carries the meeting details rendered into every prompt.
type Context struct {
	Topic           string
	Goals           string
	Background      string
	Language        string
	UserName        string
	KeyStakeholders string
	Notes           string
	Duration        string

	// SpeakerStats is a rendered [SpeakerStats] summary. Empty when unknown.
	SpeakerStats string
}

// ContextFromConfig copies the meeting section of the configuration.
func ContextFromConfig(m config.MeetingConfig) Context {
	return Context{
		Topic:           m.Topic,
		Goals:           m.Goals,
		Background:      m.Background,
		Language:        m.Language,
		UserName:        m.UserName,
		KeyStakeholders: m.KeyStakeholders,
		Notes:           m.Notes,
		Duration:        m.Duration,
	}
}

func (c Context) data(transcript string) map[string]string {
	return map[string]string{
		"transcript":       transcript,
		"meeting_topic":    c.Topic,
		"meeting_goals":    c.Goals,
		"background":       c.Background,
		"language":         c.Language,
		"user_name":        c.UserName,
		"key_stakeholders": c.KeyStakeholders,
		"notes":            c.Notes,
		"duration":         c.Duration,
		"speaker_stats":    c.SpeakerStats,
	}
}

// Result is the outcome of one action.
type Result struct {
	Action  config.Action
	Content string
	At      time.Time
	Err     error
}

// Option is a functional option for [New].
type Option func(*Assistant)

// WithTemperature sets the sampling temperature. Default: 0.3.
func WithTemperature(temp float64) Option {
	return func(a *Assistant) { a.temperature = temp }
}

// WithMaxTokens caps the answer length. Zero leaves it to the provider.
func WithMaxTokens(n int) Option {
	return func(a *Assistant) { a.maxTokens = n }
}

// WithMetrics sets the metric instruments. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.log = l }
}

// WithClock overrides the time source stamped on results.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// Assistant runs prompt-driven actions against an LLM.
type Assistant struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
	metrics     *observe.Metrics
	log         *slog.Logger
	now         func() time.Time

	mu      sync.RWMutex
	prompts config.PromptsConfig
}

// New returns an Assistant that renders prompts and asks provider.
func New(provider llm.Provider, prompts config.PromptsConfig, opts ...Option) *Assistant {
	a := &Assistant{
		provider:    provider,
		prompts:     prompts,
		temperature: defaultTemperature,
		log:         slog.Default(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// SetPrompts replaces the prompt templates used by later calls.
func (a *Assistant) SetPrompts(p config.PromptsConfig) {
	a.mu.Lock()
	a.prompts = p
	a.mu.Unlock()
}

// Summarize condenses the meeting so far.
func (a *Assistant) Summarize(ctx context.Context, transcript string, mc Context) (string, error) {
	return a.Do(ctx, config.ActionSummarize, transcript, mc)
}

// Viewpoints lists each participant's positions.
func (a *Assistant) Viewpoints(ctx context.Context, transcript string, mc Context) (string, error) {
	return a.Do(ctx, config.ActionViewpoints, transcript, mc)
}

// Navigate suggests how to steer the meeting towards its goals.
func (a *Assistant) Navigate(ctx context.Context, transcript string, mc Context) (string, error) {
	return a.Do(ctx, config.ActionNavigate, transcript, mc)
}

// Minutes drafts Markdown meeting minutes.
func (a *Assistant) Minutes(ctx context.Context, transcript string, mc Context) (string, error) {
	return a.Do(ctx, config.ActionMinutes, transcript, mc)
}

// Run executes action and packs the outcome into a [Result].
func (a *Assistant) Run(ctx context.Context, action config.Action, transcript string, mc Context) Result {
	content, err := a.Do(ctx, action, transcript, mc)
	return Result{Action: action, Content: content, At: a.now(), Err: err}
}

// Do renders the prompts for action and asks the model.
func (a *Assistant) Do(ctx context.Context, action config.Action, transcript string, mc Context) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyTranscript
	}

	a.mu.RLock()
	tmpl, err := a.prompts.Template(action)
	a.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("assist: %s: %w", action, err)
	}

	transcript = a.fit(transcript, tmpl, mc)
	system, user, err := tmpl.Render(mc.data(transcript))
	if err != nil {
		return "", fmt.Errorf("assist: %s: %w", action, err)
	}

	return a.Ask(ctx, action, system, []llm.Message{{Role: "user", Content: user}})
}

// Ask sends messages with the system prompt and returns the answer text. It
// records the request latency and a span labelled with action.
func (a *Assistant) Ask(ctx context.Context, action config.Action, system string, messages []llm.Message) (string, error) {
	ctx, span := observe.StartSpan(ctx, "assist."+string(action),
		trace.WithAttributes(attribute.String("assist.action", string(action))))
	var err error
	defer func() { observe.EndSpan(span, err) }()

	start := time.Now()
	var resp *llm.CompletionResponse
	resp, err = a.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     messages,
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
	})
	elapsed := time.Since(start)
	a.metrics.RecordLLMRequest(ctx, string(action), elapsed, err)

	if err != nil {
		observe.Logger(ctx).Warn("assist: request failed", "action", action, "elapsed", elapsed, "error", err)
		return "", fmt.Errorf("assist: %s: %w", action, err)
	}
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("llm.completion_tokens", resp.Usage.CompletionTokens),
	)
	a.log.Debug("assist: answer received", "action", action, "elapsed", elapsed,
		"total_tokens", resp.Usage.TotalTokens)
	return strings.TrimSpace(resp.Content), nil
}

// fit drops the oldest transcript lines until the rendered prompt fits the
// model's context window. The newest line is always kept.
func (a *Assistant) fit(transcript string, tmpl config.PromptTemplate, mc Context) string {
	window := a.provider.Capabilities().ContextWindow
	if window <= 0 {
		return transcript
	}
	budget := window - reserveTokens

	lines := strings.Split(strings.TrimRight(transcript, "\n"), "\n")
	dropped := 0
	for {
		system, user, err := tmpl.Render(mc.data(strings.Join(lines, "\n")))
		if err != nil {
			// Reported by the caller's own render.
			return transcript
		}
		n, err := a.provider.CountTokens([]llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		})
		if err != nil || n <= budget || len(lines) <= 1 {
			break
		}
		drop := max(1, len(lines)/10)
		drop = min(drop, len(lines)-1)
		lines = lines[drop:]
		dropped += drop
	}
	if dropped == 0 {
		return transcript
	}
	a.log.Info("assist: transcript trimmed to fit context window", "dropped_lines", dropped,
		"context_window", window)
	return strings.Join(lines, "\n") + "\n"
}
