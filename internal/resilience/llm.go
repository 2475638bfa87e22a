package resilience

import (
	"context"

	"github.com/MrWong99/meetnav/pkg/provider/llm"
)

// LLM implements [llm.Provider] on top of a [FallbackGroup]: the primary is
// always behind a circuit breaker, and configured fallbacks are tried in
// order when it fails.
type LLM struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLM)(nil)

// NewLLM wraps primary. Use [LLM.AddFallback] to register fallbacks.
func NewLLM(primaryName string, primary llm.Provider, cb CircuitBreakerConfig) *LLM {
	return &LLM{group: NewFallbackGroup(primaryName, primary, cb)}
}

// AddFallback registers provider as the next fallback.
func (l *LLM) AddFallback(name string, provider llm.Provider) {
	l.group.Add(name, provider)
}

// Complete sends req to the first healthy provider.
func (l *LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, _, err := Call(l.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
	return resp, err
}

// CountTokens uses the primary's counter; it makes no network call and does
// not pass through the breakers.
func (l *LLM) CountTokens(messages []llm.Message) (int, error) {
	return l.group.Primary().CountTokens(messages)
}

// Capabilities returns the primary's capabilities.
func (l *LLM) Capabilities() llm.ModelCapabilities {
	return l.group.Primary().Capabilities()
}

// Status reports the breaker state of every provider.
func (l *LLM) Status() []MemberStatus {
	return l.group.Status()
}
