// Package mock provides a scripted [llm.Provider] for tests.
//
//	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "- Budget agreed"}}
//
// Configure the fields before the first call. Complete records every request
// so tests can assert on the rendered prompts through [Provider.Calls].
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/meetnav/pkg/provider/llm"
)

// CompleteCall is one recorded Complete invocation.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider is a scripted [llm.Provider].
type Provider struct {
	mu    sync.Mutex
	calls []CompleteCall

	// CompleteResponse is returned by Complete. Nil returns an empty
	// response unless CompleteErr is set.
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	// CompleteFunc replaces CompleteResponse and CompleteErr when set.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// TokenCount is returned by CountTokens when non-zero; otherwise the
	// character estimate is used.
	TokenCount     int
	CountTokensErr error

	ModelCapabilities llm.ModelCapabilities
}

var _ llm.Provider = (*Provider)(nil)

// Complete records req and returns the scripted answer.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, CompleteCall{Ctx: ctx, Req: req})
	fn, resp, err := p.CompleteFunc, p.CompleteResponse, p.CompleteErr
	p.mu.Unlock()

	switch {
	case fn != nil:
		return fn(ctx, req)
	case err != nil:
		return nil, err
	case resp == nil:
		return &llm.CompletionResponse{}, nil
	}
	out := *resp
	return &out, nil
}

// CountTokens implements [llm.Provider].
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TokenCount != 0 {
		return p.TokenCount, p.CountTokensErr
	}
	return llm.EstimateTokens(messages), p.CountTokensErr
}

// Capabilities implements [llm.Provider].
func (p *Provider) Capabilities() llm.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelCapabilities
}

// Calls returns a copy of the recorded Complete calls.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.calls))
	copy(out, p.calls)
	return out
}
