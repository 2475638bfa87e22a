// Package openai is the [llm.Provider] for servers speaking the OpenAI chat
// completions API: api.openai.com, Azure OpenAI deployments and local
// servers such as vLLM, LM Studio or LiteLLM.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/meetnav/pkg/provider/llm"
)

// Provider sends completions through the official openai-go client.
type Provider struct {
	client oai.Client
	model  string
	caps   llm.ModelCapabilities
}

var _ llm.Provider = (*Provider)(nil)

type settings struct {
	baseURL       string
	organization  string
	azureVersion  string
	timeout       time.Duration
	contextWindow int
}

// Option configures [New].
type Option func(*settings)

// WithBaseURL points the client at another server.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithOrganization sends the OpenAI organization header.
func WithOrganization(org string) Option {
	return func(s *settings) { s.organization = org }
}

// WithAzure treats the base URL as an Azure OpenAI resource endpoint and
// the model as the deployment name.
func WithAzure(apiVersion string) Option {
	return func(s *settings) { s.azureVersion = apiVersion }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithContextWindow overrides the context window guessed from the model
// name. Local servers often run models with a smaller window than the
// model family supports.
func WithContextWindow(tokens int) Option {
	return func(s *settings) { s.contextWindow = tokens }
}

// New builds a provider for model. apiKey may be empty only for a custom
// base URL, since local servers usually accept any key.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	var s settings
	for _, o := range opts {
		o(&s)
	}
	if apiKey == "" && (s.baseURL == "" || s.azureVersion != "") {
		return nil, errors.New("openai: api key must not be empty")
	}

	reqOpts, err := s.requestOptions(apiKey)
	if err != nil {
		return nil, err
	}
	caps := capabilitiesFor(model)
	if s.contextWindow > 0 {
		caps.ContextWindow = s.contextWindow
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: model, caps: caps}, nil
}

func (s settings) requestOptions(apiKey string) ([]option.RequestOption, error) {
	var opts []option.RequestOption
	switch {
	case s.azureVersion != "":
		if s.baseURL == "" {
			return nil, errors.New("openai: azure needs the resource endpoint as base URL")
		}
		opts = append(opts, azure.WithEndpoint(s.baseURL, s.azureVersion), azure.WithAPIKey(apiKey))
	default:
		if s.baseURL != "" {
			opts = append(opts, option.WithBaseURL(s.baseURL))
		}
		// An explicit key stops the client from sending OPENAI_API_KEY to
		// a local server.
		key := apiKey
		if key == "" {
			key = "unused"
		}
		opts = append(opts, option.WithAPIKey(key))
	}
	if s.organization != "" {
		opts = append(opts, option.WithOrganization(s.organization))
	}
	if s.timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: s.timeout}))
	}
	return opts, nil
}

// Complete implements [llm.Provider].
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}
	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// CountTokens implements [llm.Provider] with the character estimate.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.EstimateTokens(messages), nil
}

// Capabilities implements [llm.Provider].
func (p *Provider) Capabilities() llm.ModelCapabilities { return p.caps }

func (p *Provider) params(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := message(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		msgs = append(msgs, msg)
	}

	out := oai.ChatCompletionNewParams{Model: shared.ChatModel(p.model), Messages: msgs}
	if req.Temperature != 0 {
		out.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		out.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return out, nil
}

func message(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return oai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		var a oai.ChatCompletionAssistantMessageParam
		a.Content.OfString = oai.String(m.Content)
		if m.Name != "" {
			a.Name = oai.String(m.Name)
		}
		return oai.ChatCompletionMessageParamUnion{OfAssistant: &a}, nil
	}
	return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
}

// capabilitiesFor guesses limits from OpenAI model names. Azure deployment
// names are free-form and get the default.
func capabilitiesFor(model string) llm.ModelCapabilities {
	caps := llm.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-4o"):
		caps.MaxOutputTokens = 16_384
	case strings.HasPrefix(m, "gpt-4.1"):
		caps.ContextWindow, caps.MaxOutputTokens = 1_047_576, 32_768
	case strings.HasPrefix(m, "gpt-4-turbo"):
	case strings.HasPrefix(m, "gpt-4"):
		caps.ContextWindow = 8_192
	case strings.HasPrefix(m, "gpt-35-turbo"), strings.HasPrefix(m, "gpt-3.5-turbo"):
		caps.ContextWindow = 16_385
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		caps.ContextWindow, caps.MaxOutputTokens = 200_000, 100_000
	}
	return caps
}
