package ai

import (
	"context"
	"net/http"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openai/gpt-4.1-mini"
)

// OpenRouterProvider implements Provider for OpenRouter.
// OpenRouter uses an OpenAI-compatible API with extra HTTP headers.
type OpenRouterProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	referer string
	title   string
	model   string
	models  []ModelInfo
}

// OpenRouterOption configures an OpenRouterProvider.
type OpenRouterOption func(*OpenRouterProvider)

// WithOpenRouterBaseURL sets the base URL (for testing).
func WithOpenRouterBaseURL(url string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.baseURL = url
	}
}

// WithOpenRouterHTTPClient sets a custom HTTP client.
func WithOpenRouterHTTPClient(client *http.Client) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.client = client
	}
}

// WithOpenRouterApp sets the HTTP-Referer and X-Title attribution headers.
func WithOpenRouterApp(referer, title string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.referer = referer
		p.title = title
	}
}

// WithOpenRouterModel sets the model used when a request does not name one.
func WithOpenRouterModel(model string) OpenRouterOption {
	return func(p *OpenRouterProvider) {
		p.model = model
	}
}

// NewOpenRouterProvider creates a new OpenRouter provider.
func NewOpenRouterProvider(apiKey string, opts ...OpenRouterOption) *OpenRouterProvider {
	p := &OpenRouterProvider{
		apiKey:  apiKey,
		baseURL: defaultOpenRouterBaseURL,
		client:  http.DefaultClient,
		referer: "http://localhost:3000",
		title:   "30 Days English",
		model:   defaultOpenRouterModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenRouterProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if p.apiKey == "" {
		return CompletionResponse{}, ErrNoCredential
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	return postChatCompletion(ctx, p.client, "openrouter", p.baseURL+"/chat/completions",
		map[string]string{
			"Authorization": "Bearer " + p.apiKey,
			"HTTP-Referer":  p.referer,
			"X-Title":       p.title,
		},
		newOpenAIRequest(model, req),
	)
}

func (p *OpenRouterProvider) Models() []ModelInfo {
	if p.models != nil {
		return p.models
	}
	return []ModelInfo{
		{ID: defaultOpenRouterModel, Name: "GPT-4.1 Mini via OpenRouter", MaxTokens: 1047576, Description: "Structured-output capable default"},
	}
}

func (p *OpenRouterProvider) HealthCheck(ctx context.Context) error {
	return getStatus(ctx, p.client, p.baseURL+"/models", map[string]string{"Authorization": "Bearer " + p.apiKey})
}
