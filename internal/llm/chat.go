package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultGroqBaseURL       = "https://api.groq.com/openai/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

var (
	DefaultGroqModels = []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant", "mixtral-8x7b-32768"}

	DefaultOpenRouterModels = []string{
		"meta-llama/llama-3.2-3b-instruct:free",
		"google/gemma-2-9b-it:free",
		"mistralai/mistral-7b-instruct:free",
	}
)

// ChatProvider serves any OpenAI-compatible chat completions endpoint.
type ChatProvider struct {
	name   string
	models []string
	client *openai.Client
}

func NewGroq(apiKey, baseURL string, models []string) *ChatProvider {
	if baseURL == "" {
		baseURL = DefaultGroqBaseURL
	}
	if len(models) == 0 {
		models = DefaultGroqModels
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = newHTTPClient()
	return &ChatProvider{name: "groq", models: models, client: openai.NewClientWithConfig(cfg)}
}

// NewOpenRouter sets the attribution headers OpenRouter asks free-tier callers to send.
func NewOpenRouter(apiKey, baseURL, referer, title string, models []string) *ChatProvider {
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	if len(models) == 0 {
		models = DefaultOpenRouterModels
	}
	headers := map[string]string{}
	if referer != "" {
		headers["HTTP-Referer"] = referer
	}
	if title != "" {
		headers["X-Title"] = title
	}
	client := newHTTPClient()
	client.Transport = headerRoundTripper{next: http.DefaultTransport, headers: headers}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = client
	return &ChatProvider{name: "openrouter", models: models, client: openai.NewClientWithConfig(cfg)}
}

func (p *ChatProvider) Name() string     { return p.name }
func (p *ChatProvider) Models() []string { return p.models }

func (p *ChatProvider) Complete(ctx context.Context, model string, req Request) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", p.translateError(model, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *ChatProvider) translateError(model string, err error) error {
	status := 0
	body := err.Error()
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		body = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusTooManyRequests {
		return &RateLimitError{Provider: p.name, Model: model}
	}
	if status != 0 {
		return &StatusError{Provider: p.name, StatusCode: status, Body: body}
	}
	return err
}

type headerRoundTripper struct {
	next    http.RoundTripper
	headers map[string]string
}

func (t headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.next.RoundTrip(clone)
}
