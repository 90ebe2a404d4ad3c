package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"viralshorts/manager-go/internal/utils"
)

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

var DefaultGeminiModels = []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-2.5-flash"}

var geminiRetryPattern = regexp.MustCompile(`(?i)retry in (\d+(?:\.\d+)?)`)

type Gemini struct {
	apiKey  string
	baseURL string
	models  []string
	client  *http.Client
}

func NewGemini(apiKey, baseURL string, models []string) *Gemini {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if len(models) == 0 {
		models = DefaultGeminiModels
	}
	return &Gemini{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		models:  models,
		client:  newHTTPClient(),
	}
}

func (g *Gemini) Name() string     { return "gemini" }
func (g *Gemini) Models() []string { return g.models }

func (g *Gemini) Complete(ctx context.Context, model string, req Request) (string, error) {
	payload := map[string]any{
		"contents": []any{
			map[string]any{
				"parts": []any{
					map[string]any{"text": req.Prompt},
				},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     req.Temperature,
			"maxOutputTokens": req.MaxTokens,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(model), url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		raw, _ := io.ReadAll(resp.Body)
		return "", &RateLimitError{Provider: g.Name(), Model: model, RetryAfter: geminiRetryDelay(string(raw))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Provider: g.Name(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	text, _ := utils.GetString(decoded, "candidates", "0", "content", "parts", "0", "text")
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// geminiRetryDelay reads the "retry in N s" hint from a quota error, padded by two
// seconds. Without a hint it returns 60s.
func geminiRetryDelay(body string) time.Duration {
	m := geminiRetryPattern.FindStringSubmatch(body)
	if m == nil {
		return 60 * time.Second
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 60 * time.Second
	}
	return time.Duration((secs+2)*float64(time.Second))
}
