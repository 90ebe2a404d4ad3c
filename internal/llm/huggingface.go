package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultHuggingFaceBaseURL = "https://api-inference.huggingface.co"

var DefaultHuggingFaceModels = []string{
	"mistralai/Mistral-7B-Instruct-v0.3",
	"HuggingFaceH4/zephyr-7b-beta",
	"google/gemma-2-2b-it",
}

type HuggingFace struct {
	apiKey  string
	baseURL string
	models  []string
	client  *http.Client
}

func NewHuggingFace(apiKey, baseURL string, models []string) *HuggingFace {
	if baseURL == "" {
		baseURL = DefaultHuggingFaceBaseURL
	}
	if len(models) == 0 {
		models = DefaultHuggingFaceModels
	}
	return &HuggingFace{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		models:  models,
		client:  newHTTPClient(),
	}
}

func (h *HuggingFace) Name() string     { return "huggingface" }
func (h *HuggingFace) Models() []string { return h.models }

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func (h *HuggingFace) Complete(ctx context.Context, model string, req Request) (string, error) {
	payload := map[string]any{
		"inputs": req.Prompt,
		"parameters": map[string]any{
			"max_new_tokens":   req.MaxTokens,
			"temperature":      req.Temperature,
			"return_full_text": false,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/models/%s", h.baseURL, model), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &RateLimitError{Provider: h.Name(), Model: model}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Provider: h.Name(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	var out []hfGeneration
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode huggingface response: %w", err)
	}
	if len(out) == 0 || strings.TrimSpace(out[0].GeneratedText) == "" {
		return "", ErrEmptyResponse
	}
	return out[0].GeneratedText, nil
}
