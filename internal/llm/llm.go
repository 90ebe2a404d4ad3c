// Package llm talks to the free-tier text generation providers and falls back between
// them so a single exhausted quota never stalls a batch.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.8
	requestTimeout     = 120 * time.Second
)

var (
	ErrAllProvidersFailed = errors.New("all llm providers failed")
	ErrEmptyResponse      = errors.New("empty llm response")
)

type Request struct {
	Task        string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// Critical routes Gemini calls through the critical quota pool.
	Critical bool
}

func (r Request) withDefaults() Request {
	if r.MaxTokens <= 0 {
		r.MaxTokens = defaultMaxTokens
	}
	if r.Temperature <= 0 {
		r.Temperature = defaultTemperature
	}
	return r
}

type Provider interface {
	Name() string
	Models() []string
	Complete(ctx context.Context, model string, req Request) (string, error)
}

// Completer is what the pipeline stages depend on.
type Completer interface {
	Call(ctx context.Context, req Request) (string, error)
}

// RateLimitError reports a 429 from a provider. RetryAfter is zero when the provider
// gave no hint.
type RateLimitError struct {
	Provider   string
	Model      string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s %s rate limited (retry in %s)", e.Provider, e.Model, e.RetryAfter)
	}
	return fmt.Sprintf("%s %s rate limited", e.Provider, e.Model)
}

type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s response status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

// skipModel reports whether err should move a provider on to its next model.
func skipModel(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusNotFound, http.StatusBadRequest:
			return true
		}
		return se.StatusCode >= http.StatusInternalServerError
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	return errors.Is(err, ErrEmptyResponse)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
