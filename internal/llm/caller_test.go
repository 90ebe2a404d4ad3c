package llm

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"testing"

	"viralshorts/manager-go/internal/quota"
)

type fakeProvider struct {
	name   string
	models []string
	// errs maps model to the error it returns; a missing entry answers "from <name>".
	errs  map[string]error
	calls []string
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Models() []string { return f.models }

func (f *fakeProvider) Complete(_ context.Context, model string, _ Request) (string, error) {
	f.calls = append(f.calls, model)
	if err := f.errs[model]; err != nil {
		return "", err
	}
	return "from " + f.name, nil
}

func TestCallerFallsBackAndParksRateLimitedProvider(t *testing.T) {
	dir := t.TempDir()
	budget := quota.NewBudget(dir, quota.DefaultBudgetLimits())
	gemini := &fakeProvider{
		name:   quota.ProviderGemini,
		models: []string{"gemini-2.0-flash"},
		errs: map[string]error{
			"gemini-2.0-flash": &RateLimitError{Provider: "gemini", Model: "gemini-2.0-flash"},
		},
	}
	groq := &fakeProvider{name: quota.ProviderGroq, models: []string{"llama"}}
	c := NewCaller(budget, nil, gemini, groq)
	ctx := context.Background()

	text, err := c.Call(ctx, Request{Task: "content", Prompt: "x"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if text != "from groq" {
		t.Fatalf("text = %q", text)
	}
	cooling, err := budget.InCooldown(ctx, quota.ProviderGemini)
	if err != nil || !cooling {
		t.Fatalf("gemini should be cooling down (err=%v)", err)
	}

	if _, err := c.Call(ctx, Request{Task: "content", Prompt: "y"}); err != nil {
		t.Fatalf("second Call: %v", err)
	}
	if len(gemini.calls) != 1 {
		t.Fatalf("gemini called %d times, want 1", len(gemini.calls))
	}
	left, _ := budget.AvailableTokens(ctx, quota.ProviderGroq)
	if want := 90000 - 30000 - 2*defaultMaxTokens; left != want {
		t.Fatalf("groq available = %d, want %d", left, want)
	}
}

func TestCallerSkipsUnavailableModels(t *testing.T) {
	groq := &fakeProvider{
		name:   quota.ProviderGroq,
		models: []string{"gone", "busy", "ok"},
		errs: map[string]error{
			"gone": &StatusError{Provider: "groq", StatusCode: 404},
			"busy": &RateLimitError{Provider: "groq", Model: "busy"},
		},
	}
	c := NewCaller(nil, nil, groq)
	text, err := c.Call(context.Background(), Request{Task: "concept", Prompt: "x"})
	if err != nil || text != "from groq" {
		t.Fatalf("text=%q err=%v", text, err)
	}
	if len(groq.calls) != 3 {
		t.Fatalf("calls = %v", groq.calls)
	}
}

func TestCallerWalksPastServerAndTransportErrors(t *testing.T) {
	groq := &fakeProvider{
		name:   quota.ProviderGroq,
		models: []string{"down", "gateway", "unreachable", "ok"},
		errs: map[string]error{
			"down":        &StatusError{Provider: "groq", StatusCode: 500},
			"gateway":     &StatusError{Provider: "groq", StatusCode: 502},
			"unreachable": &url.Error{Op: "Post", URL: "https://api.groq.com", Err: errors.New("connection reset by peer")},
		},
	}
	c := NewCaller(nil, nil, groq)
	text, err := c.Call(context.Background(), Request{Task: "concept", Prompt: "x"})
	if err != nil || text != "from groq" {
		t.Fatalf("text=%q err=%v", text, err)
	}
	if !slices.Equal(groq.calls, []string{"down", "gateway", "unreachable", "ok"}) {
		t.Fatalf("calls = %v", groq.calls)
	}
	if skipModel(&StatusError{Provider: "groq", StatusCode: 401}) {
		t.Fatal("an auth failure should not move on to the next model")
	}
}

func TestCallerAllProvidersFailed(t *testing.T) {
	boom := errors.New("boom")
	hf := &fakeProvider{name: quota.ProviderHuggingFace, models: []string{"m"}, errs: map[string]error{"m": boom}}
	c := NewCaller(nil, nil, hf)
	_, err := c.Call(context.Background(), Request{Task: "concept", Prompt: "x"})
	if !errors.Is(err, ErrAllProvidersFailed) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	if _, err := NewCaller(nil, nil).Call(context.Background(), Request{}); !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("no providers err = %v", err)
	}
}

func TestCallerPrefersPoolModelForCriticalTasks(t *testing.T) {
	dir := t.TempDir()
	pools := quota.NewPools(dir)
	gemini := &fakeProvider{name: quota.ProviderGemini, models: []string{"gemini-2.0-flash", "gemini-1.5-flash"}}
	c := NewCaller(nil, pools, gemini)
	ctx := context.Background()

	if _, err := c.Call(ctx, Request{Task: "evaluate", Prompt: "x", Critical: true}); err != nil {
		t.Fatal(err)
	}
	if gemini.calls[0] != "gemini-2.5-pro" {
		t.Fatalf("first model = %s, want gemini-2.5-pro", gemini.calls[0])
	}
	left, err := pools.Available(ctx, quota.PoolCritical)
	if err != nil {
		t.Fatal(err)
	}
	if left != 53 {
		t.Fatalf("critical pool available = %d, want 53", left)
	}
}
