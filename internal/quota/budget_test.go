package quota

import (
	"context"
	"testing"
	"time"
)

func newTestBudget(t *testing.T, limits BudgetLimits, now *time.Time) *Budget {
	t.Helper()
	b := NewBudget(t.TempDir(), limits)
	b.now = func() time.Time { return *now }
	return b
}

func TestTokensPerVideo(t *testing.T) {
	if got := TokensPerVideo(); got != 13500 {
		t.Fatalf("TokensPerVideo = %d, want 13500", got)
	}
	if got := TaskCost("unknown-task"); got != defaultTaskCost {
		t.Fatalf("TaskCost(unknown) = %d", got)
	}
}

func TestNewBudgetFillsDefaults(t *testing.T) {
	b := NewBudget(t.TempDir(), BudgetLimits{GroqDaily: 1000})
	limits := b.Limits()
	if limits.GroqDaily != 1000 || limits.GeminiDaily != 900000 || limits.OpenRouterDaily != 200000 || limits.GeminiRPM != 50 {
		t.Fatalf("limits = %+v", limits)
	}
}

func TestChooseProviderPriorityAndCooldown(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBudget(t, DefaultBudgetLimits(), &now)
	ctx := context.Background()

	got, err := b.ChooseProvider(ctx, "content")
	if err != nil {
		t.Fatal(err)
	}
	if got != ProviderGemini {
		t.Fatalf("first choice = %s", got)
	}

	if err := b.Record429(ctx, ProviderGemini, 30*time.Second); err != nil {
		t.Fatal(err)
	}
	if got, _ := b.ChooseProvider(ctx, "content"); got != ProviderGroq {
		t.Fatalf("after gemini 429 = %s, want groq", got)
	}
	cooling, err := b.InCooldown(ctx, ProviderGemini)
	if err != nil || !cooling {
		t.Fatalf("gemini cooldown = %v err=%v", cooling, err)
	}

	now = now.Add(31 * time.Second)
	if got, _ := b.ChooseProvider(ctx, "content"); got != ProviderGemini {
		t.Fatalf("after cooldown = %s, want gemini", got)
	}
}

func TestChooseProviderFallsBackToGemini(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limits := BudgetLimits{GroqDaily: 31000, GeminiDaily: 1000, OpenRouterDaily: 1000}
	b := newTestBudget(t, limits, &now)
	got, err := b.ChooseProvider(context.Background(), "content")
	if err != nil {
		t.Fatal(err)
	}
	if got != ProviderGemini {
		t.Fatalf("exhausted fallback = %s", got)
	}
}

func TestRecordUsageAndDailyReset(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBudget(t, DefaultBudgetLimits(), &now)
	ctx := context.Background()

	if err := b.RecordUsage(ctx, ProviderGroq, 4000); err != nil {
		t.Fatal(err)
	}
	left, err := b.AvailableTokens(ctx, ProviderGroq)
	if err != nil {
		t.Fatal(err)
	}
	if want := 90000 - groqReservedTokens - 4000; left != want {
		t.Fatalf("groq available = %d, want %d", left, want)
	}
	if err := b.Record429(ctx, ProviderGroq, 0); err != nil {
		t.Fatal(err)
	}

	now = now.Add(24 * time.Hour)
	left, _ = b.AvailableTokens(ctx, ProviderGroq)
	if want := 90000 - groqReservedTokens; left != want {
		t.Fatalf("groq available after reset = %d, want %d", left, want)
	}
	if cooling, _ := b.InCooldown(ctx, ProviderGroq); cooling {
		t.Fatal("cooldown should clear on daily reset")
	}
}

func TestEstimateVideosRemaining(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newTestBudget(t, DefaultBudgetLimits(), &now)
	got, err := b.EstimateVideosRemaining(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := (90000 - groqReservedTokens + 900000 + 200000) / 13500
	if got != want {
		t.Fatalf("videos remaining = %d, want %d", got, want)
	}
	status, err := b.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(status) != 3 || status[0].Name != ProviderGemini {
		t.Fatalf("status = %+v", status)
	}
}
