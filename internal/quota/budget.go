package quota

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"viralshorts/manager-go/internal/jsonstore"
	"viralshorts/manager-go/internal/utils"
)

const (
	ProviderGemini      = "gemini"
	ProviderGroq        = "groq"
	ProviderOpenRouter  = "openrouter"
	ProviderHuggingFace = "huggingface"

	defaultCooldown    = 60 * time.Second
	defaultTaskCost    = 2000
	groqReservedTokens = 30000
)

// TaskCosts are rough token estimates for one call of each pipeline task.
var TaskCosts = map[string]int{
	"concept":    3000,
	"content":    5000,
	"evaluate":   3000,
	"broll":      1500,
	"metadata":   1000,
	"regenerate": 4000,
	"analysis":   2000,
	"trend":      1500,
}

// providerPriority is the order ChooseProvider walks; Gemini has by far the largest free tier.
var providerPriority = []string{ProviderGemini, ProviderGroq, ProviderOpenRouter}

func TaskCost(task string) int {
	if cost, ok := TaskCosts[task]; ok {
		return cost
	}
	return defaultTaskCost
}

// TokensPerVideo is the token cost of one short's regular stages.
func TokensPerVideo() int {
	return TaskCost("concept") + TaskCost("content") + TaskCost("evaluate") + TaskCost("broll") + TaskCost("metadata")
}

type BudgetLimits struct {
	GroqDaily       int
	GeminiDaily     int
	GeminiRPM       int
	OpenRouterDaily int
}

func DefaultBudgetLimits() BudgetLimits {
	return BudgetLimits{
		GroqDaily:       90000,
		GeminiDaily:     900000,
		GeminiRPM:       50,
		OpenRouterDaily: 200000,
	}
}

type ProviderBudget struct {
	Name             string     `json:"name"`
	DailyLimit       int        `json:"daily_limit"`
	UsedToday        int        `json:"used_today"`
	Reserved         int        `json:"reserved"`
	LastReset        time.Time  `json:"last_reset"`
	CallsToday       int        `json:"calls_today"`
	AvgTokensPerCall int        `json:"avg_tokens_per_call"`
	Last429Time      *time.Time `json:"last_429_time,omitempty"`
	CooldownUntil    *time.Time `json:"cooldown_until,omitempty"`
}

func (b ProviderBudget) Available() int {
	return b.DailyLimit - b.UsedToday - b.Reserved
}

func (b ProviderBudget) InCooldown(now time.Time) bool {
	return b.CooldownUntil != nil && now.Before(*b.CooldownUntil)
}

type BudgetStatus struct {
	Name       string
	Available  int
	Used       int
	Limit      int
	Calls      int
	InCooldown bool
}

// Budget tracks daily token spend per LLM provider and parks a provider after a 429.
type Budget struct {
	file   *jsonstore.File
	limits BudgetLimits
	now    func() time.Time
}

func NewBudget(dir string, limits BudgetLimits) *Budget {
	def := DefaultBudgetLimits()
	if limits.GroqDaily <= 0 {
		limits.GroqDaily = def.GroqDaily
	}
	if limits.GeminiDaily <= 0 {
		limits.GeminiDaily = def.GeminiDaily
	}
	if limits.GeminiRPM <= 0 {
		limits.GeminiRPM = def.GeminiRPM
	}
	if limits.OpenRouterDaily <= 0 {
		limits.OpenRouterDaily = def.OpenRouterDaily
	}
	return &Budget{
		file:   jsonstore.Open(filepath.Join(dir, "token_budget.json")),
		limits: limits,
		now:    time.Now,
	}
}

func (b *Budget) Limits() BudgetLimits { return b.limits }

func (b *Budget) update(ctx context.Context, fn func(budgets map[string]*ProviderBudget, now time.Time) error) error {
	budgets := map[string]*ProviderBudget{}
	return b.file.Update(ctx, &budgets, func(bool) error {
		now := b.now()
		b.seed(budgets, now)
		b.resetIfNewDay(budgets, now)
		return fn(budgets, now)
	})
}

func (b *Budget) seed(budgets map[string]*ProviderBudget, now time.Time) {
	defaults := []ProviderBudget{
		{Name: ProviderGroq, DailyLimit: b.limits.GroqDaily, Reserved: groqReservedTokens, AvgTokensPerCall: 2000},
		{Name: ProviderGemini, DailyLimit: b.limits.GeminiDaily, AvgTokensPerCall: 1500},
		{Name: ProviderOpenRouter, DailyLimit: b.limits.OpenRouterDaily, AvgTokensPerCall: 1500},
	}
	for _, d := range defaults {
		d := d
		existing := budgets[d.Name]
		if existing == nil {
			d.LastReset = now
			budgets[d.Name] = &d
			continue
		}
		// Limits follow configuration; usage counters stay.
		existing.DailyLimit = d.DailyLimit
	}
}

func (b *Budget) resetIfNewDay(budgets map[string]*ProviderBudget, now time.Time) {
	today := now.Format(time.DateOnly)
	for name, budget := range budgets {
		if budget.LastReset.IsZero() || today > budget.LastReset.In(now.Location()).Format(time.DateOnly) {
			if !budget.LastReset.IsZero() {
				utils.Info("token budget daily reset", "provider", name)
			}
			budget.UsedToday = 0
			budget.CallsToday = 0
			budget.LastReset = now
			budget.CooldownUntil = nil
		}
	}
}

func (b *Budget) AvailableTokens(ctx context.Context, provider string) (int, error) {
	available := 0
	err := b.update(ctx, func(budgets map[string]*ProviderBudget, _ time.Time) error {
		if budget := budgets[provider]; budget != nil {
			available = budget.Available()
		}
		return nil
	})
	return available, err
}

func (b *Budget) InCooldown(ctx context.Context, provider string) (bool, error) {
	cooling := false
	err := b.update(ctx, func(budgets map[string]*ProviderBudget, now time.Time) error {
		if budget := budgets[provider]; budget != nil {
			cooling = budget.InCooldown(now)
		}
		return nil
	})
	return cooling, err
}

// Record429 parks provider for retry (60s when retry <= 0).
func (b *Budget) Record429(ctx context.Context, provider string, retry time.Duration) error {
	if retry <= 0 {
		retry = defaultCooldown
	}
	return b.update(ctx, func(budgets map[string]*ProviderBudget, now time.Time) error {
		budget := budgets[provider]
		if budget == nil {
			return nil
		}
		until := now.Add(retry)
		hit := now
		budget.Last429Time = &hit
		budget.CooldownUntil = &until
		utils.Warn("provider cooldown", "provider", provider, "retry", retry.String())
		return nil
	})
}

func (b *Budget) RecordUsage(ctx context.Context, provider string, tokens int) error {
	return b.update(ctx, func(budgets map[string]*ProviderBudget, _ time.Time) error {
		budget := budgets[provider]
		if budget == nil {
			return nil
		}
		budget.UsedToday += tokens
		budget.CallsToday++
		calls := budget.CallsToday
		budget.AvgTokensPerCall = (budget.AvgTokensPerCall*(calls-1) + tokens) / calls
		return nil
	})
}

// ChooseProvider returns the first provider in priority order with enough tokens left
// for task and no active cooldown. When every provider is exhausted it still answers
// gemini, whose limits recover fastest.
func (b *Budget) ChooseProvider(ctx context.Context, task string) (string, error) {
	cost := TaskCost(task)
	chosen := ""
	err := b.update(ctx, func(budgets map[string]*ProviderBudget, now time.Time) error {
		for _, name := range providerPriority {
			budget := budgets[name]
			if budget == nil {
				continue
			}
			if budget.Available() >= cost && !budget.InCooldown(now) {
				chosen = name
				return nil
			}
		}
		utils.Warn("all provider budgets exhausted; trying gemini", "task", task)
		chosen = ProviderGemini
		return nil
	})
	return chosen, err
}

func (b *Budget) EstimateVideosRemaining(ctx context.Context) (int, error) {
	total := 0
	err := b.update(ctx, func(budgets map[string]*ProviderBudget, _ time.Time) error {
		for _, budget := range budgets {
			total += budget.Available()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if total < 0 {
		return 0, nil
	}
	return total / TokensPerVideo(), nil
}

func (b *Budget) Status(ctx context.Context) ([]BudgetStatus, error) {
	var out []BudgetStatus
	err := b.update(ctx, func(budgets map[string]*ProviderBudget, now time.Time) error {
		for name, budget := range budgets {
			out = append(out, BudgetStatus{
				Name:       name,
				Available:  budget.Available(),
				Used:       budget.UsedToday,
				Limit:      budget.DailyLimit,
				Calls:      budget.CallsToday,
				InCooldown: budget.InCooldown(now),
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}
