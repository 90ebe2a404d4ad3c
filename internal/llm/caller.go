package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"viralshorts/manager-go/internal/quota"
	"viralshorts/manager-go/internal/utils"
)

// fallbackOrder is walked after the budget's preferred provider.
var fallbackOrder = []string{quota.ProviderGemini, quota.ProviderGroq, quota.ProviderHuggingFace, quota.ProviderOpenRouter}

type Caller struct {
	providers map[string]Provider
	budget    *quota.Budget
	pools     *quota.Pools
}

// NewCaller wires the configured providers. budget and pools may be nil, in which case
// the fixed fallback order is used without any accounting.
func NewCaller(budget *quota.Budget, pools *quota.Pools, providers ...Provider) *Caller {
	c := &Caller{providers: map[string]Provider{}, budget: budget, pools: pools}
	for _, p := range providers {
		if p != nil {
			c.providers[p.Name()] = p
		}
	}
	return c
}

func (c *Caller) HasProviders() bool { return len(c.providers) > 0 }

func (c *Caller) Call(ctx context.Context, req Request) (string, error) {
	req = req.withDefaults()
	if !c.HasProviders() {
		return "", fmt.Errorf("%w: no provider configured", ErrAllProvidersFailed)
	}

	order := make([]string, 0, len(fallbackOrder)+1)
	if c.budget != nil {
		preferred, err := c.budget.ChooseProvider(ctx, req.Task)
		if err != nil {
			utils.Warn("token budget unavailable", "task", req.Task, "err", err)
		} else {
			order = append(order, preferred)
		}
	}
	for _, name := range fallbackOrder {
		if !contains(order, name) {
			order = append(order, name)
		}
	}

	var lastErr error
	for _, name := range order {
		provider, ok := c.providers[name]
		if !ok {
			continue
		}
		if c.budget != nil {
			cooling, err := c.budget.InCooldown(ctx, name)
			if err == nil && cooling {
				utils.Debug("provider in cooldown; skipping", "provider", name)
				continue
			}
		}
		text, model, err := c.callProvider(ctx, provider, req)
		if err == nil {
			utils.Info("llm call ok", "task", req.Task, "provider", name, "model", model)
			if c.budget != nil {
				if err := c.budget.RecordUsage(ctx, name, req.MaxTokens); err != nil {
					utils.Warn("record token usage failed", "provider", name, "err", err)
				}
			}
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var rl *RateLimitError
		if errors.As(err, &rl) && c.budget != nil {
			if err := c.budget.Record429(ctx, name, rl.RetryAfter); err != nil {
				utils.Warn("record cooldown failed", "provider", name, "err", err)
			}
		}
		utils.Warn("llm provider failed; trying next", "task", req.Task, "provider", name, "err", err)
		lastErr = err
	}
	if lastErr == nil {
		return "", fmt.Errorf("%w: every provider is cooling down", ErrAllProvidersFailed)
	}
	return "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

// callProvider walks the provider's models. When every model was rate limited the
// returned error is a *RateLimitError carrying the longest retry hint.
func (c *Caller) callProvider(ctx context.Context, p Provider, req Request) (string, string, error) {
	pool := quota.PoolRegular
	if req.Critical {
		pool = quota.PoolCritical
	}
	models := p.Models()
	if p.Name() == quota.ProviderGemini && c.pools != nil {
		models = c.preferPoolModel(ctx, pool, models)
	}

	var lastErr error
	var longestWait time.Duration
	allLimited := true
	for _, model := range models {
		text, err := p.Complete(ctx, model, req)
		if err == nil {
			if p.Name() == quota.ProviderGemini && c.pools != nil {
				if _, err := c.pools.UseQuota(ctx, pool, 1, quota.ModelKey(p.Name(), model)); err != nil {
					utils.Warn("record pool usage failed", "pool", pool, "err", err)
				}
			}
			return text, model, nil
		}
		if ctx.Err() != nil {
			return "", model, ctx.Err()
		}
		lastErr = err
		var rl *RateLimitError
		if errors.As(err, &rl) {
			longestWait = max(longestWait, rl.RetryAfter)
		} else {
			allLimited = false
		}
		if !skipModel(err) {
			break
		}
		utils.Debug("model unavailable; next model", "provider", p.Name(), "model", model, "err", err)
	}
	if lastErr == nil {
		return "", "", fmt.Errorf("%s: no models configured", p.Name())
	}
	if allLimited {
		return "", "", &RateLimitError{Provider: p.Name(), Model: "*", RetryAfter: longestWait}
	}
	return "", "", lastErr
}

func (c *Caller) preferPoolModel(ctx context.Context, pool string, models []string) []string {
	best, err := c.pools.BestModelForPool(ctx, pool)
	if err != nil || !strings.HasPrefix(best, quota.ProviderGemini+":") {
		return models
	}
	preferred := strings.TrimPrefix(best, quota.ProviderGemini+":")
	out := []string{preferred}
	for _, m := range models {
		if m != preferred {
			out = append(out, m)
		}
	}
	return out
}

func contains(items []string, item string) bool {
	for _, it := range items {
		if it == item {
			return true
		}
	}
	return false
}
