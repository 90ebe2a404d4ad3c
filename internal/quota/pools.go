package quota

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"viralshorts/manager-go/internal/jsonstore"
	"viralshorts/manager-go/internal/utils"
)

// SafetyMargin keeps 10% of every published daily limit untouched.
const SafetyMargin = 0.10

const (
	PoolRegular  = "PRODUCTION_REGULAR"
	PoolCritical = "PRODUCTION_CRITICAL"
	PoolTesting  = "TESTING"
	PoolBonus    = "ANALYTICS_BONUS"

	ThroughputLow    = "low"
	ThroughputMedium = "medium"
	ThroughputHigh   = "high"

	// GroqSharedKey stands in for every Groq model; they draw from one account-wide quota.
	GroqSharedKey = "groq:shared"

	regularStepsPerVideo  = 12
	criticalStepsPerVideo = 3
	videosPerDay          = 6
)

var poolNames = []string{PoolRegular, PoolCritical, PoolTesting, PoolBonus}

type ModelQuota struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	DailyLimit   int     `json:"daily_limit"`
	UsedToday    int     `json:"used_today"`
	Reserved     int     `json:"reserved"`
	QualityScore float64 `json:"quality_score"`
	Throughput   string  `json:"throughput"`
	IsShared     bool    `json:"is_shared"`
}

func (m ModelQuota) Key() string { return ModelKey(m.Provider, m.Model) }

func (m ModelQuota) Available() int {
	return max(0, m.DailyLimit-m.UsedToday-m.Reserved)
}

func (m ModelQuota) SafeLimit() int {
	return int(float64(m.DailyLimit) * (1 - SafetyMargin))
}

type Pool struct {
	Name       string   `json:"name"`
	TotalQuota int      `json:"total_quota"`
	Used       int      `json:"used"`
	Models     []string `json:"models"`
}

func (p Pool) Available() int { return max(0, p.TotalQuota-p.Used) }

func ModelKey(provider, model string) string { return provider + ":" + model }

type knownQuota struct {
	provider   string
	model      string
	daily      int
	quality    float64
	throughput string
	shared     bool
}

var knownQuotas = []knownQuota{
	{"gemini", "gemini-2.5-flash", 500, 7.5, ThroughputLow, false},
	{"gemini", "gemini-2.5-pro", 50, 8.5, ThroughputLow, false},
	{"gemini", "gemini-2.0-flash", 500, 7.0, ThroughputMedium, false},
	{"gemini", "gemini-2.0-flash-exp", 50, 6.0, ThroughputLow, false},
	{"gemini", "gemini-1.5-flash", 1500, 6.5, ThroughputHigh, false},
	{"gemini", "gemini-1.5-pro", 50, 8.0, ThroughputLow, false},
	{"groq", "llama-3.3-70b-versatile", 500, 9.0, ThroughputHigh, true},
	{"groq", "llama-3.1-8b-instant", 500, 6.0, ThroughputHigh, true},
	{"groq", "mixtral-8x7b-32768", 500, 7.0, ThroughputHigh, true},
	{"openrouter", "free", 200, 4.0, ThroughputMedium, false},
}

func lookupKnown(model string) (knownQuota, bool) {
	for _, k := range knownQuotas {
		if k.model == model {
			return k, true
		}
	}
	return knownQuota{}, false
}

type poolsState struct {
	LastReset   string                 `json:"last_reset"`
	LastUpdated string                 `json:"last_updated"`
	Models      map[string]*ModelQuota `json:"models"`
	Pools       map[string]*Pool       `json:"pools"`
}

// PoolStatus is the view returned by Pools.Status.
type PoolStatus struct {
	LastReset string
	Pools     []Pool
	Models    []ModelQuota
	Summary   PoolSummary
}

type PoolSummary struct {
	TotalDailyQuota             int
	TotalUsed                   int
	TotalAvailable              int
	ProductionRegularAvailable  int
	ProductionCriticalAvailable int
	BonusAvailable              int
}

// Pools splits every model's free-tier daily quota into step-category pools so that
// regular production, critical steps and experiments cannot starve each other.
type Pools struct {
	file *jsonstore.File
	now  func() time.Time
}

func NewPools(dir string) *Pools {
	return &Pools{
		file: jsonstore.Open(filepath.Join(dir, "quota_pools.json")),
		now:  time.Now,
	}
}

func (p *Pools) update(ctx context.Context, fn func(st *poolsState) error) error {
	var st poolsState
	return p.file.Update(ctx, &st, func(exists bool) error {
		p.normalize(&st, exists)
		if err := fn(&st); err != nil {
			return err
		}
		st.LastUpdated = p.now().Format(time.RFC3339)
		return nil
	})
}

func (p *Pools) normalize(st *poolsState, exists bool) {
	if st.Models == nil {
		st.Models = map[string]*ModelQuota{}
	}
	if st.Pools == nil {
		st.Pools = map[string]*Pool{}
	}
	for _, name := range poolNames {
		if st.Pools[name] == nil {
			st.Pools[name] = &Pool{Name: name}
		}
	}
	if !exists || len(st.Models) == 0 {
		for _, k := range knownQuotas {
			st.Models[ModelKey(k.provider, k.model)] = &ModelQuota{
				Provider:     k.provider,
				Model:        k.model,
				DailyLimit:   k.daily,
				QualityScore: k.quality,
				Throughput:   k.throughput,
				IsShared:     k.shared,
			}
		}
		recalculate(st)
	}

	today := p.now().Format(time.DateOnly)
	if st.LastReset != today {
		utils.Info("quota pools daily reset", "previous", st.LastReset, "today", today)
		for _, m := range st.Models {
			m.UsedToday = 0
		}
		for _, pool := range st.Pools {
			pool.Used = 0
		}
		st.LastReset = today
		recalculate(st)
	}
}

func recalculate(st *poolsState) {
	for _, pool := range st.Pools {
		pool.TotalQuota = 0
		pool.Models = []string{}
	}
	regularNeeded := videosPerDay * regularStepsPerVideo
	criticalNeeded := videosPerDay * criticalStepsPerVideo

	keys := make([]string, 0, len(st.Models))
	for key := range st.Models {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	groqTotal := 0
	for _, key := range keys {
		m := st.Models[key]
		safe := m.SafeLimit()
		if m.IsShared {
			if groqTotal == 0 {
				groqTotal = safe
			}
			continue
		}
		switch {
		case m.QualityScore >= 7.0 && (m.Throughput == ThroughputHigh || m.Throughput == ThroughputMedium):
			reserve := min(regularNeeded, safe)
			m.Reserved = reserve
			st.Pools[PoolRegular].TotalQuota += reserve
			st.Pools[PoolRegular].Models = append(st.Pools[PoolRegular].Models, key)
			if remaining := safe - reserve; remaining > 0 {
				st.Pools[PoolBonus].TotalQuota += remaining
				st.Pools[PoolBonus].Models = append(st.Pools[PoolBonus].Models, key)
			}
		case m.QualityScore >= 7.0:
			reserve := min(criticalNeeded, safe)
			m.Reserved = reserve
			st.Pools[PoolCritical].TotalQuota += reserve
			st.Pools[PoolCritical].Models = append(st.Pools[PoolCritical].Models, key)
			// Leftover low-throughput capacity counts toward the bonus pool total only.
			if remaining := safe - reserve; remaining > 0 {
				st.Pools[PoolBonus].TotalQuota += remaining
			}
		default:
			m.Reserved = 0
			st.Pools[PoolTesting].TotalQuota += safe
			st.Pools[PoolTesting].Models = append(st.Pools[PoolTesting].Models, key)
		}
	}

	if groqTotal > 0 {
		reserve := min(regularNeeded/2, groqTotal)
		st.Pools[PoolRegular].TotalQuota += reserve
		st.Pools[PoolRegular].Models = append(st.Pools[PoolRegular].Models, GroqSharedKey)
		if remaining := groqTotal - reserve; remaining > 0 {
			st.Pools[PoolBonus].TotalQuota += remaining
			st.Pools[PoolBonus].Models = append(st.Pools[PoolBonus].Models, GroqSharedKey)
		}
	}
}

// RegisterModel adds or replaces a model. Zero values fall back to the known table,
// then to 100 calls/day, quality 5.0 and medium throughput.
func (p *Pools) RegisterModel(ctx context.Context, provider, model string, dailyLimit int, quality float64, throughput string) error {
	known, ok := lookupKnown(model)
	if dailyLimit <= 0 {
		dailyLimit = 100
		if ok {
			dailyLimit = known.daily
		}
	}
	if quality <= 0 {
		quality = 5.0
		if ok {
			quality = known.quality
		}
	}
	if throughput == "" {
		throughput = ThroughputMedium
		if ok {
			throughput = known.throughput
		}
	}
	shared := provider == "groq"
	if ok {
		shared = known.shared
	}
	return p.update(ctx, func(st *poolsState) error {
		key := ModelKey(provider, model)
		used := 0
		if prev := st.Models[key]; prev != nil {
			used = prev.UsedToday
		}
		st.Models[key] = &ModelQuota{
			Provider:     provider,
			Model:        model,
			DailyLimit:   dailyLimit,
			UsedToday:    used,
			QualityScore: quality,
			Throughput:   throughput,
			IsShared:     shared,
		}
		recalculate(st)
		return nil
	})
}

// UseQuota draws amount calls from poolName. It reports false (without error) when
// the pool is exhausted.
func (p *Pools) UseQuota(ctx context.Context, poolName string, amount int, modelKey string) (bool, error) {
	if amount <= 0 {
		amount = 1
	}
	used := false
	err := p.update(ctx, func(st *poolsState) error {
		pool := st.Pools[poolName]
		if pool == nil {
			return fmt.Errorf("unknown quota pool %q", poolName)
		}
		if pool.Available() < amount {
			utils.Warn("quota pool exhausted", "pool", poolName, "used", pool.Used, "total", pool.TotalQuota)
			return nil
		}
		pool.Used += amount
		if m := st.Models[modelKey]; m != nil {
			m.UsedToday += amount
		}
		used = true
		return nil
	})
	return used, err
}

func (p *Pools) Available(ctx context.Context, poolName string) (int, error) {
	available := 0
	err := p.update(ctx, func(st *poolsState) error {
		if pool := st.Pools[poolName]; pool != nil {
			available = pool.Available()
		}
		return nil
	})
	return available, err
}

// BestModelForPool returns the highest-quality model key in the pool that still has
// quota, or "" when none does.
func (p *Pools) BestModelForPool(ctx context.Context, poolName string) (string, error) {
	best := ""
	err := p.update(ctx, func(st *poolsState) error {
		best = bestModel(st, poolName)
		return nil
	})
	return best, err
}

func bestModel(st *poolsState, poolName string) string {
	pool := st.Pools[poolName]
	if pool == nil {
		return ""
	}
	type candidate struct {
		key     string
		quality float64
	}
	var candidates []candidate
	for _, key := range pool.Models {
		if key == GroqSharedKey {
			for mk, m := range st.Models {
				if m.IsShared && m.Available() > 0 {
					candidates = append(candidates, candidate{mk, m.QualityScore})
				}
			}
			continue
		}
		if m := st.Models[key]; m != nil && m.Available() > 0 {
			candidates = append(candidates, candidate{key, m.QualityScore})
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].quality == candidates[j].quality {
			return candidates[i].key < candidates[j].key
		}
		return candidates[i].quality > candidates[j].quality
	})
	return candidates[0].key
}

func (p *Pools) Status(ctx context.Context) (PoolStatus, error) {
	var status PoolStatus
	err := p.update(ctx, func(st *poolsState) error {
		status.LastReset = st.LastReset
		for _, name := range poolNames {
			status.Pools = append(status.Pools, *st.Pools[name])
		}
		keys := make([]string, 0, len(st.Models))
		for key := range st.Models {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			m := *st.Models[key]
			status.Models = append(status.Models, m)
			if !m.IsShared {
				status.Summary.TotalDailyQuota += m.SafeLimit()
			}
			status.Summary.TotalUsed += m.UsedToday
		}
		for _, pool := range st.Pools {
			status.Summary.TotalAvailable += pool.Available()
		}
		status.Summary.ProductionRegularAvailable = st.Pools[PoolRegular].Available()
		status.Summary.ProductionCriticalAvailable = st.Pools[PoolCritical].Available()
		status.Summary.BonusAvailable = st.Pools[PoolBonus].Available()
		return nil
	})
	return status, err
}
