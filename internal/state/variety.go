// Package state keeps the cross-run memory the pipeline uses to avoid repeating itself:
// recently used categories, topics and voices, upload history and per-batch choices.
package state

import (
	"context"
	"math/rand"
	"path/filepath"
	"time"

	"viralshorts/manager-go/internal/jsonstore"
)

type Kind string

const (
	KindCategory  Kind = "categories"
	KindTopic     Kind = "topics"
	KindVoice     Kind = "voices"
	KindMusicMood Kind = "music_moods"
	KindHook      Kind = "hooks"

	varietyHistory = 20
	weightWindow   = 10
	minWeight      = 0.1
	weightPenalty  = 0.3
)

var FallbackCategories = []string{"general", "facts", "tips"}

type varietyState struct {
	Recent          map[Kind][]string `json:"recent"`
	BestTitleStyles []string          `json:"best_title_styles,omitempty"`
	LastUpdated     time.Time         `json:"last_updated"`
}

type Variety struct {
	file *jsonstore.File
	now  func() time.Time
	rand func() float64
}

func NewVariety(dir string) *Variety {
	return &Variety{
		file: jsonstore.Open(filepath.Join(dir, "variety_state.json")),
		now:  time.Now,
		rand: rand.Float64,
	}
}

func (v *Variety) load(ctx context.Context) (varietyState, error) {
	var st varietyState
	_, err := v.file.Load(ctx, &st)
	return st, err
}

// Record appends value to the kind's history, keeping the last 20 entries.
func (v *Variety) Record(ctx context.Context, kind Kind, value string) error {
	if value == "" {
		return nil
	}
	var st varietyState
	return v.file.Update(ctx, &st, func(bool) error {
		if st.Recent == nil {
			st.Recent = map[Kind][]string{}
		}
		st.Recent[kind] = lastN(append(st.Recent[kind], value), varietyHistory)
		st.LastUpdated = v.now()
		return nil
	})
}

// Exclusions returns the last limit values recorded for kind, oldest first.
func (v *Variety) Exclusions(ctx context.Context, kind Kind, limit int) ([]string, error) {
	st, err := v.load(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), lastN(st.Recent[kind], limit)...), nil
}

// CategoryWeights penalizes categories used in the last 10 shorts by 0.3 per use,
// floors every weight at 0.1 and normalizes the result.
func (v *Variety) CategoryWeights(ctx context.Context, candidates []string) (map[string]float64, error) {
	st, err := v.load(ctx)
	if err != nil {
		return nil, err
	}
	return categoryWeights(lastN(st.Recent[KindCategory], weightWindow), candidates), nil
}

func categoryWeights(recent, candidates []string) map[string]float64 {
	if len(candidates) == 0 {
		candidates = FallbackCategories
	}
	counts := map[string]int{}
	for _, c := range recent {
		counts[c]++
	}
	weights := make(map[string]float64, len(candidates))
	total := 0.0
	for _, c := range candidates {
		w := max(minWeight, 1-weightPenalty*float64(counts[c]))
		weights[c] = w
		total += w
	}
	for c := range weights {
		weights[c] /= total
	}
	return weights
}

// PickCategory draws one candidate using CategoryWeights.
func (v *Variety) PickCategory(ctx context.Context, candidates []string) (string, error) {
	if len(candidates) == 0 {
		candidates = FallbackCategories
	}
	weights, err := v.CategoryWeights(ctx, candidates)
	if err != nil {
		return "", err
	}
	r := v.rand()
	acc := 0.0
	for _, c := range candidates {
		acc += weights[c]
		if r < acc {
			return c, nil
		}
	}
	return candidates[len(candidates)-1], nil
}

func (v *Variety) BestTitleStyles(ctx context.Context) ([]string, error) {
	st, err := v.load(ctx)
	if err != nil {
		return nil, err
	}
	return st.BestTitleStyles, nil
}

func (v *Variety) SetBestTitleStyles(ctx context.Context, styles []string) error {
	var st varietyState
	return v.file.Update(ctx, &st, func(bool) error {
		st.BestTitleStyles = styles
		st.LastUpdated = v.now()
		return nil
	})
}

func lastN[T any](items []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
