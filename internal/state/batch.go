package state

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"viralshorts/manager-go/internal/jsonstore"
)

const (
	batchCategoryExclusions   = 3
	batchTopicExclusions      = 5
	varietyCategoryExclusions = 8
	varietyTopicExclusions    = 15
)

// BatchShort is what the tracker remembers about one short in a batch.
type BatchShort struct {
	ShortID   int64  `json:"short_id"`
	Category  string `json:"category,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Voice     string `json:"voice,omitempty"`
	MusicMood string `json:"music_mood,omitempty"`
}

type batchState struct {
	BatchID   string       `json:"batch_id"`
	CreatedAt time.Time    `json:"created_at"`
	Shorts    []BatchShort `json:"shorts"`
}

// Batch tracks the choices made inside one batch so sibling shorts differ from each other.
type Batch struct {
	id   string
	file *jsonstore.File
	now  func() time.Time
}

func NewBatchID() string { return uuid.NewString() }

func OpenBatch(dir, batchID string) (*Batch, error) {
	if _, err := uuid.Parse(batchID); err != nil {
		return nil, fmt.Errorf("invalid batch id %q: %w", batchID, err)
	}
	return &Batch{
		id:   batchID,
		file: jsonstore.Open(filepath.Join(dir, "batches", batchID+".json")),
		now:  time.Now,
	}, nil
}

func (b *Batch) ID() string { return b.id }

func (b *Batch) load(ctx context.Context) (batchState, error) {
	var st batchState
	_, err := b.file.Load(ctx, &st)
	return st, err
}

// Record merges the non-empty fields of short into the entry for short.ShortID.
func (b *Batch) Record(ctx context.Context, short BatchShort) error {
	var st batchState
	return b.file.Update(ctx, &st, func(exists bool) error {
		if !exists {
			st = batchState{BatchID: b.id, CreatedAt: b.now()}
		}
		for i := range st.Shorts {
			if st.Shorts[i].ShortID != short.ShortID {
				continue
			}
			existing := &st.Shorts[i]
			if short.Category != "" {
				existing.Category = short.Category
			}
			if short.Topic != "" {
				existing.Topic = short.Topic
			}
			if short.Voice != "" {
				existing.Voice = short.Voice
			}
			if short.MusicMood != "" {
				existing.MusicMood = short.MusicMood
			}
			return nil
		}
		st.Shorts = append(st.Shorts, short)
		return nil
	})
}

func (b *Batch) Shorts(ctx context.Context) ([]BatchShort, error) {
	st, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Shorts, nil
}

func (b *Batch) used(ctx context.Context, field func(BatchShort) string) ([]string, error) {
	shorts, err := b.Shorts(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range shorts {
		if v := field(s); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func (b *Batch) UsedVoices(ctx context.Context) ([]string, error) {
	return b.used(ctx, func(s BatchShort) string { return s.Voice })
}

func (b *Batch) UsedMusicMoods(ctx context.Context) ([]string, error) {
	return b.used(ctx, func(s BatchShort) string { return s.MusicMood })
}

// ConceptExclusions lists the categories and topics a new concept should avoid: the last
// 3 categories and 5 topics of this batch plus the last 8 categories and 15 topics overall.
func (b *Batch) ConceptExclusions(ctx context.Context, variety *Variety) (categories, topics []string, err error) {
	batchCats, err := b.used(ctx, func(s BatchShort) string { return s.Category })
	if err != nil {
		return nil, nil, err
	}
	batchTopics, err := b.used(ctx, func(s BatchShort) string { return s.Topic })
	if err != nil {
		return nil, nil, err
	}
	categories = lastN(batchCats, batchCategoryExclusions)
	topics = lastN(batchTopics, batchTopicExclusions)
	if variety != nil {
		recentCats, err := variety.Exclusions(ctx, KindCategory, varietyCategoryExclusions)
		if err != nil {
			return nil, nil, err
		}
		recentTopics, err := variety.Exclusions(ctx, KindTopic, varietyTopicExclusions)
		if err != nil {
			return nil, nil, err
		}
		categories = append(categories, recentCats...)
		topics = append(topics, recentTopics...)
	}
	return dedupe(categories), dedupe(topics), nil
}

func dedupe(items []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
