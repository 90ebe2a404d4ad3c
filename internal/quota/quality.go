package quota

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"viralshorts/manager-go/internal/jsonstore"
)

const (
	highScoreThreshold = 8
	lowScoreThreshold  = 6
	patternHistory     = 50
)

type QualityPattern struct {
	Category  string    `json:"category"`
	HookStyle string    `json:"hook_style"`
	Score     int       `json:"score"`
	Pattern   string    `json:"pattern"`
	Timestamp time.Time `json:"timestamp"`
}

type qualityState struct {
	HighScorePatterns    []QualityPattern `json:"high_score_patterns"`
	LowScorePatterns     []QualityPattern `json:"low_score_patterns"`
	AvgFirstAttemptScore float64          `json:"avg_first_attempt_score"`
	RegenerationRate     float64          `json:"regeneration_rate"`
	TotalVideos          int              `json:"total_videos"`
	FirstAttempts        int              `json:"first_attempts"`
	Regenerations        int              `json:"regenerations"`
}

// QualityHistory learns which hooks score well on the first attempt so the content
// prompt can steer away from regenerations, which cost a second content call.
type QualityHistory struct {
	file *jsonstore.File
	now  func() time.Time
}

func NewQualityHistory(dir string) *QualityHistory {
	return &QualityHistory{
		file: jsonstore.Open(filepath.Join(dir, "quality_history.json")),
		now:  time.Now,
	}
}

func (q *QualityHistory) update(ctx context.Context, fn func(st *qualityState)) error {
	var st qualityState
	return q.file.Update(ctx, &st, func(exists bool) error {
		if !exists {
			st = qualityState{AvgFirstAttemptScore: 5.0}
		}
		fn(&st)
		return nil
	})
}

func (q *QualityHistory) Record(ctx context.Context, score int, category, hook string, regenerated bool) error {
	return q.update(ctx, func(st *qualityState) {
		pattern := QualityPattern{
			Category:  category,
			HookStyle: truncate(hook, 50),
			Score:     score,
			Timestamp: q.now(),
		}
		switch {
		case score >= highScoreThreshold:
			pattern.Pattern = fmt.Sprintf("%s: %s...", category, truncate(hook, 30))
			st.HighScorePatterns = lastN(append(st.HighScorePatterns, pattern), patternHistory)
		case score < lowScoreThreshold:
			pattern.Pattern = fmt.Sprintf("FAILED %s: %s...", category, truncate(hook, 30))
			st.LowScorePatterns = lastN(append(st.LowScorePatterns, pattern), patternHistory)
		}

		st.TotalVideos++
		if regenerated {
			st.Regenerations++
		} else {
			st.FirstAttempts++
			st.AvgFirstAttemptScore += (float64(score) - st.AvgFirstAttemptScore) / float64(st.FirstAttempts)
		}
		st.RegenerationRate = float64(st.Regenerations) / float64(st.TotalVideos)
	})
}

type QualityStats struct {
	AvgFirstAttemptScore float64
	RegenerationRate     float64
	TotalVideos          int
	HighPatterns         int
	LowPatterns          int
}

func (q *QualityHistory) Stats(ctx context.Context) (QualityStats, error) {
	var st qualityState
	exists, err := q.file.Load(ctx, &st)
	if err != nil {
		return QualityStats{}, err
	}
	if !exists {
		st.AvgFirstAttemptScore = 5.0
	}
	return QualityStats{
		AvgFirstAttemptScore: st.AvgFirstAttemptScore,
		RegenerationRate:     st.RegenerationRate,
		TotalVideos:          st.TotalVideos,
		HighPatterns:         len(st.HighScorePatterns),
		LowPatterns:          len(st.LowScorePatterns),
	}, nil
}

var defaultSuccessPatterns = []string{
	"Start with a SHOCKING claim or question",
	"Use SPECIFIC numbers that sound believable ($500, 80%, 3 steps)",
	"Deliver REAL VALUE in the middle (not fluff)",
	"End with engagement bait (Comment, Like, Save)",
	"Keep total length under 60 words for a 20-second video",
	"Use a CONVERSATIONAL tone, not robotic",
}

var defaultFailureWarnings = []string{
	"Awkward numbers like $3333, 47.3%, 1847 (use round numbers!)",
	"Vague promises without delivery",
	"Too many sentences (more than 5)",
	"Generic AI-sounding phrases",
	"Missing hook in first sentence",
	"No call-to-action at end",
}

// BoostPrompt renders the learned success patterns and failure warnings as prompt text.
func (q *QualityHistory) BoostPrompt(ctx context.Context) (string, error) {
	var st qualityState
	if _, err := q.file.Load(ctx, &st); err != nil {
		return "", err
	}
	var b strings.Builder
	if len(st.HighScorePatterns) == 0 {
		b.WriteString("PROVEN SUCCESS PATTERNS (use these!):\n")
		for _, line := range defaultSuccessPatterns {
			b.WriteString("- " + line + "\n")
		}
	} else {
		b.WriteString("PROVEN SUCCESS PATTERNS FROM OUR BEST VIDEOS:\n")
		for _, p := range firstN(lastN(st.HighScorePatterns, 10), 5) {
			b.WriteString("- " + p.Pattern + "\n")
		}
	}
	b.WriteString("\n")
	if len(st.LowScorePatterns) == 0 {
		b.WriteString("AVOID THESE MISTAKES (historically failed):\n")
		for _, line := range defaultFailureWarnings {
			b.WriteString("- " + line + "\n")
		}
	} else {
		b.WriteString("AVOID THESE (caused low scores in our videos):\n")
		for _, p := range firstN(lastN(st.LowScorePatterns, 10), 5) {
			b.WriteString("- " + p.Pattern + "\n")
		}
	}
	return b.String(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func firstN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
