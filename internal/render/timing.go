package render

import (
	"strings"
	"unicode/utf8"
)

// MinSegmentSeconds is the floor applied before segment durations are rescaled.
const MinSegmentSeconds = 2.0

// Segment is one phrase's slot on the timeline.
type Segment struct {
	Index    int
	Text     string
	Start    float64
	Duration float64
}

func (s Segment) End() float64 { return s.Start + s.Duration }

// DedupePhrases trims phrases and drops empty or case-insensitive repeats, keeping order.
func DedupePhrases(phrases []string) []string {
	out, _ := DedupeWithClips(phrases, nil)
	return out
}

// DedupeWithClips applies DedupePhrases and keeps clips aligned with the surviving
// phrases; a repeat's clip is dropped along with it.
func DedupeWithClips(phrases, clips []string) ([]string, []string) {
	seen := make(map[string]struct{}, len(phrases))
	out := make([]string, 0, len(phrases))
	kept := make([]string, 0, len(phrases))
	for i, phrase := range phrases {
		trimmed := strings.TrimSpace(phrase)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
		clip := ""
		if i < len(clips) {
			clip = clips[i]
		}
		kept = append(kept, clip)
	}
	return out, kept
}

// VoiceoverText is the narration read by the TTS engine.
func VoiceoverText(phrases []string) string {
	return strings.Join(DedupePhrases(phrases), ". ")
}

// Timeline splits total seconds across phrases in proportion to their length.
func Timeline(phrases []string, total float64) []Segment {
	if len(phrases) == 0 || total <= 0 {
		return nil
	}
	chars := 0
	for _, phrase := range phrases {
		chars += utf8.RuneCountInString(phrase)
	}
	durations := make([]float64, len(phrases))
	sum := 0.0
	for i, phrase := range phrases {
		d := total / float64(len(phrases))
		if chars > 0 {
			d = total * float64(utf8.RuneCountInString(phrase)) / float64(chars)
		}
		if d < MinSegmentSeconds {
			d = MinSegmentSeconds
		}
		durations[i] = d
		sum += d
	}
	scale := total / sum
	segments := make([]Segment, len(phrases))
	start := 0.0
	for i, phrase := range phrases {
		d := durations[i] * scale
		segments[i] = Segment{Index: i, Text: phrase, Start: start, Duration: d}
		start += d
	}
	return segments
}

// SFXPlan names the effect played at each phrase start: a hit on the hook,
// a ding on the payoff and a whoosh on every other transition.
func SFXPlan(n int) []string {
	plan := make([]string, n)
	for i := range plan {
		switch {
		case i == 0:
			plan[i] = "hit"
		case i == n-1:
			plan[i] = "ding"
		case i%2 == 1:
			plan[i] = "whoosh"
		}
	}
	return plan
}
