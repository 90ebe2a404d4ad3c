package subtitles

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type Caption struct {
	StartTime string
	EndTime   string
	Text      string
}

// Cue is a caption expressed in seconds, as produced by the renderer's segment timing.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

var (
	timeRegex  = regexp.MustCompile(`(\d\d:\d\d:\d\d,\d\d\d)\s-->\s(\d\d:\d\d:\d\d,\d\d\d)`)
	blockRegex = regexp.MustCompile(`\r?\n\r?\n+`)
)

func ParseSRT(input string) []Caption {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	blocks := blockRegex.Split(trimmed, -1)
	captions := make([]Caption, 0, len(blocks))
	for _, block := range blocks {
		lines := splitLines(block)
		if len(lines) < 2 {
			continue
		}
		// First line is index; second line is time range.
		matches := timeRegex.FindStringSubmatch(lines[1])
		if len(matches) < 3 {
			continue
		}
		text := ""
		if len(lines) > 2 {
			text = strings.Join(lines[2:], "\n")
		}
		captions = append(captions, Caption{
			StartTime: matches[1],
			EndTime:   matches[2],
			Text:      strings.TrimRight(text, "\n"),
		})
	}
	return captions
}

func SerializeSRT(captions []Caption) string {
	var builder strings.Builder
	for idx, caption := range captions {
		builder.WriteString(strconv.Itoa(idx + 1))
		builder.WriteString("\n")
		builder.WriteString(caption.StartTime)
		builder.WriteString(" --> ")
		builder.WriteString(caption.EndTime)
		builder.WriteString("\n")
		builder.WriteString(caption.Text)
		builder.WriteString("\n\n")
	}
	return builder.String()
}

// FromCues converts second-based cues into SRT captions, skipping empty text.
func FromCues(cues []Cue) []Caption {
	captions := make([]Caption, 0, len(cues))
	for _, cue := range cues {
		text := NormalizeText(strings.TrimSpace(cue.Text))
		if text == "" {
			continue
		}
		end := cue.End
		if end < cue.Start {
			end = cue.Start
		}
		captions = append(captions, Caption{
			StartTime: FormatTimestamp(cue.Start),
			EndTime:   FormatTimestamp(end),
			Text:      text,
		})
	}
	return captions
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(value string) (float64, error) {
	var h, m, s, ms int
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d:%d:%d,%d", &h, &m, &s, &ms); err != nil {
		return 0, fmt.Errorf("parse srt timestamp %q: %w", value, err)
	}
	return float64(h*3600+m*60+s) + float64(ms)/1000, nil
}

func NormalizeText(input string) string {
	text := strings.ReplaceAll(input, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimRight(text, "\n")
}

func splitLines(input string) []string {
	text := NormalizeText(input)
	return strings.Split(text, "\n")
}
