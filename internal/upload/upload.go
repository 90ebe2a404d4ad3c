package upload

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Video is a rendered short plus the metadata published with it.
type Video struct {
	Path        string
	Title       string
	Description string
	Tags        []string
	Privacy     string
}

type Result struct {
	Platform string
	VideoID  string
	URL      string
}

type Uploader interface {
	Platform() string
	Upload(ctx context.Context, video Video) (Result, error)
}

// TagsFromHashtags strips leading '#' and drops blanks and repeats.
func TagsFromHashtags(hashtags []string) []string {
	seen := make(map[string]struct{}, len(hashtags))
	tags := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tag = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tag), "#"))
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
