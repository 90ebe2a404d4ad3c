// Package script runs the AI writing stages of a short: concept, phrases, self-review,
// B-roll keywords and upload metadata.
package script

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinPhrases           = 3
	MaxPhrases           = 8
	DefaultPhrases       = 5
	MinAcceptableScore   = 7
	defaultDuration      = 25
	defaultVoiceStyle    = "energetic"
	defaultMusicMood     = "upbeat"
	defaultBrollKeyword  = "dramatic scene"
	maxTitleLength       = 100
	maxConceptExclusions = 5
)

// DefaultCategories seeds concept generation when no trending list is supplied.
var DefaultCategories = []string{
	"psychology", "finance", "productivity", "health",
	"relationships", "science", "technology", "motivation",
	"life_hacks", "history", "statistics", "mysteries",
}

var VoiceStyles = []string{"energetic", "calm", "mysterious", "authoritative", "friendly", "dramatic"}

var MusicMoods = []string{
	"upbeat", "dramatic", "mysterious", "inspirational", "chill",
	"intense", "energetic", "emotional", "tech", "professional",
}

type Concept struct {
	Category              string      `json:"category"`
	SpecificTopic         string      `json:"specific_topic"`
	WhyThisTopic          looseString `json:"why_this_topic,omitempty"`
	PhraseCount           looseInt    `json:"phrase_count"`
	VoiceStyle            string      `json:"voice_style"`
	MusicMood             string      `json:"music_mood"`
	TargetDurationSeconds looseInt    `json:"target_duration_seconds"`
	GlobalRelevance       looseString `json:"global_relevance,omitempty"`
	Fallback              bool        `json:"fallback,omitempty"`
}

type Content struct {
	Phrases        []string    `json:"phrases"`
	SpecificValue  looseString `json:"specific_value,omitempty"`
	HookTechnique  looseString `json:"hook_technique,omitempty"`
	EngagementBait looseString `json:"engagement_bait,omitempty"`
}

type QualityIssue struct {
	Issue looseString `json:"issue"`
	Fix   looseString `json:"fix"`
}

type Evaluation struct {
	Score               looseFloat     `json:"evaluation_score"`
	QualityIssues       []QualityIssue `json:"quality_issues,omitempty"`
	BelievabilityScore  looseFloat     `json:"believability_score,omitempty"`
	WouldYouWatch       looseString    `json:"would_you_watch,omitempty"`
	ImprovementsMade    []looseString  `json:"improvements_made,omitempty"`
	ImprovedHook        looseString    `json:"improved_hook,omitempty"`
	ImprovedPhrases     []string       `json:"improved_phrases,omitempty"`
	FinalValueDelivered looseString    `json:"final_value_delivered,omitempty"`
}

// Script is the reviewed result of the content stages.
type Script struct {
	Phrases        []string    `json:"phrases"`
	Content        Content     `json:"content"`
	Evaluation     *Evaluation `json:"evaluation,omitempty"`
	Score          float64     `json:"score"`
	Regenerated    bool        `json:"regenerated"`
	QualityWarning bool        `json:"quality_warning"`
}

type TitleVariant struct {
	Style string `json:"style"`
	Title string `json:"title"`
}

type Metadata struct {
	Title         string         `json:"title"`
	TitleStyle    string         `json:"title_style"`
	TitleVariants []TitleVariant `json:"title_variants,omitempty"`
	Description   string         `json:"description"`
	Hashtags      []string       `json:"hashtags"`
}

// looseString accepts any JSON scalar; models return booleans and numbers where
// strings were asked for.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = looseString(t)
	default:
		*s = looseString(fmt.Sprint(t))
	}
	return nil
}

func (s looseString) String() string { return string(s) }

type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*f = looseFloat(t)
	case string:
		// "8/10" and "8.5" both appear in practice.
		t = strings.TrimSpace(strings.SplitN(t, "/", 2)[0])
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = looseFloat(parsed)
	default:
		*f = 0
	}
	return nil
}

type looseInt int

func (i *looseInt) UnmarshalJSON(b []byte) error {
	var f looseFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*i = looseInt(f)
	return nil
}
