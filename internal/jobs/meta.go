package jobs

import (
	"fmt"
	"time"

	"viralshorts/manager-go/internal/script"
	"viralshorts/manager-go/internal/utils"
)

// Status flags double as the names of the queues that announce them.
const (
	FlagConceptGenerated    = "concept_generated"
	FlagScriptGenerated     = "script_generated"
	FlagBrollGenerated      = "broll_generated"
	FlagVoiceoverGenerated  = "voiceover_generated"
	FlagMetadataGenerated   = "metadata_generated"
	FlagShortRendered       = "short_rendered"
	FlagYouTubeUploaded     = "youtube_uploaded"
	FlagDailymotionUploaded = "dailymotion_uploaded"

	QueueShortCreated      = "short_created"
	QueueUploadYouTube     = "short_rendered.youtube"
	QueueUploadDailymotion = "short_rendered.dailymotion"
)

// StageFlags lists the pipeline flags in stage order.
var StageFlags = []string{
	FlagConceptGenerated,
	FlagScriptGenerated,
	FlagBrollGenerated,
	FlagVoiceoverGenerated,
	FlagMetadataGenerated,
	FlagShortRendered,
	FlagYouTubeUploaded,
	FlagDailymotionUploaded,
}

const (
	metaBatch       = "batch_id"
	metaConcept     = "concept"
	metaScript      = "script"
	metaBroll       = "broll"
	metaVoiceover   = "voiceover"
	metaMetadata    = "metadata"
	metaMusic       = "music"
	metaRender      = "render"
	metaYouTube     = "youtube"
	metaDailymotion = "dailymotion"
)

type BrollMeta struct {
	Keywords []string `json:"keywords"`
	Clips    []string `json:"clips"`
}

type VoiceoverMeta struct {
	Path     string  `json:"path"`
	Voice    string  `json:"voice"`
	Rate     string  `json:"rate"`
	Duration float64 `json:"duration"`
	Hostname string  `json:"hostname"`
}

type MusicMeta struct {
	Path string `json:"path"`
	Mood string `json:"mood"`
}

type RenderMeta struct {
	Path      string  `json:"path"`
	Subtitles string  `json:"subtitles"`
	Duration  float64 `json:"duration"`
	SHA256    string  `json:"sha256,omitempty"`
	Hostname  string  `json:"hostname"`
}

type UploadMeta struct {
	VideoID    string    `json:"video_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	UploadedAt time.Time `json:"uploaded_at,omitzero"`
	Skipped    string    `json:"skipped,omitempty"`
}

func decodeConcept(meta map[string]any) (script.Concept, error) {
	var c script.Concept
	if err := utils.DecodeInto(meta, metaConcept, &c); err != nil {
		return c, err
	}
	if c.SpecificTopic == "" {
		return c, fmt.Errorf("concept has no topic")
	}
	return c, nil
}

func decodeScript(meta map[string]any) (script.Script, error) {
	var s script.Script
	if err := utils.DecodeInto(meta, metaScript, &s); err != nil {
		return s, err
	}
	if len(s.Phrases) == 0 {
		return s, fmt.Errorf("script has no phrases")
	}
	return s, nil
}
