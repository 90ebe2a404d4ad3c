package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"viralshorts/manager-go/internal/render"
	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/utils"
)

const recentMoodWindow = 3

// sfxNames are the effect cues render.SFXPlan can ask for.
var sfxNames = []string{"hit", "whoosh", "ding"}

type RenderShortJob struct {
	BaseJob
}

func NewRenderShortJob() RenderShortJob {
	return RenderShortJob{
		BaseJob: BaseJob{
			QueueInput:  FlagMetadataGenerated,
			QueueOutput: FlagShortRendered,
		},
	}
}

func (j RenderShortJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	sel := selection{
		done:    []string{FlagBrollGenerated, FlagVoiceoverGenerated, FlagMetadataGenerated},
		pending: []string{FlagShortRendered},
	}
	return j.run(ctx, jctx, opts, "RenderShort", sel, func(ctx context.Context, shortID int64) error {
		return j.processShort(ctx, jctx, shortID)
	})
}

func (j RenderShortJob) processShort(ctx context.Context, jctx JobContext, shortID int64) error {
	utils.Info("RenderShort process", "short_id", shortID)
	svc := jctx.Services
	if svc == nil || svc.Renderer == nil {
		return errors.New("renderer is not configured")
	}
	short, meta, err := loadShort(ctx, jctx, shortID)
	if err != nil {
		return err
	}
	if err := requireFlags(meta, FlagBrollGenerated, FlagVoiceoverGenerated, FlagMetadataGenerated); err != nil {
		return fmt.Errorf("%w: %v", ErrDeferred, err)
	}
	concept, err := decodeConcept(meta)
	if err != nil {
		return err
	}
	s, err := decodeScript(meta)
	if err != nil {
		return err
	}
	var clips BrollMeta
	if err := utils.DecodeInto(meta, metaBroll, &clips); err != nil {
		return err
	}
	var vo VoiceoverMeta
	if err := utils.DecodeInto(meta, metaVoiceover, &vo); err != nil {
		return err
	}

	batch, err := state.OpenBatch(jctx.Config.DataDir, short.BatchID)
	if err != nil {
		return err
	}
	musicMeta, err := j.pickMusic(ctx, svc, batch, concept.MusicMood)
	if err != nil {
		return err
	}

	if err := utils.EnsureDir(jctx.Config.OutputDir); err != nil {
		return err
	}
	out := filepath.Join(jctx.Config.OutputDir, fmt.Sprintf("short_%d.mp4", shortID))
	result, err := svc.Renderer.Render(ctx, render.Input{
		Phrases:           s.Phrases,
		Clips:             clips.Clips,
		Voiceover:         vo.Path,
		VoiceoverDuration: vo.Duration,
		Music:             musicMeta.Path,
		SFX:               sfxFiles(jctx.Config.SFXDir),
		Output:            out,
	})
	if err != nil {
		return fmt.Errorf("render short %d: %w", shortID, err)
	}
	utils.Info("RenderShort done", "short_id", shortID, "output", result.Output, "duration_s", result.Duration, "segments", len(result.Segments))

	if musicMeta.Mood != "" {
		if err := batch.Record(ctx, state.BatchShort{ShortID: shortID, MusicMood: musicMeta.Mood}); err != nil {
			return err
		}
		recordVariety(ctx, svc, state.KindMusicMood, musicMeta.Mood)
		if err := utils.SetValue(meta, metaMusic, musicMeta); err != nil {
			return err
		}
	}
	sum, err := utils.SHA256File(result.Output)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", result.Output, err)
	}
	rm := RenderMeta{
		Path:      result.Output,
		Subtitles: result.Subtitles,
		Duration:  result.Duration,
		SHA256:    sum,
		Hostname:  jctx.Config.Hostname,
	}
	if err := utils.SetValue(meta, metaRender, rm); err != nil {
		return err
	}
	return j.complete(ctx, jctx, shortID, meta, QueueUploadYouTube, QueueUploadDailymotion)
}

// pickMusic avoids moods already used in the batch and the last few overall. An empty
// MusicMeta means the short renders with voiceover only.
func (j RenderShortJob) pickMusic(ctx context.Context, svc *Services, batch *state.Batch, mood string) (MusicMeta, error) {
	if svc.Music == nil {
		return MusicMeta{}, nil
	}
	recent, err := batch.UsedMusicMoods(ctx)
	if err != nil {
		return MusicMeta{}, err
	}
	if svc.Variety != nil {
		global, err := svc.Variety.Exclusions(ctx, state.KindMusicMood, recentMoodWindow)
		if err != nil {
			return MusicMeta{}, err
		}
		recent = append(recent, global...)
	}
	track, ok := svc.Music.Pick(mood, recent)
	if !ok {
		utils.Warn("music library empty; rendering without music", "mood", mood)
		return MusicMeta{}, nil
	}
	return MusicMeta{Path: svc.Music.Path(track), Mood: track.Mood}, nil
}

func sfxFiles(dir string) map[string]string {
	files := map[string]string{}
	if dir == "" {
		return files
	}
	for _, name := range sfxNames {
		path := filepath.Join(dir, name+".mp3")
		if utils.FileExists(path) {
			files[name] = path
		}
	}
	return files
}
