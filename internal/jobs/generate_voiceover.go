package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"viralshorts/manager-go/internal/render"
	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/utils"
	"viralshorts/manager-go/internal/voice"
)

const recentVoiceWindow = 3

type GenerateVoiceoverJob struct {
	BaseJob
}

func NewGenerateVoiceoverJob() GenerateVoiceoverJob {
	return GenerateVoiceoverJob{
		BaseJob: BaseJob{
			QueueInput:  FlagBrollGenerated,
			QueueOutput: FlagVoiceoverGenerated,
		},
	}
}

func (j GenerateVoiceoverJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	sel := selection{
		done:    []string{FlagScriptGenerated},
		pending: []string{FlagVoiceoverGenerated},
	}
	return j.run(ctx, jctx, opts, "GenerateVoiceover", sel, func(ctx context.Context, shortID int64) error {
		return j.processShort(ctx, jctx, shortID)
	})
}

func (j GenerateVoiceoverJob) processShort(ctx context.Context, jctx JobContext, shortID int64) error {
	utils.Info("GenerateVoiceover process", "short_id", shortID)
	svc := jctx.Services
	if svc == nil || svc.Voice == nil {
		return errors.New("voice synthesizer is not configured")
	}
	short, meta, err := loadShort(ctx, jctx, shortID)
	if err != nil {
		return err
	}
	if err := requireFlags(meta, FlagScriptGenerated); err != nil {
		return err
	}
	concept, err := decodeConcept(meta)
	if err != nil {
		return err
	}
	s, err := decodeScript(meta)
	if err != nil {
		return err
	}

	batch, err := state.OpenBatch(jctx.Config.DataDir, short.BatchID)
	if err != nil {
		return err
	}
	exclude, err := batch.UsedVoices(ctx)
	if err != nil {
		return err
	}
	if svc.Variety != nil {
		recent, err := svc.Variety.Exclusions(ctx, state.KindVoice, recentVoiceWindow)
		if err != nil {
			return err
		}
		exclude = append(exclude, recent...)
	}
	sel := voice.Select(concept.VoiceStyle, exclude)

	dir := filepath.Join(jctx.Config.OutputDir, "voice")
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}
	out := filepath.Join(dir, fmt.Sprintf("short_%d.mp3", shortID))
	text := render.VoiceoverText(render.DedupePhrases(s.Phrases))
	duration, err := svc.Voice.Synthesize(ctx, text, sel, out)
	if err != nil {
		return fmt.Errorf("voiceover: %w", err)
	}
	utils.Info("GenerateVoiceover done", "short_id", shortID, "voice", sel.Voice, "rate", sel.Rate, "duration_s", duration)

	if err := batch.Record(ctx, state.BatchShort{ShortID: shortID, Voice: sel.Voice}); err != nil {
		return err
	}
	recordVariety(ctx, svc, state.KindVoice, sel.Voice)

	vo := VoiceoverMeta{Path: out, Voice: sel.Voice, Rate: sel.Rate, Duration: duration, Hostname: jctx.Config.Hostname}
	if err := utils.SetValue(meta, metaVoiceover, vo); err != nil {
		return err
	}
	return j.complete(ctx, jctx, shortID, meta)
}
