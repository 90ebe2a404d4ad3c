package jobs

import (
	"context"
	"errors"

	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/utils"
)

type GenerateScriptJob struct {
	BaseJob
}

func NewGenerateScriptJob() GenerateScriptJob {
	return GenerateScriptJob{
		BaseJob: BaseJob{
			QueueInput:  FlagConceptGenerated,
			QueueOutput: FlagScriptGenerated,
		},
	}
}

func (j GenerateScriptJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	sel := selection{
		done:    []string{FlagConceptGenerated},
		pending: []string{FlagScriptGenerated},
	}
	return j.run(ctx, jctx, opts, "GenerateScript", sel, func(ctx context.Context, shortID int64) error {
		return j.processShort(ctx, jctx, shortID)
	})
}

func (j GenerateScriptJob) processShort(ctx context.Context, jctx JobContext, shortID int64) error {
	utils.Info("GenerateScript process", "short_id", shortID)
	svc := jctx.Services
	if svc == nil || svc.Script == nil {
		return errors.New("script generator is not configured")
	}
	_, meta, err := loadShort(ctx, jctx, shortID)
	if err != nil {
		return err
	}
	if err := requireFlags(meta, FlagConceptGenerated); err != nil {
		return err
	}
	concept, err := decodeConcept(meta)
	if err != nil {
		return err
	}

	s, err := svc.Script.WriteScript(ctx, concept)
	if err != nil {
		return err
	}
	utils.Info(
		"GenerateScript done",
		"short_id", shortID,
		"phrases", len(s.Phrases),
		"score", s.Score,
		"regenerated", s.Regenerated,
		"quality_warning", s.QualityWarning,
	)

	recordVariety(ctx, svc, state.KindHook, s.Phrases[0])

	if err := utils.SetValue(meta, metaScript, s); err != nil {
		return err
	}
	utils.SetStatus(meta, j.QueueOutput, true)
	if err := jctx.Store.UpdateShortScript(ctx, shortID, concept.SpecificTopic, concept.Category, s.Score, j.QueueOutput, meta); err != nil {
		return err
	}
	return publish(jctx, shortID, j.QueueOutput)
}
