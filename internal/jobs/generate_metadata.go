package jobs

import (
	"context"
	"errors"

	"viralshorts/manager-go/internal/utils"
)

type GenerateMetadataJob struct {
	BaseJob
}

func NewGenerateMetadataJob() GenerateMetadataJob {
	return GenerateMetadataJob{
		BaseJob: BaseJob{
			QueueInput:  FlagVoiceoverGenerated,
			QueueOutput: FlagMetadataGenerated,
		},
	}
}

func (j GenerateMetadataJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	sel := selection{
		done:    []string{FlagScriptGenerated},
		pending: []string{FlagMetadataGenerated},
	}
	return j.run(ctx, jctx, opts, "GenerateMetadata", sel, func(ctx context.Context, shortID int64) error {
		return j.processShort(ctx, jctx, shortID)
	})
}

func (j GenerateMetadataJob) processShort(ctx context.Context, jctx JobContext, shortID int64) error {
	utils.Info("GenerateMetadata process", "short_id", shortID)
	svc := jctx.Services
	if svc == nil || svc.Script == nil {
		return errors.New("script generator is not configured")
	}
	_, meta, err := loadShort(ctx, jctx, shortID)
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

	md := svc.Script.GenerateMetadata(ctx, concept, s)
	utils.Info("GenerateMetadata done", "short_id", shortID, "title", md.Title, "style", md.TitleStyle, "hashtags", len(md.Hashtags))

	if err := utils.SetValue(meta, metaMetadata, md); err != nil {
		return err
	}
	return j.complete(ctx, jctx, shortID, meta)
}
