package jobs

import (
	"context"
	"errors"

	"viralshorts/manager-go/internal/utils"
)

type GenerateBrollJob struct {
	BaseJob
}

func NewGenerateBrollJob() GenerateBrollJob {
	return GenerateBrollJob{
		BaseJob: BaseJob{
			QueueInput:  FlagScriptGenerated,
			QueueOutput: FlagBrollGenerated,
		},
	}
}

func (j GenerateBrollJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	sel := selection{
		done:    []string{FlagScriptGenerated},
		pending: []string{FlagBrollGenerated},
	}
	return j.run(ctx, jctx, opts, "GenerateBroll", sel, func(ctx context.Context, shortID int64) error {
		return j.processShort(ctx, jctx, shortID)
	})
}

// processShort stores one keyword and one clip path per phrase. Phrases without
// footage keep an empty path and render over a gradient.
func (j GenerateBrollJob) processShort(ctx context.Context, jctx JobContext, shortID int64) error {
	utils.Info("GenerateBroll process", "short_id", shortID)
	svc := jctx.Services
	if svc == nil || svc.Script == nil || svc.Broll == nil {
		return errors.New("broll services are not configured")
	}
	_, meta, err := loadShort(ctx, jctx, shortID)
	if err != nil {
		return err
	}
	if err := requireFlags(meta, FlagScriptGenerated); err != nil {
		return err
	}
	s, err := decodeScript(meta)
	if err != nil {
		return err
	}

	keywords := svc.Script.BrollKeywords(ctx, s.Phrases)
	clips, err := svc.Broll.FetchAll(ctx, keywords)
	if err != nil {
		return err
	}
	found := 0
	for _, clip := range clips {
		if clip != "" {
			found++
		}
	}
	utils.Info("GenerateBroll done", "short_id", shortID, "keywords", len(keywords), "clips", found)

	if err := utils.SetValue(meta, metaBroll, BrollMeta{Keywords: keywords, Clips: clips}); err != nil {
		return err
	}
	return j.complete(ctx, jctx, shortID, meta)
}
