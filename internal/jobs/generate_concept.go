package jobs

import (
	"context"
	"errors"

	"viralshorts/manager-go/internal/script"
	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/utils"
)

type GenerateConceptJob struct {
	BaseJob
}

func NewGenerateConceptJob() GenerateConceptJob {
	return GenerateConceptJob{
		BaseJob: BaseJob{
			QueueInput:  QueueShortCreated,
			QueueOutput: FlagConceptGenerated,
		},
	}
}

func (j GenerateConceptJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	sel := selection{pending: []string{FlagConceptGenerated}}
	return j.run(ctx, jctx, opts, "GenerateConcept", sel, func(ctx context.Context, shortID int64) error {
		return j.processShort(ctx, jctx, shortID)
	})
}

func (j GenerateConceptJob) processShort(ctx context.Context, jctx JobContext, shortID int64) error {
	utils.Info("GenerateConcept process", "short_id", shortID)
	svc := jctx.Services
	if svc == nil || svc.Script == nil {
		return errors.New("script generator is not configured")
	}
	short, meta, err := loadShort(ctx, jctx, shortID)
	if err != nil {
		return err
	}
	if done, _ := utils.GetStatus(meta, j.QueueOutput); done {
		utils.Info("GenerateConcept already done", "short_id", shortID)
		return nil
	}

	batch, err := state.OpenBatch(jctx.Config.DataDir, short.BatchID)
	if err != nil {
		return err
	}
	excludeCategories, excludeTopics, err := batch.ConceptExclusions(ctx, svc.Variety)
	if err != nil {
		return err
	}
	hint, _ := utils.GetString(meta, "hint")

	concept, err := svc.Script.GenerateConcept(ctx, script.ConceptInput{
		ExcludeCategories: excludeCategories,
		ExcludeTopics:     excludeTopics,
		Hint:              hint,
	})
	if err != nil {
		return err
	}
	utils.Info(
		"GenerateConcept done",
		"short_id", shortID,
		"category", concept.Category,
		"topic", concept.SpecificTopic,
		"fallback", concept.Fallback,
	)

	if err := batch.Record(ctx, state.BatchShort{ShortID: shortID, Category: concept.Category, Topic: concept.SpecificTopic}); err != nil {
		return err
	}
	recordVariety(ctx, svc, state.KindCategory, concept.Category)
	recordVariety(ctx, svc, state.KindTopic, concept.SpecificTopic)

	if err := utils.SetValue(meta, metaConcept, concept); err != nil {
		return err
	}
	return j.complete(ctx, jctx, shortID, meta)
}

func recordVariety(ctx context.Context, svc *Services, kind state.Kind, value string) {
	if svc.Variety == nil || value == "" {
		return
	}
	if err := svc.Variety.Record(ctx, kind, value); err != nil {
		utils.Warn("variety record failed", "kind", kind, "err", err)
	}
}
