package jobs

import (
	"context"
	"errors"
	"fmt"

	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/utils"
)

const statusFailed = "failed"

// CreateBatch inserts size new shorts under a fresh batch id and announces each one
// on the short_created queue.
func CreateBatch(ctx context.Context, jctx JobContext, size int, hint string) (string, []int64, error) {
	if size <= 0 {
		return "", nil, fmt.Errorf("batch size must be positive, got %d", size)
	}
	batchID := state.NewBatchID()
	ids := make([]int64, 0, size)
	for n := 0; n < size; n++ {
		meta := map[string]any{metaBatch: batchID}
		if hint != "" {
			meta["hint"] = hint
		}
		id, err := jctx.Store.CreateShort(ctx, batchID, meta)
		if err != nil {
			return batchID, ids, fmt.Errorf("create short: %w", err)
		}
		ids = append(ids, id)
		if err := publish(jctx, id, QueueShortCreated); err != nil {
			return batchID, ids, err
		}
	}
	utils.Info("batch created", "batch_id", batchID, "shorts", len(ids))
	return batchID, ids, nil
}

type ProduceOptions struct {
	Size   int
	Upload bool
	Hint   string
}

type ShortReport struct {
	ShortID     int64
	Category    string
	Topic       string
	Score       float64
	Output      string
	FailedStage string
	Err         error
	YouTube     string
	Dailymotion string
}

type ProduceResult struct {
	BatchID string
	Shorts  []ShortReport
}

type stageFunc struct {
	name string
	run  func(ctx context.Context, jctx JobContext, shortID int64) error
}

func productionStages() []stageFunc {
	concept := NewGenerateConceptJob()
	scriptJob := NewGenerateScriptJob()
	brollJob := NewGenerateBrollJob()
	voiceJob := NewGenerateVoiceoverJob()
	metaJob := NewGenerateMetadataJob()
	renderJob := NewRenderShortJob()
	return []stageFunc{
		{"concept", concept.processShort},
		{"script", scriptJob.processShort},
		{"broll", brollJob.processShort},
		{"voiceover", voiceJob.processShort},
		{"metadata", metaJob.processShort},
		{"render", renderJob.processShort},
	}
}

// ProduceBatch runs every stage in-process for a new batch, one short after another.
// A failing short is marked failed and the batch moves on.
func ProduceBatch(ctx context.Context, jctx JobContext, opts ProduceOptions) (ProduceResult, error) {
	jctx.Queue = nil
	size := opts.Size
	if svc := jctx.Services; svc != nil && svc.Budget != nil {
		remaining, err := svc.Budget.EstimateVideosRemaining(ctx)
		if err != nil {
			return ProduceResult{}, err
		}
		if remaining <= 0 {
			return ProduceResult{}, errors.New("token budget exhausted for today")
		}
		if remaining < size {
			utils.Warn("token budget allows fewer shorts than requested", "requested", size, "remaining", remaining)
			size = remaining
		}
	}

	batchID, ids, err := CreateBatch(ctx, jctx, size, opts.Hint)
	if err != nil {
		return ProduceResult{BatchID: batchID}, err
	}
	result := ProduceResult{BatchID: batchID}
	stages := productionStages()
	for i, id := range ids {
		utils.Info("producing short", "batch_id", batchID, "short_id", id, "n", i+1, "of", len(ids))
		report := ShortReport{ShortID: id}
		for _, stage := range stages {
			if err := stage.run(ctx, jctx, id); err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				utils.Error("stage failed", "short_id", id, "stage", stage.name, "err", err)
				report.FailedStage, report.Err = stage.name, err
				failShort(ctx, jctx, id, stage.name, err)
				break
			}
		}
		result.Shorts = append(result.Shorts, report)
	}

	if opts.Upload {
		uploadBatch(ctx, jctx, result.Shorts)
	}
	for i := range result.Shorts {
		fillReport(ctx, jctx, &result.Shorts[i])
	}
	notifyBatch(ctx, jctx, result)
	return result, nil
}

func uploadBatch(ctx context.Context, jctx JobContext, reports []ShortReport) {
	dm := NewUploadDailymotionJob()
	yt := NewUploadYouTubeJob()
	for _, r := range reports {
		if r.Err != nil {
			continue
		}
		if err := dm.processShort(ctx, jctx, JobOptions{}, r.ShortID); err != nil {
			utils.Warn("dailymotion upload not done", "short_id", r.ShortID, "err", err)
		}
		if err := yt.processShort(ctx, jctx, JobOptions{}, r.ShortID); err != nil {
			utils.Warn("youtube upload not done", "short_id", r.ShortID, "err", err)
		}
	}
}

func failShort(ctx context.Context, jctx JobContext, shortID int64, stage string, cause error) {
	_, meta, err := loadShort(ctx, jctx, shortID)
	if err != nil {
		utils.Warn("mark failed: load", "short_id", shortID, "err", err)
		return
	}
	meta["error"] = map[string]any{"stage": stage, "message": cause.Error()}
	if err := jctx.Store.UpdateShortMetaStatus(ctx, shortID, statusFailed, meta); err != nil {
		utils.Warn("mark failed: update", "short_id", shortID, "err", err)
	}
}

func fillReport(ctx context.Context, jctx JobContext, r *ShortReport) {
	short, meta, err := loadShort(ctx, jctx, r.ShortID)
	if err != nil {
		return
	}
	r.Category = short.Category
	r.Topic = short.Title
	if short.Score != nil {
		r.Score = *short.Score
	}
	r.Output, _ = utils.GetString(meta, metaRender, "path")
	r.YouTube, _ = utils.GetString(meta, metaYouTube, "url")
	r.Dailymotion, _ = utils.GetString(meta, metaDailymotion, "url")
}

func notifyBatch(ctx context.Context, jctx JobContext, result ProduceResult) {
	if jctx.Services == nil || !jctx.Services.Notifier.Enabled() {
		return
	}
	ok := 0
	for _, r := range result.Shorts {
		if r.Err == nil {
			ok++
		}
	}
	jctx.Services.Notifier.Notify(ctx, "Batch %s: %d/%d shorts rendered", result.BatchID, ok, len(result.Shorts))
}
