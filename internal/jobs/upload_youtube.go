package jobs

import (
	"context"
	"errors"
	"fmt"

	"viralshorts/manager-go/internal/db"
	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/utils"
)

// UploadYouTubeJob publishes only the best-scoring short of each batch; the daily
// YouTube cap is too small for every short.
type UploadYouTubeJob struct {
	BaseJob
}

func NewUploadYouTubeJob() UploadYouTubeJob {
	return UploadYouTubeJob{
		BaseJob: BaseJob{
			QueueInput:  QueueUploadYouTube,
			QueueOutput: FlagYouTubeUploaded,
		},
	}
}

func (j UploadYouTubeJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	sel := selection{
		done:    []string{FlagShortRendered},
		pending: []string{FlagYouTubeUploaded},
		missing: []string{metaYouTube},
		extra:   []string{db.BestInBatchCondition()},
	}
	return j.run(ctx, jctx, opts, "UploadYouTube", sel, func(ctx context.Context, shortID int64) error {
		return j.processShort(ctx, jctx, opts, shortID)
	})
}

func (j UploadYouTubeJob) processShort(ctx context.Context, jctx JobContext, opts JobOptions, shortID int64) error {
	utils.Info("UploadYouTube process", "short_id", shortID)
	svc := jctx.Services
	if svc == nil {
		return errors.New("services are not configured")
	}
	short, meta, err := loadShort(ctx, jctx, shortID)
	if err != nil {
		return err
	}
	if done, _ := utils.GetStatus(meta, j.QueueOutput); done {
		utils.Info("UploadYouTube already uploaded", "short_id", shortID)
		return nil
	}
	if err := requireFlags(meta, FlagShortRendered); err != nil {
		return err
	}

	bestID, scored, err := bestInBatch(ctx, jctx, short.BatchID)
	if err != nil {
		return err
	}
	if !scored {
		return fmt.Errorf("%w: batch %s still has unscored shorts", ErrDeferred, short.BatchID)
	}
	if bestID != shortID {
		utils.Info("UploadYouTube skipped; not best in batch", "short_id", shortID, "best_id", bestID)
		if err := utils.SetValue(meta, metaYouTube, UploadMeta{Skipped: fmt.Sprintf("short %d scored higher", bestID)}); err != nil {
			return err
		}
		return jctx.Store.UpdateShortMetaStatus(ctx, shortID, short.Status, meta)
	}

	video, err := uploadVideo(meta, jctx.Config.YouTubePrivacy)
	if err != nil {
		return err
	}
	if opts.Info {
		printVideo(state.PlatformYouTube, shortID, video)
		return nil
	}
	if svc.YouTube == nil {
		return errors.New("youtube uploader is not configured")
	}
	if err := checkUploadSlot(ctx, svc, state.PlatformYouTube); err != nil {
		return err
	}

	res, err := svc.YouTube.Upload(ctx, video)
	if err != nil {
		return err
	}
	utils.Info("UploadYouTube done", "short_id", shortID, "video_id", res.VideoID, "url", res.URL)
	if err := recordUpload(ctx, svc, meta, metaYouTube, res); err != nil {
		return err
	}
	if err := j.markDone(ctx, jctx, shortID, meta); err != nil {
		return err
	}
	svc.Notifier.Notify(ctx, "YouTube upload: %s (%s)", video.Title, res.URL)
	return nil
}

// bestInBatch returns the highest-scoring short of a batch, lowest id on ties. scored is
// false while any short that has not failed still lacks a score.
func bestInBatch(ctx context.Context, jctx JobContext, batchID string) (int64, bool, error) {
	shorts, err := jctx.Store.ListBatchShorts(ctx, batchID)
	if err != nil {
		return 0, false, err
	}
	var best *db.Short
	for i := range shorts {
		sh := &shorts[i]
		if sh.Status == statusFailed {
			continue
		}
		if sh.Score == nil {
			return 0, false, nil
		}
		if best == nil || *sh.Score > *best.Score || (*sh.Score == *best.Score && sh.ID < best.ID) {
			best = sh
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.ID, true, nil
}
