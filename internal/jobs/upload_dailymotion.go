package jobs

import (
	"context"
	"errors"

	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/utils"
)

type UploadDailymotionJob struct {
	BaseJob
}

func NewUploadDailymotionJob() UploadDailymotionJob {
	return UploadDailymotionJob{
		BaseJob: BaseJob{
			QueueInput:  QueueUploadDailymotion,
			QueueOutput: FlagDailymotionUploaded,
		},
	}
}

func (j UploadDailymotionJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	sel := selection{
		done:    []string{FlagShortRendered},
		pending: []string{FlagDailymotionUploaded},
	}
	return j.run(ctx, jctx, opts, "UploadDailymotion", sel, func(ctx context.Context, shortID int64) error {
		return j.processShort(ctx, jctx, opts, shortID)
	})
}

func (j UploadDailymotionJob) processShort(ctx context.Context, jctx JobContext, opts JobOptions, shortID int64) error {
	utils.Info("UploadDailymotion process", "short_id", shortID)
	svc := jctx.Services
	if svc == nil {
		return errors.New("services are not configured")
	}
	_, meta, err := loadShort(ctx, jctx, shortID)
	if err != nil {
		return err
	}
	if done, _ := utils.GetStatus(meta, j.QueueOutput); done {
		utils.Info("UploadDailymotion already uploaded", "short_id", shortID)
		return nil
	}
	if err := requireFlags(meta, FlagShortRendered); err != nil {
		return err
	}

	video, err := uploadVideo(meta, "")
	if err != nil {
		return err
	}
	if opts.Info {
		printVideo(state.PlatformDailymotion, shortID, video)
		return nil
	}
	if svc.Dailymotion == nil {
		return errors.New("dailymotion uploader is not configured")
	}
	if err := checkUploadSlot(ctx, svc, state.PlatformDailymotion); err != nil {
		return err
	}

	res, err := svc.Dailymotion.Upload(ctx, video)
	if err != nil {
		return err
	}
	utils.Info("UploadDailymotion done", "short_id", shortID, "video_id", res.VideoID, "url", res.URL)
	if err := recordUpload(ctx, svc, meta, metaDailymotion, res); err != nil {
		return err
	}
	if err := j.markDone(ctx, jctx, shortID, meta); err != nil {
		return err
	}
	svc.Notifier.Notify(ctx, "Dailymotion upload: %s (%s)", video.Title, res.URL)
	return nil
}
