package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"viralshorts/manager-go/internal/script"
	"viralshorts/manager-go/internal/upload"
	"viralshorts/manager-go/internal/utils"
)

// uploadVideo builds the platform-neutral upload request from a rendered short.
func uploadVideo(meta map[string]any, privacy string) (upload.Video, error) {
	var rm RenderMeta
	if err := utils.DecodeInto(meta, metaRender, &rm); err != nil {
		return upload.Video{}, err
	}
	if !utils.FileExists(rm.Path) {
		return upload.Video{}, fmt.Errorf("rendered video missing: %s", rm.Path)
	}
	var md script.Metadata
	if err := utils.DecodeInto(meta, metaMetadata, &md); err != nil {
		return upload.Video{}, err
	}
	return upload.Video{
		Path:        rm.Path,
		Title:       md.Title,
		Description: describe(md),
		Tags:        upload.TagsFromHashtags(md.Hashtags),
		Privacy:     privacy,
	}, nil
}

func describe(md script.Metadata) string {
	desc := strings.TrimSpace(md.Description)
	if len(md.Hashtags) == 0 {
		return desc
	}
	tags := strings.Join(md.Hashtags, " ")
	if desc == "" {
		return tags
	}
	return desc + "\n\n" + tags
}

func printVideo(platform string, shortID int64, v upload.Video) {
	fmt.Printf("platform:    %s\n", platform)
	fmt.Printf("short:       %d\n", shortID)
	fmt.Printf("file:        %s\n", v.Path)
	fmt.Printf("title:       %s\n", v.Title)
	fmt.Printf("tags:        %s\n", strings.Join(v.Tags, ", "))
	fmt.Printf("description:\n%s\n", v.Description)
}

// checkUploadSlot defers while the platform's rolling upload window is full.
func checkUploadSlot(ctx context.Context, svc *Services, platform string) error {
	if svc.Uploads == nil {
		return nil
	}
	ok, err := svc.Uploads.CanUpload(ctx, platform)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	wait, err := svc.Uploads.WaitTime(ctx, platform)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s upload limit reached, next slot in %s", ErrDeferred, platform, wait.Round(time.Second))
}

func recordUpload(ctx context.Context, svc *Services, meta map[string]any, key string, res upload.Result) error {
	if svc.Uploads != nil {
		if err := svc.Uploads.RecordUpload(ctx, res.Platform, res.VideoID); err != nil {
			utils.Warn("upload state update failed", "platform", res.Platform, "err", err)
		}
	}
	return utils.SetValue(meta, key, UploadMeta{VideoID: res.VideoID, URL: res.URL, UploadedAt: time.Now().UTC()})
}
