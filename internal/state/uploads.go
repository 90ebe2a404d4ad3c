package state

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"viralshorts/manager-go/internal/jsonstore"
)

const (
	PlatformYouTube     = "youtube"
	PlatformDailymotion = "dailymotion"
)

type UploadLimit struct {
	Max    int
	Window time.Duration
}

// UploadLimits are the platforms' unverified-account posting caps.
var UploadLimits = map[string]UploadLimit{
	PlatformDailymotion: {Max: 4, Window: time.Hour},
	PlatformYouTube:     {Max: 6, Window: 24 * time.Hour},
}

type UploadRecord struct {
	VideoID string    `json:"video_id"`
	At      time.Time `json:"at"`
}

type uploadState struct {
	Uploads map[string][]UploadRecord `json:"uploads"`
}

type Uploads struct {
	file *jsonstore.File
	now  func() time.Time
}

func NewUploads(dir string) *Uploads {
	return &Uploads{
		file: jsonstore.Open(filepath.Join(dir, "upload_state.json")),
		now:  time.Now,
	}
}

func limitFor(platform string) (UploadLimit, error) {
	limit, ok := UploadLimits[platform]
	if !ok {
		return UploadLimit{}, fmt.Errorf("unknown upload platform %q", platform)
	}
	return limit, nil
}

// recent returns the uploads still inside the platform window, oldest first.
func recent(records []UploadRecord, window time.Duration, now time.Time) []UploadRecord {
	cutoff := now.Add(-window)
	out := make([]UploadRecord, 0, len(records))
	for _, r := range records {
		if r.At.After(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

func (u *Uploads) inWindow(ctx context.Context, platform string) ([]UploadRecord, UploadLimit, time.Time, error) {
	limit, err := limitFor(platform)
	if err != nil {
		return nil, limit, time.Time{}, err
	}
	var st uploadState
	if _, err := u.file.Load(ctx, &st); err != nil {
		return nil, limit, time.Time{}, err
	}
	now := u.now()
	return recent(st.Uploads[platform], limit.Window, now), limit, now, nil
}

func (u *Uploads) SlotsAvailable(ctx context.Context, platform string) (int, error) {
	records, limit, _, err := u.inWindow(ctx, platform)
	if err != nil {
		return 0, err
	}
	return max(0, limit.Max-len(records)), nil
}

func (u *Uploads) CanUpload(ctx context.Context, platform string) (bool, error) {
	slots, err := u.SlotsAvailable(ctx, platform)
	return slots > 0, err
}

// WaitTime is how long until the oldest upload in the window expires; zero when a
// slot is free now.
func (u *Uploads) WaitTime(ctx context.Context, platform string) (time.Duration, error) {
	records, limit, now, err := u.inWindow(ctx, platform)
	if err != nil {
		return 0, err
	}
	if len(records) < limit.Max {
		return 0, nil
	}
	oldest := records[0].At
	for _, r := range records[1:] {
		if r.At.Before(oldest) {
			oldest = r.At
		}
	}
	return max(0, oldest.Add(limit.Window).Sub(now)), nil
}

func (u *Uploads) RecordUpload(ctx context.Context, platform, videoID string) error {
	limit, err := limitFor(platform)
	if err != nil {
		return err
	}
	var st uploadState
	return u.file.Update(ctx, &st, func(bool) error {
		if st.Uploads == nil {
			st.Uploads = map[string][]UploadRecord{}
		}
		now := u.now()
		kept := recent(st.Uploads[platform], limit.Window, now)
		st.Uploads[platform] = append(kept, UploadRecord{VideoID: videoID, At: now})
		return nil
	})
}
