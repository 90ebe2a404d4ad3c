package state

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestVarietyRecordCapsHistory(t *testing.T) {
	v := NewVariety(t.TempDir())
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if err := v.Record(ctx, KindTopic, string(rune('a'+i))); err != nil {
			t.Fatal(err)
		}
	}
	all, err := v.Exclusions(ctx, KindTopic, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != varietyHistory || all[0] != "f" {
		t.Fatalf("history = %v", all)
	}
	last, _ := v.Exclusions(ctx, KindTopic, 3)
	if len(last) != 3 || last[2] != "y" {
		t.Fatalf("last 3 = %v", last)
	}
}

func TestCategoryWeights(t *testing.T) {
	recent := []string{"money", "money", "money", "money", "tech"}
	w := categoryWeights(recent, []string{"money", "tech", "facts"})
	// raw: money 0.1, tech 0.7, facts 1.0
	total := 1.8
	want := map[string]float64{"money": 0.1 / total, "tech": 0.7 / total, "facts": 1.0 / total}
	for k, v := range want {
		if math.Abs(w[k]-v) > 1e-9 {
			t.Errorf("%s weight = %v, want %v", k, w[k], v)
		}
	}
	fallback := categoryWeights(nil, nil)
	if len(fallback) != len(FallbackCategories) {
		t.Fatalf("fallback weights = %v", fallback)
	}
}

func TestPickCategoryFollowsWeights(t *testing.T) {
	v := NewVariety(t.TempDir())
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_ = v.Record(ctx, KindCategory, "money")
	}
	// money carries 0.1/1.1 of the mass, so a draw past it lands on tech.
	v.rand = func() float64 { return 0.5 }
	got, err := v.PickCategory(ctx, []string{"money", "tech"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "tech" {
		t.Fatalf("picked %s", got)
	}
	v.rand = func() float64 { return 0.01 }
	if got, _ := v.PickCategory(ctx, []string{"money", "tech"}); got != "money" {
		t.Fatalf("picked %s", got)
	}
}

func TestUploadsRollingWindow(t *testing.T) {
	u := NewUploads(t.TempDir())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := u.RecordUpload(ctx, PlatformDailymotion, "x"); err != nil {
			t.Fatal(err)
		}
		now = now.Add(10 * time.Minute)
	}
	ok, err := u.CanUpload(ctx, PlatformDailymotion)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("dailymotion should be at its hourly cap")
	}
	wait, _ := u.WaitTime(ctx, PlatformDailymotion)
	if wait != 20*time.Minute {
		t.Fatalf("wait = %s, want 20m", wait)
	}
	if slots, _ := u.SlotsAvailable(ctx, PlatformYouTube); slots != 6 {
		t.Fatalf("youtube slots = %d", slots)
	}

	now = now.Add(21 * time.Minute)
	if slots, _ := u.SlotsAvailable(ctx, PlatformDailymotion); slots != 1 {
		t.Fatalf("slots after window = %d", slots)
	}
	if _, err := u.CanUpload(ctx, "myspace"); err == nil {
		t.Fatal("expected unknown platform error")
	}
}

func TestBatchRecordAndExclusions(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	b, err := OpenBatch(dir, NewBatchID())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := OpenBatch(dir, "../etc"); err == nil {
		t.Fatal("expected invalid batch id error")
	}

	shorts := []BatchShort{
		{ShortID: 3, Category: "money", Topic: "t1", Voice: "v1"},
		{ShortID: 1, Category: "tech", Topic: "t2", Voice: "v2"},
		{ShortID: 2, Category: "money", Topic: "t3"},
	}
	for _, s := range shorts {
		if err := b.Record(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	_ = b.Record(ctx, BatchShort{ShortID: 2, Voice: "v3", MusicMood: "chill"})
	recorded, err := b.Shorts(ctx)
	if err != nil || len(recorded) != 3 || recorded[2].Category != "money" || recorded[2].Voice != "v3" {
		t.Fatalf("merge lost fields: %+v %v", recorded, err)
	}
	voices, _ := b.UsedVoices(ctx)
	if len(voices) != 3 {
		t.Fatalf("voices = %v", voices)
	}

	v := NewVariety(dir)
	_ = v.Record(ctx, KindCategory, "facts")
	_ = v.Record(ctx, KindTopic, "t1")
	cats, topics, err := b.ConceptExclusions(ctx, v)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 3 || cats[2] != "facts" {
		t.Fatalf("categories = %v", cats)
	}
	if len(topics) != 3 {
		t.Fatalf("topics = %v", topics)
	}
}
