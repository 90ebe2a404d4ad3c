package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"viralshorts/manager-go/internal/config"
	"viralshorts/manager-go/internal/db"
	"viralshorts/manager-go/internal/jobs"
	"viralshorts/manager-go/internal/state"
)

func TestExtractGlobalVerbose(t *testing.T) {
	args, verbose := extractGlobalVerbose([]string{"manager", "job:RenderShort", "--verbose", "12"})
	if !verbose || !slices.Equal(args, []string{"manager", "job:RenderShort", "12"}) {
		t.Fatalf("args=%v verbose=%t", args, verbose)
	}
	args, verbose = extractGlobalVerbose([]string{"manager", "-verbose=false", "Quota:Status"})
	if verbose || !slices.Equal(args, []string{"manager", "Quota:Status"}) {
		t.Fatalf("args=%v verbose=%t", args, verbose)
	}
}

func TestWantsQueue(t *testing.T) {
	cases := map[string]bool{
		"--queue":       true,
		"-queue":        true,
		"--queue=true":  true,
		"--queue=false": false,
		"queue":         false,
		"--sleep=5":     false,
	}
	for arg, want := range cases {
		if got := wantsQueue([]string{arg}); got != want {
			t.Errorf("wantsQueue(%q) = %t, want %t", arg, got, want)
		}
	}
}

func TestParseShortID(t *testing.T) {
	if id, err := parseShortID(nil); err != nil || id != 0 {
		t.Fatalf("empty args: %d %v", id, err)
	}
	if id, err := parseShortID([]string{"42"}); err != nil || id != 42 {
		t.Fatalf("42: %d %v", id, err)
	}
	for _, bad := range []string{"abc", "0", "-3"} {
		if _, err := parseShortID([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestRunTitleStylesStoresLearnedStyles(t *testing.T) {
	cfg := config.Config{DataDir: t.TempDir()}
	ctx := context.Background()
	if err := runTitleStyles(ctx, cfg, []string{"curiosity_gap,result_focused", "curiosity_gap"}); err != nil {
		t.Fatal(err)
	}
	styles, err := state.NewVariety(cfg.DataDir).BestTitleStyles(ctx)
	if err != nil || !slices.Equal(styles, []string{"curiosity_gap", "result_focused"}) {
		t.Fatalf("styles = %v err=%v", styles, err)
	}
	if err := runTitleStyles(ctx, cfg, []string{"clickbait"}); err == nil {
		t.Fatal("expected unknown style error")
	}
	if err := runTitleStyles(ctx, cfg, nil); err != nil {
		t.Fatalf("listing styles: %v", err)
	}
}

func TestCheckCommands(t *testing.T) {
	if !isCheckCommand("Check:Rendered") || isCheckCommand("Check:Nope") || isCheckCommand("Rendered") {
		t.Fatal("check command detection")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"Short", "Status"}, [][]string{{"1", "short_rendered"}, {"2"}}, []columnAlignment{alignRight})
	for _, want := range []string{"Short", "Status", "short_rendered"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("no headers should render nothing")
	}
}

type shortsStub struct {
	jobs.Store
	shorts []db.Short
}

func (s shortsStub) GetShortByID(_ context.Context, id int64) (db.Short, error) {
	for _, sh := range s.shorts {
		if sh.ID == id {
			return sh, nil
		}
	}
	return db.Short{}, db.ErrNotFound
}

func (s shortsStub) ListShorts(_ context.Context, _ string, limit int, _ ...any) ([]db.Short, error) {
	if limit < len(s.shorts) {
		return s.shorts[:limit], nil
	}
	return s.shorts, nil
}

func newTestServer(t *testing.T) *statusServer {
	t.Helper()
	score := 8.5
	return &statusServer{
		store: shortsStub{shorts: []db.Short{
			{ID: 2, Title: "Why octopuses have 3 hearts", Category: "science", Score: &score, Status: jobs.FlagShortRendered, Meta: []byte(`{"status":{"short_rendered":true}}`)},
			{ID: 1, Title: "Honey never spoils", Category: "food", Status: jobs.FlagConceptGenerated},
		}},
		services: &jobs.Services{Uploads: state.NewUploads(t.TempDir())},
		depth: func(name string) (int, error) {
			if name == jobs.QueueUploadYouTube {
				return 3, nil
			}
			return 0, nil
		},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatusServerShorts(t *testing.T) {
	h := newTestServer(t).routes()

	if rec := get(t, h, "/health"); rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}

	rec := get(t, h, "/api/shorts?limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	var list []shortView
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != 2 || list[0].Meta != nil {
		t.Fatalf("list = %+v", list)
	}

	if rec := get(t, h, "/api/shorts?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", rec.Code)
	}

	rec = get(t, h, "/api/shorts/2")
	var one shortView
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil {
		t.Fatal(err)
	}
	if one.Score == nil || *one.Score != 8.5 || !strings.Contains(string(one.Meta), "short_rendered") {
		t.Fatalf("short = %+v", one)
	}

	if rec := get(t, h, "/api/shorts/99"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing short: %d", rec.Code)
	}
}

func TestStatusServerQueuesAndUploads(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	rec := get(t, h, "/api/queues")
	var depths map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &depths); err != nil {
		t.Fatal(err)
	}
	if len(depths) != len(watchedQueues) || depths[jobs.QueueUploadYouTube] != 3 {
		t.Fatalf("depths = %v", depths)
	}

	rec = get(t, h, "/api/uploads")
	var uploads map[string]struct {
		Slots       int `json:"slots"`
		WaitSeconds int `json:"wait_seconds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &uploads); err != nil {
		t.Fatal(err)
	}
	if uploads[state.PlatformYouTube].Slots != state.UploadLimits[state.PlatformYouTube].Max {
		t.Fatalf("uploads = %+v", uploads)
	}

	if rec := get(t, h, "/api/budget"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("budget without services: %d", rec.Code)
	}

	srv.depth = func(string) (int, error) { return 0, errors.New("channel closed") }
	if rec := get(t, h, "/api/queues"); rec.Code != http.StatusBadGateway {
		t.Fatalf("queue failure: %d", rec.Code)
	}
}
