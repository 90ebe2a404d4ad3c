package music

import (
	"os"
	"path/filepath"
	"testing"
)

const testManifest = `
[[track]]
file = "epic.mp3"
mood = "Dramatic"
bpm = 120

[[track]]
file = "sunny.mp3"
mood = "upbeat"
bpm = 128

[[track]]
file = "/abs/lofi.mp3"
mood = "chill"
`

func writeManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte(testManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadAndPick(t *testing.T) {
	dir := writeManifest(t)
	lib, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(lib.Tracks()) != 3 {
		t.Fatalf("tracks = %+v", lib.Tracks())
	}

	tr, ok := lib.Pick("dramatic", nil)
	if !ok || tr.File != "epic.mp3" || tr.BPM != 120 {
		t.Fatalf("pick = %+v", tr)
	}
	if got := lib.Path(tr); got != filepath.Join(dir, "epic.mp3") {
		t.Fatalf("path = %s", got)
	}

	tr, _ = lib.Pick("dramatic", []string{"dramatic"})
	if tr.File != "sunny.mp3" {
		t.Fatalf("recently used mood should be skipped, got %+v", tr)
	}
	if got := lib.Path(tr); got != filepath.Join(dir, "sunny.mp3") {
		t.Fatalf("path = %s", got)
	}

	tr, _ = lib.Pick("dramatic", []string{"dramatic", "upbeat", "chill"})
	if tr.File != "epic.mp3" {
		t.Fatalf("all moods used should fall back to requested mood, got %+v", tr)
	}

	tr, _ = lib.Pick("dramatic", []string{"dramatic", "upbeat", "chill", "tech", "tech", "tech"})
	if tr.File != "epic.mp3" {
		t.Fatalf("only the last three moods count, got %+v", tr)
	}
	if lib.Path(Track{File: "/abs/lofi.mp3"}) != "/abs/lofi.mp3" {
		t.Fatal("absolute paths are kept")
	}
}

func TestLoadMissingManifest(t *testing.T) {
	lib, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lib.Pick("upbeat", nil); ok {
		t.Fatal("empty library should not pick")
	}
}
