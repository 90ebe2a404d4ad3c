package render

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"viralshorts/manager-go/internal/subtitles"
)

func TestDedupePhrases(t *testing.T) {
	got := DedupePhrases([]string{" Hook line ", "", "hook LINE", "Payoff"})
	if len(got) != 2 || got[0] != "Hook line" || got[1] != "Payoff" {
		t.Fatalf("unexpected phrases %q", got)
	}
	phrases, clips := DedupeWithClips([]string{"A", " ", "a", "B"}, []string{"a.mp4", "blank.mp4", "dup.mp4"})
	if strings.Join(phrases, "|") != "A|B" || strings.Join(clips, "|") != "a.mp4|" {
		t.Fatalf("phrases=%q clips=%q", phrases, clips)
	}
	if text := VoiceoverText([]string{"One", "one", "Two"}); text != "One. Two" {
		t.Fatalf("unexpected voiceover text %q", text)
	}
}

func TestRenderKeepsClipsAlignedAfterDedupe(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeFFmpeg{music: filepath.Join(dir, "none.mp3")}
	hook := touch(t, filepath.Join(dir, "hook.mp4"))
	dup := touch(t, filepath.Join(dir, "dup.mp4"))
	gills := touch(t, filepath.Join(dir, "gills.mp4"))

	r := NewRenderer(DefaultOptions())
	r.Run = fake.run
	res, err := r.Render(context.Background(), Input{
		Phrases:           []string{"Hearts", "hearts", "Two pump blood to the gills"},
		Clips:             []string{hook, dup, gills},
		Voiceover:         touch(t, filepath.Join(dir, "voice.mp3")),
		VoiceoverDuration: 6,
		Output:            filepath.Join(dir, "out", "short.mp4"),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(res.Segments))
	}
	var segmentInputs []string
	for _, cmd := range fake.commands {
		if strings.Contains(cmd, "'-stream_loop'") {
			segmentInputs = append(segmentInputs, cmd)
		}
	}
	if len(segmentInputs) != 2 || !strings.Contains(segmentInputs[0], hook) || !strings.Contains(segmentInputs[1], gills) {
		t.Fatalf("segment clips misaligned: %q", segmentInputs)
	}
	for _, cmd := range fake.commands {
		if strings.Contains(cmd, dup) {
			t.Fatalf("repeated phrase's clip should be dropped: %s", cmd)
		}
	}
}

func TestTimelineAppliesFloorAndRescales(t *testing.T) {
	phrases := []string{strings.Repeat("a", 10), strings.Repeat("b", 30), strings.Repeat("c", 60)}
	segments := Timeline(phrases, 10)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	want := []float64{2 * 10.0 / 11, 3 * 10.0 / 11, 6 * 10.0 / 11}
	sum := 0.0
	for i, seg := range segments {
		if math.Abs(seg.Duration-want[i]) > 1e-9 {
			t.Fatalf("segment %d duration %v, want %v", i, seg.Duration, want[i])
		}
		if math.Abs(seg.Start-sum) > 1e-9 {
			t.Fatalf("segment %d starts at %v, want %v", i, seg.Start, sum)
		}
		sum += seg.Duration
	}
	if math.Abs(sum-10) > 1e-9 {
		t.Fatalf("durations sum to %v", sum)
	}
	if Timeline(nil, 10) != nil || Timeline(phrases, 0) != nil {
		t.Fatalf("expected nil timeline for empty input")
	}
}

func TestWrapText(t *testing.T) {
	text := "Octopuses have three hearts and blue blood pumping through their veins"
	lines := WrapText(text, 64, 980)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %q", lines)
	}
	for _, line := range lines {
		if len([]rune(line)) > 27 {
			t.Fatalf("line too long: %q", line)
		}
	}
	if strings.Join(lines, " ") != text {
		t.Fatalf("wrapping lost words: %q", lines)
	}
	long := WrapText("Pneumonoultramicroscopicsilicovolcanoconiosis is long", 64, 980)
	if long[0] != "Pneumonoultramicroscopicsilicovolcanoconiosis" {
		t.Fatalf("long word should stand alone, got %q", long)
	}
	if WrapText("   ", 64, 980) != nil {
		t.Fatalf("expected nil for blank text")
	}
}

func TestSFXPlan(t *testing.T) {
	got := SFXPlan(5)
	want := []string{"hit", "whoosh", "", "whoosh", "ding"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SFXPlan(5) = %q, want %q", got, want)
		}
	}
	if one := SFXPlan(1); len(one) != 1 || one[0] != "hit" {
		t.Fatalf("SFXPlan(1) = %q", one)
	}
}

type fakeFFmpeg struct {
	mu       sync.Mutex
	commands []string
	scripts  []string
	music    string
}

var quotedArg = regexp.MustCompile(`'([^']*)'`)

func (f *fakeFFmpeg) run(_ context.Context, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	if strings.Contains(command, "grep Duration") {
		if strings.Contains(command, f.music) {
			return "  Duration: 00:01:00.00, start: 0.000000, bitrate: 128 kb/s", nil
		}
		return "  Duration: 00:00:09.00, start: 0.000000", nil
	}
	args := quotedArg.FindAllStringSubmatch(command, -1)
	for i, arg := range args {
		if arg[1] == "-filter_complex_script" && i+1 < len(args) {
			data, err := os.ReadFile(args[i+1][1])
			if err != nil {
				return "", err
			}
			f.scripts = append(f.scripts, string(data))
		}
	}
	out := args[len(args)-1][1]
	return "", os.WriteFile(out, []byte("video"), 0o644)
}

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestRenderBuildsSegmentAndAssemblyGraphs(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeFFmpeg{music: filepath.Join(dir, "music.mp3")}
	touch(t, fake.music)

	r := NewRenderer(DefaultOptions())
	r.Run = fake.run
	res, err := r.Render(context.Background(), Input{
		Phrases: []string{
			"Octopuses have three hearts",
			"octopuses have three hearts",
			"Two pump blood to the gills",
			"The third one stops beating whenever they swim fast",
		},
		Clips:             []string{touch(t, filepath.Join(dir, "clip0.mp4")), ""},
		Voiceover:         touch(t, filepath.Join(dir, "voice.mp3")),
		VoiceoverDuration: 9,
		Music:             fake.music,
		SFX: map[string]string{
			"hit":  touch(t, filepath.Join(dir, "hit.mp3")),
			"ding": touch(t, filepath.Join(dir, "ding.mp3")),
		},
		Output: filepath.Join(dir, "out", "short.mp4"),
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(res.Segments) != 3 {
		t.Fatalf("expected 3 segments after dedupe, got %d", len(res.Segments))
	}
	if len(fake.scripts) != 4 {
		t.Fatalf("expected 3 segment passes and 1 assembly, got %d scripts", len(fake.scripts))
	}

	if s := fake.scripts[0]; !strings.HasPrefix(s, "[0:v]scale=1080:1920") || !strings.Contains(s, "zoompan") || !strings.Contains(s, "vignette") {
		t.Fatalf("segment 0 should use the B-roll chain: %s", s)
	}
	if s := fake.scripts[1]; !strings.HasPrefix(s, "gradients=") || strings.Contains(s, "zoompan") {
		t.Fatalf("segment 1 should use a gradient: %s", s)
	}
	if strings.Contains(fake.scripts[1], "between(t,") {
		t.Fatalf("only the last segment carries the subscribe call to action")
	}
	if !strings.Contains(fake.scripts[2], "between(t,") {
		t.Fatalf("last segment should carry the subscribe call to action: %s", fake.scripts[2])
	}

	assembly := fake.scripts[3]
	if strings.Count(assembly, "xfade=") != 2 {
		t.Fatalf("expected 2 crossfades: %s", assembly)
	}
	offset := "offset=" + seconds(res.Segments[1].Start)
	if !strings.Contains(assembly, offset) {
		t.Fatalf("expected %s in %s", offset, assembly)
	}
	for _, want := range []string{"[bar]overlay", "volume=0.150", "amix=inputs=4", "volume=0.400,adelay=0|0"} {
		if !strings.Contains(assembly, want) {
			t.Fatalf("assembly graph missing %q: %s", want, assembly)
		}
	}
	last := fake.commands[len(fake.commands)-1]
	if !strings.Contains(last, "'-ss' '3.000'") || !strings.Contains(last, "'-b:v' '8M'") {
		t.Fatalf("unexpected assembly command %s", last)
	}

	data, err := os.ReadFile(res.Subtitles)
	if err != nil {
		t.Fatalf("read subtitles: %v", err)
	}
	if captions := subtitles.ParseSRT(string(data)); len(captions) != 3 {
		t.Fatalf("expected 3 captions, got %d", len(captions))
	}
	if entries, _ := os.ReadDir(filepath.Join(dir, "out")); len(entries) != 2 {
		t.Fatalf("work directory should be cleaned up, found %d entries", len(entries))
	}
}

func TestRenderRequiresVoiceover(t *testing.T) {
	r := NewRenderer(DefaultOptions())
	_, err := r.Render(context.Background(), Input{
		Phrases:   []string{"One"},
		Voiceover: filepath.Join(t.TempDir(), "missing.mp3"),
		Output:    filepath.Join(t.TempDir(), "short.mp4"),
	})
	if err == nil {
		t.Fatalf("expected an error for a missing voiceover")
	}
}
