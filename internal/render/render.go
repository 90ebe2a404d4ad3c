package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"viralshorts/manager-go/internal/subtitles"
	"viralshorts/manager-go/internal/utils"
)

const subscribeText = "SUBSCRIBE FOR MORE"

type Options struct {
	Width        int
	Height       int
	FPS          int
	FontSize     int
	LineHeight   int
	FontFile     string
	VideoBitrate string
	Preset       string
	Threads      int
	Crossfade    float64
	MusicVolume  float64
	MusicSkip    float64
	SFXVolume    float64
}

func DefaultOptions() Options {
	return Options{
		Width:        1080,
		Height:       1920,
		FPS:          30,
		FontSize:     64,
		LineHeight:   80,
		VideoBitrate: "8M",
		Preset:       "medium",
		Threads:      4,
		Crossfade:    0.15,
		MusicVolume:  0.15,
		MusicSkip:    3.0,
		SFXVolume:    0.4,
	}
}

// Input describes one short. Clips are matched to phrases by index; a missing
// or empty clip falls back to a gradient background.
type Input struct {
	Phrases           []string
	Clips             []string
	Voiceover         string
	VoiceoverDuration float64
	Music             string
	SFX               map[string]string
	Output            string
}

type Result struct {
	Output    string
	Subtitles string
	Duration  float64
	Segments  []Segment
}

// Renderer composites shorts with ffmpeg: one pass per segment, then an
// assembly pass for crossfades, the progress bar and the audio mix.
type Renderer struct {
	Options Options
	Run     utils.CommandRunner
}

func NewRenderer(opts Options) *Renderer {
	return &Renderer{Options: opts, Run: utils.RunCommandContext}
}

func (r *Renderer) Render(ctx context.Context, in Input) (Result, error) {
	phrases, clips := DedupeWithClips(in.Phrases, in.Clips)
	if len(phrases) == 0 {
		return Result{}, errors.New("render: no phrases")
	}
	if in.Output == "" {
		return Result{}, errors.New("render: output path is required")
	}
	if !utils.FileExists(in.Voiceover) {
		return Result{}, fmt.Errorf("render: voiceover %q not found", in.Voiceover)
	}
	run := r.Run
	if run == nil {
		run = utils.RunCommandContext
	}

	total := in.VoiceoverDuration
	if total <= 0 {
		d, err := utils.ProbeDuration(ctx, run, in.Voiceover)
		if err != nil {
			return Result{}, fmt.Errorf("render: measure voiceover: %w", err)
		}
		total = d
	}
	segments := Timeline(phrases, total)
	if len(segments) == 0 {
		return Result{}, fmt.Errorf("render: invalid voiceover duration %v", total)
	}

	if err := utils.EnsureDir(filepath.Dir(in.Output)); err != nil {
		return Result{}, err
	}
	work, err := os.MkdirTemp(filepath.Dir(in.Output), ".render-*")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(work)

	parts := make([]string, len(segments))
	for i, seg := range segments {
		clip := clips[i]
		if clip != "" && !utils.FileExists(clip) {
			utils.Warn("B-roll clip missing, using gradient", "segment", i, "path", clip)
			clip = ""
		}
		part, err := r.renderSegment(ctx, run, work, seg, len(segments), clip)
		if err != nil {
			return Result{}, err
		}
		parts[i] = part
		utils.Debug("segment rendered", "index", i, "duration", seg.Duration, "broll", clip != "")
	}

	musicSkip := 0.0
	if in.Music != "" {
		if !utils.FileExists(in.Music) {
			utils.Warn("music track missing, rendering without music", "path", in.Music)
			in.Music = ""
		} else if d, err := utils.ProbeDuration(ctx, run, in.Music); err != nil {
			utils.Warn("could not read music duration", "path", in.Music, "err", err)
		} else if d > r.Options.MusicSkip+total {
			musicSkip = r.Options.MusicSkip
		}
	}

	if err := r.assemble(ctx, run, work, in, segments, parts, total, musicSkip); err != nil {
		return Result{}, err
	}
	if !utils.FileExists(in.Output) {
		return Result{}, fmt.Errorf("render: ffmpeg produced no output at %s", in.Output)
	}

	srtPath := strings.TrimSuffix(in.Output, filepath.Ext(in.Output)) + ".srt"
	if err := WriteSubtitles(srtPath, segments); err != nil {
		return Result{}, err
	}
	utils.Info("short rendered", "output", in.Output, "duration", total, "segments", len(segments))
	return Result{Output: in.Output, Subtitles: srtPath, Duration: total, Segments: segments}, nil
}

// WriteSubtitles stores the phrase timeline as an SRT sidecar.
func WriteSubtitles(path string, segments []Segment) error {
	cues := make([]subtitles.Cue, 0, len(segments))
	for _, seg := range segments {
		cues = append(cues, subtitles.Cue{Start: seg.Start, End: seg.End(), Text: seg.Text})
	}
	body := subtitles.SerializeSRT(subtitles.FromCues(cues))
	if err := utils.WriteFileAtomic(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	return nil
}

func (r *Renderer) renderSegment(ctx context.Context, run utils.CommandRunner, work string, seg Segment, count int, clip string) (string, error) {
	o := r.Options
	length := seg.Duration
	if seg.Index < count-1 {
		length += o.Crossfade
	}
	frames := int(length*float64(o.FPS)) + 1

	var inputs []string
	var chain []string
	if clip != "" {
		inputs = []string{"-stream_loop", "-1", "-i", clip}
		chain = append(chain,
			fmt.Sprintf("[0:v]scale=%d:%d:force_original_aspect_ratio=increase", o.Width, o.Height),
			fmt.Sprintf("crop=%d:%d", o.Width, o.Height),
			"setsar=1",
			fmt.Sprintf("fps=%d", o.FPS),
			"trim=duration="+seconds(length),
			"setpts=PTS-STARTPTS",
			"colorchannelmixer=rr=0.6:gg=0.6:bb=0.6",
			fmt.Sprintf("zoompan=z='1+0.08*on/%d':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%dx%d:fps=%d", frames, o.Width, o.Height, o.FPS),
			"vignette=angle=PI/5",
		)
	} else {
		top, bottom := gradientColors(seg.Index)
		chain = append(chain, fmt.Sprintf("gradients=s=%dx%d:c0=%s:c1=%s:x0=%d:y0=0:x1=%d:y1=%d:r=%d:d=%s",
			o.Width, o.Height, top, bottom, o.Width/2, o.Width/2, o.Height, o.FPS, seconds(length)))
	}

	lines := WrapText(seg.Text, o.FontSize, o.Width-100)
	y := (o.Height - len(lines)*o.LineHeight) / 2
	for j, line := range lines {
		textFile := filepath.Join(work, fmt.Sprintf("seg%02d_line%02d.txt", seg.Index, j))
		if err := os.WriteFile(textFile, []byte(line), 0o644); err != nil {
			return "", err
		}
		chain = append(chain, fmt.Sprintf("drawtext=%stextfile=%s:fontsize=%d:fontcolor=white:borderw=5:bordercolor=black:x=(w-text_w)/2:y=%d",
			r.fontArg(), filterPath(textFile), o.FontSize, y+j*o.LineHeight))
	}

	if seg.Index == count-1 && seg.Duration >= 3.0 {
		ctaFile := filepath.Join(work, "subscribe.txt")
		if err := os.WriteFile(ctaFile, []byte(subscribeText), 0o644); err != nil {
			return "", err
		}
		start := seg.Duration - 2.5
		end := start + min(2.0, seg.Duration-0.5)
		chain = append(chain, fmt.Sprintf("drawtext=%stextfile=%s:fontsize=72:fontcolor=white:box=1:boxcolor=red@0.85:boxborderw=28:x=(w-text_w)/2:y=h*0.75:enable='between(t,%s,%s)'",
			r.fontArg(), filterPath(ctaFile), seconds(start), seconds(end)))
	}
	graph := strings.Join(chain, ",") + ",format=yuv420p[v]"

	script := filepath.Join(work, fmt.Sprintf("seg%02d.filter", seg.Index))
	if err := os.WriteFile(script, []byte(graph), 0o644); err != nil {
		return "", err
	}
	out := filepath.Join(work, fmt.Sprintf("seg%02d.mp4", seg.Index))
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	args = append(args, inputs...)
	args = append(args,
		"-filter_complex_script", script,
		"-map", "[v]", "-an",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "18",
		"-r", strconv.Itoa(o.FPS), "-t", seconds(length),
		out,
	)
	if output, err := run(ctx, utils.ShellJoin("ffmpeg", args...)); err != nil {
		return "", fmt.Errorf("render segment %d: %w: %s", seg.Index, err, strings.TrimSpace(output))
	}
	return out, nil
}

func (r *Renderer) assemble(ctx context.Context, run utils.CommandRunner, work string, in Input, segments []Segment, parts []string, total, musicSkip float64) error {
	o := r.Options
	var args []string
	for _, part := range parts {
		args = append(args, "-i", part)
	}
	var graph []string
	prev := "0:v"
	for k := 1; k < len(parts); k++ {
		label := fmt.Sprintf("x%d", k)
		graph = append(graph, fmt.Sprintf("[%s][%d:v]xfade=transition=fade:duration=%s:offset=%s[%s]",
			prev, k, seconds(o.Crossfade), seconds(segments[k].Start), label))
		prev = label
	}
	graph = append(graph,
		fmt.Sprintf("color=c=white:s=%dx6:r=%d:d=%s[bar]", o.Width, o.FPS, seconds(total)),
		fmt.Sprintf("[%s][bar]overlay=x='-w+w*t/%s':y=12:shortest=1,format=yuv420p[vout]", prev, seconds(total)),
	)

	next := len(parts)
	args = append(args, "-i", in.Voiceover)
	mixes := []string{fmt.Sprintf("[%d:a]", next)}
	next++

	if in.Music != "" {
		args = append(args, "-stream_loop", "-1", "-ss", seconds(musicSkip), "-i", in.Music)
		graph = append(graph, fmt.Sprintf("[%d:a]volume=%s,atrim=duration=%s,asetpts=PTS-STARTPTS[music]",
			next, seconds(o.MusicVolume), seconds(total)))
		mixes = append(mixes, "[music]")
		next++
	}

	for i, name := range SFXPlan(len(segments)) {
		path := in.SFX[name]
		if name == "" || path == "" || !utils.FileExists(path) {
			continue
		}
		args = append(args, "-i", path)
		delay := int(segments[i].Start * 1000)
		label := fmt.Sprintf("sfx%d", i)
		graph = append(graph, fmt.Sprintf("[%d:a]volume=%s,adelay=%d|%d[%s]", next, seconds(o.SFXVolume), delay, delay, label))
		mixes = append(mixes, "["+label+"]")
		next++
	}

	if len(mixes) == 1 {
		graph = append(graph, mixes[0]+"anull[aout]")
	} else {
		// amix divides every input by the input count; scale back up.
		graph = append(graph, fmt.Sprintf("%samix=inputs=%d:duration=first:dropout_transition=0,volume=%d[aout]",
			strings.Join(mixes, ""), len(mixes), len(mixes)))
	}

	script := filepath.Join(work, "assemble.filter")
	if err := os.WriteFile(script, []byte(strings.Join(graph, ";\n")), 0o644); err != nil {
		return err
	}
	args = append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)
	args = append(args,
		"-filter_complex_script", script,
		"-map", "[vout]", "-map", "[aout]",
		"-c:v", "libx264", "-preset", o.Preset, "-b:v", o.VideoBitrate, "-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(o.FPS),
		"-c:a", "aac", "-b:a", "192k",
		"-threads", strconv.Itoa(o.Threads),
		"-t", seconds(total),
		"-movflags", "+faststart",
		in.Output,
	)
	if output, err := run(ctx, utils.ShellJoin("ffmpeg", args...)); err != nil {
		return fmt.Errorf("render assemble: %w: %s", err, strings.TrimSpace(output))
	}
	return nil
}

func (r *Renderer) fontArg() string {
	if r.Options.FontFile == "" {
		return ""
	}
	return "fontfile=" + filterPath(r.Options.FontFile) + ":"
}

func gradientColors(i int) (string, string) {
	top := rgbHex(30+i*10, 20+i*5, 50+i*8)
	bottom := rgbHex(60+i*15, 40+i*10, 90+i*12)
	return top, bottom
}

func rgbHex(r, g, b int) string {
	return fmt.Sprintf("0x%02X%02X%02X", min(r, 255), min(g, 255), min(b, 255))
}

// filterPath quotes a file path for use as a filter option value.
func filterPath(path string) string {
	path = strings.ReplaceAll(filepath.ToSlash(path), ":", `\:`)
	return "'" + path + "'"
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
