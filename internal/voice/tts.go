package voice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"viralshorts/manager-go/internal/utils"
)

// Synthesizer shells out to the edge-tts CLI.
type Synthesizer struct {
	Binary string
	Run    utils.CommandRunner
}

func NewSynthesizer(binary string) *Synthesizer {
	if binary == "" {
		binary = "edge-tts"
	}
	return &Synthesizer{Binary: binary, Run: utils.RunCommandContext}
}

// Synthesize writes text spoken by voice to out (mp3) and returns its duration in seconds.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, sel Selection, out string) (float64, error) {
	text = utils.CleanSpokenText(text)
	if text == "" {
		return 0, fmt.Errorf("voiceover text is empty")
	}
	if sel.Voice == "" {
		sel.Voice = DefaultVoice
	}
	if sel.Rate == "" {
		sel.Rate = "+0%"
	}
	if err := utils.EnsureDir(filepath.Dir(out)); err != nil {
		return 0, err
	}

	// Long scripts go through a file; argv quoting of arbitrary text is fragile.
	textFile := out + ".txt"
	if err := os.WriteFile(textFile, []byte(text), 0o644); err != nil {
		return 0, err
	}
	defer os.Remove(textFile)

	cmd := strings.Join([]string{
		utils.ShellEscape(s.Binary),
		"--voice", utils.ShellEscape(sel.Voice),
		utils.ShellEscape("--rate=" + sel.Rate),
		"--pitch=+0Hz",
		"--file", utils.ShellEscape(textFile),
		"--write-media", utils.ShellEscape(out),
	}, " ")
	if _, err := s.Run(ctx, cmd); err != nil {
		return 0, fmt.Errorf("edge-tts: %w", err)
	}
	if !utils.FileExists(out) {
		return 0, fmt.Errorf("edge-tts produced no audio at %s", out)
	}
	duration, err := utils.ProbeDuration(ctx, s.Run, out)
	if err != nil {
		return 0, fmt.Errorf("measure voiceover: %w", err)
	}
	return duration, nil
}
