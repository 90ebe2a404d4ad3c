package utils

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var durationPattern = regexp.MustCompile(`Duration: (\d+):(\d+):(\d+\.\d+)`)

// ProbeDuration reads a media file's duration in seconds from ffmpeg's banner.
func ProbeDuration(ctx context.Context, run CommandRunner, path string) (float64, error) {
	if run == nil {
		run = RunCommandContext
	}
	output, err := run(ctx, fmt.Sprintf("ffmpeg -hide_banner -i %s 2>&1 | grep Duration", ShellEscape(path)))
	if err != nil {
		return 0, err
	}
	return ParseDuration(output)
}

func ParseDuration(output string) (float64, error) {
	matches := durationPattern.FindStringSubmatch(output)
	if len(matches) < 4 {
		return 0, errors.New("duration not found")
	}
	hours, _ := strconv.Atoi(matches[1])
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.ParseFloat(matches[3], 64)
	return float64(hours*3600+minutes*60) + seconds, nil
}
