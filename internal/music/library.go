// Package music picks background tracks from a TOML manifest of royalty-free music.
package music

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	ManifestName = "library.toml"
	recentWindow = 3
)

type Track struct {
	File string `toml:"file"`
	Mood string `toml:"mood"`
	BPM  int    `toml:"bpm"`
}

type manifest struct {
	Tracks []Track `toml:"track"`
}

type Library struct {
	dir    string
	tracks []Track
}

// Load reads dir/library.toml. A missing manifest yields an empty library, which means
// shorts are rendered without music.
func Load(dir string) (*Library, error) {
	lib := &Library{dir: dir}
	file, err := os.Open(filepath.Join(dir, ManifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return lib, nil
		}
		return nil, err
	}
	defer file.Close()

	var m manifest
	if err := toml.NewDecoder(file).Decode(&m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	for _, t := range m.Tracks {
		t.File = strings.TrimSpace(t.File)
		t.Mood = strings.ToLower(strings.TrimSpace(t.Mood))
		if t.File == "" {
			continue
		}
		lib.tracks = append(lib.tracks, t)
	}
	return lib, nil
}

func (l *Library) Tracks() []Track { return l.tracks }

// Path resolves a track file relative to the library directory.
func (l *Library) Path(t Track) string {
	if filepath.IsAbs(t.File) {
		return t.File
	}
	return filepath.Join(l.dir, t.File)
}

// Pick prefers a track in mood, avoiding moods among the last three recentMoods; when
// the requested mood was just used it moves to any other unused mood, and as a last
// resort returns any track. ok is false for an empty library.
func (l *Library) Pick(mood string, recentMoods []string) (Track, bool) {
	if len(l.tracks) == 0 {
		return Track{}, false
	}
	mood = strings.ToLower(strings.TrimSpace(mood))
	recent := map[string]bool{}
	start := max(0, len(recentMoods)-recentWindow)
	for _, m := range recentMoods[start:] {
		recent[strings.ToLower(m)] = true
	}

	if !recent[mood] {
		for _, t := range l.tracks {
			if t.Mood == mood {
				return t, true
			}
		}
	}
	for _, t := range l.tracks {
		if !recent[t.Mood] {
			return t, true
		}
	}
	for _, t := range l.tracks {
		if t.Mood == mood {
			return t, true
		}
	}
	return l.tracks[0], true
}
