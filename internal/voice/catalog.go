// Package voice picks an edge-tts narrator for a short and synthesizes the voiceover.
package voice

import (
	"strings"
)

const DefaultVoice = "en-US-AriaNeural"

type Voice struct {
	Name   string
	Locale string
	Gender string
}

// ShortName is the voice's given name, e.g. "Aria" for en-US-AriaNeural.
func (v Voice) ShortName() string {
	parts := strings.Split(v.Name, "-")
	return strings.TrimSuffix(parts[len(parts)-1], "Neural")
}

var Catalog = []Voice{
	{"en-US-AriaNeural", "en-US", "Female"},
	{"en-US-JennyNeural", "en-US", "Female"},
	{"en-US-GuyNeural", "en-US", "Male"},
	{"en-US-DavisNeural", "en-US", "Male"},
	{"en-US-ChristopherNeural", "en-US", "Male"},
	{"en-US-EricNeural", "en-US", "Male"},
	{"en-US-MichelleNeural", "en-US", "Female"},
	{"en-US-RogerNeural", "en-US", "Male"},
	{"en-US-SteffanNeural", "en-US", "Male"},
	{"en-US-SaraNeural", "en-US", "Female"},
	{"en-AU-WilliamNeural", "en-AU", "Male"},
	{"en-AU-NatashaNeural", "en-AU", "Female"},
	{"en-GB-RyanNeural", "en-GB", "Male"},
	{"en-GB-SoniaNeural", "en-GB", "Female"},
	{"en-GB-LibbyNeural", "en-GB", "Female"},
	{"en-CA-LiamNeural", "en-CA", "Male"},
	{"en-CA-ClaraNeural", "en-CA", "Female"},
	{"en-IE-ConnorNeural", "en-IE", "Male"},
	{"en-IN-NeerjaNeural", "en-IN", "Female"},
	{"en-NZ-MitchellNeural", "en-NZ", "Male"},
}

// StyleRates are the default edge-tts speaking rates per narration style.
var StyleRates = map[string]string{
	"energetic":     "+8%",
	"calm":          "-5%",
	"mysterious":    "-3%",
	"authoritative": "+0%",
	"friendly":      "+3%",
	"dramatic":      "-2%",
	"professional":  "+0%",
	"casual":        "+5%",
	"warm":          "+0%",
}

var stylePreferences = map[string][]string{
	"energetic":     {"Aria", "Steffan", "Liam"},
	"calm":          {"Jenny", "Sara", "Sonia"},
	"mysterious":    {"Guy", "Davis", "Roger"},
	"authoritative": {"Ryan", "Christopher", "Davis"},
	"friendly":      {"William", "Eric", "Clara"},
	"dramatic":      {"Christopher", "Guy", "Roger"},
}

var defaultPreferences = []string{"Aria", "Guy", "Jenny"}

func RateFor(style string) string {
	if rate, ok := StyleRates[strings.ToLower(style)]; ok {
		return rate
	}
	return "+0%"
}

func byShortName(name string) (Voice, bool) {
	for _, v := range Catalog {
		if v.ShortName() == name {
			return v, true
		}
	}
	return Voice{}, false
}

type Selection struct {
	Voice string
	Rate  string
}

// Select returns the first preferred voice for style not in exclude, then any unused
// catalog voice, then the first preference when every voice has been used.
func Select(style string, exclude []string) Selection {
	style = strings.ToLower(strings.TrimSpace(style))
	used := map[string]bool{}
	for _, name := range exclude {
		used[name] = true
	}
	prefs, ok := stylePreferences[style]
	if !ok {
		prefs = defaultPreferences
	}
	rate := RateFor(style)
	for _, p := range prefs {
		if v, ok := byShortName(p); ok && !used[v.Name] {
			return Selection{Voice: v.Name, Rate: rate}
		}
	}
	for _, v := range Catalog {
		if !used[v.Name] {
			return Selection{Voice: v.Name, Rate: rate}
		}
	}
	if v, ok := byShortName(prefs[0]); ok {
		return Selection{Voice: v.Name, Rate: rate}
	}
	return Selection{Voice: DefaultVoice, Rate: rate}
}
