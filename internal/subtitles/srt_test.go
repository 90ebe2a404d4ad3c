package subtitles

import "testing"

func TestFormatTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:       "00:00:00,000",
		1.5:     "00:00:01,500",
		61.0004: "00:01:01,000",
		3725.25: "01:02:05,250",
		-3:      "00:00:00,000",
	}
	for in, want := range cases {
		if got := FormatTimestamp(in); got != want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFromCuesRoundTrip(t *testing.T) {
	cues := []Cue{
		{Start: 0, End: 2.5, Text: "Octopuses have three hearts"},
		{Start: 2.5, End: 2.5, Text: "   "},
		{Start: 2.5, End: 5.125, Text: "And blue blood\r\n"},
	}
	captions := FromCues(cues)
	if len(captions) != 2 {
		t.Fatalf("expected 2 captions, got %d", len(captions))
	}
	out := SerializeSRT(captions)
	parsed := ParseSRT(out)
	if len(parsed) != 2 {
		t.Fatalf("expected 2 parsed captions, got %d: %q", len(parsed), out)
	}
	if parsed[1].StartTime != "00:00:02,500" || parsed[1].EndTime != "00:00:05,125" {
		t.Fatalf("unexpected timing %+v", parsed[1])
	}
	if parsed[1].Text != "And blue blood" {
		t.Fatalf("unexpected text %q", parsed[1].Text)
	}
	secs, err := ParseTimestamp(parsed[1].EndTime)
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	if secs != 5.125 {
		t.Fatalf("expected 5.125, got %v", secs)
	}
}

func TestParseSRTSkipsMalformedBlocks(t *testing.T) {
	input := "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n2\nnot a time\nBroken\n\n3\n00:00:01,000 --> 00:00:02,000\nWorld\nagain\n"
	captions := ParseSRT(input)
	if len(captions) != 2 {
		t.Fatalf("expected 2 captions, got %d", len(captions))
	}
	if captions[1].Text != "World\nagain" {
		t.Fatalf("unexpected multi-line text %q", captions[1].Text)
	}
}
