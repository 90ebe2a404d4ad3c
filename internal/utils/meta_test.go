package utils

import (
	"reflect"
	"testing"
)

func TestStatusFlags(t *testing.T) {
	meta, err := DecodeMeta([]byte(`{"status":{"concept_generated":"true","script_generated":false}}`))
	if err != nil {
		t.Fatalf("DecodeMeta: %v", err)
	}
	if v, ok := GetStatus(meta, "concept_generated"); !ok || !v {
		t.Fatalf("expected string true flag to read as true, got %v %v", v, ok)
	}
	if v, ok := GetStatus(meta, "script_generated"); !ok || v {
		t.Fatalf("expected false flag, got %v %v", v, ok)
	}
	if _, ok := GetStatus(meta, "missing"); ok {
		t.Fatal("expected missing flag to report !ok")
	}
	SetStatus(meta, "broll_generated", true)
	if v, _ := GetStatus(meta, "broll_generated"); !v {
		t.Fatal("SetStatus did not persist")
	}
}

func TestDecodeMetaEmpty(t *testing.T) {
	meta, err := DecodeMeta(nil)
	if err != nil || meta == nil || len(meta) != 0 {
		t.Fatalf("unexpected %v %v", meta, err)
	}
	meta, err = DecodeMeta([]byte("null"))
	if err != nil || meta == nil {
		t.Fatalf("null meta should decode to empty map, got %v %v", meta, err)
	}
}

func TestGetValuePaths(t *testing.T) {
	meta, _ := DecodeMeta([]byte(`{"script":{"phrases":["a","b",3],"score":8.5,"raw":"7"}}`))
	phrases, ok := GetStringSlice(meta, "script", "phrases")
	if !ok || !reflect.DeepEqual(phrases, []string{"a", "b"}) {
		t.Fatalf("phrases = %v %v", phrases, ok)
	}
	if s, ok := GetString(meta, "script", "phrases", "1"); !ok || s != "b" {
		t.Fatalf("index path = %q %v", s, ok)
	}
	if f, ok := GetFloat(meta, "script", "score"); !ok || f != 8.5 {
		t.Fatalf("score = %v %v", f, ok)
	}
	if f, ok := GetFloat(meta, "script", "raw"); !ok || f != 7 {
		t.Fatalf("string score = %v %v", f, ok)
	}
	if _, ok := GetValue(meta, "script", "phrases", "9"); ok {
		t.Fatal("out of range index should fail")
	}
}

func TestSetValueRoundTrip(t *testing.T) {
	type payload struct {
		Title string   `json:"title"`
		Tags  []string `json:"tags"`
	}
	meta := map[string]any{}
	if err := SetValue(meta, "metadata", payload{Title: "x", Tags: []string{"#shorts"}}); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if title, ok := GetString(meta, "metadata", "title"); !ok || title != "x" {
		t.Fatalf("title = %q", title)
	}
	var out payload
	if err := DecodeInto(meta, "metadata", &out); err != nil {
		t.Fatalf("DecodeInto: %v", err)
	}
	if out.Title != "x" || len(out.Tags) != 1 {
		t.Fatalf("unexpected %+v", out)
	}
	if err := DecodeInto(meta, "nope", &out); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestCleanSpokenText(t *testing.T) {
	got := CleanSpokenText("**Wow**  this   is #1_fact")
	if got != "Wow this is 1 fact" {
		t.Fatalf("got %q", got)
	}
}

func TestShellEscape(t *testing.T) {
	if got := ShellEscape(""); got != "''" {
		t.Fatalf("empty = %s", got)
	}
	if got := ShellEscape("it's"); got != `'it'"'"'s'` {
		t.Fatalf("quote = %s", got)
	}
}

func TestParseDuration(t *testing.T) {
	got, err := ParseDuration("  Duration: 00:01:02.50, start: 0.000000, bitrate: 128 kb/s")
	if err != nil {
		t.Fatal(err)
	}
	if got != 62.5 {
		t.Fatalf("duration = %v", got)
	}
	if _, err := ParseDuration("no media"); err == nil {
		t.Fatal("expected error")
	}
}
