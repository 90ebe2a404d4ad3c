package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicAndChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")
	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(path, []byte(`{"a":2}`), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != `{"a":2}` {
		t.Fatalf("read back %q %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}

	if !FileExists(path) || FileExists(dir) {
		t.Fatal("FileExists mismatch")
	}
	sum, err := SHA256File(path)
	if err != nil || sum != "7e8059f495589fcd981232cc11d00b00da3802c01d688fa1cf1f6bed6e5bb33c" {
		t.Fatalf("checksum %s %v", sum, err)
	}
}

func TestShellJoin(t *testing.T) {
	got := ShellJoin("ffmpeg", "-i", "my file.mp4")
	if got != "ffmpeg '-i' 'my file.mp4'" {
		t.Fatalf("got %s", got)
	}
}

func TestPromptReadsStdin(t *testing.T) {
	prev := Stdin
	defer func() { Stdin = prev }()
	Stdin = strings.NewReader("  abc123XYZ_-  ")
	got, err := Prompt("id")
	if err != nil || got != "abc123XYZ_-" {
		t.Fatalf("got %q %v", got, err)
	}
}
