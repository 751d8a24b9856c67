package review

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/revcraft/revcraft/internal/session"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Aero Kettle 2000", "aero-kettle-2000"},
		{"  Sony WH-1000XM5!!  ", "sony-wh-1000xm5"},
		{"Crème Brûlée Torch", "cr-me-br-l-e-torch"},
		{"../../etc/passwd", "etc-passwd"},
		{"", "review"},
		{"!!!", "review"},
		{strings.Repeat("long name ", 10), "long-name-long-name-long-name-long-name-long-name"},
	}
	for _, tt := range tests {
		if got := Slug(tt.input); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	date := time.Date(2026, 2, 9, 23, 0, 0, 0, time.UTC)
	if got := FileName("Aero Kettle", date); got != "aero-kettle-2026-02-09.md" {
		t.Errorf("FileName() = %q", got)
	}
	if got := TranscriptName("Aero Kettle", date); got != "aero-kettle-2026-02-09.transcript.txt" {
		t.Errorf("TranscriptName() = %q", got)
	}
}

func TestWriteReview(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reviews")
	date := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	w := NewWriter(dir, func() time.Time { return date })

	path, err := w.WriteReview("Aero Kettle", "# Fast and quiet\n\nBoils in three minutes.")
	if err != nil {
		t.Fatalf("WriteReview() error: %v", err)
	}
	if want := filepath.Join(dir, "aero-kettle-2026-02-09.md"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Fast and quiet") {
		t.Errorf("content = %q", data)
	}

	if _, err := w.WriteReview("Aero Kettle", "   "); err == nil {
		t.Error("WriteReview() with empty text: expected error")
	}
}

func TestWriteTranscript(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, func() time.Time { return time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC) })

	msgs := []session.Message{
		{Role: session.RoleUser, Parts: []session.Part{session.TextPart("Here it is."), session.ImagePart("image/png", "AAAA")}},
		session.AssistantText("Thanks!"),
	}
	path, err := w.WriteTranscript("Kettle", msgs)
	if err != nil {
		t.Fatalf("WriteTranscript() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	want := "USER: Here it is.\n\nASSISTANT: Thanks!\n\n"
	if string(data) != want {
		t.Errorf("transcript = %q, want %q", data, want)
	}
}

func TestInspect(t *testing.T) {
	md := `# Quiet, Fast Kettle

Rating: 4/5

## What works
It boils a litre in three minutes.

## What doesn't
The lid sticks.
`
	sum := Inspect(md)
	if sum.Title != "Quiet, Fast Kettle" {
		t.Errorf("Title = %q", sum.Title)
	}
	if len(sum.Headings) != 3 {
		t.Errorf("Headings = %v, want 3", sum.Headings)
	}
	if sum.Words < 15 {
		t.Errorf("Words = %d, want at least 15", sum.Words)
	}
	if got := Inspect("  "); got.Title != "" || got.Words != 0 {
		t.Errorf("Inspect(blank) = %+v", got)
	}
}

func TestExtract(t *testing.T) {
	reply := "Here's the revised draft:\n\n# Quiet, Fast Kettle\n\nBoils fast.\n"
	if got := Extract(reply); got != "# Quiet, Fast Kettle\n\nBoils fast." {
		t.Errorf("Extract() = %q", got)
	}
	if got := Extract("  no heading here  "); got != "no heading here" {
		t.Errorf("Extract() without heading = %q", got)
	}
	if got := Extract("Intro\n\n## Sub\n\n# Main\nbody"); got != "# Main\nbody" {
		t.Errorf("Extract() = %q, want from level-1 heading", got)
	}
}
