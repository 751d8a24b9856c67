// Package review writes finished reviews and conversation transcripts.
package review

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/revcraft/revcraft/internal/session"
)

const (
	dateLayout    = "2006-01-02"
	maxSlugLength = 50
	fallbackSlug  = "review"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
	repeatDashes = regexp.MustCompile(`-{2,}`)
)

// Slug converts a product name into a file-name-safe slug.
func Slug(s string) string {
	s = strings.ToLower(s)
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = repeatDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		s = fallbackSlug
	}
	return s
}

// FileName returns <slug>-<YYYY-MM-DD>.md for a product and date.
func FileName(product string, date time.Time) string {
	return Slug(product) + "-" + date.Format(dateLayout) + ".md"
}

// TranscriptName returns <slug>-<YYYY-MM-DD>.transcript.txt.
func TranscriptName(product string, date time.Time) string {
	return Slug(product) + "-" + date.Format(dateLayout) + ".transcript.txt"
}

// Writer places reviews in a directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter returns a Writer for dir. A nil clock uses time.Now.
func NewWriter(dir string, now func() time.Time) *Writer {
	if now == nil {
		now = time.Now
	}
	return &Writer{dir: dir, now: now}
}

// WriteReview writes the review markdown and returns its path. A review
// written for the same product on the same day replaces the earlier one.
func (w *Writer) WriteReview(product, markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("writing review for %q: review text is empty", product)
	}
	path := filepath.Join(w.dir, FileName(product, w.now()))
	if err := w.write(path, strings.TrimSpace(markdown)+"\n"); err != nil {
		return "", err
	}
	return path, nil
}

// WriteTranscript writes the text of every message as "ROLE: text"
// paragraphs and returns its path. Image parts are omitted.
func (w *Writer) WriteTranscript(product string, messages []session.Message) (string, error) {
	path := filepath.Join(w.dir, TranscriptName(product, w.now()))
	if err := w.write(path, Transcript(messages)); err != nil {
		return "", err
	}
	return path, nil
}

// Transcript renders messages as plain text.
func Transcript(messages []session.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(strings.ToUpper(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Text())
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (w *Writer) write(path, content string) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("creating reviews directory %s: %w", w.dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
