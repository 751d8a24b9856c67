// Package testutil provides test helper utilities for revcraft tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/revcraft/revcraft/internal/session"
)

// TempProject creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// FixedTime is the clock value used by session fixtures.
var FixedTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// IntakeSession returns a session that has finished the initial exchange
// of the intake phase but is not yet complete.
func IntakeSession() *session.Session {
	s := session.New(FixedTime)
	s.ProductName = "Aero Kettle"
	s.Category = "kitchen"
	s.Keywords = []string{"kettle", "boil"}
	s.PhaseData.Intake.Data.InitialDescription = "The Aero Kettle boils a litre in three minutes."
	s.Append(session.Message{
		Role:  session.RoleUser,
		Parts: []session.Part{session.TextPart("Here is my initial product review:\n\nThe Aero Kettle boils a litre in three minutes.\n\n")},
	})
	s.Append(session.AssistantText("How long have you owned it?"))
	s.Append(session.UserText("Two months."))
	s.PhaseData.Iterate(session.PhaseIntake)
	return s
}

// DraftSession returns a session positioned at the draft phase with intake complete.
func DraftSession() *session.Session {
	s := IntakeSession()
	s.PhaseData.SetComplete(session.PhaseIntake, true)
	s.Phase = session.PhaseDraft
	return s
}

// InconsistentSession returns a session claiming the draft phase while
// intake is still incomplete, as a hand-edited file might.
func InconsistentSession() *session.Session {
	s := IntakeSession()
	s.Phase = session.PhaseDraft
	return s
}

// WriteSession writes s as JSON into dir and returns the file path.
func WriteSession(t *testing.T, dir string, s *session.Session) string {
	t.Helper()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		t.Fatalf("encoding session fixture: %v", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating session directory: %v", err)
	}
	path := filepath.Join(dir, s.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing session fixture: %v", err)
	}
	return path
}
