package workflow

import (
	"regexp"
	"strings"

	"github.com/revcraft/revcraft/internal/config"
	"github.com/revcraft/revcraft/internal/session"
)

var markerPattern = regexp.MustCompile(`(?i)\[\[\s*PHASE_COMPLETE\s*:\s*([a-z_]+)\s*\]\]`)

// Marker returns the structured completion marker for a phase.
func Marker(phase session.Phase) string {
	return "[[PHASE_COMPLETE:" + string(phase) + "]]"
}

// StripMarkers removes completion markers from text shown to people or
// written to files.
func StripMarkers(text string) string {
	return strings.TrimSpace(markerPattern.ReplaceAllString(text, ""))
}

// Detector decides whether a model reply signals that a phase is done.
// The structured marker is checked first; the configured phrases are a
// fallback and are matched case-insensitively as substrings, which can
// misfire on replies that merely mention a phrase.
type Detector struct {
	phrases map[session.Phase][]string
}

// NewDetector builds a Detector from configured phrase lists.
func NewDetector(c config.CompletionConfig) *Detector {
	d := &Detector{phrases: make(map[session.Phase][]string)}
	for _, phase := range session.Phases {
		for _, p := range c.Phrases(string(phase)) {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" {
				d.phrases[phase] = append(d.phrases[phase], p)
			}
		}
	}
	return d
}

// Complete reports whether text signals completion of phase.
func (d *Detector) Complete(phase session.Phase, text string) bool {
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		if strings.EqualFold(m[1], string(phase)) {
			return true
		}
	}
	lower := strings.ToLower(text)
	for _, p := range d.phrases[phase] {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
