package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/revcraft/revcraft/internal/log"
	"github.com/revcraft/revcraft/internal/review"
	"github.com/revcraft/revcraft/internal/session"
)

// reviewDocument returns the titled review contained in a reply.
func reviewDocument(reply string) (string, bool) {
	doc := review.Extract(StripMarkers(reply))
	if review.Inspect(doc).Title == "" {
		return "", false
	}
	return doc, true
}

// finishQuality writes the review and asks whether to finish. It reports
// true once the session is done.
func (m *Machine) finishQuality(ctx context.Context, s *session.Session) (bool, error) {
	data := &s.PhaseData.Quality.Data
	text := s.PhaseData.BestReviewText()
	if text == "" {
		text = StripMarkers(s.LastAssistantText())
	}

	path, err := m.reviews.WriteReview(s.ProductName, text)
	if err != nil {
		return false, fmt.Errorf("writing final review: %w", err)
	}
	data.ReviewPath = path
	if tpath, err := m.reviews.WriteTranscript(s.ProductName, s.Messages); err != nil {
		m.logger.Warn("writing transcript", "session", s.ID, "error", err)
	} else {
		m.logger.Info("transcript written", "session", s.ID, "path", tpath)
	}
	if err := m.persist(s); err != nil {
		return false, err
	}

	sum := review.Inspect(text)
	m.event(s, log.LogEvent{Event: log.EventReviewWritten, Phase: string(session.PhaseQuality), Path: path,
		Data: map[string]interface{}{"words": sum.Words, "title": sum.Title}})
	m.op.Info(fmt.Sprintf("Review written to %s (%d words).", path, sum.Words))
	if len(data.Scores) > 0 {
		m.op.Info("Scores: " + formatScores(data.Scores))
	}

	choice, err := m.choose(ctx, s, "Quality control passed. What next?", qualityOptions)
	if err != nil {
		return false, err
	}
	if choice != ChoiceFinish {
		feedback, err := m.prompt(ctx, s, "What would you like to adjust?", false)
		if err != nil {
			return false, err
		}
		s.Append(session.UserText(feedback))
		return false, m.persist(s)
	}

	s.PhaseData.SetComplete(session.PhaseQuality, true)
	if err := m.persist(s); err != nil {
		return false, err
	}
	m.event(s, log.LogEvent{Event: log.EventPhaseCompleted, Phase: string(session.PhaseQuality), Iteration: data.Iterations})
	m.event(s, log.LogEvent{Event: log.EventSessionFinished, Path: path, InputTokens: s.Usage.InputTokens, OutputTokens: s.Usage.OutputTokens})
	m.op.Info("Review finished.")
	return true, nil
}

func formatScores(scores map[string]float64) string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %g/10", name, scores[name])
	}
	return strings.Join(parts, ", ")
}
