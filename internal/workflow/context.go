package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/revcraft/revcraft/internal/framework"
	"github.com/revcraft/revcraft/internal/session"
)

// maxFindingChars bounds each research finding in the system prompt.
const maxFindingChars = 1500

// systemPrompt renders the phase template and appends what the session has
// gathered so far.
func (m *Machine) systemPrompt(s *session.Session, phase session.Phase) (string, error) {
	base, err := m.fw.Render(string(phase), framework.Context{
		ProductName: s.ProductName,
		Category:    s.Category,
		Keywords:    s.Keywords,
		Iteration:   s.PhaseData.Iterations(phase) + 1,
	})
	if err != nil {
		return "", fmt.Errorf("building %s prompt: %w", phase, err)
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(base))

	sb.WriteString("\n\n## Session Context\n")
	fmt.Fprintf(&sb, "Product: %s\n", s.ProductName)
	if s.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", s.Category)
	}
	if len(s.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(s.Keywords, ", "))
	}
	if len(s.ImageNotes) > 0 {
		fmt.Fprintf(&sb, "Images shared: %s\n", strings.Join(s.ImageNotes, ", "))
	}
	fmt.Fprintf(&sb, "Iteration: %d\n", s.PhaseData.Iterations(phase)+1)

	if findings := s.PhaseData.Intake.Data.Research; len(findings) > 0 {
		sb.WriteString("\n## Research Insights\n")
		names := make([]string, 0, len(findings))
		for name := range findings {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "\n### %s\n%s\n", name, truncate(findings[name], maxFindingChars))
		}
	}

	if title, text := priorArtifact(s, phase); text != "" {
		fmt.Fprintf(&sb, "\n## %s\n%s\n", title, text)
	}

	return sb.String(), nil
}

// priorArtifact returns the artifact the phase works from.
func priorArtifact(s *session.Session, phase session.Phase) (string, string) {
	data := s.PhaseData
	switch phase {
	case session.PhaseRefine:
		if data.Refine.Data.Refined != "" {
			return "Current Refined Review", data.Refine.Data.Refined
		}
		return "Current Draft", data.Draft.Data.Draft
	case session.PhaseQuality:
		if data.Quality.Data.FinalReview != "" {
			return "Current Final Review", data.Quality.Data.FinalReview
		}
		return "Review Under Audit", data.BestReviewText()
	case session.PhaseDraft:
		return "Current Draft", data.Draft.Data.Draft
	}
	return "", ""
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8Start(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
