package research

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/revcraft/revcraft/internal/framework"
	"github.com/revcraft/revcraft/internal/model"
	"github.com/revcraft/revcraft/internal/session"
)

// MaxFollowUpQuestions caps the questions derived from a gap analysis.
const MaxFollowUpQuestions = 3

const followUpTemplate = "follow_up_questions"

const questionsSystemPrompt = "You help a product reviewer fill gaps in their review. " +
	"Reply only with the requested questions."

var listPrefix = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)]|Q\d*[:.)])\s*`)

// FollowUpQuestions turns a gap analysis into at most MaxFollowUpQuestions
// questions for the reviewer. The call does not use web search and is not
// charged to the research ledger; its usage is still reported. An empty
// gap analysis, or a framework without a follow-up template, yields no
// questions and no call.
func (r *Runner) FollowUpQuestions(ctx context.Context, target Target, gapAnalysis string) ([]string, error) {
	if strings.TrimSpace(gapAnalysis) == "" {
		return nil, nil
	}
	if !r.fw.HasResearch(followUpTemplate) {
		r.logger.Info("framework has no follow-up template", "template", followUpTemplate)
		return nil, nil
	}

	prompt, err := r.fw.RenderResearch(followUpTemplate, framework.ResearchContext{
		ProductName:  target.ProductName,
		Category:     target.Category,
		Keywords:     target.Keywords,
		GapAnalysis:  gapAnalysis,
		MaxQuestions: MaxFollowUpQuestions,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering follow-up prompt: %w", err)
	}

	resp, err := r.client.Invoke(ctx,
		[]session.Message{session.UserText(prompt)},
		questionsSystemPrompt,
		model.Options{MaxTokens: 400},
	)
	if err != nil {
		return nil, fmt.Errorf("generating follow-up questions: %w", err)
	}
	if r.onUsage != nil {
		r.onUsage(followUpTemplate, resp.Usage, false)
	}

	return ParseQuestions(resp.Text, MaxFollowUpQuestions), nil
}

// ParseQuestions extracts up to max questions from free text, one per
// line, stripping list markers. Lines that do not end in a question mark
// are ignored.
func ParseQuestions(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
		line = strings.Trim(line, "*_ ")
		if line == "" || !strings.HasSuffix(line, "?") {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}
