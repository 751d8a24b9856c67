package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/revcraft/revcraft/internal/budget"
	"github.com/revcraft/revcraft/internal/log"
	"github.com/revcraft/revcraft/internal/model"
	"github.com/revcraft/revcraft/internal/research"
	"github.com/revcraft/revcraft/internal/session"
)

const (
	openingText = "Here is my initial product review:\n\n%s\n\n"
	imagesText  = "I'm also sharing some images of the product for your analysis:\n"
)

// start collects the initial description and builds the first user turn.
func (m *Machine) start(ctx context.Context, s *session.Session) error {
	m.op.Info("Describe your experience with the product. Type 'exit' to quit or 'save' to save.")
	description, err := m.prompt(ctx, s, "Initial review", false)
	if err != nil {
		return err
	}

	s.PhaseData.Intake.Data.InitialDescription = description
	s.ProductName = ProductName(description)
	s.Category = Category(description)
	s.Keywords = Keywords(description)

	text := fmt.Sprintf(openingText, description)
	imgs := m.images.LoadAll(m.imagesDir)
	if len(imgs) > 0 {
		text += imagesText
	}
	parts := []session.Part{session.TextPart(text)}
	for _, img := range imgs {
		parts = append(parts, session.ImagePart(img.MediaType, img.Data))
		s.ImageNotes = append(s.ImageNotes, img.Name)
	}
	s.Append(session.Message{Role: session.RoleUser, Parts: parts})

	if len(imgs) > 0 {
		m.op.Info(fmt.Sprintf("Attached %d image(s): %s", len(imgs), strings.Join(s.ImageNotes, ", ")))
	}
	m.logger.Info("intake started", "session", s.ID, "product", s.ProductName,
		"category", s.Category, "images", len(imgs))
	return m.persist(s)
}

// ledger returns the session's research ledger, creating it on first use.
func (m *Machine) ledger(s *session.Session) *budget.Manager {
	if s.Budget != nil {
		return budget.Restore(*s.Budget)
	}
	return budget.NewManager(m.research.BudgetUSD, m.inputPrice, m.outputPrice)
}

// runResearch plans and executes research, then asks the operator the
// follow-up questions derived from the gap analysis. Research problems
// never fail the session; only cancellation and persistence errors do.
func (m *Machine) runResearch(ctx context.Context, s *session.Session) error {
	data := &s.PhaseData.Intake.Data
	ledger := m.ledger(s)

	finish := func(reason string) error {
		snap := ledger.Snapshot()
		s.Budget = &snap
		data.ResearchDone = true
		if reason != "" {
			data.ResearchSkipped = reason
		}
		return m.persist(s)
	}

	if ledger.Exhausted() || ledger.Remaining() <= 0 {
		m.op.Warn("Research budget exhausted; continuing without research.")
		m.event(s, log.LogEvent{Event: log.EventBudgetExhausted, Phase: string(session.PhaseIntake), CostUSD: ledger.Spent()})
		return finish("budget exhausted")
	}

	planner, err := research.NewPlanner(m.research.Strategy)
	if err != nil {
		m.op.Warn(fmt.Sprintf("Research disabled: %v", err))
		return finish(err.Error())
	}
	plan := planner.Plan(ledger.Remaining(), s.Category, m.research.Importance)

	target := research.Target{
		ProductName: s.ProductName,
		Category:    s.Category,
		Keywords:    s.Keywords,
		Description: data.InitialDescription,
	}

	opts := []research.Option{
		research.WithLogger(m.logger),
		research.WithMaxSearches(m.research.MaxSearches),
		research.WithMaxTokens(m.research.MaxTokens),
		research.WithUsage(func(op string, u model.Usage, webSearch bool) {
			m.meter(s, session.PhaseIntake, op, u, webSearch)
		}),
		research.WithObserver(func(e research.Event) {
			if obs, ok := m.op.(ResearchObserver); ok {
				obs.ResearchProgress(e)
			}
			if e.Status != research.StatusStarted {
				m.event(s, log.LogEvent{
					Event:     log.EventResearchOperation,
					Phase:     string(session.PhaseIntake),
					Operation: e.Operation.Name,
					Status:    string(e.Status),
					Iteration: e.Index + 1,
					Total:     e.Total,
				})
			}
		}),
	}
	runner := research.NewRunner(m.client, ledger, m.fw, opts...)

	m.op.Info(fmt.Sprintf("Researching %s (%s strategy, $%.2f of $%.2f left)...",
		s.ProductName, plan.Strategy, ledger.Remaining(), ledger.Ceiling()))
	m.event(s, log.LogEvent{Event: log.EventResearchStarted, Phase: string(session.PhaseIntake), Total: len(plan.Ordered()), CostUSD: ledger.Remaining()})

	res, err := runner.Execute(ctx, plan, target)
	if err != nil {
		snap := ledger.Snapshot()
		s.Budget = &snap
		if perr := m.persist(s); perr != nil {
			m.logger.Warn("persisting after cancelled research", "error", perr)
		}
		return err
	}

	if data.Research == nil {
		data.Research = make(map[string]string)
	}
	for name, finding := range res.Findings {
		data.Research[name] = finding
	}

	reason := ""
	if res.Aborted {
		reason = "budget exhausted"
		m.op.Warn("Research budget exhausted; remaining research operations were skipped.")
		m.event(s, log.LogEvent{Event: log.EventBudgetExhausted, Phase: string(session.PhaseIntake), CostUSD: res.Spent})
	}
	for _, marker := range ledger.Markers() {
		m.logger.Info("research budget marker", "session", s.ID, "marker", marker)
	}
	m.event(s, log.LogEvent{
		Event:   log.EventResearchFinished,
		Phase:   string(session.PhaseIntake),
		CostUSD: res.Spent,
		Data: map[string]interface{}{
			"executed": len(res.Executed),
			"skipped":  len(res.Skipped),
			"failed":   len(res.Failed),
		},
	})
	m.op.Info(fmt.Sprintf("Research finished: %d finding(s), %s.", len(res.Findings), ledger))

	if err := finish(reason); err != nil {
		return err
	}
	return m.askFollowUps(ctx, s, runner, target, res.GapAnalysis())
}

// askFollowUps records each answered question as a question and answer
// pair in the history.
func (m *Machine) askFollowUps(ctx context.Context, s *session.Session, runner *research.Runner, target research.Target, gap string) error {
	questions, err := runner.FollowUpQuestions(ctx, target, gap)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("follow-up questions unavailable", "session", s.ID, "error", err)
		return nil
	}
	if len(questions) == 0 {
		return nil
	}

	s.PhaseData.Intake.Data.GapQuestions = questions
	m.op.Info("Research found a few gaps in your review. Leave an answer blank to skip it.")
	for _, q := range questions {
		m.op.Info(q)
		answer, err := m.prompt(ctx, s, "Answer", true)
		if err != nil {
			return err
		}
		if answer == "" {
			continue
		}
		s.Append(session.AssistantText(q))
		s.Append(session.UserText(answer))
	}
	return m.persist(s)
}
