// Package workflow drives a review session through its four phases. Each
// phase is a conversation with the model that the operator steers until a
// completion signal appears and the operator approves moving on.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/revcraft/revcraft/internal/config"
	"github.com/revcraft/revcraft/internal/framework"
	"github.com/revcraft/revcraft/internal/images"
	"github.com/revcraft/revcraft/internal/log"
	"github.com/revcraft/revcraft/internal/model"
	"github.com/revcraft/revcraft/internal/research"
	"github.com/revcraft/revcraft/internal/session"
	"github.com/revcraft/revcraft/internal/usage"
)

// phaseDone is the terminal state of the dispatch loop.
const phaseDone session.Phase = "done"

// ResearchSettings configures the optional research step of intake.
type ResearchSettings struct {
	Enabled     bool
	BudgetUSD   float64
	Strategy    research.Strategy
	Importance  research.Importance
	MaxTokens   int
	MaxSearches int
}

// Options wires a Machine. Client, Store, Operator, Framework and Reviews
// are required.
type Options struct {
	Client    model.Client
	Store     SessionStore
	Operator  Operator
	Framework *framework.Framework
	Reviews   ReviewWriter
	Detector  *Detector
	Images    ImageLoader
	Usage     UsageRecorder
	Events    EventSink
	Logger    *slog.Logger
	Clock     func() time.Time

	ModelName   string
	ImagesDir   string
	MaxTokens   int
	Temperature float64
	InputPrice  float64
	OutputPrice float64
	Research    ResearchSettings
}

type handler func(ctx context.Context, s *session.Session) (session.Phase, error)

// Machine runs sessions. It is not safe for concurrent use.
type Machine struct {
	client   model.Client
	store    SessionStore
	op       Operator
	fw       *framework.Framework
	reviews  ReviewWriter
	detector *Detector
	images   ImageLoader
	usage    UsageRecorder
	events   EventSink
	logger   *slog.Logger
	now      clock

	modelName   string
	imagesDir   string
	maxTokens   int
	temperature float64
	inputPrice  float64
	outputPrice float64
	research    ResearchSettings

	handlers map[session.Phase]handler
}

// New validates opts and returns a Machine.
func New(opts Options) (*Machine, error) {
	switch {
	case opts.Client == nil:
		return nil, errors.New("workflow: model client is required")
	case opts.Store == nil:
		return nil, errors.New("workflow: session store is required")
	case opts.Operator == nil:
		return nil, errors.New("workflow: operator is required")
	case opts.Framework == nil:
		return nil, errors.New("workflow: framework is required")
	case opts.Reviews == nil:
		return nil, errors.New("workflow: review writer is required")
	}

	m := &Machine{
		client:      opts.Client,
		store:       opts.Store,
		op:          opts.Operator,
		fw:          opts.Framework,
		reviews:     opts.Reviews,
		detector:    opts.Detector,
		images:      opts.Images,
		usage:       opts.Usage,
		events:      opts.Events,
		logger:      opts.Logger,
		now:         opts.Clock,
		modelName:   opts.ModelName,
		imagesDir:   opts.ImagesDir,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		inputPrice:  opts.InputPrice,
		outputPrice: opts.OutputPrice,
		research:    opts.Research,
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.detector == nil {
		m.detector = NewDetector(config.DefaultCompletion())
	}
	if m.images == nil {
		m.images = images.NewLoader(m.logger)
	}
	if m.maxTokens <= 0 {
		m.maxTokens = model.DefaultMaxTokens
	}

	m.handlers = map[session.Phase]handler{
		session.PhaseIntake:  m.intake,
		session.PhaseDraft:   m.draft,
		session.PhaseRefine:  m.refine,
		session.PhaseQuality: m.quality,
	}
	return m, nil
}

// Run drives s from its current phase until the review is finished. It
// returns ErrExit or ErrAbandoned when the operator stops early; the
// session has been persisted in both cases.
func (m *Machine) Run(ctx context.Context, s *session.Session) error {
	if !s.Phase.Valid() {
		return fmt.Errorf("running session %s: unknown phase %q", s.ID, s.Phase)
	}
	if s.PhaseData.Quality.Complete {
		first, ok := firstIncomplete(s)
		if !ok {
			m.op.Info(fmt.Sprintf("This review is already finished: %s", s.PhaseData.Quality.Data.ReviewPath))
			return nil
		}
		if err := m.reopen(s, first); err != nil {
			return err
		}
	}

	state := s.Phase
	for state != phaseDone {
		h, ok := m.handlers[state]
		if !ok {
			return fmt.Errorf("running session %s: no handler for phase %q", s.ID, state)
		}
		next, err := h(ctx, s)
		if err != nil {
			return err
		}
		state = next
	}
	return nil
}

// firstIncomplete returns the earliest phase not marked complete.
func firstIncomplete(s *session.Session) (session.Phase, bool) {
	for _, p := range session.Phases {
		if !s.PhaseData.IsComplete(p) {
			return p, true
		}
	}
	return "", false
}

// reopen clears the finished mark of a session whose earlier phases are
// incomplete and moves it back to phase.
func (m *Machine) reopen(s *session.Session, phase session.Phase) error {
	m.logger.Warn("finished session has incomplete phases, reopening",
		"session", s.ID, "phase", phase)
	s.PhaseData.SetComplete(session.PhaseQuality, false)
	s.Phase = phase
	if err := m.persist(s); err != nil {
		return err
	}
	m.event(s, log.LogEvent{Event: log.EventPhaseReset, Phase: string(phase), Reason: "quality marked complete while " + string(phase) + " was not"})
	return nil
}

// intake opens the session. Research belongs to the first step: it runs
// only while the opening description is the sole turn in the history.
func (m *Machine) intake(ctx context.Context, s *session.Session) (session.Phase, error) {
	if len(s.Messages) == 0 {
		if err := m.start(ctx, s); err != nil {
			return "", err
		}
	}
	if m.research.Enabled && !s.PhaseData.Intake.Data.ResearchDone && len(s.Messages) == 1 {
		if err := m.runResearch(ctx, s); err != nil {
			return "", err
		}
	}
	return m.converse(ctx, s, session.PhaseIntake)
}

func (m *Machine) draft(ctx context.Context, s *session.Session) (session.Phase, error) {
	return m.converse(ctx, s, session.PhaseDraft)
}

func (m *Machine) refine(ctx context.Context, s *session.Session) (session.Phase, error) {
	return m.converse(ctx, s, session.PhaseRefine)
}

func (m *Machine) quality(ctx context.Context, s *session.Session) (session.Phase, error) {
	return m.converse(ctx, s, session.PhaseQuality)
}

// enter applies the entry guard. A phase whose predecessor is incomplete
// sends the session back to the predecessor.
func (m *Machine) enter(s *session.Session, phase session.Phase) (session.Phase, bool, error) {
	if prev, ok := phase.Previous(); ok && !s.PhaseData.IsComplete(prev) {
		m.logger.Warn("previous phase incomplete, moving back",
			"session", s.ID, "phase", phase, "previous", prev)
		s.Phase = prev
		if err := m.persist(s); err != nil {
			return "", false, err
		}
		m.event(s, log.LogEvent{Event: log.EventPhaseReset, Phase: string(prev), Reason: string(phase) + " entered before " + string(prev) + " was complete"})
		return prev, false, nil
	}
	if s.Phase != phase {
		s.Phase = phase
		if err := m.persist(s); err != nil {
			return "", false, err
		}
	}
	return phase, true, nil
}

// converse runs one phase's conversation loop.
func (m *Machine) converse(ctx context.Context, s *session.Session, phase session.Phase) (session.Phase, error) {
	next, ok, err := m.enter(s, phase)
	if err != nil || !ok {
		return next, err
	}

	m.op.Info(fmt.Sprintf("--- %s ---", phase.Title()))
	m.event(s, log.LogEvent{Event: log.EventPhaseStarted, Phase: string(phase), Iteration: s.PhaseData.Iterations(phase)})

	for {
		if s.LastRole() != session.RoleAssistant {
			if err := m.reply(ctx, s, phase); err != nil {
				return "", err
			}
			continue
		}

		text := s.LastAssistantText()
		if !m.detector.Complete(phase, text) {
			input, err := m.prompt(ctx, s, "Your response", false)
			if err != nil {
				return "", err
			}
			s.Append(session.UserText(input))
			if err := m.persist(s); err != nil {
				return "", err
			}
			continue
		}

		if phase == session.PhaseQuality {
			done, err := m.finishQuality(ctx, s)
			if err != nil || done {
				return phaseDone, err
			}
			continue
		}

		choice, err := m.choose(ctx, s, fmt.Sprintf("The %s phase looks complete. What next?", phase.Title()), phaseOptions)
		if err != nil {
			return "", err
		}
		switch choice {
		case ChoiceProceed:
			return m.advance(s, phase)
		case ChoiceAbandon:
			if err := m.persist(s); err != nil {
				return "", err
			}
			m.event(s, log.LogEvent{Event: log.EventSessionAbandoned, Phase: string(phase)})
			return "", ErrAbandoned
		default:
			feedback, err := m.prompt(ctx, s, "What would you like to change?", false)
			if err != nil {
				return "", err
			}
			s.Append(session.UserText(feedback))
			if err := m.persist(s); err != nil {
				return "", err
			}
		}
	}
}

// reply makes one model round-trip for the phase and commits the answer.
// A failed call leaves the history untouched and asks the operator how to
// continue.
func (m *Machine) reply(ctx context.Context, s *session.Session, phase session.Phase) error {
	system, err := m.systemPrompt(s, phase)
	if err != nil {
		return err
	}

	stop := m.op.Busy(fmt.Sprintf("%s: thinking", phase.Title()))
	resp, err := m.client.Invoke(ctx, s.Messages, system, model.Options{
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
	})
	stop()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return m.callFailed(ctx, s, phase, err)
	}

	text := strings.TrimSpace(resp.Text)
	s.Append(session.AssistantText(text))
	m.meter(s, phase, "", resp.Usage, false)
	m.capture(s, phase, text)
	iteration := s.PhaseData.Iterate(phase)
	if err := m.persist(s); err != nil {
		return err
	}
	m.logger.Debug("model reply", "session", s.ID, "phase", phase, "iteration", iteration,
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)

	m.op.ShowAssistant(phase, StripMarkers(text))
	return nil
}

// callFailed reports a failed call. An empty answer retries the same history;
// any other text is added as a further user turn before retrying.
func (m *Machine) callFailed(ctx context.Context, s *session.Session, phase session.Phase, callErr error) error {
	m.logger.Warn("model call failed", "session", s.ID, "phase", phase, "error", callErr)
	m.event(s, log.LogEvent{Event: log.EventModelError, Phase: string(phase), Error: callErr.Error()})

	msg := fmt.Sprintf("%s phase: %s", phase.Title(), model.Describe(callErr))
	if !model.IsTransient(callErr) {
		msg += " (check your configuration before retrying)"
	}
	m.op.Warn(msg)

	input, err := m.prompt(ctx, s, "Press Enter to retry, or type a new message", true)
	if err != nil {
		return err
	}
	if input != "" {
		s.Append(session.UserText(input))
		if err := m.persist(s); err != nil {
			return err
		}
	}
	return nil
}

// capture stores the phase artifact carried by a reply. Only replies that
// contain a titled review document count as artifacts.
func (m *Machine) capture(s *session.Session, phase session.Phase, text string) {
	doc, ok := reviewDocument(text)
	data := &s.PhaseData
	switch phase {
	case session.PhaseDraft:
		if ok {
			data.Draft.Data.Draft = doc
		}
	case session.PhaseRefine:
		if ok {
			data.Refine.Data.Refined = doc
		}
	case session.PhaseQuality:
		if scores := Scores(text); scores != nil {
			data.Quality.Data.Scores = scores
		}
		if ok {
			data.Quality.Data.FinalReview = doc
		}
	}
}

// advance marks phase complete and moves the session on. A short user turn
// opens the next phase so the model is asked again under its new prompt.
func (m *Machine) advance(s *session.Session, phase session.Phase) (session.Phase, error) {
	next, _ := phase.Next()
	s.PhaseData.SetComplete(phase, true)
	s.Phase = next
	s.Append(session.UserText(fmt.Sprintf("Let's move on to the %s phase.", next.Title())))
	if err := m.persist(s); err != nil {
		return "", err
	}
	m.event(s, log.LogEvent{Event: log.EventPhaseCompleted, Phase: string(phase), Iteration: s.PhaseData.Iterations(phase)})
	return next, nil
}

// prompt asks the operator for input and handles the reserved commands.
// Closed input counts as exit.
func (m *Machine) prompt(ctx context.Context, s *session.Session, label string, allowEmpty bool) (string, error) {
	for {
		input, err := m.op.Ask(ctx, label)
		if errors.Is(err, io.EOF) {
			input, err = CommandExit, nil
		}
		if err != nil {
			return "", fmt.Errorf("reading operator input: %w", err)
		}

		input = strings.TrimSpace(input)
		switch strings.ToLower(input) {
		case CommandExit:
			return "", m.exit(s)
		case CommandSave:
			if err := m.save(s); err != nil {
				return "", err
			}
			continue
		case "":
			if !allowEmpty {
				continue
			}
		}
		return input, nil
	}
}

// choose shows a checkpoint menu and handles the reserved commands.
func (m *Machine) choose(ctx context.Context, s *session.Session, label string, options []Option) (Choice, error) {
	for {
		choice, err := m.op.Choose(ctx, label, options)
		if errors.Is(err, io.EOF) {
			choice, err = ChoiceExit, nil
		}
		if err != nil {
			return "", fmt.Errorf("reading operator choice: %w", err)
		}
		switch choice {
		case ChoiceExit:
			return "", m.exit(s)
		case ChoiceSave:
			if err := m.save(s); err != nil {
				return "", err
			}
			continue
		}
		return choice, nil
	}
}

func (m *Machine) exit(s *session.Session) error {
	if err := m.persist(s); err != nil {
		return err
	}
	m.event(s, log.LogEvent{Event: log.EventSessionExited, Phase: string(s.Phase)})
	return ErrExit
}

func (m *Machine) save(s *session.Session) error {
	if err := m.persist(s); err != nil {
		return err
	}
	m.op.Info(fmt.Sprintf("Session %s saved.", s.ID))
	return nil
}

func (m *Machine) persist(s *session.Session) error {
	if _, err := m.store.Save(s); err != nil {
		return fmt.Errorf("persisting session %s: %w", s.ID, err)
	}
	return nil
}

// meter accounts one round-trip on the session and in the usage journal.
func (m *Machine) meter(s *session.Session, phase session.Phase, operation string, u model.Usage, webSearch bool) {
	s.Usage.Add(u.InputTokens, u.OutputTokens)
	if m.usage == nil {
		return
	}
	if operation == "" {
		operation = "conversation"
	}
	err := m.usage.Record(usage.Entry{
		SessionID:    s.ID,
		Phase:        string(phase),
		Operation:    operation,
		Model:        m.modelName,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CostUSD:      m.cost(u),
		WebSearch:    webSearch,
		CreatedAt:    m.now(),
	})
	if err != nil {
		m.logger.Warn("recording usage", "session", s.ID, "error", err)
	}
}

func (m *Machine) cost(u model.Usage) float64 {
	return float64(u.InputTokens)/1_000_000*m.inputPrice + float64(u.OutputTokens)/1_000_000*m.outputPrice
}

func (m *Machine) event(s *session.Session, e log.LogEvent) {
	if m.events == nil {
		return
	}
	e.SessionID = s.ID
	if e.Product == "" {
		e.Product = s.ProductName
	}
	if err := m.events.Append(e); err != nil {
		m.logger.Warn("writing event log", "event", e.Event, "error", err)
	}
}
