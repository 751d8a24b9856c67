// Package session provides the review session model and its JSON file persistence.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/revcraft/revcraft/internal/budget"
)

// Phase identifies one of the four ordered review stages.
type Phase string

const (
	PhaseIntake  Phase = "intake"
	PhaseDraft   Phase = "draft"
	PhaseRefine  Phase = "refine"
	PhaseQuality Phase = "quality"
)

// Phases lists every phase in workflow order.
var Phases = []Phase{PhaseIntake, PhaseDraft, PhaseRefine, PhaseQuality}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	return p.index() >= 0
}

// Previous returns the phase before p and false for the first phase.
func (p Phase) Previous() (Phase, bool) {
	i := p.index()
	if i <= 0 {
		return "", false
	}
	return Phases[i-1], true
}

// Next returns the phase after p and false for the last phase.
func (p Phase) Next() (Phase, bool) {
	i := p.index()
	if i < 0 || i == len(Phases)-1 {
		return "", false
	}
	return Phases[i+1], true
}

// Title returns a display label.
func (p Phase) Title() string {
	switch p {
	case PhaseIntake:
		return "Intake"
	case PhaseDraft:
		return "Draft"
	case PhaseRefine:
		return "Refine"
	case PhaseQuality:
		return "Quality Control"
	default:
		return string(p)
	}
}

func (p Phase) index() int {
	for i, phase := range Phases {
		if phase == p {
			return i
		}
	}
	return -1
}

// DefaultProductName is used when no product name can be derived.
const DefaultProductName = "Unnamed Product"

// Session is the persisted unit of work for one review in progress.
type Session struct {
	ID          string    `json:"id"`
	ProductName string    `json:"product_name"`
	Phase       Phase     `json:"phase"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Category    string    `json:"category,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	ImageNotes  []string  `json:"image_notes,omitempty"`
	Messages    []Message `json:"messages"`
	PhaseData   PhaseData `json:"phase_data"`

	// Budget is the research ledger carried across resumed runs.
	Budget *budget.Snapshot `json:"budget,omitempty"`
	Usage  Usage            `json:"usage"`
}

// Usage totals every model round-trip made for the session.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Calls        int `json:"calls"`
}

// Add accumulates one round-trip.
func (u *Usage) Add(inputTokens, outputTokens int) {
	u.InputTokens += inputTokens
	u.OutputTokens += outputTokens
	u.Calls++
}

// New creates a session in the intake phase with a fresh id.
func New(now time.Time) *Session {
	return &Session{
		ID:          uuid.New().String(),
		ProductName: DefaultProductName,
		Phase:       PhaseIntake,
		CreatedAt:   now,
		UpdatedAt:   now,
		Messages:    []Message{},
	}
}

// Append commits a message to the history. Messages are never edited or
// removed once appended.
func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// LastAssistantText returns the text of the most recent assistant message.
func (s *Session) LastAssistantText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Text()
		}
	}
	return ""
}

// LastRole returns the role of the final message, or "" for an empty history.
func (s *Session) LastRole() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[len(s.Messages)-1].Role
}
