package workflow

import (
	"context"
	"time"

	"github.com/revcraft/revcraft/internal/images"
	"github.com/revcraft/revcraft/internal/log"
	"github.com/revcraft/revcraft/internal/research"
	"github.com/revcraft/revcraft/internal/session"
	"github.com/revcraft/revcraft/internal/usage"
)

// Reserved operator inputs.
const (
	CommandExit = "exit"
	CommandSave = "save"
)

// Choice is an operator decision at a checkpoint.
type Choice string

const (
	ChoiceProceed Choice = "proceed"
	ChoiceChanges Choice = "changes"
	ChoiceAbandon Choice = "abandon"
	ChoiceFinish  Choice = "finish"
	ChoiceAdjust  Choice = "adjust"
	ChoiceExit    Choice = CommandExit
	ChoiceSave    Choice = CommandSave
)

// Option is one entry of a checkpoint menu.
type Option struct {
	Choice Choice
	Label  string
}

var phaseOptions = []Option{
	{ChoiceProceed, "Proceed to the next phase"},
	{ChoiceChanges, "Request changes"},
	{ChoiceAbandon, "Abandon this session"},
}

var qualityOptions = []Option{
	{ChoiceFinish, "Finish"},
	{ChoiceAdjust, "Make further adjustments"},
	{ChoiceExit, "Exit (resume later)"},
}

// Operator is the human at the terminal. Ask and Choose return io.EOF when
// input is closed, which the machine treats as exit. Choose may return
// ChoiceExit or ChoiceSave for the reserved inputs.
type Operator interface {
	Ask(ctx context.Context, prompt string) (string, error)
	Choose(ctx context.Context, prompt string, options []Option) (Choice, error)
	ShowAssistant(phase session.Phase, text string)
	Info(msg string)
	Warn(msg string)
	// Busy shows activity while a model call is in flight; stop clears it.
	Busy(label string) (stop func())
}

// ResearchObserver is implemented by operators that display research progress.
type ResearchObserver interface {
	ResearchProgress(e research.Event)
}

// SessionStore persists sessions.
type SessionStore interface {
	Save(s *session.Session) (string, error)
}

// ImageLoader loads the product images for the first user turn.
type ImageLoader interface {
	LoadAll(dir string) []images.Image
}

// ReviewWriter writes finished reviews.
type ReviewWriter interface {
	WriteReview(product, markdown string) (string, error)
	WriteTranscript(product string, messages []session.Message) (string, error)
}

// UsageRecorder journals priced model calls.
type UsageRecorder interface {
	Record(e usage.Entry) error
}

// EventSink receives workflow events.
type EventSink interface {
	Append(e log.LogEvent) error
}

type clock func() time.Time
