// Package log provides structured event logging.
// This file appends JSON events to log.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventsFile is the name of the event log inside the state directory.
const EventsFile = "log.jsonl"

// Event type constants.
const (
	EventSessionCreated    = "session_created"
	EventSessionResumed    = "session_resumed"
	EventPhaseStarted      = "phase_started"
	EventPhaseReset        = "phase_reset"
	EventPhaseCompleted    = "phase_completed"
	EventResearchStarted   = "research_started"
	EventResearchOperation = "research_operation"
	EventResearchFinished  = "research_finished"
	EventBudgetExhausted   = "budget_exhausted"
	EventModelError        = "model_error"
	EventReviewWritten     = "review_written"
	EventSessionAbandoned  = "session_abandoned"
	EventSessionExited     = "session_exited"
	EventSessionFinished   = "session_finished"
)

// LogEvent represents a single structured event written to the log.
type LogEvent struct {
	Time         time.Time              `json:"time"`
	Event        string                 `json:"event"`
	SessionID    string                 `json:"session,omitempty"`
	Phase        string                 `json:"phase,omitempty"`
	Product      string                 `json:"product,omitempty"`
	Operation    string                 `json:"operation,omitempty"`
	Status       string                 `json:"status,omitempty"`
	Path         string                 `json:"path,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Iteration    int                    `json:"iteration,omitempty"`
	Total        int                    `json:"total,omitempty"`
	InputTokens  int                    `json:"input_tokens,omitempty"`
	OutputTokens int                    `json:"output_tokens,omitempty"`
	CostUSD      float64                `json:"cost_usd,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// Logger writes append-only JSONL events to a log file.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a Logger that writes to log.jsonl inside stateDir.
// Creates stateDir if it does not already exist.
// Does not truncate an existing log file.
func NewLogger(stateDir string) (*Logger, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &Logger{
		path: filepath.Join(stateDir, EventsFile),
	}, nil
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// Append writes a single LogEvent as one JSON line to the log file.
// If event.Time is the zero value, it is automatically set to time.Now().UTC().
// The file is opened in append mode, written to, and then closed.
// Thread-safe via mutex.
func (l *Logger) Append(event LogEvent) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}

	return nil
}

// ReadAll reads and parses all events from the log file.
// Returns an empty slice (not an error) if the file does not exist.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LogEvent{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	return events, nil
}

// ForSession returns the events recorded for one session, oldest first.
func (l *Logger) ForSession(sessionID string) ([]LogEvent, error) {
	all, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []LogEvent
	for _, e := range all {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}
