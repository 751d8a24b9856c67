package research

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/revcraft/revcraft/internal/budget"
	"github.com/revcraft/revcraft/internal/framework"
	"github.com/revcraft/revcraft/internal/model"
	"github.com/revcraft/revcraft/internal/session"
)

const systemPrompt = "You are a meticulous product researcher. Use web search to find current, " +
	"verifiable information. Be factual and concise, and name your sources."

// minOutputTokens keeps tiny allocations from producing useless replies.
const minOutputTokens = 256

// Target describes the product being researched.
type Target struct {
	ProductName string
	Category    string
	Keywords    []string
	Description string
}

// Status is the outcome of one operation.
type Status string

const (
	StatusStarted Status = "started"
	StatusDone    Status = "done"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusAborted Status = "aborted"
)

// Event reports progress through a plan.
type Event struct {
	Index     int
	Total     int
	Operation Operation
	Status    Status
	Err       error
}

// Result is the outcome of executing a plan.
type Result struct {
	// Findings holds non-empty results keyed by operation name.
	Findings map[string]string
	Executed []string
	Skipped  []string
	Failed   []string
	// Aborted is set when the ledger ran out before the plan finished.
	Aborted   bool
	Spent     float64
	Remaining float64
}

// GapAnalysis returns the gap-analysis finding, if any.
func (r *Result) GapAnalysis() string {
	return r.Findings[OpGapAnalysis]
}

// UsageFunc is called after every model round-trip the runner makes.
type UsageFunc func(operation string, usage model.Usage, webSearch bool)

// Runner executes research plans through the model client, metering every
// web-search call on the ledger.
type Runner struct {
	client      model.Client
	ledger      *budget.Manager
	fw          *framework.Framework
	logger      *slog.Logger
	onEvent     func(Event)
	onUsage     UsageFunc
	maxSearches int
	maxTokens   int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers a progress callback.
func WithObserver(fn func(Event)) Option {
	return func(r *Runner) { r.onEvent = fn }
}

// WithUsage registers a callback for token usage.
func WithUsage(fn UsageFunc) Option {
	return func(r *Runner) { r.onUsage = fn }
}

// WithMaxSearches caps server-side searches per operation.
func WithMaxSearches(n int) Option {
	return func(r *Runner) { r.maxSearches = n }
}

// WithMaxTokens caps output tokens per operation.
func WithMaxTokens(n int) Option {
	return func(r *Runner) { r.maxTokens = n }
}

// NewRunner returns a Runner bound to a ledger.
func NewRunner(client model.Client, ledger *budget.Manager, fw *framework.Framework, opts ...Option) *Runner {
	r := &Runner{
		client:      client,
		ledger:      ledger,
		fw:          fw,
		logger:      slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		maxSearches: 3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs the plan in priority order. The ledger is checked before
// every operation: once it is exhausted the rest of the plan is abandoned,
// and an operation whose estimate would overshoot the ceiling is skipped.
// Failed calls are logged and yield no finding. Only context cancellation
// stops execution with an error.
func (r *Runner) Execute(ctx context.Context, plan Plan, target Target) (*Result, error) {
	res := &Result{Findings: make(map[string]string)}
	ops := plan.Ordered()

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return r.finish(res), err
		}
		if r.ledger.Exhausted() {
			res.Aborted = true
			for k, rest := range ops[i:] {
				res.Skipped = append(res.Skipped, rest.Name)
				r.emit(Event{Index: i + k, Total: len(ops), Operation: rest, Status: StatusAborted})
			}
			r.logger.Info("research budget exhausted", "skipped", len(ops)-i)
			break
		}

		prompt, err := r.prompt(op, target)
		if err != nil {
			r.logger.Warn("research prompt unavailable", "operation", op.Name, "error", err)
			res.Failed = append(res.Failed, op.Name)
			r.emit(Event{Index: i, Total: len(ops), Operation: op, Status: StatusFailed, Err: err})
			continue
		}

		maxOut := r.outputCap(op)
		estIn := budget.EstimateTokens(systemPrompt) + budget.EstimateTokens(prompt)
		if r.ledger.WouldExceed(estIn, maxOut) {
			r.logger.Info("skipping research operation over budget",
				"operation", op.Name,
				"estimated_cost", r.ledger.Cost(estIn, maxOut),
				"remaining", r.ledger.Remaining(),
			)
			res.Skipped = append(res.Skipped, op.Name)
			r.emit(Event{Index: i, Total: len(ops), Operation: op, Status: StatusSkipped})
			continue
		}

		r.emit(Event{Index: i, Total: len(ops), Operation: op, Status: StatusStarted})
		resp, err := r.client.Invoke(ctx,
			[]session.Message{session.UserText(prompt)},
			systemPrompt,
			model.Options{WebSearch: true, MaxTokens: maxOut, MaxSearches: r.maxSearches},
		)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return r.finish(res), err
			}
			r.logger.Warn("research operation failed", "operation", op.Name, "error", err)
			res.Failed = append(res.Failed, op.Name)
			r.emit(Event{Index: i, Total: len(ops), Operation: op, Status: StatusFailed, Err: err})
			continue
		}

		r.ledger.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens)
		if r.onUsage != nil {
			r.onUsage(op.Name, resp.Usage, true)
		}
		res.Executed = append(res.Executed, op.Name)

		text := strings.TrimSpace(resp.Text)
		if text == "" {
			r.emit(Event{Index: i, Total: len(ops), Operation: op, Status: StatusEmpty})
			continue
		}
		res.Findings[op.Name] = text
		r.emit(Event{Index: i, Total: len(ops), Operation: op, Status: StatusDone})
	}

	return r.finish(res), nil
}

func (r *Runner) finish(res *Result) *Result {
	res.Spent = r.ledger.Spent()
	res.Remaining = r.ledger.Remaining()
	return res
}

func (r *Runner) prompt(op Operation, target Target) (string, error) {
	name := op.Template
	if name == "" {
		name = op.Name
	}
	return r.fw.RenderResearch(name, framework.ResearchContext{
		ProductName: target.ProductName,
		Category:    target.Category,
		Keywords:    target.Keywords,
		Description: target.Description,
		Topic:       op.Topic,
	})
}

// outputCap bounds an operation's output tokens by its own limit, the
// runner limit and what its allocation can buy at the output price.
func (r *Runner) outputCap(op Operation) int {
	limit := op.MaxTokens
	if limit <= 0 {
		limit = model.DefaultMaxTokens
	}
	if r.maxTokens > 0 && r.maxTokens < limit {
		limit = r.maxTokens
	}
	if perMillion := r.ledger.Cost(0, 1_000_000); perMillion > 0 && op.Allocation > 0 {
		affordable := int(math.Floor(op.Allocation / perMillion * 1_000_000))
		if affordable < limit {
			limit = affordable
		}
	}
	if limit < minOutputTokens {
		limit = minOutputTokens
	}
	return limit
}

func (r *Runner) emit(e Event) {
	if r.onEvent != nil {
		r.onEvent(e)
	}
}
