package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/revcraft/revcraft/internal/research"
)

type opState struct {
	name    string
	desc    string
	status  research.Status
	started time.Time
	elapsed time.Duration
}

// ResearchProgress renders research operations as they run. On a terminal
// the list is redrawn in place; otherwise one line is printed per status
// change.
type ResearchProgress struct {
	mu         sync.Mutex
	out        io.Writer
	isTTY      bool
	ops        []*opState
	index      map[string]int
	linesDrawn int
	now        func() time.Time
}

// NewResearchProgress returns a progress display writing to out.
func NewResearchProgress(out io.Writer, isTTY bool) *ResearchProgress {
	return &ResearchProgress{
		out:   out,
		isTTY: isTTY,
		index: make(map[string]int),
		now:   time.Now,
	}
}

// Update records a research event and re-renders.
func (p *ResearchProgress) Update(e research.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.index[e.Operation.Name]
	if !ok {
		idx = len(p.ops)
		p.index[e.Operation.Name] = idx
		p.ops = append(p.ops, &opState{name: e.Operation.Name, desc: e.Operation.Description})
	}
	op := p.ops[idx]
	op.status = e.Status
	switch e.Status {
	case research.StatusStarted:
		op.started = p.now()
	default:
		if !op.started.IsZero() {
			op.elapsed = p.now().Sub(op.started)
		}
	}

	if p.isTTY {
		p.renderTTY()
		return
	}
	fmt.Fprintln(p.out, formatPlain(op))
}

// Finish moves below the drawn list.
func (p *ResearchProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isTTY && p.linesDrawn > 0 {
		fmt.Fprintln(p.out)
	}
	p.ops = nil
	p.index = make(map[string]int)
	p.linesDrawn = 0
}

func (p *ResearchProgress) renderTTY() {
	if p.linesDrawn > 0 {
		fmt.Fprintf(p.out, "\033[%dA", p.linesDrawn)
	}
	var buf strings.Builder
	for _, op := range p.ops {
		buf.WriteString("\033[2K")
		buf.WriteString(formatLine(op))
		buf.WriteString("\n")
	}
	fmt.Fprint(p.out, buf.String())
	p.linesDrawn = len(p.ops)
}

func formatLine(op *opState) string {
	desc := op.desc
	if len(desc) > 45 {
		desc = desc[:42] + "..."
	}
	return fmt.Sprintf("  %s %-16s %s  %s", statusIcon(op.status), op.name, desc, DimStyle.Render(statusDetail(op)))
}

func formatPlain(op *opState) string {
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(op.status)), op.name, op.desc)
}

func statusIcon(status research.Status) string {
	switch status {
	case research.StatusDone:
		return IconDone
	case research.StatusStarted:
		return IconRunning
	case research.StatusFailed:
		return IconFailed
	case research.StatusSkipped, research.StatusAborted, research.StatusEmpty:
		return IconSkipped
	default:
		return IconPending
	}
}

func statusDetail(op *opState) string {
	switch op.status {
	case research.StatusDone, research.StatusEmpty:
		return "[" + formatDuration(op.elapsed) + "]"
	case research.StatusStarted:
		return "[searching]"
	case research.StatusSkipped:
		return "[over budget]"
	case research.StatusAborted:
		return "[budget exhausted]"
	case research.StatusFailed:
		return "[failed]"
	}
	return ""
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
