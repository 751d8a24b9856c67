// Package ui provides the terminal operator for review sessions.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/revcraft/revcraft/internal/research"
	"github.com/revcraft/revcraft/internal/session"
	"github.com/revcraft/revcraft/internal/workflow"
)

var _ workflow.Operator = (*Terminal)(nil)
var _ workflow.ResearchObserver = (*Terminal)(nil)

// Terminal reads operator input line by line and writes prompts and model
// replies. Styling and the spinner are used only when out is a terminal.
type Terminal struct {
	reader   *bufio.Reader
	out      io.Writer
	errOut   io.Writer
	isTTY    bool
	progress *ResearchProgress
	// pending holds a read left running by a cancelled call. The next
	// readLine takes its result instead of starting a second reader.
	pending chan lineResult
}

// NewTerminal returns a Terminal over the given streams.
func NewTerminal(in io.Reader, out, errOut io.Writer) *Terminal {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return &Terminal{
		reader:   bufio.NewReader(in),
		out:      out,
		errOut:   errOut,
		isTTY:    isTTY,
		progress: NewResearchProgress(out, isTTY),
	}
}

// Stdio returns a Terminal over the process's standard streams.
func Stdio() *Terminal {
	return NewTerminal(os.Stdin, os.Stdout, os.Stderr)
}

type lineResult struct {
	line string
	err  error
}

// readLine reads one line. A final line without a newline is returned
// as is; io.EOF is returned only when nothing was read.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := t.reader.ReadString('\n')
			if err == io.EOF && line != "" {
				err = nil
			}
			ch <- lineResult{line: line, err: err}
		}()
		t.pending = ch
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-t.pending:
		t.pending = nil
		return strings.TrimSpace(r.line), r.err
	}
}

// Ask prints prompt and reads one line.
func (t *Terminal) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprintf(t.out, "\n%s\n  > ", t.style(TitleStyle.Render, prompt))
	return t.readLine(ctx)
}

// Choose prints numbered options and reads a selection by number or by
// choice name. The reserved inputs exit and save are passed through.
func (t *Terminal) Choose(ctx context.Context, prompt string, options []workflow.Option) (workflow.Choice, error) {
	for {
		fmt.Fprintf(t.out, "\n%s\n", t.style(TitleStyle.Render, prompt))
		for i, opt := range options {
			fmt.Fprintf(t.out, "  [%d] %s\n", i+1, opt.Label)
		}
		fmt.Fprint(t.out, "  > ")

		line, err := t.readLine(ctx)
		if err != nil {
			return "", err
		}
		if choice, ok := parseChoice(line, options); ok {
			return choice, nil
		}
		fmt.Fprintf(t.out, "  Please enter a number between 1 and %d.\n", len(options))
	}
}

func parseChoice(line string, options []workflow.Option) (workflow.Choice, bool) {
	lower := strings.ToLower(strings.TrimSpace(line))
	switch lower {
	case workflow.CommandExit:
		return workflow.ChoiceExit, true
	case workflow.CommandSave:
		return workflow.ChoiceSave, true
	}
	if n, err := strconv.Atoi(lower); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1].Choice, true
		}
		return "", false
	}
	for _, opt := range options {
		if lower != "" && lower == string(opt.Choice) {
			return opt.Choice, true
		}
	}
	return "", false
}

// ShowAssistant prints a model reply.
func (t *Terminal) ShowAssistant(phase session.Phase, text string) {
	header := fmt.Sprintf("Assistant (%s)", phase.Title())
	if t.isTTY {
		fmt.Fprintf(t.out, "\n%s\n%s\n", TitleStyle.Render(header), AssistantStyle.Render(text))
		return
	}
	fmt.Fprintf(t.out, "\n%s:\n%s\n", header, text)
}

// Info prints a status line.
func (t *Terminal) Info(msg string) {
	fmt.Fprintln(t.out, t.style(DimStyle.Render, msg))
}

// Warn prints a warning to the error stream.
func (t *Terminal) Warn(msg string) {
	fmt.Fprintln(t.errOut, t.style(WarningStyle.Render, "Warning: "+msg))
}

// Busy shows a spinner on a terminal. Elsewhere it prints label once.
func (t *Terminal) Busy(label string) func() {
	if !t.isTTY {
		fmt.Fprintln(t.out, label+"...")
		return func() {}
	}
	return startSpinner(t.out, label)
}

// ResearchProgress renders one research event.
func (t *Terminal) ResearchProgress(e research.Event) {
	t.progress.Update(e)
	if e.Index == e.Total-1 && e.Status != research.StatusStarted {
		t.progress.Finish()
	}
}

func (t *Terminal) style(render func(...string) string, s string) string {
	if !t.isTTY {
		return s
	}
	return render(s)
}
