// resume.go prints where a session left off before it is continued.
package cli

import (
	"fmt"
	"io"

	"github.com/revcraft/revcraft/internal/log"
	"github.com/revcraft/revcraft/internal/session"
	"github.com/revcraft/revcraft/internal/usage"
)

// eventReader is the part of log.Logger the resume summary needs.
type eventReader interface {
	ForSession(sessionID string) ([]log.LogEvent, error)
}

// sessionSpend is the part of usage.Store the resume summary needs.
type sessionSpend interface {
	SessionTotals(sessionID string) (usage.Totals, error)
}

func writeResumeSummary(out io.Writer, s *session.Session, events eventReader, spend sessionSpend) {
	fmt.Fprintf(out, "Resuming session %s: %s (%s phase)\n", s.ID, s.ProductName, s.Phase.Title())
	fmt.Fprintf(out, "  Messages: %d, model calls: %d\n", len(s.Messages), s.Usage.Calls)

	if events != nil {
		history, err := events.ForSession(s.ID)
		if err != nil {
			fmt.Fprintf(out, "Warning: reading event log: %v\n", err)
		} else if len(history) > 0 {
			last := history[len(history)-1]
			fmt.Fprintf(out, "  Last activity: %s", last.Event)
			if last.Phase != "" {
				fmt.Fprintf(out, " (%s)", last.Phase)
			}
			fmt.Fprintf(out, " at %s\n", last.Time.Local().Format("2006-01-02 15:04"))
		}
	}

	if spend != nil {
		t, err := spend.SessionTotals(s.ID)
		if err != nil {
			fmt.Fprintf(out, "Warning: reading usage journal: %v\n", err)
		} else if t.Calls > 0 {
			fmt.Fprintf(out, "  Spent so far: $%.4f over %d call(s)\n", t.CostUSD, t.Calls)
		}
	}
}
