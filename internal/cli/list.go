// list.go implements --list, showing saved sessions newest first.
package cli

import (
	"fmt"
	"io"

	"github.com/revcraft/revcraft/internal/session"
	"github.com/revcraft/revcraft/internal/usage"
)

// sessionLister is the part of session.Store listing needs.
type sessionLister interface {
	ListAll() ([]*session.Session, error)
}

// spendReader is the part of usage.Store listing needs.
type spendReader interface {
	AllTotals() (map[string]usage.Totals, error)
}

func listSessions(out io.Writer, store sessionLister, spend *usage.Store) error {
	var totals spendReader
	if spend != nil {
		totals = spend
	}
	return writeSessionList(out, store, totals)
}

func writeSessionList(out io.Writer, store sessionLister, totals spendReader) error {
	sessions, err := store.ListAll()
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No saved sessions. Start one with: revcraft --new")
		return nil
	}

	var spent map[string]usage.Totals
	if totals != nil {
		spent, err = totals.AllTotals()
		if err != nil {
			fmt.Fprintf(out, "Warning: reading usage journal: %v\n", err)
		}
	}

	fmt.Fprintln(out, "Saved sessions")
	fmt.Fprintln(out)
	for _, s := range sessions {
		fmt.Fprintf(out, "  %-36s  %-30s  %-15s  %s", s.ID, clip(s.ProductName, 30), phaseLabel(s), s.UpdatedAt.Local().Format("2006-01-02 15:04"))
		if t, ok := spent[s.ID]; ok {
			fmt.Fprintf(out, "  $%.4f (%d calls)", t.CostUSD, t.Calls)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%d session(s). Resume one with: revcraft --continue <id>\n", len(sessions))
	return nil
}

// phaseLabel maps a session to a display-friendly state.
func phaseLabel(s *session.Session) string {
	if s.PhaseData.Quality.Complete {
		return "finished"
	}
	return s.Phase.Title()
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
