// run.go wires configuration, storage and the model client into a
// workflow run for a new or resumed session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/revcraft/revcraft/internal/config"
	"github.com/revcraft/revcraft/internal/framework"
	"github.com/revcraft/revcraft/internal/images"
	"github.com/revcraft/revcraft/internal/log"
	"github.com/revcraft/revcraft/internal/model"
	"github.com/revcraft/revcraft/internal/research"
	"github.com/revcraft/revcraft/internal/review"
	"github.com/revcraft/revcraft/internal/session"
	"github.com/revcraft/revcraft/internal/ui"
	"github.com/revcraft/revcraft/internal/usage"
	"github.com/revcraft/revcraft/internal/workflow"
)

// usageDBFile is the spend journal inside the state directory.
const usageDBFile = "usage.db"

func runRoot(cmd *cobra.Command, args []string) error {
	dir, err := workspaceDir()
	if err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlags(cmd, cfg)

	stateDir := filepath.Join(dir, config.StateDir)
	logger, closer, err := log.NewSlog(log.Options{
		Verbose:  verbose,
		Terminal: os.Stderr,
		FilePath: filepath.Join(stateDir, log.DiagnosticsFile),
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer closer.Close()

	store := session.NewStore(config.Resolve(dir, cfg.Paths.Sessions), session.WithLogger(logger))

	spend, err := usage.NewStore(filepath.Join(stateDir, usageDBFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: usage journal unavailable: %v\n", err)
		spend = nil
	} else {
		defer spend.Close()
	}

	if listFlag {
		return listSessions(cmd.OutOrStdout(), store, spend)
	}

	var s *session.Session
	resumed := continueID != ""
	if resumed {
		s, err = store.Load(continueID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return fmt.Errorf("no session %q in %s; list sessions with: revcraft --list", continueID, store.Dir())
			}
			return fmt.Errorf("loading session: %w", err)
		}
	} else {
		s = session.New(time.Now())
	}

	events, err := log.NewLogger(stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: event log unavailable: %v\n", err)
		events = nil
	}

	machine, err := newMachine(cfg, dir, logger, store, spend, events)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if resumed {
		var history eventReader
		if events != nil {
			history = events
		}
		var totals sessionSpend
		if spend != nil {
			totals = spend
		}
		writeResumeSummary(out, s, history, totals)
	} else {
		fmt.Fprintf(out, "Started session %s\n", s.ID)
	}
	appendEvent(events, s, resumed)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	err = machine.Run(ctx, s)
	return reportOutcome(out, s, err)
}

func workspaceDir() (string, error) {
	dir := directory
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving workspace directory: %w", err)
	}
	return abs, nil
}

// applyFlags layers explicitly set flags over file and environment values.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("research") {
		cfg.Research.Enabled = researchFlag
	}
	if flags.Changed("budget") {
		cfg.Research.BudgetUSD = budgetFlag
		cfg.Research.Enabled = true
	}
	if flags.Changed("importance") {
		cfg.Research.Importance = importance
	}
	if flags.Changed("strategy") {
		cfg.Research.Strategy = strategy
	}
	if flags.Changed("framework") {
		cfg.Framework = frameworkArg
	}
}

func newMachine(cfg *config.Config, dir string, logger *slog.Logger, store *session.Store, spend *usage.Store, events *log.Logger) (*workflow.Machine, error) {
	strat, err := research.ParseStrategy(cfg.Research.Strategy)
	if err != nil {
		return nil, fmt.Errorf("research strategy: %w", err)
	}
	imp, err := research.ParseImportance(cfg.Research.Importance)
	if err != nil {
		return nil, fmt.Errorf("research importance: %w", err)
	}

	frameworkPath := ""
	if cfg.Framework != "" {
		frameworkPath = config.Resolve(dir, cfg.Framework)
	}
	fw, err := framework.Load(frameworkPath)
	if err != nil {
		return nil, fmt.Errorf("loading review framework: %w", err)
	}

	proxyAddr := cfg.Model.Proxy
	if proxyAddr == "" {
		proxyAddr = model.ProxyFromEnv()
	}
	httpClient, err := model.NewHTTPClient(proxyAddr, time.Duration(cfg.Model.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("configuring HTTP client: %w", err)
	}
	client, err := model.NewAnthropic(model.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.Model.BaseURL,
		Model:      cfg.Model.Name,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		if errors.Is(err, model.ErrNoAPIKey) {
			return nil, fmt.Errorf("no API key configured: set %s", config.EnvAnthropicAPIKey)
		}
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	opts := workflow.Options{
		Client:      client,
		Store:       store,
		Operator:    ui.Stdio(),
		Framework:   fw,
		Reviews:     review.NewWriter(config.Resolve(dir, cfg.Paths.Reviews), nil),
		Detector:    workflow.NewDetector(cfg.Completion),
		Images:      images.NewLoader(logger),
		Logger:      logger,
		ModelName:   client.Model(),
		ImagesDir:   config.Resolve(dir, cfg.Paths.Images),
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
		InputPrice:  cfg.Pricing.InputPerMillion,
		OutputPrice: cfg.Pricing.OutputPerMillion,
		Research: workflow.ResearchSettings{
			Enabled:     cfg.Research.Enabled,
			BudgetUSD:   cfg.Research.BudgetUSD,
			Strategy:    strat,
			Importance:  imp,
			MaxTokens:   cfg.Research.MaxTokensPerOperation,
			MaxSearches: cfg.Research.MaxSearches,
		},
	}
	if spend != nil {
		opts.Usage = spend
	}
	if events != nil {
		opts.Events = events
	}
	return workflow.New(opts)
}

func appendEvent(events *log.Logger, s *session.Session, resumed bool) {
	if events == nil {
		return
	}
	name := log.EventSessionCreated
	if resumed {
		name = log.EventSessionResumed
	}
	err := events.Append(log.LogEvent{
		Event:     name,
		SessionID: s.ID,
		Phase:     string(s.Phase),
		Product:   s.ProductName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: writing event log: %v\n", err)
	}
}

// reportOutcome turns the control signals of a run into messages. Only
// real failures are returned as errors.
func reportOutcome(out io.Writer, s *session.Session, err error) error {
	switch {
	case err == nil:
		if path := s.PhaseData.Quality.Data.ReviewPath; path != "" {
			fmt.Fprintf(out, "\nYour review is at %s\n", path)
		}
		return nil
	case errors.Is(err, workflow.ErrExit):
		fmt.Fprintf(out, "\nSession saved. Resume with: revcraft --continue %s\n", s.ID)
		return nil
	case errors.Is(err, workflow.ErrAbandoned):
		fmt.Fprintf(out, "\nSession abandoned. It stays saved as %s.\n", s.ID)
		return nil
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(out, "\nInterrupted. Resume with: revcraft --continue %s\n", s.ID)
		return nil
	default:
		return err
	}
}
