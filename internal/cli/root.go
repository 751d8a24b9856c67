// Package cli defines the Cobra command for the revcraft CLI.
// This file contains the root command, its flags and help output.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	newFlag      bool
	continueID   string
	listFlag     bool
	directory    string
	researchFlag bool
	budgetFlag   float64
	importance   string
	strategy     string
	frameworkArg string
	version      = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "revcraft",
	Short: "Interactive assistant for writing product reviews",
	Long: `Revcraft walks you through writing a product review with Claude in four
phases: intake, draft, refine and quality control. Sessions are saved after
every step and can be resumed with --continue.

Type 'exit' at any prompt to stop (the session is saved) or 'save' to save
without stopping.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	Args:          cobra.NoArgs,
	RunE:          runRoot,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&directory, "directory", "d", "", "Workspace directory (default: current directory)")
	persistent.BoolVarP(&verbose, "verbose", "v", false, "Show debug logging on the terminal")

	flags := rootCmd.Flags()
	flags.BoolVar(&newFlag, "new", false, "Start a new review session")
	flags.StringVar(&continueID, "continue", "", "Resume the session with this id")
	flags.BoolVar(&listFlag, "list", false, "List saved sessions")
	flags.BoolVar(&researchFlag, "research", false, "Run web research during intake")
	flags.Float64Var(&budgetFlag, "budget", 0, "Research budget in USD")
	flags.StringVar(&importance, "importance", "", "Research importance: low, medium or high")
	flags.StringVar(&strategy, "strategy", "", "Research strategy: fixed or weighted")
	flags.StringVar(&frameworkArg, "framework", "", "Review framework YAML replacing the built-in one")
	rootCmd.MarkFlagsMutuallyExclusive("new", "continue", "list")
}
