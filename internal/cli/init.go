// init.go implements the "revcraft init" command.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/revcraft/revcraft/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a review workspace",
	Long: `Create .revcraft/config.yaml with default settings and the sessions,
reviews and images directories. Put product photos in images/ before
starting a session to have them analyzed.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var forceInit bool

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing configuration without asking")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := workspaceDir()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	configPath := filepath.Join(dir, config.StateDir, "config.yaml")
	if _, statErr := os.Stat(configPath); statErr == nil && !forceInit {
		fmt.Fprintln(out, "Warning: .revcraft/config.yaml already exists.")
		if !confirm(cmd.InOrStdin(), out, "Overwrite with defaults? [y/N]: ") {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := config.WriteConfig(dir, cfg); err != nil {
		return err
	}
	for _, sub := range []string{cfg.Paths.Sessions, cfg.Paths.Reviews, cfg.Paths.Images} {
		if err := os.MkdirAll(config.Resolve(dir, sub), 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", sub, err)
		}
	}
	if err := ensureGitignore(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to set up .gitignore: %v\n", err)
	}

	fmt.Fprintln(out, "Revcraft workspace initialized")
	fmt.Fprintln(out, "Configuration written to .revcraft/config.yaml")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Export %s\n", config.EnvAnthropicAPIKey)
	fmt.Fprintf(out, "  2. Optionally copy product photos into %s/\n", cfg.Paths.Images)
	fmt.Fprintln(out, "  3. Run: revcraft --new")
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

// ensureGitignore keeps runtime state out of version control. Sessions and
// reviews are left for the user to decide.
func ensureGitignore(dir string) error {
	gitignorePath := filepath.Join(dir, ".gitignore")

	requiredEntries := []string{
		".env",
		".DS_Store",
		config.StateDir + "/log.jsonl",
		config.StateDir + "/revcraft.log",
		config.StateDir + "/usage.db",
	}

	existing := ""
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}

	var missing []string
	for _, entry := range requiredEntries {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var toAppend strings.Builder
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		toAppend.WriteString("\n")
	}
	if existing != "" {
		toAppend.WriteString("\n# Added by revcraft init\n")
	}
	for _, entry := range missing {
		toAppend.WriteString(entry + "\n")
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening .gitignore: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(toAppend.String()); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}
