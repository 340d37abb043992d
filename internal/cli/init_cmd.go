package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/bmad-assist/bmad-assist-go/internal/logging"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

// gitignorePatterns are the entries init ensures are present in .gitignore,
// so the tool-private cache and generated metadata files never get
// committed by accident.
var gitignorePatterns = []string{
	".bmad-assist/cache/",
	"*.meta.yaml",
	"*.tpl.xml",
}

const gitignoreSectionHeader = "# bmad-assist artifacts (auto-generated, never commit)"

// initCmd implements "bmad-assist init".
// It creates the .bmad-assist/ tool directory and ensures .gitignore carries
// the patterns needed to keep generated cache/metadata files out of version
// control. Both steps are idempotent: running init twice makes no further
// changes the second time.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the .bmad-assist/ directory for this project",
	Long: `Initialize a project for bmad-assist by creating the .bmad-assist/
tool directory (state, patches, cache) and ensuring .gitignore excludes its
generated contents. Safe to run more than once: existing files are left
untouched.`,
	Args: cobra.NoArgs,

	// init must work before any bmad-assist.yaml exists, so it replicates
	// the env-var/logging/--dir handling from the root PersistentPreRunE
	// rather than depending on config having been loaded.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Root().PersistentFlags().Changed("verbose") && os.Getenv("BMAD_VERBOSE") != "" {
			flagVerbose = true
		}
		if !cmd.Root().PersistentFlags().Changed("quiet") && os.Getenv("BMAD_QUIET") != "" {
			flagQuiet = true
		}
		if !cmd.Root().PersistentFlags().Changed("no-color") &&
			(os.Getenv("NO_COLOR") != "" || os.Getenv("BMAD_NO_COLOR") != "") {
			flagNoColor = true
		}

		jsonFormat := os.Getenv("BMAD_LOG_FORMAT") == "json"
		logging.Setup(flagVerbose, flagQuiet, jsonFormat)

		if flagNoColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}

		if flagDir != "" {
			if err := os.Chdir(flagDir); err != nil {
				return fmt.Errorf("changing directory to %s: %w", flagDir, err)
			}
		}

		return nil
	},

	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	projectRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	p := paths.New(projectRoot)
	stderr := os.Stderr

	toolDirCreated, err := ensureToolDir(p)
	if err != nil {
		return fmt.Errorf("creating %s: %w", p.ToolDir(), err)
	}
	if toolDirCreated {
		fmt.Fprintf(stderr, "Created %s\n", p.ToolDir())
	} else {
		fmt.Fprintf(stderr, "%s already exists\n", p.ToolDir())
	}

	gitignoreChanged, gitignoreMsg, err := ensureGitignore(projectRoot)
	if err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	fmt.Fprintln(stderr, gitignoreMsg)
	_ = gitignoreChanged

	fmt.Fprintln(stderr, "\nNext steps:")
	fmt.Fprintf(stderr, "  1. Edit %s to configure providers and workflow\n", p.ProjectConfig())
	fmt.Fprintln(stderr, "  2. Run: bmad-assist serve")

	return nil
}

// ensureToolDir creates the tool-private directory tree (state, patches,
// cache) if missing. It reports whether anything was created.
func ensureToolDir(p *paths.Paths) (bool, error) {
	_, statErr := os.Stat(p.ToolDir())
	existed := statErr == nil

	for _, dir := range []string{p.ToolDir(), p.PatchesDir(), p.CacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, err
		}
	}

	return !existed, nil
}

// ensureGitignore appends gitignorePatterns to .gitignore if any are
// missing, creating the file if it doesn't exist. It never duplicates
// entries already present, so repeated calls are no-ops once set up.
func ensureGitignore(projectRoot string) (changed bool, message string, err error) {
	gitignorePath := filepath.Join(projectRoot, ".gitignore")

	existing, readErr := os.ReadFile(gitignorePath)
	fileExists := readErr == nil
	if readErr != nil && !os.IsNotExist(readErr) {
		return false, "", readErr
	}

	present := map[string]bool{}
	for _, line := range strings.Split(string(existing), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, pattern := range gitignorePatterns {
		if !present[pattern] {
			missing = append(missing, pattern)
		}
	}

	if len(missing) == 0 {
		return false, ".gitignore already has all bmad-assist patterns", nil
	}

	var section strings.Builder
	if !fileExists {
		section.WriteString(gitignoreSectionHeader + "\n")
	} else if !present[gitignoreSectionHeader] {
		section.WriteString("\n" + gitignoreSectionHeader + "\n")
	}
	for _, pattern := range missing {
		section.WriteString(pattern + "\n")
	}

	content := string(existing)
	if fileExists && content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += section.String()

	if err := os.WriteFile(gitignorePath, []byte(content), 0o644); err != nil {
		return false, "", err
	}

	if !fileExists {
		return true, "Created .gitignore with bmad-assist patterns", nil
	}
	return true, fmt.Sprintf("Added to .gitignore: %s", strings.Join(missing, ", ")), nil
}
