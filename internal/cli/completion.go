package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// completionCmd generates shell completion scripts for bmad-assist.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for bmad-assist.

To install completions:

  Bash (Linux):
    bmad-assist completion bash | sudo tee /etc/bash_completion.d/bmad-assist > /dev/null

  Bash (macOS with Homebrew):
    bmad-assist completion bash > $(brew --prefix)/etc/bash_completion.d/bmad-assist

  Zsh:
    bmad-assist completion zsh > "${fpath[1]}/_bmad-assist"
    # or
    bmad-assist completion zsh > ~/.zsh/completions/_bmad-assist

  Fish:
    bmad-assist completion fish > ~/.config/fish/completions/bmad-assist.fish

  PowerShell:
    bmad-assist completion powershell > bmad-assist.ps1
    # Then add ". bmad-assist.ps1" to your PowerShell profile`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
