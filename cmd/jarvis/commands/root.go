// ABOUTME: Root command and global flags for the jarvis CLI
// ABOUTME: Wires every subcommand and validates --verbose, --quiet, and --format
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Output formats accepted by --format
const (
	formatAuto = "auto"
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
     ██╗ █████╗ ██████╗ ██╗   ██╗██╗███████╗
     ██║██╔══██╗██╔══██╗██║   ██║██║██╔════╝
     ██║███████║██████╔╝██║   ██║██║███████╗
██   ██║██╔══██║██╔══██╗╚██╗ ██╔╝██║╚════██║
╚█████╔╝██║  ██║██║  ██║ ╚████╔╝ ██║███████║
 ╚════╝ ╚═╝  ╚═╝╚═╝  ╚═╝  ╚═══╝  ╚═╝╚══════╝`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jarvis",
		Short: "Long-term memory, reminders, and briefings for a chat assistant",
		Long: banner + `

Jarvis keeps what a chat assistant should remember between sessions:
past turns, facts learned about the user, memos, alarms, and a daily
briefing. Everything lives in a vector store (Qdrant or chromem).

Run "jarvis serve" to expose the tools over MCP on stdio. The other
commands inspect and edit the same data from a terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			switch outputFormat {
			case formatAuto, formatText, formatJSON, formatYAML:
				return nil
			}
			return fmt.Errorf("--format must be one of auto, text, json, yaml; got %q", outputFormat)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only show errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", formatAuto, "Output format: auto, text, json, yaml")

	cmd.AddCommand(
		NewServeCmd(),
		NewInitCmd(),
		NewMemoCmd(),
		NewAlarmCmd(),
		NewBriefingCmd(),
		NewContextCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
