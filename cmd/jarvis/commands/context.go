// ABOUTME: Context command prints the memory block a chat would get for a message
// ABOUTME: Useful for checking what facts, memos, and past turns are retrieved
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var contextChatID int64

// NewContextCmd creates the context command
func NewContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context <message>",
		Short: "Show the memory context for a message",
		Long: `Show the memory context that would be added to the system prompt
when the user of a chat sends the given message.

Prints nothing when no stored memory is relevant.

Examples:
  jarvis context --chat 42 "what's my locker code?"
  jarvis context --chat 42 --format json "plans for the weekend"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runContext,
	}
	cmd.Flags().Int64Var(&contextChatID, "chat", 0, "Chat id to retrieve for")
	return cmd
}

func runContext(cmd *cobra.Command, args []string) error {
	if err := validateChatID(contextChatID); err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	block := a.Manager.GetRelevantContext(cmd.Context(), contextChatID, strings.Join(args, " "))

	return render(cmd.OutOrStdout(), map[string]string{"context": block}, func(w io.Writer) error {
		if block == "" {
			if verbose {
				fmt.Fprintln(cmd.ErrOrStderr(), "No relevant memory.")
			}
			return nil
		}
		_, err := fmt.Fprintln(w, block)
		return err
	})
}
