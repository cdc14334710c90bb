// ABOUTME: History commands inspect the per-chat message log snapshots
// ABOUTME: These are the logs a server restart hands back to the chat frontend
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyChatID int64

type historyRow struct {
	ChatID    int64     `json:"chat_id" yaml:"chat_id"`
	Messages  int       `json:"messages" yaml:"messages"`
	Bytes     int       `json:"bytes" yaml:"bytes"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewHistoryCmd creates the history command group
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved chat histories",
		Long: `List the saved message log snapshots or print one of them.

Examples:
  jarvis history list
  jarvis history show --chat 42`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List chats with a saved history",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print a chat's saved message log",
		Args:  cobra.NoArgs,
		RunE:  runHistoryShow,
	}
	show.Flags().Int64Var(&historyChatID, "chat", 0, "Chat id to print")

	cmd.AddCommand(list, show)
	return cmd
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	snapshots, err := a.Storage.LoadAllHistorySnapshots(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading histories: %w", err)
	}
	rows := make([]historyRow, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, historyRow{
			ChatID:    s.ChatID,
			Messages:  countMessages(s.Messages),
			Bytes:     len(s.Messages),
			Timestamp: s.Timestamp,
		})
	}

	return render(cmd.OutOrStdout(), rows, func(w io.Writer) error {
		if len(rows) == 0 {
			fmt.Fprintln(w, "No saved histories.")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CHAT\tMESSAGES\tSIZE\tSAVED")
		for _, r := range rows {
			fmt.Fprintf(tw, "%d\t%d\t%dB\t%s\n", r.ChatID, r.Messages, r.Bytes, formatTime(r.Timestamp))
		}
		return tw.Flush()
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	if err := validateChatID(historyChatID); err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	snap, err := a.Storage.LoadHistorySnapshot(cmd.Context(), historyChatID)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if snap == nil {
		return fmt.Errorf("no saved history for chat %d", historyChatID)
	}

	var messages interface{}
	if err := json.Unmarshal(snap.Messages, &messages); err != nil {
		return fmt.Errorf("history for chat %d is not valid JSON: %w", historyChatID, err)
	}
	return render(cmd.OutOrStdout(), messages, nil)
}

// countMessages is the array length of a JSON message log, or 0 when the
// log is not an array.
func countMessages(raw json.RawMessage) int {
	var messages []json.RawMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return 0
	}
	return len(messages)
}
