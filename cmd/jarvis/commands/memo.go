// ABOUTME: Memo commands save, list, search, and delete a chat's memos
// ABOUTME: Search and delete match by meaning through the embedding service
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jerryymjo/jarvis-memory/internal/core"
	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/storage"
)

var (
	memoChatID   int64
	memoCategory string
	memoFile     string
	memoLimit    int
)

type memoRow struct {
	ID        string    `json:"memo_id" yaml:"memo_id"`
	ShortID   string    `json:"short_id" yaml:"short_id"`
	Category  string    `json:"category" yaml:"category"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Score     float64   `json:"score,omitempty" yaml:"score,omitempty"`
}

func newMemoRow(m models.Memo, score float64) memoRow {
	return memoRow{
		ID:        m.ID,
		ShortID:   m.ShortID(),
		Category:  string(m.Category),
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Score:     score,
	}
}

// NewMemoCmd creates the memo command group
func NewMemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memo",
		Short: "Manage a chat's memos",
		Long: `Save, list, search, and delete memos for one chat.

Examples:
  jarvis memo add --chat 42 "Locker code is 0420"
  echo "Wifi password is hunter2" | jarvis memo add --chat 42 --category note
  jarvis memo list --chat 42
  jarvis memo search --chat 42 "locker"
  jarvis memo delete --chat 42 "locker code"`,
	}
	cmd.PersistentFlags().Int64Var(&memoChatID, "chat", 0, "Chat id the memos belong to")

	add := &cobra.Command{
		Use:   "add [text]",
		Short: "Save a memo",
		Long: `Save a memo from the arguments, a file, or stdin.

Categories are memo, bookmark, and note; anything else is stored as memo.`,
		RunE: runMemoAdd,
	}
	add.Flags().StringVar(&memoCategory, "category", string(models.MemoCategoryMemo), "memo, bookmark, or note")
	add.Flags().StringVar(&memoFile, "file", "", "Read the memo from a file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List memos, oldest first",
		Args:  cobra.NoArgs,
		RunE:  runMemoList,
	}

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memos by meaning",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMemoSearch,
	}
	search.Flags().IntVarP(&memoLimit, "limit", "n", core.DefaultMemoSearchLimit, "Maximum results")

	del := &cobra.Command{
		Use:   "delete <description>",
		Short: "Delete the memo that best matches a description",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMemoDelete,
	}

	cmd.AddCommand(add, list, search, del)
	return cmd
}

func runMemoAdd(cmd *cobra.Command, args []string) error {
	if err := validateChatID(memoChatID); err != nil {
		return err
	}
	text, err := readText(cmd, args, memoFile)
	if err != nil {
		return err
	}

	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	memo, err := a.Memos.SaveMemo(cmd.Context(), memoChatID, text, memoCategory)
	if err != nil {
		return fmt.Errorf("saving memo: %w", err)
	}

	return render(cmd.OutOrStdout(), newMemoRow(*memo, 0), func(w io.Writer) error {
		success(w, "Saved %s %s", memo.Category, memo.ShortID())
		return nil
	})
}

func runMemoList(cmd *cobra.Command, args []string) error {
	if err := validateChatID(memoChatID); err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	memos, err := a.Memos.ListMemos(cmd.Context(), memoChatID)
	if err != nil {
		return fmt.Errorf("listing memos: %w", err)
	}

	rows := make([]memoRow, 0, len(memos))
	for _, m := range memos {
		rows = append(rows, newMemoRow(m, 0))
	}
	return render(cmd.OutOrStdout(), rows, func(w io.Writer) error {
		return memoTable(w, rows, false)
	})
}

func runMemoSearch(cmd *cobra.Command, args []string) error {
	if err := validateChatID(memoChatID); err != nil {
		return err
	}
	if err := validatePositiveInt(memoLimit, "limit"); err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	hits, err := a.Memos.SearchMemos(cmd.Context(), memoChatID, strings.Join(args, " "), memoLimit)
	if err != nil {
		return fmt.Errorf("searching memos: %w", err)
	}
	return render(cmd.OutOrStdout(), matchRows(hits), func(w io.Writer) error {
		return memoTable(w, matchRows(hits), true)
	})
}

func runMemoDelete(cmd *cobra.Command, args []string) error {
	if err := validateChatID(memoChatID); err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	memo, err := a.Memos.DeleteMemo(cmd.Context(), memoChatID, strings.Join(args, " "))
	if errors.Is(err, core.ErrNoMatchingMemo) {
		return fmt.Errorf("no memo matches %q", strings.Join(args, " "))
	}
	if err != nil {
		return fmt.Errorf("deleting memo: %w", err)
	}

	return render(cmd.OutOrStdout(), newMemoRow(*memo, 0), func(w io.Writer) error {
		success(w, "Deleted %s: %s", memo.ShortID(), truncate(memo.Content, 60))
		return nil
	})
}

func matchRows(hits []storage.Match[models.Memo]) []memoRow {
	rows := make([]memoRow, 0, len(hits))
	for _, hit := range hits {
		rows = append(rows, newMemoRow(hit.Item, hit.Score))
	}
	return rows
}

func memoTable(w io.Writer, rows []memoRow, withScore bool) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No memos found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if withScore {
		fmt.Fprintln(tw, "ID\tSCORE\tCATEGORY\tSAVED\tCONTENT")
	} else {
		fmt.Fprintln(tw, "ID\tCATEGORY\tSAVED\tCONTENT")
	}
	for _, r := range rows {
		if withScore {
			fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%s\n", r.ShortID, r.Score, r.Category, formatTime(r.Timestamp), truncate(r.Content, 60))
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ShortID, r.Category, formatTime(r.Timestamp), truncate(r.Content, 60))
		}
	}
	return tw.Flush()
}

// readText takes the text from a file, the arguments, or stdin, in that order.
func readText(cmd *cobra.Command, args []string, file string) (string, error) {
	var text string
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading file: %w", err)
		}
		text = string(data)
	case len(args) > 0:
		text = strings.Join(args, " ")
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no text provided")
	}
	return text, nil
}
