// ABOUTME: Briefing commands show, set, stop, and preview a chat's daily briefing
// ABOUTME: Preview runs the briefing generator once without delivering anything
package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jerryymjo/jarvis-memory/internal/app"
)

var (
	briefingChatID  int64
	briefingTimeout time.Duration
)

type briefingRow struct {
	ChatID    int64     `json:"chat_id" yaml:"chat_id"`
	Time      string    `json:"time" yaml:"time"`
	Timezone  string    `json:"timezone" yaml:"timezone"`
	Active    bool      `json:"active" yaml:"active"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// NewBriefingCmd creates the briefing command group
func NewBriefingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "briefing",
		Short: "Manage a chat's daily briefing",
		Long: `Show, set, stop, or preview the daily briefing of one chat.

Briefing times are HH:MM in the scheduler timezone (SCHEDULER_TIMEZONE).

Examples:
  jarvis briefing show --chat 42
  jarvis briefing set --chat 42 07:30
  jarvis briefing stop --chat 42
  jarvis briefing preview --chat 42`,
	}
	cmd.PersistentFlags().Int64Var(&briefingChatID, "chat", 0, "Chat id the briefing belongs to")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the briefing schedule",
		Args:  cobra.NoArgs,
		RunE:  runBriefingShow,
	}
	set := &cobra.Command{
		Use:   "set <HH:MM>",
		Short: "Set the daily briefing time",
		Args:  cobra.ExactArgs(1),
		RunE:  runBriefingSet,
	}
	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the daily briefing",
		Args:  cobra.NoArgs,
		RunE:  runBriefingStop,
	}
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Generate a briefing now and print it",
		Args:  cobra.NoArgs,
		RunE:  runBriefingPreview,
	}
	preview.Flags().DurationVar(&briefingTimeout, "timeout", 2*time.Minute, "Give up on the LLM after this long")

	cmd.AddCommand(show, set, stop, preview)
	return cmd
}

func runBriefingShow(cmd *cobra.Command, args []string) error {
	if err := validateChatID(briefingChatID); err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	b, err := a.Scheduler.LoadBriefing(cmd.Context(), briefingChatID)
	if err != nil {
		return fmt.Errorf("loading briefing: %w", err)
	}
	row := briefingRow{ChatID: briefingChatID, Timezone: a.Scheduler.Location().String()}
	if b != nil {
		row.Time, row.Active, row.UpdatedAt = b.TimeOfDay, b.Active, b.UpdatedAt
	}

	return render(cmd.OutOrStdout(), row, func(w io.Writer) error {
		switch {
		case b == nil:
			fmt.Fprintf(w, "No briefing set for chat %d.\n", briefingChatID)
		case !b.Active:
			fmt.Fprintf(w, "Briefing for chat %d is stopped (was %s %s).\n", briefingChatID, row.Time, row.Timezone)
		default:
			fmt.Fprintf(w, "Briefing for chat %d runs daily at %s %s.\n", briefingChatID, row.Time, row.Timezone)
		}
		return nil
	})
}

func runBriefingSet(cmd *cobra.Command, args []string) error {
	if err := validateChatID(briefingChatID); err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	if err := a.Scheduler.CreateBriefing(cmd.Context(), briefingChatID, args[0]); err != nil {
		return fmt.Errorf("setting briefing: %w", err)
	}
	row := briefingRow{ChatID: briefingChatID, Time: args[0], Timezone: a.Scheduler.Location().String(), Active: true}
	return render(cmd.OutOrStdout(), row, func(w io.Writer) error {
		success(w, "Briefing for chat %d set to %s %s", row.ChatID, row.Time, row.Timezone)
		return nil
	})
}

func runBriefingStop(cmd *cobra.Command, args []string) error {
	if err := validateChatID(briefingChatID); err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	stopped, err := a.Scheduler.StopBriefing(cmd.Context(), briefingChatID)
	if err != nil {
		return fmt.Errorf("stopping briefing: %w", err)
	}
	return render(cmd.OutOrStdout(), map[string]bool{"stopped": stopped}, func(w io.Writer) error {
		if !stopped {
			fmt.Fprintf(w, "Chat %d has no active briefing.\n", briefingChatID)
			return nil
		}
		success(w, "Briefing for chat %d stopped", briefingChatID)
		return nil
	})
}

func runBriefingPreview(cmd *cobra.Command, args []string) error {
	if err := validateChatID(briefingChatID); err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	if a.Briefings == nil {
		return app.ErrNoLLM
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), briefingTimeout)
	defer cancel()

	text, err := a.Briefings.Summarize(ctx, briefingChatID)
	if err != nil {
		return fmt.Errorf("generating briefing: %w", err)
	}
	return render(cmd.OutOrStdout(), map[string]string{"briefing": text}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, text)
		return err
	})
}
