// ABOUTME: Alarm commands list and create a chat's reminders
// ABOUTME: Alarms added here are stored and picked up by the next "jarvis serve" start
package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jerryymjo/jarvis-memory/internal/models"
	"github.com/jerryymjo/jarvis-memory/internal/scheduler"
)

var (
	alarmChatID int64
	alarmAt     string
	alarmRepeat string
)

type alarmRow struct {
	ID      string    `json:"alarm_id" yaml:"alarm_id"`
	Message string    `json:"message" yaml:"message"`
	FireAt  time.Time `json:"fire_at" yaml:"fire_at"`
	Repeat  string    `json:"repeat" yaml:"repeat"`
}

func newAlarmRow(a models.Alarm) alarmRow {
	repeat := string(a.Repeat)
	if repeat == "" {
		repeat = "none"
	}
	return alarmRow{ID: a.ID, Message: a.Message, FireAt: a.FireAt, Repeat: repeat}
}

// NewAlarmCmd creates the alarm command group
func NewAlarmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alarm",
		Short: "Inspect and create reminders",
		Long: `List a chat's active alarms or store a new one.

A running server only arms alarms it created itself or restored at
startup, so alarms added from the CLI fire after the next restart.

Examples:
  jarvis alarm list --chat 42
  jarvis alarm add --chat 42 --at 2026-03-06T08:00:00+09:00 "Take vitamins"
  jarvis alarm add --chat 42 --at "2026-03-06 07:30" --repeat daily "Stretch"`,
	}
	cmd.PersistentFlags().Int64Var(&alarmChatID, "chat", 0, "Chat id the alarms belong to")

	list := &cobra.Command{
		Use:   "list",
		Short: "List active alarms",
		Args:  cobra.NoArgs,
		RunE:  runAlarmList,
	}

	add := &cobra.Command{
		Use:   "add <message>",
		Short: "Create an alarm",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAlarmAdd,
	}
	add.Flags().StringVar(&alarmAt, "at", "", "Fire time, ISO-8601 (scheduler timezone when no offset)")
	add.Flags().StringVar(&alarmRepeat, "repeat", "none", "none, daily, or weekly")

	cmd.AddCommand(list, add)
	return cmd
}

func runAlarmList(cmd *cobra.Command, args []string) error {
	if err := validateChatID(alarmChatID); err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	alarms, err := a.Scheduler.ListAlarms(cmd.Context(), alarmChatID)
	if err != nil {
		return fmt.Errorf("listing alarms: %w", err)
	}
	rows := make([]alarmRow, 0, len(alarms))
	for _, al := range alarms {
		rows = append(rows, newAlarmRow(al))
	}
	loc := a.Scheduler.Location()

	return render(cmd.OutOrStdout(), rows, func(w io.Writer) error {
		if len(rows) == 0 {
			fmt.Fprintln(w, "No active alarms.")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFIRES AT\tREPEAT\tMESSAGE")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shortID(r.ID), r.FireAt.In(loc).Format("2006-01-02 15:04 MST"), r.Repeat, truncate(r.Message, 50))
		}
		return tw.Flush()
	})
}

func runAlarmAdd(cmd *cobra.Command, args []string) error {
	if err := validateChatID(alarmChatID); err != nil {
		return err
	}
	if alarmAt == "" {
		return fmt.Errorf("--at is required")
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	fireAt, err := scheduler.ParseFireAt(alarmAt, a.Scheduler.Location())
	if err != nil {
		return err
	}
	alarm, err := a.Scheduler.CreateAlarm(cmd.Context(), alarmChatID, strings.Join(args, " "), fireAt, models.ParseRepeat(alarmRepeat))
	if err != nil {
		return fmt.Errorf("creating alarm: %w", err)
	}

	row := newAlarmRow(*alarm)
	return render(cmd.OutOrStdout(), row, func(w io.Writer) error {
		success(w, "Alarm %s set for %s (%s)", shortID(row.ID), row.FireAt.Format(time.RFC3339), row.Repeat)
		return nil
	})
}
