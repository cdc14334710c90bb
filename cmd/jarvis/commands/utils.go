// ABOUTME: Shared helpers for CLI commands
// ABOUTME: Opens the application from env config and renders text, JSON, or YAML output
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/jerryymjo/jarvis-memory/internal/app"
	"github.com/jerryymjo/jarvis-memory/internal/config"
	"github.com/jerryymjo/jarvis-memory/internal/logger"
)

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < 0 {
		return t.Format("2006-01-02 15:04")
	} else if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	} else if diff < 7*24*time.Hour {
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02")
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

func validateChatID(chatID int64) error {
	if chatID == 0 {
		return fmt.Errorf("--chat is required")
	}
	return nil
}

// newLogger builds the CLI logger. The CLI is quiet by default: warnings
// only, debug with --verbose, errors only with --quiet.
func newLogger(mode string) (*logger.Logger, error) {
	log, err := logger.New(mode)
	if err != nil {
		return nil, err
	}
	switch {
	case verbose:
		return log, nil
	case quiet:
		return log.SetLevel(zapcore.ErrorLevel), nil
	}
	return log.SetLevel(zapcore.WarnLevel), nil
}

// buildApp loads config from the environment and builds the application
// without touching collections or arming timers.
func buildApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := newLogger(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing: %w", err)
	}
	closeApp := func() {
		if err := a.Shutdown(context.Background()); err != nil {
			log.Warn("Error closing storage", "error", err)
		}
		log.Sync()
	}
	return a, closeApp, nil
}

// openApp is buildApp plus making sure every collection exists.
func openApp(ctx context.Context) (*app.App, func(), error) {
	a, closeApp, err := buildApp(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := a.Storage.EnsureCollections(ctx); err != nil {
		closeApp()
		return nil, nil, fmt.Errorf("preparing collections: %w", err)
	}
	return a, closeApp, nil
}

// render writes v as JSON or YAML when --format asks for it, and calls text
// otherwise. A nil text falls back to JSON.
func render(w io.Writer, v interface{}, text func(io.Writer) error) error {
	switch {
	case outputFormat == formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case outputFormat == formatJSON || text == nil:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	return text(w)
}

// success prints a check-marked line unless --quiet is set
func success(w io.Writer, format string, args ...interface{}) {
	if quiet {
		return
	}
	fmt.Fprintf(w, "✓ "+format+"\n", args...)
}

// shortID is the first eight characters of an id, for tables
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
