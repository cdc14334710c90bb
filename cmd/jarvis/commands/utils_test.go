// ABOUTME: Tests for shared CLI utility functions
// ABOUTME: Covers truncation, relative time formatting, and output rendering
package commands

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"tiny max", "hello", 2, "he"},
		{"multibyte", "안녕하세요 여러분", 6, "안녕하..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"just now", now.Add(-10 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-2 * 24 * time.Hour), "2d ago"},
		{"old", time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local), "2025-01-15"},
		{"future", time.Date(2099, 1, 15, 10, 30, 0, 0, time.Local), "2099-01-15 10:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTime(tt.t); got != tt.want {
				t.Errorf("formatTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidatePositiveInt(t *testing.T) {
	if err := validatePositiveInt(3, "limit"); err != nil {
		t.Errorf("validatePositiveInt(3) = %v", err)
	}
	if err := validatePositiveInt(0, "limit"); err == nil || !strings.Contains(err.Error(), "limit") {
		t.Errorf("validatePositiveInt(0) = %v", err)
	}
}

func TestRender(t *testing.T) {
	orig := outputFormat
	defer func() { outputFormat = orig }()

	value := map[string]int{"count": 2}
	text := func(w io.Writer) error {
		_, err := io.WriteString(w, "two\n")
		return err
	}

	tests := []struct {
		format string
		want   string
	}{
		{formatAuto, "two\n"},
		{formatText, "two\n"},
		{formatJSON, "{\n  \"count\": 2\n}\n"},
		{formatYAML, "count: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			outputFormat = tt.format
			var buf bytes.Buffer
			if err := render(&buf, value, text); err != nil {
				t.Fatalf("render() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("render() = %q, want %q", buf.String(), tt.want)
			}
		})
	}

	outputFormat = formatAuto
	var buf bytes.Buffer
	if err := render(&buf, value, nil); err != nil || !strings.Contains(buf.String(), `"count": 2`) {
		t.Errorf("render() without text = %q, %v", buf.String(), err)
	}
}
