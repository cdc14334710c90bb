// ABOUTME: Tests for memo commands against a temporary chromem store
// ABOUTME: Hash embeddings make an identical query match its memo exactly
package commands

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMemoCmd_Lifecycle(t *testing.T) {
	setTestEnv(t)
	content := "Locker code is 0420"

	out := mustRun(t, "memo", "add", "--chat", "42", content)
	if !strings.Contains(out, "✓ Saved memo") {
		t.Errorf("add output = %q", out)
	}

	var listed []memoRow
	if err := json.Unmarshal([]byte(mustRun(t, "--format", "json", "memo", "list", "--chat", "42")), &listed); err != nil {
		t.Fatalf("list output is not JSON: %v", err)
	}
	if len(listed) != 1 || listed[0].Content != content {
		t.Fatalf("listed = %+v", listed)
	}

	var found []memoRow
	if err := json.Unmarshal([]byte(mustRun(t, "--format", "json", "memo", "search", "--chat", "42", content)), &found); err != nil {
		t.Fatalf("search output is not JSON: %v", err)
	}
	if len(found) != 1 || found[0].ID != listed[0].ID {
		t.Fatalf("found = %+v", found)
	}

	if out := mustRun(t, "memo", "list", "--chat", "7"); !strings.Contains(out, "No memos found.") {
		t.Errorf("other chat list = %q", out)
	}

	out = mustRun(t, "memo", "delete", "--chat", "42", content)
	if !strings.Contains(out, "Deleted "+listed[0].ShortID) {
		t.Errorf("delete output = %q", out)
	}
	if _, err := runCLI(t, "", "memo", "delete", "--chat", "42", content); err == nil || !strings.Contains(err.Error(), "no memo matches") {
		t.Errorf("second delete error = %v", err)
	}
}

func TestMemoCmd_AddFromStdin(t *testing.T) {
	setTestEnv(t)

	out, err := runCLI(t, "  Wifi password is hunter2\n", "memo", "add", "--chat", "42", "--category", "note")
	if err != nil {
		t.Fatalf("add from stdin: %v", err)
	}
	if !strings.Contains(out, "Saved note") {
		t.Errorf("add output = %q", out)
	}

	out = mustRun(t, "memo", "list", "--chat", "42")
	if !strings.Contains(out, "Wifi password is hunter2") || !strings.Contains(out, "note") {
		t.Errorf("list output = %q", out)
	}
}

func TestMemoCmd_Validation(t *testing.T) {
	setTestEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing chat", []string{"memo", "list"}, "--chat is required"},
		{"empty text", []string{"memo", "add", "--chat", "42", "   "}, "no text provided"},
		{"bad limit", []string{"memo", "search", "--chat", "42", "--limit", "0", "x"}, "limit must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestContextCmd(t *testing.T) {
	setTestEnv(t)
	content := "Locker code is 0420"

	if out := mustRun(t, "context", "--chat", "42", content); out != "" {
		t.Errorf("context with empty store = %q", out)
	}

	mustRun(t, "memo", "add", "--chat", "42", content)
	out := mustRun(t, "context", "--chat", "42", content)
	if !strings.Contains(out, "Memos the user saved") || !strings.Contains(out, "0420") {
		t.Errorf("context = %q", out)
	}
}
