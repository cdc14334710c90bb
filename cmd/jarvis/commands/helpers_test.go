// ABOUTME: Shared helpers for CLI command tests
// ABOUTME: Points config at a throwaway persistent chromem store with hash embeddings
package commands

import (
	"bytes"
	"strings"
	"testing"
)

// setTestEnv configures a fresh on-disk store per test. Each CLI invocation
// opens it again, the same way separate processes would.
func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VECTOR_STORE", "chromem")
	t.Setenv("CHROMEM_PATH", t.TempDir())
	t.Setenv("EMBEDDING_BACKEND", "hash")
	t.Setenv("VECTOR_DIMENSION", "32")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("VLLM_BASE_URL", "http://127.0.0.1:1/v1")
	t.Setenv("SCHEDULER_TIMEZONE", "UTC")
	t.Setenv("LOG_MODE", "production")
	t.Setenv("COLLECTION_PREFIX", "")
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, "", args...)
	if err != nil {
		t.Fatalf("jarvis %s: %v", strings.Join(args, " "), err)
	}
	return out
}
