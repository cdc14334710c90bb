// ABOUTME: Cleanup helpers for raw model output
// ABOUTME: Removes reasoning blocks and markdown code fences before parsing or display
package core

import (
	"regexp"
	"strings"
)

var (
	thinkClosed   = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkUnclosed = regexp.MustCompile(`(?s)<think>.*`)
)

// StripThink removes <think>…</think> blocks, including an unterminated one.
func StripThink(s string) string {
	s = thinkClosed.ReplaceAllString(s, "")
	s = thinkUnclosed.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripCodeFence returns the body of the first ``` block, without a json
// language tag. Text without a fence is returned trimmed.
func stripCodeFence(s string) string {
	if !strings.Contains(s, "```") {
		return strings.TrimSpace(s)
	}
	parts := strings.Split(s, "```")
	body := parts[1]
	body = strings.TrimPrefix(body, "json")
	return strings.TrimSpace(body)
}
