package ai

import (
	"regexp"
	"strings"
)

// RawReply is the first candidate of a model response. ReasoningContent is
// only populated by models that separate deliberation from the answer.
type RawReply struct {
	Content          string
	ReasoningContent string
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Extract returns the final answer text of a response, or "" when there is
// nothing usable. A reply carrying only reasoning is treated as truncated.
func Extract(r RawReply) string {
	switch {
	case r.Content != "" && strings.Contains(r.Content, "<think>"):
		return strings.TrimSpace(thinkBlock.ReplaceAllString(r.Content, ""))
	case r.Content != "":
		return strings.TrimSpace(r.Content)
	default:
		return ""
	}
}

// Truncated reports a response that holds deliberation but no answer.
func (r RawReply) Truncated() bool {
	return strings.TrimSpace(r.Content) == "" && r.ReasoningContent != ""
}
