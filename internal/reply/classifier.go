package reply

import (
	"context"
	"log"
	"strings"

	"github.com/Vovarama1992/xianyu-reply-engine/internal/ai"
)

const (
	classifyTemperature = 0.1
	// verbose models ignore "only the label"; leave room on the chat path
	classifyMaxTokens          = 1000
	classifyMaxTokensDashScope = 100
)

type Classifier struct {
	ai      ai.AI
	prompts Prompts
}

func NewClassifier(aiClient ai.AI, prompts Prompts) *Classifier {
	return &Classifier{ai: aiClient, prompts: prompts}
}

// Classify maps a buyer message to an intent. Any failure yields IntentDefault.
func (c *Classifier) Classify(ctx context.Context, message string, settings AccountSettings) Intent {
	if !settings.Available() {
		return IntentDefault
	}

	msgs := []ai.Message{
		{Role: ai.RoleSystem, Text: c.prompts.classifier(settings.CustomPrompts)},
		{Role: ai.RoleUser, Text: message},
	}

	maxTokens := classifyMaxTokens
	if ai.SelectProtocol(settings.AccountConfig) == ai.ProtocolDashScope {
		maxTokens = classifyMaxTokensDashScope
	}

	raw, err := c.ai.Call(ctx, settings.AccountConfig, msgs, maxTokens, classifyTemperature)
	if err != nil {
		log.Printf("[classify] account=%s failed: %v", settings.AccountID, err)
		return IntentDefault
	}

	return ParseIntent(raw)
}

// ParseIntent matches the classifier answer against the intent keywords.
func ParseIntent(raw string) Intent {
	s := strings.ToLower(raw)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "。", "")
	s = strings.TrimSpace(s)

	switch {
	case strings.Contains(s, "price") || strings.Contains(s, "价格"):
		return IntentPrice
	case strings.Contains(s, "tech") || strings.Contains(s, "技术"):
		return IntentTech
	case strings.Contains(s, "default") || strings.Contains(s, "其他"):
		// explicit label, same outcome as no match
		return IntentDefault
	}
	return IntentDefault
}
