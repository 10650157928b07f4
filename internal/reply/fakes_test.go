package reply

import (
	"context"
	"errors"
	"sync"

	"github.com/Vovarama1992/xianyu-reply-engine/internal/ai"
)

type aiCall struct {
	cfg         ai.AccountConfig
	messages    []ai.Message
	maxTokens   int
	temperature float32
}

// fakeAI answers the classification call with classify and the generation
// call with generate.
type fakeAI struct {
	mu       sync.Mutex
	calls    []aiCall
	classify func() (string, error)
	generate func() (string, error)
}

func (f *fakeAI) Call(_ context.Context, cfg ai.AccountConfig, msgs []ai.Message, maxTokens int, temperature float32) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, aiCall{cfg, msgs, maxTokens, temperature})
	f.mu.Unlock()

	if temperature == classifyTemperature {
		if f.classify == nil {
			return "default", nil
		}
		return f.classify()
	}
	if f.generate == nil {
		return "ok", nil
	}
	return f.generate()
}

func says(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

type memRepo struct {
	mu       sync.Mutex
	turns    []Turn
	failSave bool
	failNext int // reject this many appends, then accept
}

func (m *memRepo) AppendTurn(_ context.Context, t *Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	if m.failNext > 0 {
		m.failNext--
		return errors.New("connection reset")
	}
	m.turns = append(m.turns, *t)
	return nil
}

func (m *memRepo) GetHistory(_ context.Context, chatID, accountID string, limit int) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Turn
	for _, t := range m.turns {
		if t.ChatID == chatID && t.AccountID == accountID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memRepo) CountTurns(_ context.Context, chatID, accountID string, intent Intent, role Role) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.turns {
		if t.ChatID == chatID && t.AccountID == accountID && t.Intent == intent && t.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) seedPriceRounds(chatID, accountID string, n int) {
	for i := 0; i < n; i++ {
		m.turns = append(m.turns,
			Turn{ChatID: chatID, AccountID: accountID, Role: RoleUser, Content: "便宜点", Intent: IntentPrice},
			Turn{ChatID: chatID, AccountID: accountID, Role: RoleAssistant, Content: "好的", Intent: IntentPrice},
		)
	}
}

type fakeSettings map[string]AccountSettings

func (f fakeSettings) GetSettings(_ context.Context, accountID string) (AccountSettings, error) {
	s, ok := f[accountID]
	if !ok {
		return AccountSettings{}, ErrSettingsNotFound
	}
	return s, nil
}

func enabledSettings(accountID string) AccountSettings {
	s := AccountSettings{
		MaxBargainRounds:   3,
		MaxDiscountPercent: 10,
		MaxDiscountAmount:  100,
	}
	s.AccountID = accountID
	s.Enabled = true
	s.APIKey = "sk-test-1234"
	s.BaseURL = "https://api.example.com/v1"
	s.Model = "gpt-4"
	return s
}
