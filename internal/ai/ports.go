package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message — универсальный формат диалога для бэкенда модели
type Message struct {
	Role string // "user" | "assistant" | "system"
	Text string
}

// AccountConfig — часть настроек аккаунта, нужная для вызова модели.
// Снимок читается заново на каждую операцию.
type AccountConfig struct {
	AccountID string
	Enabled   bool
	APIKey    string
	BaseURL   string
	Model     string
}

// Available reports whether a backend may be called for this account at all.
func (c AccountConfig) Available() bool {
	return c.Enabled && c.APIKey != ""
}

// AI — внешний интеллект, не знает ни про чаты, ни про БД
type AI interface {
	Call(
		ctx context.Context,
		cfg AccountConfig,
		messages []Message,
		maxTokens int,
		temperature float32,
	) (string, error)
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "***"
	}
	return "***" + key[len(key)-4:]
}
