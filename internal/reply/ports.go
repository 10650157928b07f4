package reply

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Vovarama1992/xianyu-reply-engine/internal/ai"
)

type Intent string

const (
	IntentPrice   Intent = "price"
	IntentTech    Intent = "tech"
	IntentDefault Intent = "default"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn — одно сохранённое сообщение диалога. Только добавляется.
type Turn struct {
	ID        string
	ChatID    string
	AccountID string
	UserID    string
	ItemID    string
	Role      Role
	Content   string
	Intent    Intent // пусто, если не классифицировалось
	CreatedAt int64  // unix nanos
}

type ItemInfo struct {
	Title string `json:"title"`
	Price Price  `json:"price"`
	Desc  string `json:"desc"`
}

// Price — цена товара; в JSON приходит числом или строкой
type Price string

func (p *Price) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Price(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = Price(n.String())
	return nil
}

// Incoming — входящее сообщение покупателя
type Incoming struct {
	Message   string
	Item      ItemInfo
	ChatID    string
	AccountID string
	UserID    string
	ItemID    string
}

// AccountSettings — снимок настроек аккаунта, читается на каждую операцию.
type AccountSettings struct {
	ai.AccountConfig

	CustomPrompts      map[string]string // intent|"classify" -> template
	MaxBargainRounds   int
	MaxDiscountPercent float64
	MaxDiscountAmount  float64
}

const (
	defaultMaxBargainRounds   = 3
	defaultMaxDiscountPercent = 10
	defaultMaxDiscountAmount  = 100
)

var ErrSettingsNotFound = errors.New("reply: settings not found")

// Repo — история диалогов
type Repo interface {
	AppendTurn(ctx context.Context, t *Turn) error
	GetHistory(ctx context.Context, chatID, accountID string, limit int) ([]Turn, error)
	CountTurns(ctx context.Context, chatID, accountID string, intent Intent, role Role) (int, error)
}

// SettingsRepo — настройки аккаунтов
type SettingsRepo interface {
	GetSettings(ctx context.Context, accountID string) (AccountSettings, error)
}

// ClientCache — управление кэшем клиентов модели
type ClientCache interface {
	Evict(accountID string)
	EvictAll()
}

// Service — оркестрация
type Service interface {
	GenerateReply(ctx context.Context, in *Incoming) (string, bool)
	IsEnabled(ctx context.Context, accountID string) bool
}
