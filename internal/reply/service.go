package reply

import (
	"context"
	"errors"
	"log"

	"github.com/Vovarama1992/xianyu-reply-engine/internal/ai"
)

const (
	historyLimit        = 20
	generateMaxTokens   = 2000
	generateTemperature = 0.7
)

type service struct {
	repo       Repo
	settings   SettingsRepo
	ai         ai.AI
	classifier *Classifier
	prompts    Prompts
}

func NewService(repo Repo, settings SettingsRepo, aiClient ai.AI, prompts Prompts) Service {
	return &service{
		repo:       repo,
		settings:   settings,
		ai:         aiClient,
		classifier: NewClassifier(aiClient, prompts),
		prompts:    prompts,
	}
}

func (s *service) IsEnabled(ctx context.Context, accountID string) bool {
	settings, ok := s.loadSettings(ctx, accountID)
	return ok && settings.Enabled
}

// GenerateReply returns the reply for one buyer message, or ok=false when
// nothing should be sent.
func (s *service) GenerateReply(ctx context.Context, in *Incoming) (string, bool) {
	settings, ok := s.loadSettings(ctx, in.AccountID)
	if !ok || !settings.Enabled {
		return "", false
	}

	log.Println("========== NEW MESSAGE ==========")
	log.Printf("[reply] account=%s chatId=%s text=%q", in.AccountID, in.ChatID, in.Message)

	// --------------------------------------------------
	// STEP 1 — INTENT
	// --------------------------------------------------

	intent := s.classifier.Classify(ctx, in.Message, settings)
	log.Printf("[reply] intent=%s account=%s", intent, in.AccountID)

	// --------------------------------------------------
	// STEP 2 — BARGAIN CAP
	// --------------------------------------------------

	rounds, err := s.repo.CountTurns(ctx, in.ChatID, in.AccountID, IntentPrice, RoleUser)
	if err != nil {
		log.Printf("[reply] count rounds failed chatId=%s: %v", in.ChatID, err)
		rounds = 0
	}

	if Decide(intent, rounds, settings.MaxBargainRounds) == Refuse {
		log.Printf("[reply] bargain cap reached (%d/%d), refusing", rounds, settings.MaxBargainRounds)
		s.persist(ctx, in, intent, RefusalReply)
		return RefusalReply, true
	}

	// --------------------------------------------------
	// STEP 3 — GENERATE
	// --------------------------------------------------

	history, err := s.repo.GetHistory(ctx, in.ChatID, in.AccountID, historyLimit)
	if err != nil {
		log.Printf("[reply] history failed chatId=%s: %v", in.ChatID, err)
		history = nil
	}

	msgs := []ai.Message{
		{Role: ai.RoleSystem, Text: s.prompts.System(intent, settings.CustomPrompts)},
		{Role: ai.RoleUser, Text: BuildUserPrompt(in.Item, history, Negotiation{
			Rounds:             rounds,
			MaxRounds:          settings.MaxBargainRounds,
			MaxDiscountPercent: settings.MaxDiscountPercent,
			MaxDiscountAmount:  settings.MaxDiscountAmount,
		}, in.Message)},
	}

	text, err := s.ai.Call(ctx, settings.AccountConfig, msgs, generateMaxTokens, generateTemperature)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyReply) {
			log.Printf("[reply] empty reply account=%s", in.AccountID)
		} else {
			log.Printf("[reply] generation failed account=%s: %v", in.AccountID, err)
		}
		return "", false
	}

	if err := ctx.Err(); err != nil {
		log.Printf("[reply] request abandoned, reply dropped chatId=%s: %v", in.ChatID, err)
		return "", false
	}

	// --------------------------------------------------
	// STEP 4 — PERSIST
	// --------------------------------------------------

	s.persist(ctx, in, intent, text)

	log.Printf("[reply] ok account=%s: %s", in.AccountID, short(text))
	return text, true
}

// persist stores the user turn and then the assistant turn. Failures are
// logged only: the reply is still returned. Without a stored user turn the
// assistant turn is skipped.
func (s *service) persist(ctx context.Context, in *Incoming, intent Intent, answer string) {
	for _, t := range []*Turn{
		{Role: RoleUser, Content: in.Message},
		{Role: RoleAssistant, Content: answer},
	} {
		t.ChatID = in.ChatID
		t.AccountID = in.AccountID
		t.UserID = in.UserID
		t.ItemID = in.ItemID
		t.Intent = intent
		if err := s.repo.AppendTurn(ctx, t); err != nil {
			log.Printf("[reply] save %s turn failed chatId=%s: %v", t.Role, in.ChatID, err)
			return
		}
	}
}

func (s *service) loadSettings(ctx context.Context, accountID string) (AccountSettings, bool) {
	settings, err := s.settings.GetSettings(ctx, accountID)
	if err != nil {
		if !errors.Is(err, ErrSettingsNotFound) {
			log.Printf("[reply] settings failed account=%s: %v", accountID, err)
		}
		return AccountSettings{}, false
	}
	return settings, true
}

func short(s string) string {
	r := []rune(s)
	if len(r) > 180 {
		return string(r[:180]) + "..."
	}
	return s
}
