package reply

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc     Service
	clients ClientCache
}

func NewHandler(svc Service, clients ClientCache) *Handler {
	return &Handler{svc: svc, clients: clients}
}

// HandleReply — входящее сообщение покупателя
func (h *Handler) HandleReply(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message   string   `json:"message"`
		Item      ItemInfo `json:"item"`
		ChatID    string   `json:"chat_id"`
		AccountID string   `json:"account_id"`
		UserID    string   `json:"user_id"`
		ItemID    string   `json:"item_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if payload.Message == "" || payload.ChatID == "" || payload.AccountID == "" {
		http.Error(w, "missing message, chat_id or account_id", http.StatusBadRequest)
		return
	}

	text, ok := h.svc.GenerateReply(r.Context(), &Incoming{
		Message:   payload.Message,
		Item:      payload.Item,
		ChatID:    payload.ChatID,
		AccountID: payload.AccountID,
		UserID:    payload.UserID,
		ItemID:    payload.ItemID,
	})
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, map[string]string{"reply": text})
}

func (h *Handler) HandleEnabled(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	writeJSON(w, map[string]bool{"enabled": h.svc.IsEnabled(r.Context(), accountID)})
}

// HandleEvict сбрасывает клиент аккаунта после смены настроек
func (h *Handler) HandleEvict(w http.ResponseWriter, r *http.Request) {
	h.clients.Evict(chi.URLParam(r, "accountID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleEvictAll(w http.ResponseWriter, _ *http.Request) {
	h.clients.EvictAll()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] write response: %v", err)
	}
}
