package reply

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/reply", h.HandleReply)
	r.Get("/accounts/{accountID}/enabled", h.HandleEnabled)
	r.Post("/accounts/{accountID}/clients/evict", h.HandleEvict)
	r.Post("/clients/evict", h.HandleEvictAll)
}
