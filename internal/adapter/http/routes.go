package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/BotForge/internal/adapter/ws"
	"github.com/Strob0t/BotForge/internal/middleware"
)

// MountRoutes registers the API on the given chi router. The turn endpoint is
// the public surface the chat widget hits; everything else is the operator
// dashboard API.
func MountRoutes(r chi.Router, h *Handlers, hub *ws.Hub, limiter *middleware.RateLimiter) {
	r.Get("/healthz", h.Health)

	// Dashboard event stream.
	r.Get("/ws", hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Chatbots
		r.Post("/chatbots", h.CreateChatbot)
		r.Get("/chatbots", h.ListChatbots)
		r.Get("/chatbots/{id}", handleGet(h.chatbots.Get, "chatbot not found"))
		r.Put("/chatbots/{id}", h.UpdateChatbot)
		r.Delete("/chatbots/{id}", h.DeleteChatbot)
		r.Post("/chatbots/{id}/activate", h.ActivateChatbot)
		r.Post("/chatbots/{id}/deactivate", h.DeactivateChatbot)

		// Knowledge
		r.Post("/chatbots/{id}/documents", h.IngestDocument)
		r.Get("/chatbots/{id}/documents", handleListByParam("id", h.knowledge.ListDocuments, "chatbot not found"))
		r.Delete("/chatbots/{id}/documents/{docID}", h.DeleteDocument)
		r.Get("/chatbots/{id}/search", h.SearchKnowledge)
		r.Post("/chatbots/{id}/sweep", h.SweepOrphans)

		// Usage
		r.Get("/chatbots/{id}/usage", h.GetUsage)

		// Turns: the widget-facing endpoint, rate limited per client IP.
		r.With(limiter.Handler).Post("/chatbots/{id}/turns", h.StartTurn)

		// Channel sync
		r.Post("/integrations/{id}/sync", h.StartSync)
		r.Get("/integrations/{id}/sync", h.SyncStatus)
	})
}
