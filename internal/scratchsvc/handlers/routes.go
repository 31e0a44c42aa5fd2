package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"

	"github.com/avvvet/scratch-services/internal/metrics"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Get("/health", h.HealthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)
			r.Use(h.Holder)

			r.Get("/balance", h.GetBalance)

			r.Route("/cards", func(r chi.Router) {
				r.Post("/", h.PurchaseCard)
				r.Get("/", h.ListCards)
				r.Get("/{id}", h.GetCard)
				r.Get("/{id}/verify", h.VerifyCard)
				r.Post("/{id}/scratch", h.ScratchArea)
				r.Post("/{id}/scratch-all", h.ScratchAll)
				r.Post("/{id}/claim", h.ClaimPrize)
			})
		})
	})
}
