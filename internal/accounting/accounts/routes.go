package accounts

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/tree", h.Tree)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/balance", h.Balance)
	r.Patch("/{id}", h.Update)
	r.Post("/{id}/deactivate", h.Deactivate)
}
