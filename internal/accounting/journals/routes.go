package journals

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Post)
	r.Post("/drafts", h.SaveDraft)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/post", h.PostDraft)
	r.Post("/{id}/reverse", h.Reverse)
}
