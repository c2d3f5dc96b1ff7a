package trialbalance

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes rate-limits report generation; the build scans the whole
// chart of accounts.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httprate.LimitByIP(30, time.Minute)).Get("/", h.Generate)
}
