package trialbalance

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/medledger-hq/medledger/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	yearID, err := strconv.ParseInt(q.Get("financial_year_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "financial_year_id is required")
		return
	}

	query := Query{
		FinancialYearID: yearID,
		ExcludeZero:     q.Get("exclude_zero") == "true",
		GroupByType:     q.Get("group_by_type") == "true",
	}
	if v := q.Get("as_of"); v != "" {
		if query.AsOf, err = time.Parse("2006-01-02", v); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
			return
		}
	}

	tb, err := h.service.Generate(r.Context(), query)
	if err != nil {
		h.logger.Error("generate trial balance", slog.Any("error", err), slog.Int64("financial_year_id", yearID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}
