package journals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/medledger-hq/medledger/internal/platform/httpx"
	"github.com/medledger-hq/medledger/internal/shared"
)

type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	idempotency *shared.IdempotencyStore
}

func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), idempotency: idempotency}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entries, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list journal entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"pagination": shared.NewPagination(req.Offset/req.Limit+1, req.Limit, total),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// Post accepts an Idempotency-Key header; replays with a seen key are
// rejected before the posting transaction starts.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	var in PostingInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "journals"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "request already processed")
				return
			}
			httpx.RespondError(w, err)
			return
		}
	}
	entry, err := h.service.Post(r.Context(), in)
	if err != nil {
		// Nothing was posted, so the key must not block a retry.
		if key != "" {
			if relErr := h.idempotency.Release(r.Context(), key); relErr != nil {
				h.logger.Error("release idempotency key", slog.Any("error", relErr))
			}
		}
		h.logger.Error("post journal entry",
			slog.Any("error", err),
			slog.String("reference_type", in.ReferenceType))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var in PostingInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.SaveDraft(r.Context(), in)
	if err != nil {
		h.logger.Error("save journal draft", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) PostDraft(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var body struct {
		ActorID int64 `json:"actor_id"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.PostDraft(r.Context(), id, body.ActorID)
	if err != nil {
		h.logger.Error("post journal draft", slog.Any("error", err), slog.Int64("entry_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var in ReverseInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.EntryID = id
	entry, err := h.service.Reverse(r.Context(), in)
	if err != nil {
		h.logger.Error("reverse journal entry", slog.Any("error", err), slog.Int64("entry_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func parseListRequest(r *http.Request) (ListJournalsRequest, error) {
	var req ListJournalsRequest
	q := r.URL.Query()

	if v := q.Get("financial_year_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, err
		}
		req.FinancialYearID = &id
	}
	if v := q.Get("status"); v != "" {
		status := EntryStatus(v)
		req.Status = &status
	}
	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, err
		}
		req.AccountID = &id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return req, err
		}
		req.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return req, err
		}
		req.To = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, err
		}
		req.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, err
		}
		req.Offset = n
	}
	return req, nil
}
