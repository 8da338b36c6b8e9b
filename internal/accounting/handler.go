package accounting

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/comptoir-erp/comptoir-erp/internal/platform/httpx"
	"github.com/comptoir-erp/comptoir-erp/internal/shared"
)

// Handler serves the journal entry API.
type Handler struct {
	svc      *Service
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler constructs Handler.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, validate: validator.New(), log: log}
}

// Routes mounts the entry endpoints under a company scope.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/entries", h.createEntry)
	r.Get("/entries", h.listEntries)
	r.Get("/entries/{entryID}", h.getEntry)
	r.Post("/entries/{entryID}/post", h.postEntry)
	r.Patch("/entries/{entryID}/status", h.updateEntryStatus)
	r.Delete("/entries/{entryID}", h.deleteEntry)
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyFromRequest(w, r)
	if !ok {
		return
	}
	var req CreateEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	journalID, err := uuid.Parse(req.JournalID)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", "invalid journal_id")
		return
	}
	var date time.Time
	if req.EntryDate != "" {
		date, _ = time.Parse("2006-01-02", req.EntryDate)
	}
	postings := make([]Posting, 0, len(req.Lines))
	for _, line := range req.Lines {
		accountID, err := uuid.Parse(line.AccountID)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", "invalid account_id")
			return
		}
		postings = append(postings, Posting{
			AccountID:   accountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	entry, err := h.svc.CreateEntry(r.Context(), CreateEntryInput{
		CompanyID:       companyID,
		JournalID:       journalID,
		EntryDate:       date,
		Description:     req.Description,
		ReferenceNumber: req.ReferenceNumber,
		Currency:        req.Currency,
		Postings:        postings,
		ActorID:         r.Header.Get("X-Actor-ID"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyFromRequest(w, r)
	if !ok {
		return
	}
	filter := EntryFilter{}
	q := r.URL.Query()
	if v := q.Get("journal_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid filter", "invalid journal_id")
			return
		}
		filter.JournalID = &id
	}
	if v := q.Get("status"); v != "" {
		filter.Status = EntryStatus(v)
	}
	filter.Search = q.Get("q")
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.To = &t
		}
	}
	filter.Limit = intQuery(q.Get("limit"))
	filter.Offset = intQuery(q.Get("offset"))

	entries, total, err := h.svc.ListEntries(r.Context(), companyID, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := EntryListResponse{Entries: make([]EntryResponse, 0, len(entries)), Total: total}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyFromRequest(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "invalid entry id")
		return
	}
	entry, err := h.svc.GetEntry(r.Context(), companyID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyFromRequest(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "invalid entry id")
		return
	}
	entry, err := h.svc.SetEntryStatus(r.Context(), companyID, id, EntryStatusPosted, r.Header.Get("X-Actor-ID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) updateEntryStatus(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyFromRequest(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "invalid entry id")
		return
	}
	var req UpdateEntryStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	entry, err := h.svc.SetEntryStatus(r.Context(), companyID, id, EntryStatus(req.Status), r.Header.Get("X-Actor-ID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyFromRequest(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "invalid entry id")
		return
	}
	if err := h.svc.DeleteEntry(r.Context(), companyID, id, r.Header.Get("X-Actor-ID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, ErrEntryNotDraft):
		httpx.Problem(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ErrInvalidEntryStatus), errors.Is(err, ErrUnbalancedEntry):
		httpx.Problem(w, http.StatusUnprocessableEntity, "unbalanced entry", err.Error())
	default:
		h.log.Error("entry request failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
	}
}

func companyFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "invalid company id")
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
