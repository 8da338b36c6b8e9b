package documents

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/comptoir-erp/comptoir-erp/internal/platform/httpx"
)

// RecordPaymentRequest is the payload for payment registration.
type RecordPaymentRequest struct {
	ThirdPartyID string  `json:"third_party_id" validate:"required,uuid"`
	Direction    string  `json:"direction" validate:"required,oneof=inbound outbound"`
	Method       string  `json:"method" validate:"required,oneof=card bank_transfer sepa check cash other"`
	Reference    string  `json:"reference" validate:"max=100"`
	PaymentDate  string  `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	Currency     string  `json:"currency" validate:"omitempty,len=3"`
}

// InvoiceResponse is the JSON shape of an invoice.
type InvoiceResponse struct {
	ID             string  `json:"id"`
	ThirdPartyID   string  `json:"third_party_id"`
	Kind           string  `json:"kind"`
	InvoiceNumber  string  `json:"invoice_number"`
	IssueDate      string  `json:"issue_date"`
	Currency       string  `json:"currency"`
	TotalHT        float64 `json:"total_ht"`
	TotalVAT       float64 `json:"total_vat"`
	TotalTTC       float64 `json:"total_ttc"`
	Status         string  `json:"status"`
	JournalEntryID string  `json:"journal_entry_id,omitempty"`
}

// PaymentResponse is the JSON shape of a payment.
type PaymentResponse struct {
	ID             string  `json:"id"`
	ThirdPartyID   string  `json:"third_party_id"`
	Direction      string  `json:"direction"`
	Method         string  `json:"method"`
	Reference      string  `json:"reference"`
	PaymentDate    string  `json:"payment_date"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	JournalEntryID string  `json:"journal_entry_id,omitempty"`
}

// Handler serves the invoice and payment API.
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

// Routes mounts the document endpoints under a company scope.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/invoices/{invoiceID}", h.getInvoice)
	r.Post("/invoices/{invoiceID}/finalize", h.finalizeInvoice)
	r.Post("/payments", h.recordPayment)
	r.Get("/payments/{paymentID}", h.getPayment)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, invoiceID, ok := scopedIDs(w, r, "invoiceID")
	if !ok {
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), companyID, invoiceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) finalizeInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, invoiceID, ok := scopedIDs(w, r, "invoiceID")
	if !ok {
		return
	}
	inv, err := h.svc.FinalizeInvoice(r.Context(), companyID, invoiceID, r.Header.Get("X-Actor-ID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "invalid company id")
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	thirdPartyID, err := uuid.Parse(req.ThirdPartyID)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", "invalid third_party_id")
		return
	}
	var date time.Time
	if req.PaymentDate != "" {
		date, _ = time.Parse("2006-01-02", req.PaymentDate)
	}
	payment, err := h.svc.RecordPayment(r.Context(), RecordPaymentInput{
		CompanyID:    companyID,
		ThirdPartyID: thirdPartyID,
		Direction:    PaymentDirection(req.Direction),
		Method:       req.Method,
		Reference:    req.Reference,
		PaymentDate:  date,
		Amount:       req.Amount,
		Currency:     req.Currency,
		ActorID:      r.Header.Get("X-Actor-ID"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(payment))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	companyID, paymentID, ok := scopedIDs(w, r, "paymentID")
	if !ok {
		return
	}
	payment, err := h.svc.GetPayment(r.Context(), companyID, paymentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvoiceNotFound), errors.Is(err, ErrPaymentNotFound):
		httpx.Problem(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, ErrAlreadyFinalized):
		httpx.Problem(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.log.Error("document request failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "")
	}
}

func scopedIDs(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, uuid.UUID, bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "invalid company id")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "invalid "+param)
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, id, true
}

func toInvoiceResponse(inv Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID.String(),
		ThirdPartyID:  inv.ThirdPartyID.String(),
		Kind:          string(inv.Kind),
		InvoiceNumber: inv.InvoiceNumber,
		IssueDate:     inv.IssueDate.Format("2006-01-02"),
		Currency:      inv.Currency,
		TotalHT:       inv.TotalHT,
		TotalVAT:      inv.TotalVAT,
		TotalTTC:      inv.TotalTTC,
		Status:        string(inv.Status),
	}
	if inv.JournalEntryID != nil {
		resp.JournalEntryID = inv.JournalEntryID.String()
	}
	return resp
}

func toPaymentResponse(p Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:           p.ID.String(),
		ThirdPartyID: p.ThirdPartyID.String(),
		Direction:    string(p.Direction),
		Method:       p.Method,
		Reference:    p.Reference,
		PaymentDate:  p.PaymentDate.Format("2006-01-02"),
		Amount:       p.Amount,
		Currency:     p.Currency,
	}
	if p.JournalEntryID != nil {
		resp.JournalEntryID = p.JournalEntryID.String()
	}
	return resp
}
