package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/comptoir-erp/comptoir-erp/internal/shared"
)

// RepositoryPort abstracts the document store.
type RepositoryPort interface {
	GetInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error)
	FinalizeInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error)
	GetPayment(ctx context.Context, companyID, id uuid.UUID) (Payment, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
}

// GenerationHooks receives document lifecycle events that should produce
// ledger entries.
type GenerationHooks interface {
	InvoiceFinalized(ctx context.Context, inv Invoice) error
	PaymentRecorded(ctx context.Context, p Payment) error
}

// AuditPort records document events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages invoice and payment lifecycle.
type Service struct {
	repo  RepositoryPort
	hooks GenerationHooks
	audit AuditPort
	log   *slog.Logger
	now   func() time.Time
}

// NewService constructs the document service.
func NewService(repo RepositoryPort, hooks GenerationHooks, audit AuditPort, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, hooks: hooks, audit: audit, log: log, now: time.Now}
}

// FinalizeInvoice freezes a draft invoice and triggers entry generation.
// Generation failures are logged, not returned; the pending scan retries
// them later.
func (s *Service) FinalizeInvoice(ctx context.Context, companyID, id uuid.UUID, actorID string) (Invoice, error) {
	inv, err := s.repo.FinalizeInvoice(ctx, companyID, id)
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, actorID, "invoice.finalize", "invoice", inv.ID, map[string]any{"invoice_number": inv.InvoiceNumber})
	if s.hooks != nil {
		if err := s.hooks.InvoiceFinalized(ctx, inv); err != nil {
			s.log.Warn("invoice entry generation failed", "invoice_id", inv.ID, "error", err)
		}
	}
	return s.repo.GetInvoice(ctx, companyID, id)
}

// RecordPaymentInput describes a payment to register.
type RecordPaymentInput struct {
	CompanyID    uuid.UUID
	ThirdPartyID uuid.UUID
	Direction    PaymentDirection
	Method       string
	Reference    string
	PaymentDate  time.Time
	Amount       float64
	Currency     string
	ActorID      string
}

// Validate checks the payment fields.
func (in RecordPaymentInput) Validate() error {
	if in.CompanyID == uuid.Nil || in.ThirdPartyID == uuid.Nil {
		return errors.New("documents: company and third party required")
	}
	if in.Direction != PaymentInbound && in.Direction != PaymentOutbound {
		return fmt.Errorf("documents: invalid direction %q", in.Direction)
	}
	if in.Amount <= 0 {
		return errors.New("documents: amount must be positive")
	}
	if in.Method == "" {
		return errors.New("documents: method required")
	}
	return nil
}

// RecordPayment registers a payment and triggers entry generation.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (Payment, error) {
	if err := in.Validate(); err != nil {
		return Payment{}, err
	}
	date := in.PaymentDate
	if date.IsZero() {
		date = s.now()
	}
	currency := in.Currency
	if currency == "" {
		currency = "EUR"
	}
	reference := in.Reference
	if reference == "" {
		reference = fmt.Sprintf("PAY-%d-%d", date.Year(), s.now().UnixMilli())
	}
	payment, err := s.repo.InsertPayment(ctx, Payment{
		CompanyID:    in.CompanyID,
		ThirdPartyID: in.ThirdPartyID,
		Direction:    in.Direction,
		Method:       in.Method,
		Reference:    reference,
		PaymentDate:  date,
		Amount:       in.Amount,
		Currency:     currency,
	})
	if err != nil {
		return Payment{}, err
	}
	s.record(ctx, in.ActorID, "payment.record", "payment", payment.ID, map[string]any{"reference": payment.Reference, "amount": payment.Amount})
	if s.hooks != nil {
		if err := s.hooks.PaymentRecorded(ctx, payment); err != nil {
			s.log.Warn("payment entry generation failed", "payment_id", payment.ID, "error", err)
		}
	}
	return s.repo.GetPayment(ctx, in.CompanyID, payment.ID)
}

// GetInvoice loads an invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error) {
	return s.repo.GetInvoice(ctx, companyID, id)
}

// GetPayment loads a payment.
func (s *Service) GetPayment(ctx context.Context, companyID, id uuid.UUID) (Payment, error) {
	return s.repo.GetPayment(ctx, companyID, id)
}

func (s *Service) record(ctx context.Context, actorID, action, entity string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: id.String(),
		Meta:     meta,
		At:       s.now(),
	})
}
