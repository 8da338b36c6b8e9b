package generate

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/comptoir-erp/comptoir-erp/internal/documents"
)

// PendingSource lists documents that still lack a ledger entry.
type PendingSource interface {
	ListPendingCompanies(ctx context.Context) ([]uuid.UUID, error)
	ListPendingInvoices(ctx context.Context, companyID uuid.UUID, limit int) ([]documents.Invoice, error)
	GetInvoice(ctx context.Context, companyID, id uuid.UUID) (documents.Invoice, error)
	ListPendingPayments(ctx context.Context, companyID uuid.UUID, limit int) ([]documents.Payment, error)
}

const pendingConcurrency = 4

// GeneratePending sweeps finalized invoices and payments without an entry
// and generates one for each. Individual failures are logged and skipped so
// one bad document does not stall the batch. It returns the number of
// documents that produced an entry.
func (h *Hooks) GeneratePending(ctx context.Context, source PendingSource, companyID uuid.UUID, limit int) (int, error) {
	invoices, err := source.ListPendingInvoices(ctx, companyID, limit)
	if err != nil {
		return 0, err
	}
	payments, err := source.ListPendingPayments(ctx, companyID, limit)
	if err != nil {
		return 0, err
	}

	var generated atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pendingConcurrency)
	for _, inv := range invoices {
		g.Go(func() error {
			// Headers listed above carry no lines, reload in full.
			full, err := source.GetInvoice(ctx, inv.CompanyID, inv.ID)
			if err != nil {
				h.log.Error("pending invoice reload failed", "invoice_id", inv.ID, "error", err)
				return nil
			}
			if err := h.InvoiceFinalized(ctx, full); err != nil {
				h.log.Error("pending invoice generation failed", "invoice_id", inv.ID, "error", err)
				return nil
			}
			generated.Add(1)
			return nil
		})
	}
	for _, p := range payments {
		g.Go(func() error {
			if err := h.PaymentRecorded(ctx, p); err != nil {
				h.log.Error("pending payment generation failed", "payment_id", p.ID, "error", err)
				return nil
			}
			generated.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(generated.Load()), err
	}
	return int(generated.Load()), nil
}

// GeneratePendingAll runs GeneratePending for every company that has pending
// documents. Companies are swept sequentially, documents within a company
// concurrently.
func (h *Hooks) GeneratePendingAll(ctx context.Context, source PendingSource, limit int) (int, error) {
	companies, err := source.ListPendingCompanies(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, companyID := range companies {
		n, err := h.GeneratePending(ctx, source, companyID, limit)
		total += n
		if err != nil {
			h.log.Error("pending sweep failed for company", "company_id", companyID, "error", err)
		}
	}
	return total, nil
}
