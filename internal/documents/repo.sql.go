package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists invoices and payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, company_id, third_party_id, kind, invoice_number, issue_date, currency, total_ht, total_vat, total_ttc, status, journal_entry_id, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.ThirdPartyID, &inv.Kind, &inv.InvoiceNumber, &inv.IssueDate, &inv.Currency,
		&inv.TotalHT, &inv.TotalVAT, &inv.TotalTTC, &inv.Status, &inv.JournalEntryID, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, err
}

// GetInvoice loads an invoice with its lines.
func (r *Repository) GetInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE company_id=$1 AND id=$2`, companyID, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, description, quantity, unit_price, discount_percent, vat_rate, total_ht, total_vat, line_order
FROM invoice_lines WHERE invoice_id=$1 ORDER BY line_order`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Quantity, &l.UnitPrice, &l.DiscountPercent, &l.VATRate, &l.TotalHT, &l.TotalVAT, &l.LineOrder); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return inv, rows.Err()
}

// FinalizeInvoice transitions a draft invoice to finalized and returns it.
func (r *Repository) FinalizeInvoice(ctx context.Context, companyID, id uuid.UUID) (Invoice, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET status='finalized', updated_at=NOW() WHERE company_id=$1 AND id=$2 AND status='draft'`, companyID, id)
	if err != nil {
		return Invoice{}, err
	}
	if tag.RowsAffected() == 0 {
		inv, err := r.GetInvoice(ctx, companyID, id)
		if err != nil {
			return Invoice{}, err
		}
		return Invoice{}, fmt.Errorf("%w: %s", ErrAlreadyFinalized, inv.InvoiceNumber)
	}
	return r.GetInvoice(ctx, companyID, id)
}

// LinkInvoiceEntry records the generated entry on an invoice. The update is
// conditional on journal_entry_id still being null, which makes linking the
// idempotency point for entry generation.
func (r *Repository) LinkInvoiceEntry(ctx context.Context, invoiceID, entryID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET journal_entry_id=$2, updated_at=NOW() WHERE id=$1 AND journal_entry_id IS NULL`, invoiceID, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyLinked
	}
	return nil
}

// ListPendingInvoices returns finalized invoices that still lack an entry.
func (r *Repository) ListPendingInvoices(ctx context.Context, companyID uuid.UUID, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE company_id=$1 AND status='finalized' AND journal_entry_id IS NULL ORDER BY issue_date LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// ListPendingCompanies returns the companies that have at least one document
// awaiting entry generation.
func (r *Repository) ListPendingCompanies(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT company_id FROM invoices WHERE status='finalized' AND journal_entry_id IS NULL
UNION SELECT company_id FROM payments WHERE journal_entry_id IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const paymentColumns = `id, company_id, third_party_id, direction, method, reference, payment_date, amount, currency, journal_entry_id, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.CompanyID, &p.ThirdPartyID, &p.Direction, &p.Method, &p.Reference, &p.PaymentDate,
		&p.Amount, &p.Currency, &p.JournalEntryID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrPaymentNotFound
	}
	return p, err
}

// GetPayment loads a payment.
func (r *Repository) GetPayment(ctx context.Context, companyID, id uuid.UUID) (Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND id=$2`, companyID, id)
	return scanPayment(row)
}

// InsertPayment persists a new payment.
func (r *Repository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO payments (company_id, third_party_id, direction, method, reference, payment_date, amount, currency)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+paymentColumns,
		p.CompanyID, p.ThirdPartyID, p.Direction, p.Method, p.Reference, p.PaymentDate, fmt.Sprintf("%.2f", p.Amount), p.Currency)
	return scanPayment(row)
}

// LinkPaymentEntry records the generated entry on a payment, conditional on
// journal_entry_id still being null.
func (r *Repository) LinkPaymentEntry(ctx context.Context, paymentID, entryID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payments SET journal_entry_id=$2, updated_at=NOW() WHERE id=$1 AND journal_entry_id IS NULL`, paymentID, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyLinked
	}
	return nil
}

// ListPendingPayments returns payments that still lack an entry.
func (r *Repository) ListPendingPayments(ctx context.Context, companyID uuid.UUID, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments
WHERE company_id=$1 AND journal_entry_id IS NULL ORDER BY payment_date LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
