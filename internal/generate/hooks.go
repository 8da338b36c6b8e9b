// Package generate wires document lifecycle events into the ledger: it
// resolves the accounts and journal a document needs, builds balanced
// postings, writes the entry, and links it back to the document.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/comptoir-erp/comptoir-erp/internal/accounting"
	"github.com/comptoir-erp/comptoir-erp/internal/documents"
	"github.com/comptoir-erp/comptoir-erp/internal/shared"
)

// TxRunner runs a closure inside an accounting write transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error
}

// EntryWriter persists entries inside a transaction.
type EntryWriter interface {
	WriteEntryTx(ctx context.Context, tx accounting.TxRepository, in accounting.WriteEntryInput) (accounting.JournalEntry, error)
}

// DocumentLinker stamps generated entries onto their source documents.
type DocumentLinker interface {
	LinkInvoiceEntry(ctx context.Context, invoiceID, entryID uuid.UUID) error
	LinkPaymentEntry(ctx context.Context, paymentID, entryID uuid.UUID) error
}

// Locker guards per-document generation critical sections.
type Locker interface {
	TryLock(ctx context.Context, documentID string) (bool, error)
	Unlock(ctx context.Context, documentID string)
}

// AuditPort records generation events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Hooks generates journal entries from finalized invoices and recorded
// payments.
type Hooks struct {
	repo     TxRunner
	writer   EntryWriter
	linker   DocumentLinker
	locker   Locker
	audit    AuditPort
	log      *slog.Logger
	accounts accounting.AccountResolver
	journals accounting.JournalResolver
	builder  accounting.PostingBuilder
	now      func() time.Time
}

// NewHooks constructs generation hooks.
func NewHooks(repo TxRunner, writer EntryWriter, linker DocumentLinker, locker Locker, audit AuditPort, log *slog.Logger) *Hooks {
	if log == nil {
		log = slog.Default()
	}
	return &Hooks{repo: repo, writer: writer, linker: linker, locker: locker, audit: audit, log: log, now: time.Now}
}

// WithNow overrides the clock for testing.
func (h *Hooks) WithNow(now func() time.Time) {
	if now != nil {
		h.now = now
	}
}

// InvoiceFinalized generates the ledger entry for a finalized invoice. Draft
// and already-linked invoices are skipped without error.
func (h *Hooks) InvoiceFinalized(ctx context.Context, inv documents.Invoice) error {
	if h == nil || h.repo == nil {
		return nil
	}
	if inv.Status != documents.InvoiceStatusFinalized {
		return nil
	}
	if inv.JournalEntryID != nil {
		return nil
	}
	if ok := h.tryLock(ctx, inv.ID); !ok {
		h.log.Debug("invoice generation already in flight", "invoice_id", inv.ID)
		return nil
	}
	defer h.unlock(ctx, inv.ID)

	var journalType accounting.JournalType
	var thirdPartyRole, tradeRole, vatRole accounting.AccountRole
	switch inv.Kind {
	case documents.InvoiceKindSale:
		journalType = accounting.JournalTypeSale
		thirdPartyRole = accounting.RoleCustomerReceivable
		tradeRole = accounting.RoleSalesRevenue
		vatRole = accounting.RoleVATCollected
	case documents.InvoiceKindPurchase:
		journalType = accounting.JournalTypePurchase
		thirdPartyRole = accounting.RoleSupplierPayable
		tradeRole = accounting.RolePurchaseExpense
		vatRole = accounting.RoleVATDeductible
	default:
		return fmt.Errorf("%w: invoice kind %q", accounting.ErrUnsupportedDocument, inv.Kind)
	}

	var entry accounting.JournalEntry
	err := h.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		journal, err := h.journals.ResolveJournal(ctx, tx, inv.CompanyID, journalType)
		if err != nil {
			return err
		}
		tp, err := tx.GetThirdParty(ctx, inv.CompanyID, inv.ThirdPartyID)
		if err != nil {
			return err
		}
		thirdPartyAcc, err := h.accounts.ResolveThirdPartyAccount(ctx, tx, inv.CompanyID, inv.ThirdPartyID, thirdPartyRole)
		if err != nil {
			return err
		}
		tradeAcc, err := h.accounts.ResolveDefaultAccount(ctx, tx, inv.CompanyID, tradeRole)
		if err != nil {
			return err
		}
		vatAcc, err := h.accounts.ResolveDefaultAccount(ctx, tx, inv.CompanyID, vatRole)
		if err != nil {
			return err
		}

		input := accounting.InvoicePostingInput{
			InvoiceNumber:  inv.InvoiceNumber,
			ThirdPartyName: tp.Name,
			ThirdParty:     thirdPartyAcc,
			Trade:          tradeAcc,
			VAT:            vatAcc,
			Lines:          invoiceLineAmounts(inv),
			TotalTTC:       inv.TotalTTC,
		}
		var postings []accounting.Posting
		if inv.Kind == documents.InvoiceKindSale {
			postings, err = h.builder.SaleInvoice(input)
		} else {
			postings, err = h.builder.PurchaseInvoice(input)
		}
		if err != nil {
			return err
		}
		entry, err = h.writer.WriteEntryTx(ctx, tx, accounting.WriteEntryInput{
			CompanyID:       inv.CompanyID,
			Journal:         journal,
			EntryDate:       inv.IssueDate,
			Description:     fmt.Sprintf("Facture %s - %s", inv.InvoiceNumber, tp.Name),
			ReferenceNumber: inv.InvoiceNumber,
			Currency:        inv.Currency,
			Postings:        postings,
		})
		return err
	})
	if err != nil {
		return err
	}

	h.linkInvoice(ctx, inv, entry)
	h.record(ctx, "invoice", inv.ID, entry)
	return nil
}

// PaymentRecorded generates the ledger entry for a payment. Already-linked
// payments are skipped without error.
func (h *Hooks) PaymentRecorded(ctx context.Context, p documents.Payment) error {
	if h == nil || h.repo == nil {
		return nil
	}
	if p.JournalEntryID != nil {
		return nil
	}
	if p.Amount <= 0 {
		return fmt.Errorf("%w: payment %s has no amount", accounting.ErrUnsupportedDocument, p.ID)
	}
	if ok := h.tryLock(ctx, p.ID); !ok {
		h.log.Debug("payment generation already in flight", "payment_id", p.ID)
		return nil
	}
	defer h.unlock(ctx, p.ID)

	method := accounting.PaymentMethod(p.Method)
	journalType := accounting.JournalTypeBank
	if method == accounting.PaymentMethodCash {
		journalType = accounting.JournalTypeCash
	}
	var entry accounting.JournalEntry
	err := h.repo.WithTx(ctx, func(ctx context.Context, tx accounting.TxRepository) error {
		journal, err := h.journals.ResolveJournal(ctx, tx, p.CompanyID, journalType)
		if err != nil {
			return err
		}
		tp, err := tx.GetThirdParty(ctx, p.CompanyID, p.ThirdPartyID)
		if err != nil {
			return err
		}
		cashAcc, err := h.accounts.ResolveCashAccount(ctx, tx, p.CompanyID, method)
		if err != nil {
			return err
		}

		input := accounting.PaymentPostingInput{
			Reference:      p.Reference,
			ThirdPartyName: tp.Name,
			Cash:           cashAcc,
			Amount:         p.Amount,
		}
		// Inbound receipts settle the customer receivable. Outbound payments
		// are booked straight to the default expense account, not routed
		// through the supplier payable.
		if p.Direction == documents.PaymentInbound {
			input.ThirdParty, err = h.accounts.ResolveThirdPartyAccount(ctx, tx, p.CompanyID, p.ThirdPartyID, accounting.RoleCustomerReceivable)
		} else {
			input.Expense, err = h.accounts.ResolveDefaultAccount(ctx, tx, p.CompanyID, accounting.RolePurchaseExpense)
		}
		if err != nil {
			return err
		}
		var postings []accounting.Posting
		if p.Direction == documents.PaymentInbound {
			postings, err = h.builder.CustomerPayment(input)
		} else {
			postings, err = h.builder.SupplierPayment(input)
		}
		if err != nil {
			return err
		}
		entry, err = h.writer.WriteEntryTx(ctx, tx, accounting.WriteEntryInput{
			CompanyID:       p.CompanyID,
			Journal:         journal,
			EntryDate:       p.PaymentDate,
			Description:     postings[0].Description,
			ReferenceNumber: p.Reference,
			Currency:        p.Currency,
			Postings:        postings,
		})
		return err
	})
	if err != nil {
		return err
	}

	h.linkPayment(ctx, p, entry)
	h.record(ctx, "payment", p.ID, entry)
	return nil
}

// linkInvoice stamps the entry onto the invoice. The entry already exists at
// this point, so a link failure is logged and left for reconciliation rather
// than failing generation.
func (h *Hooks) linkInvoice(ctx context.Context, inv documents.Invoice, entry accounting.JournalEntry) {
	if h.linker == nil {
		return
	}
	if err := h.linker.LinkInvoiceEntry(ctx, inv.ID, entry.ID); err != nil {
		if errors.Is(err, documents.ErrAlreadyLinked) {
			h.log.Warn("invoice linked concurrently, entry left unlinked", "invoice_id", inv.ID, "entry_id", entry.ID)
			return
		}
		h.log.Error("invoice link failed", "invoice_id", inv.ID, "entry_id", entry.ID, "error", err)
	}
}

func (h *Hooks) linkPayment(ctx context.Context, p documents.Payment, entry accounting.JournalEntry) {
	if h.linker == nil {
		return
	}
	if err := h.linker.LinkPaymentEntry(ctx, p.ID, entry.ID); err != nil {
		if errors.Is(err, documents.ErrAlreadyLinked) {
			h.log.Warn("payment linked concurrently, entry left unlinked", "payment_id", p.ID, "entry_id", entry.ID)
			return
		}
		h.log.Error("payment link failed", "payment_id", p.ID, "entry_id", entry.ID, "error", err)
	}
}

func (h *Hooks) tryLock(ctx context.Context, documentID uuid.UUID) bool {
	if h.locker == nil {
		return true
	}
	ok, err := h.locker.TryLock(ctx, documentID.String())
	if err != nil {
		h.log.Warn("document lock unavailable", "document_id", documentID, "error", err)
	}
	return ok
}

func (h *Hooks) unlock(ctx context.Context, documentID uuid.UUID) {
	if h.locker == nil {
		return
	}
	h.locker.Unlock(ctx, documentID.String())
}

func (h *Hooks) record(ctx context.Context, sourceKind string, sourceID uuid.UUID, entry accounting.JournalEntry) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Record(ctx, shared.AuditLog{
		Action:   "journal_entry.generate",
		Entity:   "journal_entry",
		EntityID: entry.ID.String(),
		Meta: map[string]any{
			"entry_number": entry.EntryNumber,
			"source_kind":  sourceKind,
			"source_id":    sourceID.String(),
			"total":        entry.TotalAmount,
		},
		At: h.now(),
	})
}

// invoiceLineAmounts reduces invoice lines to posting amounts, recomputing
// each line from quantity, unit price and discount. A header-only invoice
// becomes a single line carrying the invoice totals.
func invoiceLineAmounts(inv documents.Invoice) []accounting.LineAmount {
	if len(inv.Lines) == 0 {
		return []accounting.LineAmount{{
			TotalHT:  inv.TotalHT,
			TotalVAT: inv.TotalVAT,
		}}
	}
	amounts := make([]accounting.LineAmount, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		amounts = append(amounts, accounting.LineAmount{
			TotalHT:  line.ExclTax(),
			TotalVAT: line.Tax(),
		})
	}
	return amounts
}
