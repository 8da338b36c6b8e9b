package documents

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// InvoiceKind distinguishes sale from purchase invoices.
type InvoiceKind string

const (
	InvoiceKindSale     InvoiceKind = "sale"
	InvoiceKindPurchase InvoiceKind = "purchase"
)

// InvoiceStatus enumerates invoice lifecycle values.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusFinalized InvoiceStatus = "finalized"
)

// PaymentDirection tells whether money comes in or goes out.
type PaymentDirection string

const (
	PaymentInbound  PaymentDirection = "inbound"
	PaymentOutbound PaymentDirection = "outbound"
)

// Invoice is a sale or purchase document. JournalEntryID is set once the
// ledger entry has been generated for it.
type Invoice struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	ThirdPartyID   uuid.UUID
	Kind           InvoiceKind
	InvoiceNumber  string
	IssueDate      time.Time
	Currency       string
	TotalHT        float64
	TotalVAT       float64
	TotalTTC       float64
	Status         InvoiceStatus
	JournalEntryID *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []InvoiceLine
}

// InvoiceLine is one invoice position. DiscountPercent is a percentage
// between 0 and 100 applied to the gross line amount. TotalHT and TotalVAT
// are the stored snapshots; postings recompute from quantity, unit price and
// discount so a stale snapshot cannot leak into the ledger.
type InvoiceLine struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	Description     string
	Quantity        float64
	UnitPrice       float64
	DiscountPercent float64
	VATRate         float64
	TotalHT         float64
	TotalVAT        float64
	LineOrder       int
}

// ExclTax is the discounted tax-exclusive line amount, quantity times unit
// price less the discount. Amount-only lines, recorded without quantity or
// unit price, keep their stored total.
func (l InvoiceLine) ExclTax() float64 {
	if l.Quantity == 0 && l.UnitPrice == 0 {
		return l.TotalHT
	}
	return l.Quantity * l.UnitPrice * (1 - l.DiscountPercent/100)
}

// Tax is the VAT owed on the discounted line amount.
func (l InvoiceLine) Tax() float64 {
	if l.Quantity == 0 && l.UnitPrice == 0 {
		return l.TotalVAT
	}
	return l.ExclTax() * l.VATRate / 100
}

// Payment is an inbound or outbound settlement. JournalEntryID is set once
// the ledger entry has been generated for it.
type Payment struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	ThirdPartyID   uuid.UUID
	Direction      PaymentDirection
	Method         string
	Reference      string
	PaymentDate    time.Time
	Amount         float64
	Currency       string
	JournalEntryID *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var (
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = errors.New("documents: invoice not found")
	// ErrPaymentNotFound indicates a missing payment.
	ErrPaymentNotFound = errors.New("documents: payment not found")
	// ErrAlreadyLinked indicates the document already carries a journal
	// entry reference.
	ErrAlreadyLinked = errors.New("documents: journal entry already linked")
	// ErrAlreadyFinalized indicates a finalize on a non-draft invoice.
	ErrAlreadyFinalized = errors.New("documents: invoice already finalized")
)
