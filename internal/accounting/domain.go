package accounting

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// BalanceTolerance is the maximum accepted |Σdebit − Σcredit| for an entry.
const BalanceTolerance = 0.01

// DefaultCurrency is applied when a document carries no currency.
const DefaultCurrency = "EUR"

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeAuxiliary AccountType = "auxiliary"
)

// JournalType enumerates journal categories.
type JournalType string

const (
	JournalTypeSale          JournalType = "sale"
	JournalTypePurchase      JournalType = "purchase"
	JournalTypeBank          JournalType = "bank"
	JournalTypeCash          JournalType = "cash"
	JournalTypeMiscellaneous JournalType = "miscellaneous"
)

// EntryStatus enumerates journal entry lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft  EntryStatus = "draft"
	EntryStatusPosted EntryStatus = "posted"
)

// PaymentMethod enumerates supported settlement instruments.
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodSEPA         PaymentMethod = "sepa"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodOther        PaymentMethod = "other"
)

// Account models a chart-of-accounts row. (company_id, account_number) is
// unique in the store.
type Account struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	AccountNumber string
	AccountName   string
	Type          AccountType
	Class         int
	IsDetail      bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Journal models an accounting journal.
type Journal struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Code      string
	Name      string
	Type      JournalType
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ThirdParty is a customer or supplier referenced by documents. AccountID
// caches the ledger account resolved for it.
type ThirdParty struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Name      string
	Code      string
	AccountID *uuid.UUID
}

// Posting is one debit-or-credit line of a journal entry, before persistence.
// Exactly one of Debit/Credit is non-zero.
type Posting struct {
	AccountID     uuid.UUID
	AccountNumber string
	Debit         float64
	Credit        float64
	Description   string
}

// JournalEntry is the persisted entry header plus its lines.
type JournalEntry struct {
	ID              uuid.UUID
	CompanyID       uuid.UUID
	JournalID       uuid.UUID
	EntryNumber     string
	EntryDate       time.Time
	Description     string
	ReferenceNumber string
	Status          EntryStatus
	TotalAmount     float64
	Currency        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []EntryLine
}

// EntryLine is a persisted posting, ordered within its entry.
type EntryLine struct {
	ID          uuid.UUID
	EntryID     uuid.UUID
	AccountID   uuid.UUID
	Debit       float64
	Credit      float64
	Description string
	LineOrder   int
}

// AccountRole names the semantic purpose an account is resolved for.
type AccountRole string

const (
	RoleCustomerReceivable AccountRole = "customer_receivable"
	RoleSupplierPayable    AccountRole = "supplier_payable"
	RoleSalesRevenue       AccountRole = "sales_revenue"
	RolePurchaseExpense    AccountRole = "purchase_expense"
	RoleVATCollected       AccountRole = "vat_collected"
	RoleVATDeductible      AccountRole = "vat_deductible"
)

// roleSpec describes how an account for a given role is numbered and created.
// A fixed Number means fetch-or-create; an empty Number with a Prefix means
// per-third-party dynamic numbering under that prefix.
type roleSpec struct {
	Number string
	Prefix string
	Name   string
	Type   AccountType
	Class  int
}

var roleSpecs = map[AccountRole]roleSpec{
	RoleCustomerReceivable: {Prefix: "411", Name: "Clients", Type: AccountTypeAsset, Class: 4},
	RoleSupplierPayable:    {Prefix: "401", Name: "Fournisseurs", Type: AccountTypeLiability, Class: 4},
	RoleSalesRevenue:       {Number: "707000", Name: "Ventes de marchandises", Type: AccountTypeRevenue, Class: 7},
	RolePurchaseExpense:    {Number: "607000", Name: "Achats de marchandises", Type: AccountTypeExpense, Class: 6},
	RoleVATCollected:       {Number: "44571", Name: "TVA collectée", Type: AccountTypeLiability, Class: 4},
	RoleVATDeductible:      {Number: "44566", Name: "TVA déductible", Type: AccountTypeAsset, Class: 4},
}

// cashAccountSpec maps a payment method to its bank or cash account.
type cashAccountSpec struct {
	Number string
	Name   string
}

var cashAccounts = map[PaymentMethod]cashAccountSpec{
	PaymentMethodCard:         {Number: "512000", Name: "Banque"},
	PaymentMethodBankTransfer: {Number: "512001", Name: "Banque - virements"},
	PaymentMethodSEPA:         {Number: "512001", Name: "Banque - virements"},
	PaymentMethodCheck:        {Number: "512002", Name: "Banque - chèques"},
	PaymentMethodCash:         {Number: "530000", Name: "Caisse"},
	PaymentMethodOther:        {Number: "512000", Name: "Banque"},
}

// journalSpec holds the fixed code/name used when a journal must be created.
type journalSpec struct {
	Code string
	Name string
}

var journalSpecs = map[JournalType]journalSpec{
	JournalTypeSale:          {Code: "VE", Name: "Journal des ventes"},
	JournalTypePurchase:      {Code: "AC", Name: "Journal des achats"},
	JournalTypeBank:          {Code: "BQ", Name: "Journal de banque"},
	JournalTypeCash:          {Code: "CA", Name: "Journal de caisse"},
	JournalTypeMiscellaneous: {Code: "OD", Name: "Opérations diverses"},
}

var (
	// ErrAccountResolution indicates a required account could not be
	// fetched or created.
	ErrAccountResolution = errors.New("accounting: account resolution failed")
	// ErrJournalResolution indicates a required journal could not be
	// fetched or created; the operator should create it manually.
	ErrJournalResolution = errors.New("accounting: journal resolution failed")
	// ErrThirdPartyNotFound indicates the document references an unknown
	// third party.
	ErrThirdPartyNotFound = errors.New("accounting: third party not found")
	// ErrUnbalancedEntry indicates debits and credits do not balance.
	ErrUnbalancedEntry = errors.New("accounting: entry debits and credits must balance")
	// ErrUnsupportedDocument indicates a document kind with no posting
	// strategy.
	ErrUnsupportedDocument = errors.New("accounting: unsupported document type")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("accounting: journal entry not found")
	// ErrEntryNotDraft indicates a mutation reserved to draft entries.
	ErrEntryNotDraft = errors.New("accounting: journal entry is not draft")
	// ErrInvalidEntryStatus indicates an unknown target status.
	ErrInvalidEntryStatus = errors.New("accounting: invalid entry status")
)

// ValidatePostings ensures each posting is one-sided and the set balances
// within BalanceTolerance.
func ValidatePostings(postings []Posting) error {
	if len(postings) < 2 {
		return errors.New("accounting: entry requires at least two postings")
	}
	var debit, credit float64
	for idx, p := range postings {
		if p.AccountID == uuid.Nil {
			return fmt.Errorf("accounting: posting %d missing account", idx)
		}
		if p.Debit < 0 || p.Credit < 0 {
			return fmt.Errorf("accounting: posting %d negative amount", idx)
		}
		if p.Debit > 0 && p.Credit > 0 {
			return fmt.Errorf("accounting: posting %d cannot be both debit and credit", idx)
		}
		if p.Debit == 0 && p.Credit == 0 {
			return fmt.Errorf("accounting: posting %d has no amount", idx)
		}
		debit += p.Debit
		credit += p.Credit
	}
	if math.Abs(debit-credit) > BalanceTolerance {
		return fmt.Errorf("%w: debit=%.2f credit=%.2f", ErrUnbalancedEntry, debit, credit)
	}
	return nil
}

// Round2 rounds a monetary amount to two decimals.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}
