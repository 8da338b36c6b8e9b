package generate

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/comptoir-erp/comptoir-erp/internal/accounting"
	"github.com/comptoir-erp/comptoir-erp/internal/documents"
	"github.com/comptoir-erp/comptoir-erp/internal/shared"
)

// memLedger is an in-memory accounting store for hook tests. The mutex
// serialises transactions, mirroring the row locking the real store gives.
type memLedger struct {
	mu           sync.Mutex
	accounts     map[string]accounting.Account
	accountsByID map[uuid.UUID]accounting.Account
	journals     map[string]accounting.Journal
	thirdParties map[uuid.UUID]accounting.ThirdParty
	entries      map[uuid.UUID]accounting.JournalEntry
	lines        map[uuid.UUID][]accounting.EntryLine
}

func newMemLedger() *memLedger {
	return &memLedger{
		accounts:     make(map[string]accounting.Account),
		accountsByID: make(map[uuid.UUID]accounting.Account),
		journals:     make(map[string]accounting.Journal),
		thirdParties: make(map[uuid.UUID]accounting.ThirdParty),
		entries:      make(map[uuid.UUID]accounting.JournalEntry),
		lines:        make(map[uuid.UUID][]accounting.EntryLine),
	}
}

func (m *memLedger) addThirdParty(tp accounting.ThirdParty) accounting.ThirdParty {
	if tp.ID == uuid.Nil {
		tp.ID = uuid.New()
	}
	m.thirdParties[tp.ID] = tp
	return tp
}

func (m *memLedger) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m)
}

func (m *memLedger) GetAccountByID(ctx context.Context, companyID, id uuid.UUID) (accounting.Account, error) {
	acc, ok := m.accountsByID[id]
	if !ok || acc.CompanyID != companyID {
		return accounting.Account{}, shared.ErrNotFound
	}
	return acc, nil
}

func (m *memLedger) GetAccountByNumber(ctx context.Context, companyID uuid.UUID, number string) (accounting.Account, error) {
	acc, ok := m.accounts[companyID.String()+"|"+number]
	if !ok {
		return accounting.Account{}, shared.ErrNotFound
	}
	return acc, nil
}

func (m *memLedger) InsertAccount(ctx context.Context, acc accounting.Account) (accounting.Account, error) {
	acc.ID = uuid.New()
	acc.IsActive = true
	m.accounts[acc.CompanyID.String()+"|"+acc.AccountNumber] = acc
	m.accountsByID[acc.ID] = acc
	return acc, nil
}

func (m *memLedger) MaxAccountNumber(ctx context.Context, companyID uuid.UUID, prefix string) (string, error) {
	var numbers []string
	for _, acc := range m.accounts {
		if acc.CompanyID == companyID && strings.HasPrefix(acc.AccountNumber, prefix) {
			numbers = append(numbers, acc.AccountNumber)
		}
	}
	if len(numbers) == 0 {
		return "", nil
	}
	sort.Strings(numbers)
	return numbers[len(numbers)-1], nil
}

func (m *memLedger) GetJournalByID(ctx context.Context, companyID, id uuid.UUID) (accounting.Journal, error) {
	for _, j := range m.journals {
		if j.ID == id && j.CompanyID == companyID {
			return j, nil
		}
	}
	return accounting.Journal{}, shared.ErrNotFound
}

func (m *memLedger) GetActiveJournalByType(ctx context.Context, companyID uuid.UUID, jt accounting.JournalType) (accounting.Journal, error) {
	for _, j := range m.journals {
		if j.CompanyID == companyID && j.Type == jt && j.IsActive {
			return j, nil
		}
	}
	return accounting.Journal{}, shared.ErrNotFound
}

func (m *memLedger) InsertJournal(ctx context.Context, j accounting.Journal) (accounting.Journal, error) {
	j.ID = uuid.New()
	j.IsActive = true
	m.journals[j.CompanyID.String()+"|"+j.Code] = j
	return j, nil
}

func (m *memLedger) GetThirdParty(ctx context.Context, companyID, id uuid.UUID) (accounting.ThirdParty, error) {
	tp, ok := m.thirdParties[id]
	if !ok || tp.CompanyID != companyID {
		return accounting.ThirdParty{}, accounting.ErrThirdPartyNotFound
	}
	return tp, nil
}

func (m *memLedger) SetThirdPartyAccount(ctx context.Context, id, accountID uuid.UUID) error {
	tp := m.thirdParties[id]
	tp.AccountID = &accountID
	m.thirdParties[id] = tp
	return nil
}

func (m *memLedger) MaxEntryNumber(ctx context.Context, companyID, journalID uuid.UUID, prefix string) (string, error) {
	var numbers []string
	for _, e := range m.entries {
		if e.CompanyID == companyID && e.JournalID == journalID && strings.HasPrefix(e.EntryNumber, prefix) {
			numbers = append(numbers, e.EntryNumber)
		}
	}
	if len(numbers) == 0 {
		return "", nil
	}
	sort.Strings(numbers)
	return numbers[len(numbers)-1], nil
}

func (m *memLedger) InsertEntry(ctx context.Context, entry accounting.JournalEntry) (accounting.JournalEntry, error) {
	entry.ID = uuid.New()
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *memLedger) InsertEntryLines(ctx context.Context, entryID uuid.UUID, lines []accounting.EntryLine) error {
	m.lines[entryID] = lines
	return nil
}

func (m *memLedger) GetEntry(ctx context.Context, companyID, id uuid.UUID) (accounting.JournalEntry, error) {
	entry, ok := m.entries[id]
	if !ok || entry.CompanyID != companyID {
		return accounting.JournalEntry{}, accounting.ErrEntryNotFound
	}
	entry.Lines = m.lines[id]
	return entry, nil
}

func (m *memLedger) ListEntries(ctx context.Context, companyID uuid.UUID, filter accounting.EntryFilter) ([]accounting.JournalEntry, int, error) {
	var out []accounting.JournalEntry
	for _, e := range m.entries {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (m *memLedger) UpdateEntryStatus(ctx context.Context, companyID, id uuid.UUID, status accounting.EntryStatus) (accounting.JournalEntry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return accounting.JournalEntry{}, accounting.ErrEntryNotFound
	}
	entry.Status = status
	m.entries[id] = entry
	return entry, nil
}

func (m *memLedger) DeleteEntry(ctx context.Context, companyID, id uuid.UUID) error {
	delete(m.entries, id)
	delete(m.lines, id)
	return nil
}

func (m *memLedger) singleEntry(t *testing.T) accounting.JournalEntry {
	t.Helper()
	require.Len(t, m.entries, 1)
	for _, e := range m.entries {
		e.Lines = m.lines[e.ID]
		return e
	}
	return accounting.JournalEntry{}
}

// memLinker records link calls.
type memLinker struct {
	mu           sync.Mutex
	invoiceLinks map[uuid.UUID]uuid.UUID
	paymentLinks map[uuid.UUID]uuid.UUID
	err          error
}

func newMemLinker() *memLinker {
	return &memLinker{invoiceLinks: make(map[uuid.UUID]uuid.UUID), paymentLinks: make(map[uuid.UUID]uuid.UUID)}
}

func (l *memLinker) LinkInvoiceEntry(ctx context.Context, invoiceID, entryID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.invoiceLinks[invoiceID] = entryID
	return nil
}

func (l *memLinker) LinkPaymentEntry(ctx context.Context, paymentID, entryID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.paymentLinks[paymentID] = entryID
	return nil
}

// memLocker grants or denies every lock.
type memLocker struct {
	mu       sync.Mutex
	deny     bool
	unlocked []string
}

func (l *memLocker) TryLock(ctx context.Context, documentID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.deny, nil
}

func (l *memLocker) Unlock(ctx context.Context, documentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocked = append(l.unlocked, documentID)
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
	err  error
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

type hookFixture struct {
	ledger *memLedger
	linker *memLinker
	locker *memLocker
	audit  *recordingAudit
	hooks  *Hooks
}

func newHookFixture() *hookFixture {
	ledger := newMemLedger()
	linker := newMemLinker()
	locker := &memLocker{}
	audit := &recordingAudit{}
	writer := accounting.NewService(ledger, nil)
	hooks := NewHooks(ledger, writer, linker, locker, audit, nil)
	return &hookFixture{ledger: ledger, linker: linker, locker: locker, audit: audit, hooks: hooks}
}

func saleInvoice(companyID, thirdPartyID uuid.UUID) documents.Invoice {
	return documents.Invoice{
		ID:            uuid.New(),
		CompanyID:     companyID,
		ThirdPartyID:  thirdPartyID,
		Kind:          documents.InvoiceKindSale,
		InvoiceNumber: "FA-2026-0042",
		IssueDate:     time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		Currency:      "EUR",
		TotalHT:       150,
		TotalVAT:      30,
		TotalTTC:      180,
		Status:        documents.InvoiceStatusFinalized,
		Lines: []documents.InvoiceLine{
			{Description: "Prestation A", Quantity: 1, UnitPrice: 100, VATRate: 20, TotalHT: 100, TotalVAT: 20},
			{Description: "Prestation B", Quantity: 2, UnitPrice: 25, VATRate: 20, TotalHT: 50, TotalVAT: 10},
		},
	}
}

func TestInvoiceFinalizedGeneratesSaleEntry(t *testing.T) {
	f := newHookFixture()
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont SARL", Code: "CLI-0042"})
	inv := saleInvoice(companyID, tp.ID)

	require.NoError(t, f.hooks.InvoiceFinalized(context.Background(), inv))

	entry := f.ledger.singleEntry(t)
	require.True(t, strings.HasPrefix(entry.EntryNumber, "VE2026"))
	require.Equal(t, accounting.EntryStatusDraft, entry.Status)
	require.Equal(t, 180.0, entry.TotalAmount)
	require.Equal(t, "FA-2026-0042", entry.ReferenceNumber)
	// Three postings however many lines the invoice has: customer, revenue, VAT.
	require.Len(t, entry.Lines, 3)

	// Customer account derived from the third party code, cached back.
	acc, err := f.ledger.GetAccountByNumber(context.Background(), companyID, "41100042")
	require.NoError(t, err)
	require.Equal(t, "Clients - Dupont SARL", acc.AccountName)
	require.NotNil(t, f.ledger.thirdParties[tp.ID].AccountID)

	require.Equal(t, entry.ID, f.linker.invoiceLinks[inv.ID])
	require.Contains(t, f.locker.unlocked, inv.ID.String())

	require.Len(t, f.audit.logs, 1)
	require.Equal(t, "journal_entry.generate", f.audit.logs[0].Action)
	require.Equal(t, "invoice", f.audit.logs[0].Meta["source_kind"])
}

func TestInvoiceFinalizedAppliesLineDiscount(t *testing.T) {
	f := newHookFixture()
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont SARL", Code: "CLI-0042"})

	inv := saleInvoice(companyID, tp.ID)
	inv.TotalHT = 180
	inv.TotalVAT = 36
	inv.TotalTTC = 216
	// The stored snapshot predates the discount; the generated entry must
	// recompute 2 x 100 less 10%.
	inv.Lines = []documents.InvoiceLine{{
		Description:     "Prestation",
		Quantity:        2,
		UnitPrice:       100,
		DiscountPercent: 10,
		VATRate:         20,
		TotalHT:         200,
		TotalVAT:        40,
	}}

	require.NoError(t, f.hooks.InvoiceFinalized(context.Background(), inv))

	entry := f.ledger.singleEntry(t)
	require.Equal(t, 216.0, entry.TotalAmount)
	require.Len(t, entry.Lines, 3)
	require.Equal(t, 216.0, entry.Lines[0].Debit)
	require.Equal(t, 180.0, entry.Lines[1].Credit)
	require.Equal(t, 36.0, entry.Lines[2].Credit)
}

func TestInvoiceFinalizedGeneratesPurchaseEntry(t *testing.T) {
	f := newHookFixture()
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Fournisseur Général", Code: "F-89"})

	inv := saleInvoice(companyID, tp.ID)
	inv.Kind = documents.InvoiceKindPurchase
	require.NoError(t, f.hooks.InvoiceFinalized(context.Background(), inv))

	entry := f.ledger.singleEntry(t)
	require.True(t, strings.HasPrefix(entry.EntryNumber, "AC2026"))

	_, err := f.ledger.GetAccountByNumber(context.Background(), companyID, "40189")
	require.NoError(t, err)
	_, err = f.ledger.GetAccountByNumber(context.Background(), companyID, "607000")
	require.NoError(t, err)
	_, err = f.ledger.GetAccountByNumber(context.Background(), companyID, "44566")
	require.NoError(t, err)
}

func TestInvoiceFinalizedSkipsDraft(t *testing.T) {
	f := newHookFixture()
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont", Code: "C1"})
	inv := saleInvoice(companyID, tp.ID)
	inv.Status = documents.InvoiceStatusDraft

	require.NoError(t, f.hooks.InvoiceFinalized(context.Background(), inv))
	require.Empty(t, f.ledger.entries)
	require.Empty(t, f.linker.invoiceLinks)
}

func TestInvoiceFinalizedSkipsAlreadyLinked(t *testing.T) {
	f := newHookFixture()
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont", Code: "C1"})
	inv := saleInvoice(companyID, tp.ID)
	existing := uuid.New()
	inv.JournalEntryID = &existing

	require.NoError(t, f.hooks.InvoiceFinalized(context.Background(), inv))
	require.Empty(t, f.ledger.entries)
}

func TestInvoiceFinalizedSkipsWhenLockHeld(t *testing.T) {
	f := newHookFixture()
	f.locker.deny = true
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont", Code: "C1"})

	require.NoError(t, f.hooks.InvoiceFinalized(context.Background(), saleInvoice(companyID, tp.ID)))
	require.Empty(t, f.ledger.entries)
}

func TestInvoiceFinalizedLinkConflictIsNotFatal(t *testing.T) {
	f := newHookFixture()
	f.linker.err = documents.ErrAlreadyLinked
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont", Code: "C1"})

	// The entry is written even though the link lost the race; it stays
	// draft and unlinked for reconciliation.
	require.NoError(t, f.hooks.InvoiceFinalized(context.Background(), saleInvoice(companyID, tp.ID)))
	require.Len(t, f.ledger.entries, 1)
}

func TestInvoiceFinalizedAuditFailureIsNotFatal(t *testing.T) {
	f := newHookFixture()
	f.audit.err = errors.New("audit store down")
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont", Code: "C1"})

	require.NoError(t, f.hooks.InvoiceFinalized(context.Background(), saleInvoice(companyID, tp.ID)))
	require.Len(t, f.ledger.entries, 1)
}

func TestInvoiceFinalizedUnknownKind(t *testing.T) {
	f := newHookFixture()
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont", Code: "C1"})
	inv := saleInvoice(companyID, tp.ID)
	inv.Kind = documents.InvoiceKind("credit_note")

	err := f.hooks.InvoiceFinalized(context.Background(), inv)
	require.ErrorIs(t, err, accounting.ErrUnsupportedDocument)
}

func TestPaymentRecordedInboundCard(t *testing.T) {
	f := newHookFixture()
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont SARL", Code: "CLI-0042"})

	payment := documents.Payment{
		ID:           uuid.New(),
		CompanyID:    companyID,
		ThirdPartyID: tp.ID,
		Direction:    documents.PaymentInbound,
		Method:       "card",
		Reference:    "PAY-2026-001",
		PaymentDate:  time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC),
		Amount:       180,
		Currency:     "EUR",
	}
	require.NoError(t, f.hooks.PaymentRecorded(context.Background(), payment))

	entry := f.ledger.singleEntry(t)
	require.True(t, strings.HasPrefix(entry.EntryNumber, "BQ2026"))
	require.Equal(t, 180.0, entry.TotalAmount)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, entry.ID, f.linker.paymentLinks[payment.ID])

	_, err := f.ledger.GetAccountByNumber(context.Background(), companyID, "512000")
	require.NoError(t, err)
}

func TestPaymentRecordedOutboundCashUsesCashJournal(t *testing.T) {
	f := newHookFixture()
	companyID := uuid.New()
	tp := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Fournisseur", Code: "F-89"})

	payment := documents.Payment{
		ID:           uuid.New(),
		CompanyID:    companyID,
		ThirdPartyID: tp.ID,
		Direction:    documents.PaymentOutbound,
		Method:       "cash",
		Reference:    "PAY-2026-002",
		PaymentDate:  time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC),
		Amount:       75.5,
	}
	require.NoError(t, f.hooks.PaymentRecorded(context.Background(), payment))

	entry := f.ledger.singleEntry(t)
	require.True(t, strings.HasPrefix(entry.EntryNumber, "CA2026"))

	// Outbound payments debit the default expense account and credit cash;
	// no supplier payable account is touched.
	expense, err := f.ledger.GetAccountByNumber(context.Background(), companyID, "607000")
	require.NoError(t, err)
	cash, err := f.ledger.GetAccountByNumber(context.Background(), companyID, "530000")
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, expense.ID, entry.Lines[0].AccountID)
	require.Equal(t, 75.5, entry.Lines[0].Debit)
	require.Equal(t, cash.ID, entry.Lines[1].AccountID)
	require.Equal(t, 75.5, entry.Lines[1].Credit)
	_, err = f.ledger.GetAccountByNumber(context.Background(), companyID, "40189")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPaymentRecordedSkipsAlreadyLinked(t *testing.T) {
	f := newHookFixture()
	existing := uuid.New()
	payment := documents.Payment{
		ID:             uuid.New(),
		CompanyID:      uuid.New(),
		ThirdPartyID:   uuid.New(),
		Direction:      documents.PaymentInbound,
		Method:         "card",
		Amount:         10,
		JournalEntryID: &existing,
	}
	require.NoError(t, f.hooks.PaymentRecorded(context.Background(), payment))
	require.Empty(t, f.ledger.entries)
}

func TestPaymentRecordedRejectsZeroAmount(t *testing.T) {
	f := newHookFixture()
	payment := documents.Payment{
		ID:           uuid.New(),
		CompanyID:    uuid.New(),
		ThirdPartyID: uuid.New(),
		Direction:    documents.PaymentInbound,
		Method:       "card",
	}
	err := f.hooks.PaymentRecorded(context.Background(), payment)
	require.ErrorIs(t, err, accounting.ErrUnsupportedDocument)
}
