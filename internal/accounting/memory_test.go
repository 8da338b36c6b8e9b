package accounting

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/comptoir-erp/comptoir-erp/internal/shared"
)

// memoryLedgerRepo backs resolver and service tests without PostgreSQL. It
// enforces the same unique constraints as the real schema so creation races
// can be simulated with the hide*Once knobs.
type memoryLedgerRepo struct {
	accounts     map[string]Account
	accountsByID map[uuid.UUID]Account
	journals     map[string]Journal
	journalsByID map[uuid.UUID]Journal
	thirdParties map[uuid.UUID]ThirdParty
	entries      map[uuid.UUID]JournalEntry
	lines        map[uuid.UUID][]EntryLine

	hideAccountOnce string
	hideJournalOnce JournalType
	maxEntryErr     error
}

type memoryLedgerTx struct {
	repo *memoryLedgerRepo
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		accounts:     make(map[string]Account),
		accountsByID: make(map[uuid.UUID]Account),
		journals:     make(map[string]Journal),
		journalsByID: make(map[uuid.UUID]Journal),
		thirdParties: make(map[uuid.UUID]ThirdParty),
		entries:      make(map[uuid.UUID]JournalEntry),
		lines:        make(map[uuid.UUID][]EntryLine),
	}
}

func accountKey(companyID uuid.UUID, number string) string {
	return companyID.String() + "|" + number
}

func journalKey(companyID uuid.UUID, code string) string {
	return companyID.String() + "|" + code
}

func (r *memoryLedgerRepo) addThirdParty(tp ThirdParty) ThirdParty {
	if tp.ID == uuid.Nil {
		tp.ID = uuid.New()
	}
	r.thirdParties[tp.ID] = tp
	return tp
}

func (r *memoryLedgerRepo) addAccount(acc Account) Account {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	r.accounts[accountKey(acc.CompanyID, acc.AccountNumber)] = acc
	r.accountsByID[acc.ID] = acc
	return acc
}

func (r *memoryLedgerRepo) addJournal(j Journal) Journal {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	r.journals[journalKey(j.CompanyID, j.Code)] = j
	r.journalsByID[j.ID] = j
	return j
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryLedgerTx{repo: r})
}

func (t *memoryLedgerTx) GetAccountByID(ctx context.Context, companyID, id uuid.UUID) (Account, error) {
	acc, ok := t.repo.accountsByID[id]
	if !ok || acc.CompanyID != companyID {
		return Account{}, shared.ErrNotFound
	}
	return acc, nil
}

func (t *memoryLedgerTx) GetAccountByNumber(ctx context.Context, companyID uuid.UUID, number string) (Account, error) {
	if t.repo.hideAccountOnce == number {
		t.repo.hideAccountOnce = ""
		return Account{}, shared.ErrNotFound
	}
	acc, ok := t.repo.accounts[accountKey(companyID, number)]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	return acc, nil
}

func (t *memoryLedgerTx) InsertAccount(ctx context.Context, acc Account) (Account, error) {
	if _, exists := t.repo.accounts[accountKey(acc.CompanyID, acc.AccountNumber)]; exists {
		return Account{}, &pgconn.PgError{Code: "23505", ConstraintName: "accounts_company_number_key"}
	}
	acc.IsActive = true
	acc.CreatedAt = time.Now()
	acc.UpdatedAt = acc.CreatedAt
	return t.repo.addAccount(acc), nil
}

func (t *memoryLedgerTx) MaxAccountNumber(ctx context.Context, companyID uuid.UUID, prefix string) (string, error) {
	var numbers []string
	for _, acc := range t.repo.accounts {
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

func (t *memoryLedgerTx) GetJournalByID(ctx context.Context, companyID, id uuid.UUID) (Journal, error) {
	j, ok := t.repo.journalsByID[id]
	if !ok || j.CompanyID != companyID {
		return Journal{}, shared.ErrNotFound
	}
	return j, nil
}

func (t *memoryLedgerTx) GetActiveJournalByType(ctx context.Context, companyID uuid.UUID, jt JournalType) (Journal, error) {
	if t.repo.hideJournalOnce == jt {
		t.repo.hideJournalOnce = ""
		return Journal{}, shared.ErrNotFound
	}
	var codes []string
	for code, j := range t.repo.journals {
		if j.CompanyID == companyID && j.Type == jt && j.IsActive {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return Journal{}, shared.ErrNotFound
	}
	sort.Strings(codes)
	return t.repo.journals[codes[0]], nil
}

func (t *memoryLedgerTx) InsertJournal(ctx context.Context, j Journal) (Journal, error) {
	if _, exists := t.repo.journals[journalKey(j.CompanyID, j.Code)]; exists {
		return Journal{}, &pgconn.PgError{Code: "23505", ConstraintName: "journals_company_code_key"}
	}
	j.IsActive = true
	j.CreatedAt = time.Now()
	j.UpdatedAt = j.CreatedAt
	return t.repo.addJournal(j), nil
}

func (t *memoryLedgerTx) GetThirdParty(ctx context.Context, companyID, id uuid.UUID) (ThirdParty, error) {
	tp, ok := t.repo.thirdParties[id]
	if !ok || tp.CompanyID != companyID {
		return ThirdParty{}, ErrThirdPartyNotFound
	}
	return tp, nil
}

func (t *memoryLedgerTx) SetThirdPartyAccount(ctx context.Context, id, accountID uuid.UUID) error {
	tp, ok := t.repo.thirdParties[id]
	if !ok {
		return ErrThirdPartyNotFound
	}
	tp.AccountID = &accountID
	t.repo.thirdParties[id] = tp
	return nil
}

func (t *memoryLedgerTx) MaxEntryNumber(ctx context.Context, companyID, journalID uuid.UUID, prefix string) (string, error) {
	if t.repo.maxEntryErr != nil {
		return "", t.repo.maxEntryErr
	}
	var numbers []string
	for _, e := range t.repo.entries {
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

func (t *memoryLedgerTx) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	t.repo.entries[entry.ID] = entry
	return entry, nil
}

func (t *memoryLedgerTx) InsertEntryLines(ctx context.Context, entryID uuid.UUID, lines []EntryLine) error {
	stored := make([]EntryLine, 0, len(lines))
	for _, l := range lines {
		l.ID = uuid.New()
		l.EntryID = entryID
		stored = append(stored, l)
	}
	t.repo.lines[entryID] = stored
	return nil
}

func (r *memoryLedgerRepo) GetEntry(ctx context.Context, companyID, id uuid.UUID) (JournalEntry, error) {
	entry, ok := r.entries[id]
	if !ok || entry.CompanyID != companyID {
		return JournalEntry{}, ErrEntryNotFound
	}
	entry.Lines = append([]EntryLine(nil), r.lines[id]...)
	return entry, nil
}

func (r *memoryLedgerRepo) ListEntries(ctx context.Context, companyID uuid.UUID, filter EntryFilter) ([]JournalEntry, int, error) {
	var out []JournalEntry
	for _, e := range r.entries {
		if e.CompanyID != companyID {
			continue
		}
		if filter.JournalID != nil && e.JournalID != *filter.JournalID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryNumber > out[j].EntryNumber })
	return out, len(out), nil
}

func (r *memoryLedgerRepo) UpdateEntryStatus(ctx context.Context, companyID, id uuid.UUID, status EntryStatus) (JournalEntry, error) {
	entry, ok := r.entries[id]
	if !ok || entry.CompanyID != companyID {
		return JournalEntry{}, ErrEntryNotFound
	}
	entry.Status = status
	entry.UpdatedAt = time.Now()
	r.entries[id] = entry
	return entry, nil
}

func (r *memoryLedgerRepo) DeleteEntry(ctx context.Context, companyID, id uuid.UUID) error {
	entry, ok := r.entries[id]
	if !ok || entry.CompanyID != companyID {
		return ErrEntryNotFound
	}
	if entry.Status != EntryStatusDraft {
		return ErrEntryNotDraft
	}
	delete(r.entries, id)
	delete(r.lines, id)
	return nil
}

// recordingAudit captures audit records for assertions.
type recordingAudit struct {
	logs []shared.AuditLog
	err  error
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}
