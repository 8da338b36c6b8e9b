package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comptoir-erp/comptoir-erp/internal/platform/db"
	"github.com/comptoir-erp/comptoir-erp/internal/shared"
)

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside a write transaction.
type TxRepository interface {
	GetAccountByID(ctx context.Context, companyID, id uuid.UUID) (Account, error)
	GetAccountByNumber(ctx context.Context, companyID uuid.UUID, number string) (Account, error)
	InsertAccount(ctx context.Context, acc Account) (Account, error)
	MaxAccountNumber(ctx context.Context, companyID uuid.UUID, prefix string) (string, error)
	GetJournalByID(ctx context.Context, companyID, id uuid.UUID) (Journal, error)
	GetActiveJournalByType(ctx context.Context, companyID uuid.UUID, jt JournalType) (Journal, error)
	InsertJournal(ctx context.Context, j Journal) (Journal, error)
	GetThirdParty(ctx context.Context, companyID, id uuid.UUID) (ThirdParty, error)
	SetThirdPartyAccount(ctx context.Context, id, accountID uuid.UUID) error
	MaxEntryNumber(ctx context.Context, companyID, journalID uuid.UUID, prefix string) (string, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertEntryLines(ctx context.Context, entryID uuid.UUID, lines []EntryLine) error
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

const accountColumns = `id, company_id, account_number, account_name, account_type, class, is_detail, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.AccountNumber, &a.AccountName, &a.Type, &a.Class, &a.IsDetail, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.ErrNotFound
	}
	return a, err
}

func (r *txRepository) GetAccountByID(ctx context.Context, companyID, id uuid.UUID) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND id=$2`, companyID, id)
	return scanAccount(row)
}

func (r *txRepository) GetAccountByNumber(ctx context.Context, companyID uuid.UUID, number string) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND account_number=$2`, companyID, number)
	return scanAccount(row)
}

func (r *txRepository) InsertAccount(ctx context.Context, acc Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (company_id, account_number, account_name, account_type, class, is_detail, is_active)
VALUES ($1,$2,$3,$4,$5,$6,TRUE) RETURNING `+accountColumns, acc.CompanyID, acc.AccountNumber, acc.AccountName, acc.Type, acc.Class, acc.IsDetail)
	return scanAccount(row)
}

func (r *txRepository) MaxAccountNumber(ctx context.Context, companyID uuid.UUID, prefix string) (string, error) {
	var max *string
	err := r.tx.QueryRow(ctx, `SELECT MAX(account_number) FROM accounts WHERE company_id=$1 AND account_number LIKE $2`, companyID, prefix+"%").Scan(&max)
	if err != nil {
		return "", err
	}
	if max == nil {
		return "", nil
	}
	return *max, nil
}

const journalColumns = `id, company_id, code, name, type, is_active, created_at, updated_at`

func scanJournal(row pgx.Row) (Journal, error) {
	var j Journal
	err := row.Scan(&j.ID, &j.CompanyID, &j.Code, &j.Name, &j.Type, &j.IsActive, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Journal{}, shared.ErrNotFound
	}
	return j, err
}

func (r *txRepository) GetJournalByID(ctx context.Context, companyID, id uuid.UUID) (Journal, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE company_id=$1 AND id=$2`, companyID, id)
	return scanJournal(row)
}

func (r *txRepository) GetActiveJournalByType(ctx context.Context, companyID uuid.UUID, jt JournalType) (Journal, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE company_id=$1 AND type=$2 AND is_active ORDER BY created_at LIMIT 1`, companyID, jt)
	return scanJournal(row)
}

func (r *txRepository) InsertJournal(ctx context.Context, j Journal) (Journal, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journals (company_id, code, name, type, is_active)
VALUES ($1,$2,$3,$4,TRUE) RETURNING `+journalColumns, j.CompanyID, j.Code, j.Name, j.Type)
	return scanJournal(row)
}

func (r *txRepository) GetThirdParty(ctx context.Context, companyID, id uuid.UUID) (ThirdParty, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, company_id, name, code, accounting_account_id FROM third_parties WHERE company_id=$1 AND id=$2`, companyID, id)
	var tp ThirdParty
	err := row.Scan(&tp.ID, &tp.CompanyID, &tp.Name, &tp.Code, &tp.AccountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ThirdParty{}, ErrThirdPartyNotFound
	}
	return tp, err
}

func (r *txRepository) SetThirdPartyAccount(ctx context.Context, id, accountID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `UPDATE third_parties SET accounting_account_id=$2 WHERE id=$1`, id, accountID)
	return err
}

func (r *txRepository) MaxEntryNumber(ctx context.Context, companyID, journalID uuid.UUID, prefix string) (string, error) {
	var max *string
	err := r.tx.QueryRow(ctx, `SELECT MAX(entry_number) FROM journal_entries WHERE company_id=$1 AND journal_id=$2 AND entry_number LIKE $3`,
		companyID, journalID, prefix+"%").Scan(&max)
	if err != nil {
		return "", err
	}
	if max == nil {
		return "", nil
	}
	return *max, nil
}

const entryColumns = `id, company_id, journal_id, entry_number, entry_date, description, reference_number, status, total_amount, currency, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.CompanyID, &e.JournalID, &e.EntryNumber, &e.EntryDate, &e.Description, &e.ReferenceNumber, &e.Status, &e.TotalAmount, &e.Currency, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return JournalEntry{}, ErrEntryNotFound
	}
	return e, err
}

func (r *txRepository) InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, journal_id, entry_number, entry_date, description, reference_number, status, total_amount, currency)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING `+entryColumns,
		entry.CompanyID, entry.JournalID, entry.EntryNumber, entry.EntryDate, entry.Description, entry.ReferenceNumber, entry.Status, toNumeric(entry.TotalAmount), entry.Currency)
	return scanEntry(row)
}

func (r *txRepository) InsertEntryLines(ctx context.Context, entryID uuid.UUID, lines []EntryLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_entry_lines (entry_id, account_id, debit, credit, description, line_order)
VALUES ($1,$2,$3,$4,$5,$6)`, entryID, line.AccountID, toNumeric(line.Debit), toNumeric(line.Credit), line.Description, line.LineOrder); err != nil {
			return err
		}
	}
	return nil
}

// GetEntry loads an entry header with its lines.
func (r *Repository) GetEntry(ctx context.Context, companyID, id uuid.UUID) (JournalEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, id)
	entry, err := scanEntry(row)
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, description, line_order
FROM journal_entry_lines WHERE entry_id=$1 ORDER BY line_order`, id)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l EntryLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Debit, &l.Credit, &l.Description, &l.LineOrder); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, l)
	}
	return entry, rows.Err()
}

// EntryFilter narrows ListEntries. Search matches reference number and
// description.
type EntryFilter struct {
	JournalID *uuid.UUID
	Status    EntryStatus
	Search    string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// ListEntries returns entry headers matching the filter plus the total count.
func (r *Repository) ListEntries(ctx context.Context, companyID uuid.UUID, filter EntryFilter) ([]JournalEntry, int, error) {
	where := []string{"company_id=$1"}
	args := []any{companyID}
	if filter.JournalID != nil {
		args = append(args, *filter.JournalID)
		where = append(where, fmt.Sprintf("journal_id=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(reference_number ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("entry_date>=$%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("entry_date<=$%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM journal_entries WHERE %s ORDER BY entry_date DESC, entry_number DESC LIMIT $%d OFFSET $%d`,
		entryColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.JournalID, &e.EntryNumber, &e.EntryDate, &e.Description, &e.ReferenceNumber, &e.Status, &e.TotalAmount, &e.Currency, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// UpdateEntryStatus transitions an entry to the given status.
func (r *Repository) UpdateEntryStatus(ctx context.Context, companyID, id uuid.UUID, status EntryStatus) (JournalEntry, error) {
	row := r.pool.QueryRow(ctx, `UPDATE journal_entries SET status=$3, updated_at=NOW() WHERE company_id=$1 AND id=$2 RETURNING `+entryColumns,
		companyID, id, status)
	return scanEntry(row)
}

// DeleteEntry removes a draft entry and its lines.
func (r *Repository) DeleteEntry(ctx context.Context, companyID, id uuid.UUID) error {
	return r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		wrapper := tx.(*txRepository)
		var status EntryStatus
		err := wrapper.tx.QueryRow(ctx, `SELECT status FROM journal_entries WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEntryNotFound
		}
		if err != nil {
			return err
		}
		if status != EntryStatusDraft {
			return ErrEntryNotDraft
		}
		if _, err := wrapper.tx.Exec(ctx, `DELETE FROM journal_entry_lines WHERE entry_id=$1`, id); err != nil {
			return err
		}
		_, err = wrapper.tx.Exec(ctx, `DELETE FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, id)
		return err
	})
}

func toNumeric(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
