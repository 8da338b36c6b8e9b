package accounting

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/comptoir-erp/comptoir-erp/internal/shared"
)

// RepositoryPort abstracts the entry store.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, companyID, id uuid.UUID) (JournalEntry, error)
	ListEntries(ctx context.Context, companyID uuid.UUID, filter EntryFilter) ([]JournalEntry, int, error)
	UpdateEntryStatus(ctx context.Context, companyID, id uuid.UUID, status EntryStatus) (JournalEntry, error)
	DeleteEntry(ctx context.Context, companyID, id uuid.UUID) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service writes and manages journal entries.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the entry service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WriteEntryInput describes an entry to persist inside a transaction. The
// postings must already balance.
type WriteEntryInput struct {
	CompanyID       uuid.UUID
	Journal         Journal
	EntryDate       time.Time
	Description     string
	ReferenceNumber string
	Currency        string
	Postings        []Posting
}

// WriteEntryTx numbers and persists a draft entry with its lines inside the
// caller's transaction.
func (s *Service) WriteEntryTx(ctx context.Context, tx TxRepository, in WriteEntryInput) (JournalEntry, error) {
	if err := ValidatePostings(in.Postings); err != nil {
		return JournalEntry{}, err
	}
	date := in.EntryDate
	if date.IsZero() {
		date = s.now()
	}
	currency := in.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	number := s.nextEntryNumber(ctx, tx, in.CompanyID, in.Journal, date)

	var debit float64
	for _, p := range in.Postings {
		debit += p.Debit
	}
	entry, err := tx.InsertEntry(ctx, JournalEntry{
		CompanyID:       in.CompanyID,
		JournalID:       in.Journal.ID,
		EntryNumber:     number,
		EntryDate:       date,
		Description:     in.Description,
		ReferenceNumber: in.ReferenceNumber,
		Status:          EntryStatusDraft,
		TotalAmount:     Round2(debit),
		Currency:        currency,
	})
	if err != nil {
		return JournalEntry{}, err
	}
	lines := make([]EntryLine, 0, len(in.Postings))
	for idx, p := range in.Postings {
		lines = append(lines, EntryLine{
			EntryID:     entry.ID,
			AccountID:   p.AccountID,
			Debit:       p.Debit,
			Credit:      p.Credit,
			Description: p.Description,
			LineOrder:   idx,
		})
	}
	if err := tx.InsertEntryLines(ctx, entry.ID, lines); err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// nextEntryNumber produces <code><year><seq> from the highest stored number
// for that journal and year. A store error falls back to a timestamp number
// so the surrounding write still succeeds with a unique reference.
func (s *Service) nextEntryNumber(ctx context.Context, tx TxRepository, companyID uuid.UUID, journal Journal, date time.Time) string {
	prefix := fmt.Sprintf("%s%d", journal.Code, date.Year())
	max, err := tx.MaxEntryNumber(ctx, companyID, journal.ID, prefix)
	if err != nil {
		return fmt.Sprintf("%s-%d", journal.Code, s.now().UnixMilli())
	}
	seq := 1
	if suffix := strings.TrimPrefix(max, prefix); max != "" && suffix != max {
		if n, err := strconv.Atoi(suffix); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// CreateEntryInput describes a manually created entry.
type CreateEntryInput struct {
	CompanyID       uuid.UUID
	JournalID       uuid.UUID
	EntryDate       time.Time
	Description     string
	ReferenceNumber string
	Currency        string
	Postings        []Posting
	ActorID         string
}

// CreateEntry validates and persists a new draft entry.
func (s *Service) CreateEntry(ctx context.Context, in CreateEntryInput) (JournalEntry, error) {
	if err := ValidatePostings(in.Postings); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		journal, err := tx.GetJournalByID(ctx, in.CompanyID, in.JournalID)
		if err != nil {
			return err
		}
		entry, err = s.WriteEntryTx(ctx, tx, WriteEntryInput{
			CompanyID:       in.CompanyID,
			Journal:         journal,
			EntryDate:       in.EntryDate,
			Description:     in.Description,
			ReferenceNumber: in.ReferenceNumber,
			Currency:        in.Currency,
			Postings:        in.Postings,
		})
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.ActorID, "journal_entry.create", entry)
	return entry, nil
}

// SetEntryStatus moves an entry between draft and posted. Transitions run in
// both directions; setting the current status again is a no-op.
func (s *Service) SetEntryStatus(ctx context.Context, companyID, id uuid.UUID, status EntryStatus, actorID string) (JournalEntry, error) {
	if status != EntryStatusDraft && status != EntryStatusPosted {
		return JournalEntry{}, fmt.Errorf("%w: %q", ErrInvalidEntryStatus, status)
	}
	current, err := s.repo.GetEntry(ctx, companyID, id)
	if err != nil {
		return JournalEntry{}, err
	}
	if current.Status == status {
		return current, nil
	}
	entry, err := s.repo.UpdateEntryStatus(ctx, companyID, id, status)
	if err != nil {
		return JournalEntry{}, err
	}
	action := "journal_entry.post"
	if status == EntryStatusDraft {
		action = "journal_entry.unpost"
	}
	s.record(ctx, actorID, action, entry)
	return entry, nil
}

// DeleteEntry removes a draft entry.
func (s *Service) DeleteEntry(ctx context.Context, companyID, id uuid.UUID, actorID string) error {
	entry, err := s.repo.GetEntry(ctx, companyID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteEntry(ctx, companyID, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "journal_entry.delete", entry)
	return nil
}

// GetEntry loads an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, companyID, id uuid.UUID) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, companyID, id)
}

// ListEntries returns entries matching the filter plus the total count.
func (s *Service) ListEntries(ctx context.Context, companyID uuid.UUID, filter EntryFilter) ([]JournalEntry, int, error) {
	return s.repo.ListEntries(ctx, companyID, filter)
}

func (s *Service) record(ctx context.Context, actorID, action string, entry JournalEntry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: entry.ID.String(),
		Meta: map[string]any{
			"entry_number": entry.EntryNumber,
			"journal_id":   entry.JournalID.String(),
			"total":        entry.TotalAmount,
		},
		At: s.now(),
	})
}
