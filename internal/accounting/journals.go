package accounting

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/comptoir-erp/comptoir-erp/internal/shared"
)

// JournalResolver fetches or creates the journal an entry is written to.
type JournalResolver struct{}

// ResolveJournal returns the first active company journal of a type, creating
// one with its conventional code and name when none exists. A company that
// renamed or recoded its journal keeps it; only a company without any active
// journal of the type gets the conventional one.
func (JournalResolver) ResolveJournal(ctx context.Context, tx TxRepository, companyID uuid.UUID, jt JournalType) (Journal, error) {
	spec, ok := journalSpecs[jt]
	if !ok {
		return Journal{}, fmt.Errorf("%w: unknown journal type %q", ErrJournalResolution, jt)
	}
	journal, err := tx.GetActiveJournalByType(ctx, companyID, jt)
	if err == nil {
		return journal, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Journal{}, fmt.Errorf("%w: %s: %v", ErrJournalResolution, jt, err)
	}
	journal, err = tx.InsertJournal(ctx, Journal{
		CompanyID: companyID,
		Code:      spec.Code,
		Name:      spec.Name,
		Type:      jt,
	})
	if shared.IsUniqueViolation(err) {
		// Either a concurrent create won, or an inactive journal holds the
		// conventional code. Only the former leaves an active journal to use.
		journal, err = tx.GetActiveJournalByType(ctx, companyID, jt)
		if errors.Is(err, shared.ErrNotFound) {
			return Journal{}, fmt.Errorf("%w: %s: code %s is taken by an inactive journal, create one manually", ErrJournalResolution, jt, spec.Code)
		}
		if err != nil {
			return Journal{}, fmt.Errorf("%w: %s: %v", ErrJournalResolution, jt, err)
		}
		return journal, nil
	}
	if err != nil {
		return Journal{}, fmt.Errorf("%w: %s: %v", ErrJournalResolution, jt, err)
	}
	return journal, nil
}
