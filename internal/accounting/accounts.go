package accounting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/comptoir-erp/comptoir-erp/internal/shared"
)

// AccountResolver fetches or creates the chart-of-accounts rows an entry
// needs. All methods run inside the caller's write transaction so numbering
// stays consistent with the entry being written.
type AccountResolver struct{}

// ResolveThirdPartyAccount returns the ledger account for a customer or
// supplier, creating and caching it on the third party when absent. Only
// RoleCustomerReceivable and RoleSupplierPayable carry per-third-party
// accounts.
func (AccountResolver) ResolveThirdPartyAccount(ctx context.Context, tx TxRepository, companyID, thirdPartyID uuid.UUID, role AccountRole) (Account, error) {
	spec, ok := roleSpecs[role]
	if !ok || spec.Prefix == "" {
		return Account{}, fmt.Errorf("%w: role %q has no third-party account", ErrAccountResolution, role)
	}
	tp, err := tx.GetThirdParty(ctx, companyID, thirdPartyID)
	if err != nil {
		return Account{}, err
	}
	if tp.AccountID != nil {
		acc, err := tx.GetAccountByID(ctx, companyID, *tp.AccountID)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return Account{}, err
		}
		// Stale reference, fall through and resolve again.
	}

	number, err := nextThirdPartyNumber(ctx, tx, companyID, spec.Prefix, tp.Code)
	if err != nil {
		return Account{}, err
	}
	acc, err := tx.GetAccountByNumber(ctx, companyID, number)
	if errors.Is(err, shared.ErrNotFound) {
		acc, err = tx.InsertAccount(ctx, Account{
			CompanyID:     companyID,
			AccountNumber: number,
			AccountName:   spec.Name + " - " + foldName(tp.Name),
			Type:          spec.Type,
			Class:         spec.Class,
			IsDetail:      true,
		})
		if shared.IsUniqueViolation(err) {
			acc, err = tx.GetAccountByNumber(ctx, companyID, number)
		}
	}
	if err != nil {
		return Account{}, fmt.Errorf("%w: %s: %v", ErrAccountResolution, number, err)
	}
	if err := tx.SetThirdPartyAccount(ctx, tp.ID, acc.ID); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// ResolveDefaultAccount returns the fixed account for a role, creating it on
// first use.
func (AccountResolver) ResolveDefaultAccount(ctx context.Context, tx TxRepository, companyID uuid.UUID, role AccountRole) (Account, error) {
	spec, ok := roleSpecs[role]
	if !ok || spec.Number == "" {
		return Account{}, fmt.Errorf("%w: role %q has no default account", ErrAccountResolution, role)
	}
	return getOrCreateAccount(ctx, tx, companyID, Account{
		CompanyID:     companyID,
		AccountNumber: spec.Number,
		AccountName:   spec.Name,
		Type:          spec.Type,
		Class:         spec.Class,
		IsDetail:      true,
	})
}

// ResolveCashAccount returns the bank or cash account matching a payment
// method. Unknown methods fall back to the generic bank account.
func (AccountResolver) ResolveCashAccount(ctx context.Context, tx TxRepository, companyID uuid.UUID, method PaymentMethod) (Account, error) {
	spec, ok := cashAccounts[method]
	if !ok {
		spec = cashAccounts[PaymentMethodOther]
	}
	return getOrCreateAccount(ctx, tx, companyID, Account{
		CompanyID:     companyID,
		AccountNumber: spec.Number,
		AccountName:   spec.Name,
		Type:          AccountTypeAsset,
		Class:         5,
		IsDetail:      true,
	})
}

func getOrCreateAccount(ctx context.Context, tx TxRepository, companyID uuid.UUID, acc Account) (Account, error) {
	existing, err := tx.GetAccountByNumber(ctx, companyID, acc.AccountNumber)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Account{}, err
	}
	created, err := tx.InsertAccount(ctx, acc)
	if shared.IsUniqueViolation(err) {
		// Lost the race, the account exists now.
		return tx.GetAccountByNumber(ctx, companyID, acc.AccountNumber)
	}
	if err != nil {
		return Account{}, fmt.Errorf("%w: %s: %v", ErrAccountResolution, acc.AccountNumber, err)
	}
	return created, nil
}

// nextThirdPartyNumber derives the account number for a third party. The
// digits of its code, left-padded to five, go behind the class prefix; a
// code without digits falls back to the next sequential number under the
// prefix.
func nextThirdPartyNumber(ctx context.Context, tx TxRepository, companyID uuid.UUID, prefix, code string) (string, error) {
	digits := digitFragment(code)
	if digits != "" {
		return prefix + digits, nil
	}
	max, err := tx.MaxAccountNumber(ctx, companyID, prefix)
	if err != nil {
		return "", err
	}
	seq := 1
	if suffix := strings.TrimPrefix(max, prefix); max != "" && suffix != max {
		if n, err := strconv.Atoi(suffix); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%05d", prefix, seq), nil
}

// digitFragment extracts the digits of a third-party code as a fixed
// five-character fragment: the last five digits when there are more, zero
// padded on the left when there are fewer. Codes without digits yield "".
func digitFragment(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) > 5 {
		return digits[len(digits)-5:]
	}
	return strings.Repeat("0", 5-len(digits)) + digits
}

var nameFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldName strips diacritics so account names stay plain ASCII where the
// third party's name allows it.
func foldName(name string) string {
	folded, _, err := transform.String(nameFolder, name)
	if err != nil {
		return name
	}
	return strings.TrimSpace(folded)
}
