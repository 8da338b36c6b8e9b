package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/comptoir-erp/comptoir-erp/internal/accounting"
	"github.com/comptoir-erp/comptoir-erp/internal/documents"
)

type memPendingSource struct {
	invoices map[uuid.UUID]documents.Invoice
	payments []documents.Payment
	listErr  error
}

func (s *memPendingSource) ListPendingCompanies(ctx context.Context) ([]uuid.UUID, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, inv := range s.invoices {
		if !seen[inv.CompanyID] {
			seen[inv.CompanyID] = true
			ids = append(ids, inv.CompanyID)
		}
	}
	for _, p := range s.payments {
		if !seen[p.CompanyID] {
			seen[p.CompanyID] = true
			ids = append(ids, p.CompanyID)
		}
	}
	return ids, nil
}

func (s *memPendingSource) ListPendingInvoices(ctx context.Context, companyID uuid.UUID, limit int) ([]documents.Invoice, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []documents.Invoice
	for _, inv := range s.invoices {
		if inv.CompanyID != companyID {
			continue
		}
		header := inv
		header.Lines = nil
		out = append(out, header)
	}
	return out, nil
}

func (s *memPendingSource) GetInvoice(ctx context.Context, companyID, id uuid.UUID) (documents.Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return documents.Invoice{}, documents.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *memPendingSource) ListPendingPayments(ctx context.Context, companyID uuid.UUID, limit int) ([]documents.Payment, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []documents.Payment
	for _, p := range s.payments {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestGeneratePendingSweepsInvoicesAndPayments(t *testing.T) {
	f := newHookFixture()
	companyID := uuid.New()
	customer := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont", Code: "C-1"})
	supplier := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Fournisseur", Code: "F-2"})

	inv := saleInvoice(companyID, customer.ID)
	source := &memPendingSource{
		invoices: map[uuid.UUID]documents.Invoice{inv.ID: inv},
		payments: []documents.Payment{{
			ID:           uuid.New(),
			CompanyID:    companyID,
			ThirdPartyID: supplier.ID,
			Direction:    documents.PaymentOutbound,
			Method:       "bank_transfer",
			Reference:    "PAY-77",
			Amount:       60,
		}},
	}

	generated, err := f.hooks.GeneratePending(context.Background(), source, companyID, 50)
	require.NoError(t, err)
	require.Equal(t, 2, generated)
	require.Len(t, f.ledger.entries, 2)
}

func TestGeneratePendingSkipsFailingDocuments(t *testing.T) {
	f := newHookFixture()
	companyID := uuid.New()
	customer := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyID, Name: "Dupont", Code: "C-1"})

	good := saleInvoice(companyID, customer.ID)
	bad := saleInvoice(companyID, uuid.New()) // unknown third party
	source := &memPendingSource{invoices: map[uuid.UUID]documents.Invoice{good.ID: good, bad.ID: bad}}

	generated, err := f.hooks.GeneratePending(context.Background(), source, companyID, 50)
	require.NoError(t, err)
	require.Equal(t, 1, generated)
	require.Len(t, f.ledger.entries, 1)
}

func TestGeneratePendingAllCoversEveryCompany(t *testing.T) {
	f := newHookFixture()
	companyA := uuid.New()
	companyB := uuid.New()
	customerA := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyA, Name: "Dupont", Code: "C-1"})
	customerB := f.ledger.addThirdParty(accounting.ThirdParty{CompanyID: companyB, Name: "Martin", Code: "C-2"})

	invA := saleInvoice(companyA, customerA.ID)
	invB := saleInvoice(companyB, customerB.ID)
	source := &memPendingSource{invoices: map[uuid.UUID]documents.Invoice{invA.ID: invA, invB.ID: invB}}

	generated, err := f.hooks.GeneratePendingAll(context.Background(), source, 50)
	require.NoError(t, err)
	require.Equal(t, 2, generated)
	require.Len(t, f.ledger.entries, 2)
}

func TestGeneratePendingPropagatesListErrors(t *testing.T) {
	f := newHookFixture()
	source := &memPendingSource{listErr: errors.New("store down")}
	_, err := f.hooks.GeneratePending(context.Background(), source, uuid.New(), 50)
	require.Error(t, err)
}
