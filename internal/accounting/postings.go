package accounting

import "fmt"

// PostingBuilder turns document amounts into balanced posting sets. Inputs
// carry already resolved accounts so the builder stays free of storage
// concerns.
type PostingBuilder struct{}

// LineAmount is a single invoice line reduced to the amounts postings need.
type LineAmount struct {
	TotalHT  float64
	TotalVAT float64
}

// InvoicePostingInput describes an invoice for posting construction.
// ThirdParty is the receivable or payable account, Trade the revenue or
// expense account.
type InvoicePostingInput struct {
	InvoiceNumber  string
	ThirdPartyName string
	ThirdParty     Account
	Trade          Account
	VAT            Account
	Lines          []LineAmount
	TotalTTC       float64
}

// PaymentPostingInput describes a payment for posting construction. Expense is
// only consulted for supplier payments.
type PaymentPostingInput struct {
	Reference      string
	ThirdPartyName string
	ThirdParty     Account
	Expense        Account
	Cash           Account
	Amount         float64
}

// sumAmounts folds the per-line amounts into invoice totals.
func sumAmounts(lines []LineAmount) (ht, vat float64) {
	for _, line := range lines {
		ht += line.TotalHT
		vat += line.TotalVAT
	}
	return ht, vat
}

// SaleInvoice debits the customer for the tax-inclusive total and credits
// revenue for the summed tax-exclusive amount plus collected VAT. Lines are
// aggregated so a many-line invoice still yields one revenue posting.
func (PostingBuilder) SaleInvoice(in InvoicePostingInput) ([]Posting, error) {
	ht, vat := sumAmounts(in.Lines)
	postings := []Posting{
		{
			AccountID:     in.ThirdParty.ID,
			AccountNumber: in.ThirdParty.AccountNumber,
			Debit:         Round2(in.TotalTTC),
			Description:   fmt.Sprintf("Facture %s - %s", in.InvoiceNumber, in.ThirdPartyName),
		},
		{
			AccountID:     in.Trade.ID,
			AccountNumber: in.Trade.AccountNumber,
			Credit:        Round2(ht),
			Description:   "Vente - Facture " + in.InvoiceNumber,
		},
	}
	if vat != 0 {
		postings = append(postings, Posting{
			AccountID:     in.VAT.ID,
			AccountNumber: in.VAT.AccountNumber,
			Credit:        Round2(vat),
			Description:   "TVA collectée",
		})
	}
	if err := ValidatePostings(postings); err != nil {
		return nil, err
	}
	return postings, nil
}

// PurchaseInvoice debits expense for the summed tax-exclusive amount plus
// deductible VAT and credits the supplier for the tax-inclusive total.
func (PostingBuilder) PurchaseInvoice(in InvoicePostingInput) ([]Posting, error) {
	ht, vat := sumAmounts(in.Lines)
	postings := []Posting{{
		AccountID:     in.Trade.ID,
		AccountNumber: in.Trade.AccountNumber,
		Debit:         Round2(ht),
		Description:   "Achat - Facture " + in.InvoiceNumber,
	}}
	if vat != 0 {
		postings = append(postings, Posting{
			AccountID:     in.VAT.ID,
			AccountNumber: in.VAT.AccountNumber,
			Debit:         Round2(vat),
			Description:   "TVA déductible",
		})
	}
	postings = append(postings, Posting{
		AccountID:     in.ThirdParty.ID,
		AccountNumber: in.ThirdParty.AccountNumber,
		Credit:        Round2(in.TotalTTC),
		Description:   fmt.Sprintf("Facture %s - %s", in.InvoiceNumber, in.ThirdPartyName),
	})
	if err := ValidatePostings(postings); err != nil {
		return nil, err
	}
	return postings, nil
}

// CustomerPayment debits the bank or cash account and credits the customer.
func (PostingBuilder) CustomerPayment(in PaymentPostingInput) ([]Posting, error) {
	desc := fmt.Sprintf("Règlement client %s - %s", in.Reference, in.ThirdPartyName)
	postings := []Posting{
		{
			AccountID:     in.Cash.ID,
			AccountNumber: in.Cash.AccountNumber,
			Debit:         Round2(in.Amount),
			Description:   desc,
		},
		{
			AccountID:     in.ThirdParty.ID,
			AccountNumber: in.ThirdParty.AccountNumber,
			Credit:        Round2(in.Amount),
			Description:   desc,
		},
	}
	if err := ValidatePostings(postings); err != nil {
		return nil, err
	}
	return postings, nil
}

// SupplierPayment debits the default expense account and credits the bank or
// cash account. Outbound payments are booked straight to charges rather than
// through the supplier payable.
func (PostingBuilder) SupplierPayment(in PaymentPostingInput) ([]Posting, error) {
	desc := fmt.Sprintf("Règlement fournisseur %s - %s", in.Reference, in.ThirdPartyName)
	postings := []Posting{
		{
			AccountID:     in.Expense.ID,
			AccountNumber: in.Expense.AccountNumber,
			Debit:         Round2(in.Amount),
			Description:   desc,
		},
		{
			AccountID:     in.Cash.ID,
			AccountNumber: in.Cash.AccountNumber,
			Credit:        Round2(in.Amount),
			Description:   desc,
		},
	}
	if err := ValidatePostings(postings); err != nil {
		return nil, err
	}
	return postings, nil
}
