package accounting

import "time"

// CreateEntryRequest is the payload for manual entry creation.
type CreateEntryRequest struct {
	JournalID       string             `json:"journal_id" validate:"required,uuid"`
	EntryDate       string             `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	Description     string             `json:"description" validate:"required,max=500"`
	ReferenceNumber string             `json:"reference_number" validate:"max=100"`
	Currency        string             `json:"currency" validate:"omitempty,len=3"`
	Lines           []EntryLineRequest `json:"lines" validate:"required,min=2,dive"`
}

// EntryLineRequest is one posting in a creation payload.
type EntryLineRequest struct {
	AccountID   string  `json:"account_id" validate:"required,uuid"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Description string  `json:"description" validate:"max=500"`
}

// UpdateEntryStatusRequest is the payload for the status update endpoint.
type UpdateEntryStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft posted"`
}

// EntryResponse is the JSON shape of a journal entry.
type EntryResponse struct {
	ID              string              `json:"id"`
	JournalID       string              `json:"journal_id"`
	EntryNumber     string              `json:"entry_number"`
	EntryDate       string              `json:"entry_date"`
	Description     string              `json:"description"`
	ReferenceNumber string              `json:"reference_number,omitempty"`
	Status          string              `json:"status"`
	TotalAmount     float64             `json:"total_amount"`
	Currency        string              `json:"currency"`
	CreatedAt       time.Time           `json:"created_at"`
	Lines           []EntryLineResponse `json:"lines,omitempty"`
}

// EntryLineResponse is the JSON shape of an entry line.
type EntryLineResponse struct {
	AccountID   string  `json:"account_id"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Description string  `json:"description,omitempty"`
	LineOrder   int     `json:"line_order"`
}

// EntryListResponse wraps a page of entries.
type EntryListResponse struct {
	Entries []EntryResponse `json:"entries"`
	Total   int             `json:"total"`
}

func toEntryResponse(e JournalEntry) EntryResponse {
	resp := EntryResponse{
		ID:              e.ID.String(),
		JournalID:       e.JournalID.String(),
		EntryNumber:     e.EntryNumber,
		EntryDate:       e.EntryDate.Format("2006-01-02"),
		Description:     e.Description,
		ReferenceNumber: e.ReferenceNumber,
		Status:          string(e.Status),
		TotalAmount:     e.TotalAmount,
		Currency:        e.Currency,
		CreatedAt:       e.CreatedAt,
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, EntryLineResponse{
			AccountID:   l.AccountID.String(),
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
			LineOrder:   l.LineOrder,
		})
	}
	return resp
}
