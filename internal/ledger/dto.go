package ledger

// LineItemInput is one line of a posting or repost request.
type LineItemInput struct {
	AccountID   string  `json:"account_id" validate:"required"`
	Description string  `json:"description"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
}

// PostEntryRequest creates a manual journal entry.
type PostEntryRequest struct {
	CompanyID   string          `json:"company_id" validate:"required"`
	EntryDate   string          `json:"entry_date" validate:"required"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	LineItems   []LineItemInput `json:"line_items" validate:"required,min=1,dive"`
}

// RepostEntryRequest replaces the lines of an existing manual entry.
type RepostEntryRequest struct {
	LineItems []LineItemInput `json:"line_items" validate:"required,min=1,dive"`
}

// RetryRequest re-applies the deltas of specific failed accounts.
type RetryRequest struct {
	AccountIDs []string `json:"account_ids" validate:"required,min=1"`
}

func toLineItems(inputs []LineItemInput) []LineItem {
	out := make([]LineItem, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, LineItem{
			AccountID:   in.AccountID,
			Description: in.Description,
			Debit:       in.Debit,
			Credit:      in.Credit,
		})
	}
	return out
}
