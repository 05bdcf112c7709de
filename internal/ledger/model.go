package ledger

import "time"

// Entity collection names in the entity store.
const (
	EntityAccounts       = "accounts"
	EntityJournalEntries = "journal_entries"
	EntityPostingIntents = "posting_intents"
	EntityCounters       = "counters"
)

// AccountType enumerates chart-of-accounts classifications.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeCOGS      AccountType = "cost_of_goods_sold"
)

// AccountCategories lists the valid sub-classifications per type.
var AccountCategories = map[AccountType][]string{
	AccountTypeAsset:     {"cash", "bank", "accounts_receivable", "inventory", "fixed_asset", "accumulated_depreciation", "other_current_asset", "other_asset"},
	AccountTypeLiability: {"accounts_payable", "credit_card", "tax_payable", "loan", "other_current_liability", "long_term_liability"},
	AccountTypeEquity:    {"owner_equity", "retained_earnings", "capital", "drawings"},
	AccountTypeRevenue:   {"sales", "service_revenue", "other_income"},
	AccountTypeExpense:   {"operating_expense", "payroll", "depreciation_expense", "interest_expense", "other_expense"},
	AccountTypeCOGS:      {"cost_of_goods_sold", "freight", "inventory_shrinkage"},
}

// ValidCategory reports whether category belongs to the account type.
func ValidCategory(accountType AccountType, category string) bool {
	for _, c := range AccountCategories[accountType] {
		if c == category {
			return true
		}
	}
	return false
}

// Account is a chart-of-accounts node with a running balance kept in the
// normal-balance convention. The balance is only ever mutated through the
// posting engine.
type Account struct {
	ID              string      `json:"id,omitempty"`
	CompanyID       string      `json:"company_id"`
	AccountCode     string      `json:"account_code"`
	AccountName     string      `json:"account_name"`
	AccountType     AccountType `json:"account_type"`
	AccountCategory string      `json:"account_category"`
	Balance         float64     `json:"balance"`
	Currency        string      `json:"currency"`
	IsActive        bool        `json:"is_active"`
}

// EntryStatus enumerates journal entry lifecycle values. Entries are created
// already posted; there is no draft workflow.
type EntryStatus string

const (
	EntryStatusDraft  EntryStatus = "draft"
	EntryStatusPosted EntryStatus = "posted"
	EntryStatusVoid   EntryStatus = "void"
)

// Source types for system-generated entries. Manual entries are the only
// editable kind.
const (
	SourceManual           = "manual"
	SourceOpeningBalance   = "opening_balance"
	SourceAssetAcquisition = "asset_acquisition"
	SourceDepreciation     = "depreciation"
	SourceInventoryReceipt = "inventory_receipt"
	SourceSalesReturn      = "sales_return"
)

// LineItem is one leg of a journal entry. Account code and name are
// denormalised snapshots taken at post time, not live joins.
type LineItem struct {
	AccountID   string  `json:"account_id"`
	AccountName string  `json:"account_name,omitempty"`
	AccountCode string  `json:"account_code,omitempty"`
	Description string  `json:"description,omitempty"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
}

// JournalEntry is a balanced set of line items applied to account balances.
type JournalEntry struct {
	ID           string      `json:"id,omitempty"`
	CompanyID    string      `json:"company_id"`
	EntryNumber  string      `json:"entry_number"`
	EntryDate    string      `json:"entry_date"`
	Reference    string      `json:"reference,omitempty"`
	Description  string      `json:"description,omitempty"`
	SourceType   string      `json:"source_type"`
	SourceID     string      `json:"source_id,omitempty"`
	Status       EntryStatus `json:"status"`
	LineItems    []LineItem  `json:"line_items"`
	TotalDebits  float64     `json:"total_debits"`
	TotalCredits float64     `json:"total_credits"`
	PostedBy     string      `json:"posted_by,omitempty"`
	PostedDate   time.Time   `json:"posted_date"`
}

// Editable reports whether the entry may be reposted or deleted.
func (e JournalEntry) Editable() bool {
	return e.SourceType == SourceManual && e.Status != EntryStatusVoid
}

// Draft is the posting engine input.
type Draft struct {
	CompanyID   string
	EntryDate   string
	Reference   string
	Description string
	SourceType  string
	SourceID    string
	PostedBy    string
	LineItems   []LineItem
}
