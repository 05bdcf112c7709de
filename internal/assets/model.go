package assets

// Entity collection names in the entity store.
const (
	EntityFixedAssets      = "fixed_assets"
	EntityDepreciationRuns = "depreciation_runs"
)

// Depreciation methods. Only straight-line is implemented; other methods are
// carried on the record but produce no entries.
const (
	MethodStraightLine = "straight_line"
)

// Asset lifecycle states.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusDisposed = "disposed"
)

// FixedAsset is a depreciable asset with its linked ledger accounts.
// AssetAccountID receives the acquisition cost; the expense and accumulated
// accounts receive monthly depreciation. Assets without both depreciation
// accounts configured are skipped by the run.
type FixedAsset struct {
	ID                        string  `json:"id,omitempty"`
	CompanyID                 string  `json:"company_id"`
	AssetCode                 string  `json:"asset_code"`
	AssetName                 string  `json:"asset_name"`
	AcquisitionDate           string  `json:"acquisition_date"`
	AcquisitionCost           float64 `json:"acquisition_cost"`
	SalvageValue              float64 `json:"salvage_value"`
	UsefulLifeYears           int     `json:"useful_life_years"`
	DepreciationMethod        string  `json:"depreciation_method"`
	AssetAccountID            string  `json:"asset_account_id"`
	DepreciationExpenseAcctID string  `json:"depreciation_expense_account_id"`
	AccumulatedDepAcctID      string  `json:"accumulated_depreciation_account_id"`
	AccumulatedDepreciation   float64 `json:"accumulated_depreciation"`
	BookValue                 float64 `json:"book_value"`
	Status                    string  `json:"status"`
	IsActive                  bool    `json:"is_active"`
}

// Depreciable reports whether the monthly run should touch this asset.
func (a FixedAsset) Depreciable() bool {
	return a.IsActive &&
		a.Status == StatusActive &&
		a.DepreciationMethod == MethodStraightLine &&
		a.DepreciationExpenseAcctID != "" &&
		a.AccumulatedDepAcctID != "" &&
		a.UsefulLifeYears > 0
}

// DepreciationRun is the per-(asset, period) register row that makes the
// monthly batch idempotent.
type DepreciationRun struct {
	ID           string  `json:"id,omitempty"`
	CompanyID    string  `json:"company_id"`
	AssetID      string  `json:"asset_id"`
	Period       string  `json:"period"`
	AmountPosted float64 `json:"amount_posted"`
	EntryID      string  `json:"entry_id"`
	CreatedAt    string  `json:"created_at"`
}
