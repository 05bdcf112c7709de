package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// Service manages fixed assets: acquisition posting and the monthly
// straight-line depreciation run.
type Service struct {
	store    entitystore.Store
	engine   *ledger.Engine
	resolver *accounts.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store entitystore.Store, engine *ledger.Engine, resolver *accounts.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, engine: engine, resolver: resolver, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	s.now = now
}

// CreateAssetInput is the service-level input for asset registration.
type CreateAssetInput struct {
	CompanyID                 string
	AssetCode                 string
	AssetName                 string
	AcquisitionDate           string
	AcquisitionCost           float64
	SalvageValue              float64
	UsefulLifeYears           int
	DepreciationMethod        string
	AssetAccountID            string
	DepreciationExpenseAcctID string
	AccumulatedDepAcctID      string
}

// Create registers an asset in draft state. No ledger entry is produced until
// Acquire is called.
func (s *Service) Create(ctx context.Context, input CreateAssetInput) (*FixedAsset, error) {
	if input.CompanyID == "" || input.AssetName == "" {
		return nil, fmt.Errorf("%w: company_id and asset_name are required", shared.ErrValidation)
	}
	if input.AcquisitionCost <= 0 {
		return nil, fmt.Errorf("%w: acquisition_cost must be positive", shared.ErrValidation)
	}
	if input.SalvageValue < 0 || input.SalvageValue > input.AcquisitionCost {
		return nil, fmt.Errorf("%w: salvage_value must be within [0, acquisition_cost]", shared.ErrValidation)
	}
	if input.AcquisitionDate != "" {
		if _, err := time.Parse("2006-01-02", input.AcquisitionDate); err != nil {
			return nil, fmt.Errorf("%w: acquisition_date must be YYYY-MM-DD", shared.ErrValidation)
		}
	}
	if input.DepreciationMethod == "" {
		input.DepreciationMethod = MethodStraightLine
	}

	asset := FixedAsset{
		CompanyID:                 input.CompanyID,
		AssetCode:                 input.AssetCode,
		AssetName:                 input.AssetName,
		AcquisitionDate:           input.AcquisitionDate,
		AcquisitionCost:           input.AcquisitionCost,
		SalvageValue:              input.SalvageValue,
		UsefulLifeYears:           input.UsefulLifeYears,
		DepreciationMethod:        input.DepreciationMethod,
		AssetAccountID:            input.AssetAccountID,
		DepreciationExpenseAcctID: input.DepreciationExpenseAcctID,
		AccumulatedDepAcctID:      input.AccumulatedDepAcctID,
		BookValue:                 input.AcquisitionCost,
		Status:                    StatusDraft,
		IsActive:                  true,
	}
	doc, err := entitystore.Doc(asset)
	if err != nil {
		return nil, fmt.Errorf("encode asset: %w", err)
	}
	rec, err := s.store.Create(ctx, EntityFixedAssets, doc)
	if err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	asset.ID = rec.ID
	return &asset, nil
}

// Get loads one asset by id.
func (s *Service) Get(ctx context.Context, id string) (*FixedAsset, error) {
	rec, err := s.store.Get(ctx, EntityFixedAssets, id)
	if err != nil {
		return nil, err
	}
	var asset FixedAsset
	if err := rec.Decode(&asset); err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", id, err)
	}
	asset.ID = rec.ID
	return &asset, nil
}

// Acquire posts the acquisition entry for a draft asset: the asset account is
// debited by the acquisition cost against the company's equity account. The
// asset account's balance changes exactly once, through the posting engine.
func (s *Service) Acquire(ctx context.Context, assetID string, actor shared.Session) (*ledger.JournalEntry, error) {
	asset, err := s.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Status != StatusDraft {
		return nil, fmt.Errorf("%w: asset %s is already %s", shared.ErrInvalidState, assetID, asset.Status)
	}
	if asset.AssetAccountID == "" {
		return nil, fmt.Errorf("%w: asset %s has no asset account configured", shared.ErrValidation, assetID)
	}

	equity, err := s.resolver.Resolve(ctx, asset.CompanyID, accounts.RoleEquity)
	if err != nil {
		return nil, fmt.Errorf("acquire asset %s: %w", assetID, err)
	}

	desc := fmt.Sprintf("Asset acquisition - %s", asset.AssetName)
	entry, err := s.engine.Post(ctx, ledger.Draft{
		CompanyID:   asset.CompanyID,
		EntryDate:   s.entryDate(asset),
		Description: desc,
		SourceType:  ledger.SourceAssetAcquisition,
		SourceID:    asset.ID,
		PostedBy:    actor.UserID,
		LineItems: []ledger.LineItem{
			{AccountID: asset.AssetAccountID, Description: desc, Debit: asset.AcquisitionCost},
			{AccountID: equity.ID, Description: desc, Credit: asset.AcquisitionCost},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("post acquisition for %s: %w", assetID, err)
	}

	if _, err := s.store.Update(ctx, EntityFixedAssets, asset.ID, map[string]any{
		"status":     StatusActive,
		"book_value": asset.AcquisitionCost,
	}); err != nil {
		// The entry is posted; the asset row catches up on the next edit.
		s.logger.Error("asset activation failed after acquisition posting",
			slog.String("asset_id", asset.ID), slog.Any("error", err))
	}
	return entry, nil
}

// CompaniesWithAssets lists the distinct companies holding active assets.
// The monthly batch fans out over this list.
func (s *Service) CompaniesWithAssets(ctx context.Context) ([]string, error) {
	records, err := s.store.Filter(ctx, EntityFixedAssets,
		entitystore.Query{"is_active": true, "status": StatusActive})
	if err != nil {
		return nil, fmt.Errorf("list asset companies: %w", err)
	}
	seen := make(map[string]bool)
	var out []string
	for _, rec := range records {
		companyID, _ := rec.Data["company_id"].(string)
		if companyID == "" || seen[companyID] {
			continue
		}
		seen[companyID] = true
		out = append(out, companyID)
	}
	return out, nil
}

// RunResult reports one asset's outcome in a depreciation run.
type RunResult struct {
	AssetID      string  `json:"asset_id"`
	AmountPosted float64 `json:"amount_posted"`
	Skipped      bool    `json:"skipped,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// RunDepreciation posts one month of straight-line depreciation for every
// depreciable asset of the company. The run is idempotent per calendar
// period: an asset already depreciated in the period is reported as skipped.
func (s *Service) RunDepreciation(ctx context.Context, companyID string, period time.Time, actor shared.Session) ([]RunResult, error) {
	records, err := s.store.Filter(ctx, EntityFixedAssets,
		entitystore.Query{"company_id": companyID, "is_active": true, "status": StatusActive},
		entitystore.WithSort("asset_code", false))
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	periodKey := PeriodKey(period)
	results := make([]RunResult, 0, len(records))
	for _, rec := range records {
		var asset FixedAsset
		if err := rec.Decode(&asset); err != nil {
			s.logger.Warn("skipping undecodable asset", slog.String("id", rec.ID), slog.Any("error", err))
			continue
		}
		asset.ID = rec.ID
		results = append(results, s.depreciateOne(ctx, asset, periodKey, actor))
	}
	return results, nil
}

func (s *Service) depreciateOne(ctx context.Context, asset FixedAsset, periodKey string, actor shared.Session) RunResult {
	result := RunResult{AssetID: asset.ID}
	if !asset.Depreciable() {
		result.Skipped = true
		result.Reason = "not depreciable"
		return result
	}

	monthly := MonthlyDepreciation(asset.AcquisitionCost, asset.SalvageValue, asset.UsefulLifeYears)
	base := asset.AcquisitionCost - asset.SalvageValue
	amount := monthly
	if remaining := base - asset.AccumulatedDepreciation; remaining < amount {
		amount = remaining
	}
	if amount <= 0 {
		result.Skipped = true
		result.Reason = "fully depreciated"
		return result
	}

	// The register row's deterministic id is the idempotency guard: a second
	// run in the same period collides and skips.
	runID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("depreciation:"+asset.ID+":"+periodKey)).String()
	runDoc := map[string]any{
		"id":         runID,
		"company_id": asset.CompanyID,
		"asset_id":   asset.ID,
		"period":     periodKey,
		"created_at": s.now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := s.store.Create(ctx, EntityDepreciationRuns, runDoc); err != nil {
		if errors.Is(err, entitystore.ErrDuplicateID) {
			result.Skipped = true
			result.Reason = "already depreciated for " + periodKey
			return result
		}
		result.Skipped = true
		result.Reason = err.Error()
		return result
	}

	desc := fmt.Sprintf("Depreciation %s - %s", periodKey, asset.AssetName)
	entry, err := s.engine.Post(ctx, ledger.Draft{
		CompanyID:   asset.CompanyID,
		EntryDate:   s.now().UTC().Format("2006-01-02"),
		Description: desc,
		SourceType:  ledger.SourceDepreciation,
		SourceID:    runID,
		PostedBy:    actor.UserID,
		LineItems: []ledger.LineItem{
			{AccountID: asset.DepreciationExpenseAcctID, Description: desc, Debit: amount},
			{AccountID: asset.AccumulatedDepAcctID, Description: desc, Credit: amount},
		},
	})
	if err != nil {
		// Free the register row so a later run can retry this asset.
		if delErr := s.store.Delete(ctx, EntityDepreciationRuns, runID); delErr != nil {
			s.logger.Error("orphaned depreciation run row",
				slog.String("run_id", runID), slog.Any("error", delErr))
		}
		result.Skipped = true
		result.Reason = err.Error()
		return result
	}

	accumulated := asset.AccumulatedDepreciation + amount
	bookValue := asset.AcquisitionCost - accumulated
	if bookValue < asset.SalvageValue {
		bookValue = asset.SalvageValue
	}
	if _, err := s.store.Update(ctx, EntityFixedAssets, asset.ID, map[string]any{
		"accumulated_depreciation": accumulated,
		"book_value":               bookValue,
	}); err != nil {
		s.logger.Error("asset depreciation state update failed",
			slog.String("asset_id", asset.ID), slog.Any("error", err))
	}
	if _, err := s.store.Update(ctx, EntityDepreciationRuns, runID, map[string]any{
		"amount_posted": amount,
		"entry_id":      entry.ID,
	}); err != nil {
		s.logger.Warn("depreciation run row update failed",
			slog.String("run_id", runID), slog.Any("error", err))
	}

	result.AmountPosted = amount
	return result
}

func (s *Service) entryDate(asset *FixedAsset) string {
	if asset.AcquisitionDate != "" {
		return asset.AcquisitionDate
	}
	return s.now().UTC().Format("2006-01-02")
}
