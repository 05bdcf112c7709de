package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// Service manages the chart of accounts and produces opening-balance entries.
type Service struct {
	store    entitystore.Store
	engine   *ledger.Engine
	resolver *Resolver
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store entitystore.Store, engine *ledger.Engine, resolver *Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, engine: engine, resolver: resolver, logger: logger, now: time.Now}
}

// CreateAccountInput is the service-level input for account creation.
type CreateAccountInput struct {
	CompanyID       string
	AccountCode     string
	AccountName     string
	AccountType     ledger.AccountType
	AccountCategory string
	Currency        string
	OpeningBalance  float64
}

// Create validates and persists a new account, then posts its opening
// balance when one is given. The account exists even if the opening-balance
// posting fails; the posting error is returned alongside the account.
func (s *Service) Create(ctx context.Context, input CreateAccountInput, actor shared.Session) (*ledger.Account, error) {
	if err := s.validate(ctx, input); err != nil {
		return nil, err
	}

	acc := ledger.Account{
		CompanyID:       input.CompanyID,
		AccountCode:     input.AccountCode,
		AccountName:     input.AccountName,
		AccountType:     input.AccountType,
		AccountCategory: input.AccountCategory,
		Currency:        input.Currency,
		IsActive:        true,
	}
	doc, err := entitystore.Doc(acc)
	if err != nil {
		return nil, fmt.Errorf("encode account: %w", err)
	}
	rec, err := s.store.Create(ctx, ledger.EntityAccounts, doc)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	acc.ID = rec.ID

	if input.OpeningBalance != 0 {
		if err := s.PostOpeningBalance(ctx, acc, input.OpeningBalance, actor); err != nil {
			return &acc, err
		}
		acc.Balance = input.OpeningBalance
	}
	return &acc, nil
}

// Get loads one account by id.
func (s *Service) Get(ctx context.Context, id string) (*ledger.Account, error) {
	rec, err := s.store.Get(ctx, ledger.EntityAccounts, id)
	if err != nil {
		return nil, err
	}
	var acc ledger.Account
	if err := rec.Decode(&acc); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", id, err)
	}
	acc.ID = rec.ID
	return &acc, nil
}

// List returns a company's active accounts ordered by code.
func (s *Service) List(ctx context.Context, companyID string) ([]ledger.Account, error) {
	records, err := s.store.Filter(ctx, ledger.EntityAccounts,
		entitystore.Query{"company_id": companyID, "is_active": true},
		entitystore.WithSort("account_code", false))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]ledger.Account, 0, len(records))
	for _, rec := range records {
		var acc ledger.Account
		if err := rec.Decode(&acc); err != nil {
			s.logger.Warn("skipping undecodable account", slog.String("id", rec.ID), slog.Any("error", err))
			continue
		}
		acc.ID = rec.ID
		out = append(out, acc)
	}
	return out, nil
}

// PostOpeningBalance records the initial balance of a freshly created account,
// offset against the company's equity account. Debit-normal accounts are
// debited, credit-normal accounts are credited. Revenue, expense and COGS
// accounts must start at zero, so the call is a no-op for them.
func (s *Service) PostOpeningBalance(ctx context.Context, acc ledger.Account, amount float64, actor shared.Session) error {
	if amount < 0 {
		return fmt.Errorf("%w: opening balance must not be negative", shared.ErrValidation)
	}
	switch acc.AccountType {
	case ledger.AccountTypeRevenue, ledger.AccountTypeExpense, ledger.AccountTypeCOGS:
		s.logger.Info("skipping opening balance for non-balance-sheet account",
			slog.String("account_id", acc.ID), slog.String("type", string(acc.AccountType)))
		return nil
	}

	equity, err := s.resolver.Resolve(ctx, acc.CompanyID, RoleEquity)
	if err != nil {
		return fmt.Errorf("opening balance for %s: %w", acc.ID, err)
	}

	var lines []ledger.LineItem
	desc := fmt.Sprintf("Opening balance - %s", acc.AccountName)
	if ledger.NormalBalanceSide(acc.AccountType) == ledger.DebitNormal {
		lines = []ledger.LineItem{
			{AccountID: acc.ID, Description: desc, Debit: amount},
			{AccountID: equity.ID, Description: desc, Credit: amount},
		}
	} else {
		lines = []ledger.LineItem{
			{AccountID: equity.ID, Description: desc, Debit: amount},
			{AccountID: acc.ID, Description: desc, Credit: amount},
		}
	}

	_, err = s.engine.Post(ctx, ledger.Draft{
		CompanyID:   acc.CompanyID,
		EntryDate:   s.now().UTC().Format("2006-01-02"),
		Description: desc,
		SourceType:  ledger.SourceOpeningBalance,
		SourceID:    acc.ID,
		PostedBy:    actor.UserID,
		LineItems:   lines,
	})
	if err != nil {
		return fmt.Errorf("post opening balance for %s: %w", acc.ID, err)
	}
	return nil
}

func (s *Service) validate(ctx context.Context, input CreateAccountInput) error {
	if input.CompanyID == "" {
		return fmt.Errorf("%w: company_id is required", shared.ErrValidation)
	}
	if input.AccountCode == "" || input.AccountName == "" {
		return fmt.Errorf("%w: account_code and account_name are required", shared.ErrValidation)
	}
	if _, ok := ledger.AccountCategories[input.AccountType]; !ok {
		return fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, input.AccountType)
	}
	if !ledger.ValidCategory(input.AccountType, input.AccountCategory) {
		return fmt.Errorf("%w: category %q is not valid for type %s",
			shared.ErrValidation, input.AccountCategory, input.AccountType)
	}

	dupes, err := s.store.Filter(ctx, ledger.EntityAccounts,
		entitystore.Query{"company_id": input.CompanyID, "account_code": input.AccountCode},
		entitystore.WithLimit(1))
	if err != nil {
		return fmt.Errorf("check duplicate code: %w", err)
	}
	if len(dupes) > 0 {
		return fmt.Errorf("%w: account code %s already exists", shared.ErrValidation, input.AccountCode)
	}
	return nil
}
