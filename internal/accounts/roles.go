package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// EntityAccountSettings holds the per-company role -> account_id mapping.
const EntityAccountSettings = "account_settings"

// Role names a well-known account a producer needs to locate.
type Role string

const (
	RoleEquity             Role = "default_equity_account"
	RoleAccountsPayable    Role = "default_ap_account"
	RoleAccountsReceivable Role = "default_ar_account"
	RoleInventory          Role = "default_inventory_account"
	RoleCOGS               Role = "default_cogs_account"
	RoleRevenue            Role = "default_revenue_account"
)

// ErrRoleUnresolved is returned when neither the configured mapping nor the
// fallback scan yields an account for the role.
var ErrRoleUnresolved = errors.New("no account resolvable for role")

// roleHint is the fallback lookup predicate: required account type plus name
// substrings tried in order.
type roleHint struct {
	accountType ledger.AccountType
	substrings  []string
}

var roleHints = map[Role]roleHint{
	RoleEquity:             {ledger.AccountTypeEquity, []string{"capital", "equity"}},
	RoleAccountsPayable:    {ledger.AccountTypeLiability, []string{"payable"}},
	RoleAccountsReceivable: {ledger.AccountTypeAsset, []string{"receivable"}},
	RoleInventory:          {ledger.AccountTypeAsset, []string{"inventory"}},
	RoleCOGS:               {ledger.AccountTypeCOGS, nil},
	RoleRevenue:            {ledger.AccountTypeRevenue, []string{"sales", "revenue"}},
}

// Resolver locates well-known accounts by role. A configured mapping in
// account_settings wins; otherwise it falls back to scanning active accounts
// of the role's type for a name substring.
type Resolver struct {
	store entitystore.Store
}

func NewResolver(store entitystore.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the account filling role for the company.
func (r *Resolver) Resolve(ctx context.Context, companyID string, role Role) (ledger.Account, error) {
	if acc, ok, err := r.configured(ctx, companyID, role); err != nil {
		return ledger.Account{}, err
	} else if ok {
		return acc, nil
	}
	return r.scan(ctx, companyID, role)
}

// SetMapping validates and persists a role -> account mapping. The account
// must exist, belong to the company and carry the type the role requires.
func (r *Resolver) SetMapping(ctx context.Context, companyID string, role Role, accountID string) error {
	hint, ok := roleHints[role]
	if !ok {
		return fmt.Errorf("%w: unknown role %q", shared.ErrValidation, role)
	}

	rec, err := r.store.Get(ctx, ledger.EntityAccounts, accountID)
	if err != nil {
		return fmt.Errorf("resolve account %s: %w", accountID, err)
	}
	var acc ledger.Account
	if err := rec.Decode(&acc); err != nil {
		return fmt.Errorf("decode account %s: %w", accountID, err)
	}
	if acc.CompanyID != companyID {
		return fmt.Errorf("%w: account %s belongs to another company", shared.ErrValidation, accountID)
	}
	if acc.AccountType != hint.accountType {
		return fmt.Errorf("%w: role %s requires a %s account, got %s",
			shared.ErrValidation, role, hint.accountType, acc.AccountType)
	}

	existing, err := r.store.Filter(ctx, EntityAccountSettings,
		entitystore.Query{"company_id": companyID, "role": string(role)})
	if err != nil {
		return fmt.Errorf("check existing mapping: %w", err)
	}
	doc := map[string]any{
		"company_id": companyID,
		"role":       string(role),
		"account_id": accountID,
	}
	if len(existing) > 0 {
		_, err = r.store.Update(ctx, EntityAccountSettings, existing[0].ID, doc)
	} else {
		_, err = r.store.Create(ctx, EntityAccountSettings, doc)
	}
	if err != nil {
		return fmt.Errorf("save mapping %s/%s: %w", companyID, role, err)
	}
	return nil
}

func (r *Resolver) configured(ctx context.Context, companyID string, role Role) (ledger.Account, bool, error) {
	records, err := r.store.Filter(ctx, EntityAccountSettings,
		entitystore.Query{"company_id": companyID, "role": string(role)},
		entitystore.WithLimit(1))
	if err != nil {
		return ledger.Account{}, false, fmt.Errorf("lookup role mapping %s: %w", role, err)
	}
	if len(records) == 0 {
		return ledger.Account{}, false, nil
	}
	accountID, _ := records[0].Data["account_id"].(string)
	rec, err := r.store.Get(ctx, ledger.EntityAccounts, accountID)
	if err != nil {
		// A stale mapping pointing at a deleted account falls back to the scan.
		if errors.Is(err, entitystore.ErrNotFound) {
			return ledger.Account{}, false, nil
		}
		return ledger.Account{}, false, fmt.Errorf("load mapped account %s: %w", accountID, err)
	}
	var acc ledger.Account
	if err := rec.Decode(&acc); err != nil {
		return ledger.Account{}, false, fmt.Errorf("decode mapped account %s: %w", accountID, err)
	}
	acc.ID = rec.ID
	return acc, true, nil
}

func (r *Resolver) scan(ctx context.Context, companyID string, role Role) (ledger.Account, error) {
	hint, ok := roleHints[role]
	if !ok {
		return ledger.Account{}, fmt.Errorf("%w: %s", ErrRoleUnresolved, role)
	}
	records, err := r.store.Filter(ctx, ledger.EntityAccounts,
		entitystore.Query{
			"company_id":   companyID,
			"account_type": string(hint.accountType),
			"is_active":    true,
		},
		entitystore.WithSort("account_code", false))
	if err != nil {
		return ledger.Account{}, fmt.Errorf("scan accounts for role %s: %w", role, err)
	}

	decode := func(rec entitystore.Record) (ledger.Account, bool) {
		var acc ledger.Account
		if err := rec.Decode(&acc); err != nil {
			return ledger.Account{}, false
		}
		acc.ID = rec.ID
		return acc, true
	}

	for _, sub := range hint.substrings {
		for _, rec := range records {
			acc, ok := decode(rec)
			if ok && strings.Contains(strings.ToLower(acc.AccountName), sub) {
				return acc, nil
			}
		}
	}
	// No substring hint (or nothing matched): with exactly one candidate of
	// the right type the choice is unambiguous.
	if hint.substrings == nil && len(records) == 1 {
		if acc, ok := decode(records[0]); ok {
			return acc, nil
		}
	}
	return ledger.Account{}, fmt.Errorf("%w: %s (company %s)", ErrRoleUnresolved, role, companyID)
}
