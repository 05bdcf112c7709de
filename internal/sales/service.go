package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/inventory"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// EntitySalesReturns holds the return documents.
const EntitySalesReturns = "sales_returns"

// ReturnLine is one returned item.
type ReturnLine struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// ReturnResult reports the outcome of a sales return. COGSEntry is nil when
// the inventory/COGS legs could not be produced.
type ReturnResult struct {
	ReturnID     string               `json:"return_id"`
	RevenueEntry *ledger.JournalEntry `json:"revenue_entry"`
	COGSEntry    *ledger.JournalEntry `json:"cogs_entry,omitempty"`
	Subtotal     float64              `json:"subtotal"`
	COGSTotal    float64              `json:"cogs_total"`
}

// Service books sales returns: a revenue reversal entry, an optional
// inventory/COGS restock entry, and the stock movements.
type Service struct {
	store    entitystore.Store
	engine   *ledger.Engine
	resolver *accounts.Resolver
	stock    *inventory.Service
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store entitystore.Store, engine *ledger.Engine, resolver *accounts.Resolver, stock *inventory.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, engine: engine, resolver: resolver, stock: stock, logger: logger, now: time.Now}
}

// Return books a sales return. Two independent entries are produced: the
// revenue reversal (DR revenue / CR accounts receivable for the returned
// subtotal) always posts; the restock entry (DR inventory / CR COGS at
// product cost) posts only when both accounts resolve and the total cost is
// positive. Product quantities are restored per line either way.
func (s *Service) Return(ctx context.Context, companyID, reference string, lines []ReturnLine, actor shared.Session) (*ReturnResult, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: company_id is required", shared.ErrValidation)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: a return needs at least one line", shared.ErrValidation)
	}
	var subtotal float64
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: returned quantity must be positive", shared.ErrValidation)
		}
		if line.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
		}
		subtotal += line.Quantity * line.UnitPrice
	}
	if subtotal <= 0 {
		return nil, fmt.Errorf("%w: return subtotal must be positive", shared.ErrValidation)
	}

	revenue, err := s.resolver.Resolve(ctx, companyID, accounts.RoleRevenue)
	if err != nil {
		return nil, fmt.Errorf("sales return: %w", err)
	}
	receivable, err := s.resolver.Resolve(ctx, companyID, accounts.RoleAccountsReceivable)
	if err != nil {
		return nil, fmt.Errorf("sales return: %w", err)
	}

	returnRec, err := s.store.Create(ctx, EntitySalesReturns, map[string]any{
		"company_id": companyID,
		"reference":  reference,
		"subtotal":   subtotal,
		"created_by": actor.UserID,
		"created_at": s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("create sales return: %w", err)
	}

	desc := "Sales return"
	if reference != "" {
		desc = fmt.Sprintf("Sales return - %s", reference)
	}
	revenueEntry, err := s.engine.Post(ctx, ledger.Draft{
		CompanyID:   companyID,
		EntryDate:   s.now().UTC().Format("2006-01-02"),
		Reference:   reference,
		Description: desc,
		SourceType:  ledger.SourceSalesReturn,
		SourceID:    returnRec.ID,
		PostedBy:    actor.UserID,
		LineItems: []ledger.LineItem{
			{AccountID: revenue.ID, Description: desc, Debit: subtotal},
			{AccountID: receivable.ID, Description: desc, Credit: subtotal},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("post sales return: %w", err)
	}

	result := &ReturnResult{
		ReturnID:     returnRec.ID,
		RevenueEntry: revenueEntry,
		Subtotal:     subtotal,
	}
	result.COGSEntry, result.COGSTotal = s.restock(ctx, companyID, returnRec.ID, desc, lines, actor)
	return result, nil
}

// restock restores on-hand quantities and, when possible, posts the
// inventory/COGS entry at product cost. Restocking is independent of the
// entry: a missing COGS account still returns the goods to stock.
func (s *Service) restock(ctx context.Context, companyID, returnID, desc string, lines []ReturnLine, actor shared.Session) (*ledger.JournalEntry, float64) {
	var cogsTotal float64
	for _, line := range lines {
		if line.ProductID == "" {
			continue
		}
		product, err := s.stock.GetProduct(ctx, line.ProductID)
		if err != nil {
			s.logger.Error("product lookup failed during return",
				slog.String("product_id", line.ProductID), slog.Any("error", err))
			continue
		}
		cogsTotal += line.Quantity * product.CostPrice
		if _, err := s.stock.Adjust(ctx, line.ProductID, line.Quantity, inventory.TxSalesReturn, "sales_return", returnID, actor); err != nil {
			s.logger.Error("restock failed",
				slog.String("product_id", line.ProductID), slog.Any("error", err))
		}
	}
	if cogsTotal <= 0 {
		return nil, cogsTotal
	}

	inventoryAcct, err := s.resolver.Resolve(ctx, companyID, accounts.RoleInventory)
	if err != nil {
		s.logInventoryCogsSkip(err)
		return nil, cogsTotal
	}
	cogsAcct, err := s.resolver.Resolve(ctx, companyID, accounts.RoleCOGS)
	if err != nil {
		s.logInventoryCogsSkip(err)
		return nil, cogsTotal
	}

	entry, err := s.engine.Post(ctx, ledger.Draft{
		CompanyID:   companyID,
		EntryDate:   s.now().UTC().Format("2006-01-02"),
		Description: desc + " (restock)",
		SourceType:  ledger.SourceSalesReturn,
		SourceID:    returnID,
		PostedBy:    actor.UserID,
		LineItems: []ledger.LineItem{
			{AccountID: inventoryAcct.ID, Description: desc, Debit: cogsTotal},
			{AccountID: cogsAcct.ID, Description: desc, Credit: cogsTotal},
		},
	})
	if err != nil {
		s.logger.Error("restock entry failed", slog.String("return_id", returnID), slog.Any("error", err))
		return nil, cogsTotal
	}
	return entry, cogsTotal
}

func (s *Service) logInventoryCogsSkip(err error) {
	if errors.Is(err, accounts.ErrRoleUnresolved) {
		s.logger.Info("skipping restock entry", slog.Any("reason", err))
		return
	}
	s.logger.Error("restock account resolution failed", slog.Any("error", err))
}
