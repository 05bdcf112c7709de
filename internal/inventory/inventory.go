package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// Entity collection names in the entity store.
const (
	EntityProducts              = "products"
	EntityInventoryTransactions = "inventory_transactions"
)

// Transaction types recorded on the stock card.
const (
	TxReceipt     = "receipt"
	TxSalesReturn = "sales_return"
	TxAdjustment  = "adjustment"
)

// Product is a stocked item. CostPrice feeds the COGS leg of sales returns.
type Product struct {
	ID             string  `json:"id,omitempty"`
	CompanyID      string  `json:"company_id"`
	SKU            string  `json:"sku"`
	ProductName    string  `json:"product_name"`
	CostPrice      float64 `json:"cost_price"`
	UnitPrice      float64 `json:"unit_price"`
	QuantityOnHand float64 `json:"quantity_on_hand"`
	IsActive       bool    `json:"is_active"`
}

// Transaction is one stock-card row. Quantity carries the signed change;
// QuantityAfter snapshots the resulting on-hand level.
type Transaction struct {
	ID              string  `json:"id,omitempty"`
	CompanyID       string  `json:"company_id"`
	ProductID       string  `json:"product_id"`
	TransactionType string  `json:"transaction_type"`
	Quantity        float64 `json:"quantity"`
	QuantityAfter   float64 `json:"quantity_after"`
	ReferenceType   string  `json:"reference_type,omitempty"`
	ReferenceID     string  `json:"reference_id,omitempty"`
	CreatedBy       string  `json:"created_by,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// Service adjusts product on-hand quantities and keeps the stock card.
type Service struct {
	store  entitystore.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store entitystore.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	s.now = now
}

// GetProduct loads one product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	rec, err := s.store.Get(ctx, EntityProducts, id)
	if err != nil {
		return nil, err
	}
	var p Product
	if err := rec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode product %s: %w", id, err)
	}
	p.ID = rec.ID
	return &p, nil
}

// Adjust changes a product's on-hand quantity by qty (signed) and writes a
// stock-card row. Returns the quantity after the change.
func (s *Service) Adjust(ctx context.Context, productID string, qty float64, txType, refType, refID string, actor shared.Session) (float64, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("adjust product %s: %w", productID, err)
	}

	after := product.QuantityOnHand + qty
	if _, err := s.store.Update(ctx, EntityProducts, productID, map[string]any{
		"quantity_on_hand": after,
	}); err != nil {
		return 0, fmt.Errorf("update quantity for %s: %w", productID, err)
	}

	tx := Transaction{
		CompanyID:       product.CompanyID,
		ProductID:       productID,
		TransactionType: txType,
		Quantity:        qty,
		QuantityAfter:   after,
		ReferenceType:   refType,
		ReferenceID:     refID,
		CreatedBy:       actor.UserID,
		CreatedAt:       s.now().UTC().Format(time.RFC3339Nano),
	}
	doc, err := entitystore.Doc(tx)
	if err != nil {
		return after, fmt.Errorf("encode stock transaction: %w", err)
	}
	if _, err := s.store.Create(ctx, EntityInventoryTransactions, doc); err != nil {
		// The quantity moved; a missing card row is an audit gap, not a
		// reason to fail the business operation.
		s.logger.Error("stock transaction write failed",
			slog.String("product_id", productID), slog.Any("error", err))
	}
	return after, nil
}

// Transactions returns a product's stock card, oldest first.
func (s *Service) Transactions(ctx context.Context, productID string) ([]Transaction, error) {
	records, err := s.store.Filter(ctx, EntityInventoryTransactions,
		entitystore.Query{"product_id": productID},
		entitystore.WithSort("created_at", false))
	if err != nil {
		return nil, fmt.Errorf("list stock transactions: %w", err)
	}
	out := make([]Transaction, 0, len(records))
	for _, rec := range records {
		var tx Transaction
		if err := rec.Decode(&tx); err != nil {
			s.logger.Warn("skipping undecodable stock transaction", slog.String("id", rec.ID), slog.Any("error", err))
			continue
		}
		tx.ID = rec.ID
		out = append(out, tx)
	}
	return out, nil
}
