package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/inventory"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// Service receives goods against purchase orders and books the accounting
// side effects: inventory/AP posting, payable document, vendor outstanding
// balance, stock movements and PO fulfillment state.
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

// GetOrder loads one purchase order by id.
func (s *Service) GetOrder(ctx context.Context, id string) (*PurchaseOrder, error) {
	rec, err := s.store.Get(ctx, EntityPurchaseOrders, id)
	if err != nil {
		return nil, err
	}
	var po PurchaseOrder
	if err := rec.Decode(&po); err != nil {
		return nil, fmt.Errorf("decode purchase order %s: %w", id, err)
	}
	po.ID = rec.ID
	return &po, nil
}

// ReceiptLine is a received quantity for one PO line, matched by position.
type ReceiptLine struct {
	LineIndex int     `json:"line_index"`
	Quantity  float64 `json:"quantity"`
}

// ReceiptResult reports the outcome of a goods receipt.
type ReceiptResult struct {
	ReceiptID string               `json:"receipt_id"`
	Entry     *ledger.JournalEntry `json:"entry"`
	POStatus  string               `json:"po_status"`
	Subtotal  float64              `json:"subtotal"`
}

// Receive books a goods receipt against the purchase order: posts
// DR inventory / CR accounts payable for the received subtotal (tax
// excluded), creates an open payable, increments the vendor's outstanding
// balance, moves stock per line and recomputes the PO status.
func (s *Service) Receive(ctx context.Context, poID string, received []ReceiptLine, actor shared.Session) (*ReceiptResult, error) {
	po, err := s.GetOrder(ctx, poID)
	if err != nil {
		return nil, err
	}
	if po.Status == StatusFullyReceived {
		return nil, fmt.Errorf("%w: purchase order %s is fully received", shared.ErrInvalidState, poID)
	}

	subtotal, err := s.applyReceiptQuantities(po, received)
	if err != nil {
		return nil, err
	}
	if subtotal <= 0 {
		return nil, fmt.Errorf("%w: receipt has no received quantity", shared.ErrValidation)
	}

	inventoryAcct, err := s.resolver.Resolve(ctx, po.CompanyID, accounts.RoleInventory)
	if err != nil {
		return nil, fmt.Errorf("receive %s: %w", poID, err)
	}
	payableAcct, err := s.resolver.Resolve(ctx, po.CompanyID, accounts.RoleAccountsPayable)
	if err != nil {
		return nil, fmt.Errorf("receive %s: %w", poID, err)
	}

	receiptRec, err := s.store.Create(ctx, EntityGoodsReceipts, map[string]any{
		"company_id":  po.CompanyID,
		"po_id":       po.ID,
		"vendor_id":   po.VendorID,
		"subtotal":    subtotal,
		"received_by": actor.UserID,
		"created_at":  s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("create receipt for %s: %w", poID, err)
	}

	desc := fmt.Sprintf("Inventory receipt - PO %s", po.PONumber)
	entry, err := s.engine.Post(ctx, ledger.Draft{
		CompanyID:   po.CompanyID,
		EntryDate:   s.now().UTC().Format("2006-01-02"),
		Reference:   po.PONumber,
		Description: desc,
		SourceType:  ledger.SourceInventoryReceipt,
		SourceID:    receiptRec.ID,
		PostedBy:    actor.UserID,
		LineItems: []ledger.LineItem{
			{AccountID: inventoryAcct.ID, Description: desc, Debit: subtotal},
			{AccountID: payableAcct.ID, Description: desc, Credit: subtotal},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("post receipt for %s: %w", poID, err)
	}

	// Non-ledger side effects follow the posting; each is independent and a
	// failure is logged rather than unwinding what already happened.
	s.createPayable(ctx, po, receiptRec.ID, subtotal)
	s.bumpVendorOutstanding(ctx, po.VendorID, subtotal)
	s.moveStock(ctx, po, received, actor)
	status := s.updateOrder(ctx, po)

	return &ReceiptResult{
		ReceiptID: receiptRec.ID,
		Entry:     entry,
		POStatus:  status,
		Subtotal:  subtotal,
	}, nil
}

// applyReceiptQuantities mutates po.Lines in memory and returns the received
// subtotal at ordered unit prices, tax excluded.
func (s *Service) applyReceiptQuantities(po *PurchaseOrder, received []ReceiptLine) (float64, error) {
	var subtotal float64
	seen := make(map[int]bool, len(received))
	for _, r := range received {
		if r.LineIndex < 0 || r.LineIndex >= len(po.Lines) {
			return 0, fmt.Errorf("%w: line index %d out of range", shared.ErrValidation, r.LineIndex)
		}
		if seen[r.LineIndex] {
			return 0, fmt.Errorf("%w: line index %d appears more than once", shared.ErrValidation, r.LineIndex)
		}
		seen[r.LineIndex] = true
		if r.Quantity < 0 {
			return 0, fmt.Errorf("%w: received quantity must not be negative", shared.ErrValidation)
		}
		if r.Quantity == 0 {
			continue
		}
		line := &po.Lines[r.LineIndex]
		line.QuantityReceived += r.Quantity
		subtotal += r.Quantity * line.UnitPrice
	}
	return subtotal, nil
}

func (s *Service) createPayable(ctx context.Context, po *PurchaseOrder, receiptID string, amount float64) {
	doc, err := entitystore.Doc(Payable{
		CompanyID: po.CompanyID,
		VendorID:  po.VendorID,
		POID:      po.ID,
		ReceiptID: receiptID,
		Amount:    amount,
		Status:    PayableOpen,
		CreatedAt: s.now().UTC().Format(time.RFC3339Nano),
	})
	if err == nil {
		_, err = s.store.Create(ctx, EntityPayables, doc)
	}
	if err != nil {
		s.logger.Error("payable creation failed",
			slog.String("po_id", po.ID), slog.Any("error", err))
	}
}

func (s *Service) bumpVendorOutstanding(ctx context.Context, vendorID string, amount float64) {
	if vendorID == "" {
		return
	}
	rec, err := s.store.Get(ctx, EntityVendors, vendorID)
	if err != nil {
		s.logger.Error("vendor lookup failed", slog.String("vendor_id", vendorID), slog.Any("error", err))
		return
	}
	var vendor Vendor
	if err := rec.Decode(&vendor); err != nil {
		s.logger.Error("vendor decode failed", slog.String("vendor_id", vendorID), slog.Any("error", err))
		return
	}
	if _, err := s.store.Update(ctx, EntityVendors, vendorID, map[string]any{
		"outstanding_balance": vendor.OutstandingBalance + amount,
	}); err != nil {
		s.logger.Error("vendor outstanding update failed",
			slog.String("vendor_id", vendorID), slog.Any("error", err))
	}
}

func (s *Service) moveStock(ctx context.Context, po *PurchaseOrder, received []ReceiptLine, actor shared.Session) {
	for _, r := range received {
		if r.Quantity <= 0 {
			continue
		}
		productID := po.Lines[r.LineIndex].ProductID
		if productID == "" {
			continue
		}
		if _, err := s.stock.Adjust(ctx, productID, r.Quantity, inventory.TxReceipt, "purchase_order", po.ID, actor); err != nil {
			s.logger.Error("stock movement failed",
				slog.String("product_id", productID), slog.String("po_id", po.ID), slog.Any("error", err))
		}
	}
}

func (s *Service) updateOrder(ctx context.Context, po *PurchaseOrder) string {
	status := NextStatus(po.Status, po.Lines)
	lines := make([]map[string]any, 0, len(po.Lines))
	for _, line := range po.Lines {
		doc, err := entitystore.Doc(line)
		if err != nil {
			s.logger.Error("po line encode failed", slog.String("po_id", po.ID), slog.Any("error", err))
			return po.Status
		}
		lines = append(lines, doc)
	}
	if _, err := s.store.Update(ctx, EntityPurchaseOrders, po.ID, map[string]any{
		"lines":  lines,
		"status": status,
	}); err != nil {
		s.logger.Error("po update failed", slog.String("po_id", po.ID), slog.Any("error", err))
		return po.Status
	}
	return status
}
