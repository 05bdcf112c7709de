package procurement

// Entity collection names in the entity store.
const (
	EntityPurchaseOrders = "purchase_orders"
	EntityGoodsReceipts  = "goods_receipts"
	EntityPayables       = "payables"
	EntityVendors        = "vendors"
)

// Purchase order statuses.
const (
	StatusSent              = "sent"
	StatusAcknowledged      = "acknowledged"
	StatusPartiallyReceived = "partially_received"
	StatusFullyReceived     = "fully_received"
)

// Payable document statuses.
const (
	PayableOpen = "open"
	PayablePaid = "paid"
)

// POLine is one ordered item on a purchase order.
type POLine struct {
	ProductID        string  `json:"product_id"`
	Description      string  `json:"description,omitempty"`
	QuantityOrdered  float64 `json:"quantity_ordered"`
	QuantityReceived float64 `json:"quantity_received"`
	UnitPrice        float64 `json:"unit_price"`
}

// PurchaseOrder tracks ordered goods through receipt. Subtotal excludes tax;
// the journal recipe books the subtotal only.
type PurchaseOrder struct {
	ID        string   `json:"id,omitempty"`
	CompanyID string   `json:"company_id"`
	PONumber  string   `json:"po_number"`
	VendorID  string   `json:"vendor_id"`
	OrderDate string   `json:"order_date"`
	Status    string   `json:"status"`
	Lines     []POLine `json:"lines"`
	Subtotal  float64  `json:"subtotal"`
	TaxAmount float64  `json:"tax_amount"`
	Total     float64  `json:"total"`
}

// Vendor carries the running outstanding balance incremented per receipt.
type Vendor struct {
	ID                 string  `json:"id,omitempty"`
	CompanyID          string  `json:"company_id"`
	VendorName         string  `json:"vendor_name"`
	OutstandingBalance float64 `json:"outstanding_balance"`
	IsActive           bool    `json:"is_active"`
}

// Payable is the AP tracking document created alongside a receipt posting.
type Payable struct {
	ID        string  `json:"id,omitempty"`
	CompanyID string  `json:"company_id"`
	VendorID  string  `json:"vendor_id"`
	POID      string  `json:"po_id"`
	ReceiptID string  `json:"receipt_id"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

// NextStatus recomputes a purchase order's status after a receipt. Fully
// received when every line is at or over its ordered quantity, partially
// received when anything has arrived, otherwise unchanged.
func NextStatus(current string, lines []POLine) string {
	if len(lines) == 0 {
		return current
	}
	full := true
	any := false
	for _, line := range lines {
		if line.QuantityReceived < line.QuantityOrdered {
			full = false
		}
		if line.QuantityReceived > 0 {
			any = true
		}
	}
	switch {
	case full:
		return StatusFullyReceived
	case any:
		return StatusPartiallyReceived
	default:
		return current
	}
}
