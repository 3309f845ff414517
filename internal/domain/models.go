package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Active      bool            `json:"active"`
}

type ProductCreateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

type ProductUpdateRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	Active      *bool            `json:"active,omitempty"`
}

// CartLine is one requested entry of an incoming cart. UnitPrice, when
// non-nil, pins the line price instead of the current catalog price. The
// tax rate is never caller-supplied; it is always resolved from the
// catalog at processing time.
type CartLine struct {
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type SaleRequest struct {
	UserID        int64      `json:"user_id"`
	PaymentMethod string     `json:"payment_method"`
	Lines         []CartLine `json:"lines"`
}

// SaleLine is a finalized line of a committed sale. UnitPrice and
// TaxRate are snapshots taken at processing time, not live references.
type SaleLine struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// Subtotal is the line amount before tax: unit price times quantity.
func (l SaleLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Sale is a finalized transaction. Totals are recomputed from the lines
// during processing and never trusted from caller input. A committed
// sale is immutable; there is no update or delete path.
type Sale struct {
	ID            int64           `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	UserID        int64           `json:"user_id"`
	PaymentMethod string          `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	Total         decimal.Decimal `json:"total"`
	Lines         []SaleLine      `json:"lines"`
}

// SaleFilter carries the optional, conjunctive filters of the query
// layer. Date strings are calendar dates (2006-01-02) expanded to whole
// days before comparison. A zero value on any field means no constraint
// on that dimension.
type SaleFilter struct {
	DateFrom      string `json:"date_from"`
	DateTo        string `json:"date_to"`
	UserID        int64  `json:"user_id"`
	ProductID     int64  `json:"product_id"`
	PaymentMethod string `json:"payment_method"`
}

type SalesSummary struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type ProductSales struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	QuantitySold int64           `json:"quantity_sold"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

type SellerSales struct {
	UserID      int64           `json:"user_id"`
	Sales       int64           `json:"sales"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// RegisterResponse mirrors the legacy caller-facing result of a sale
// submission: success flag plus either the generated identifier or a
// human-readable error message.
type RegisterResponse struct {
	Success bool   `json:"success"`
	SaleID  int64  `json:"sale_id,omitempty"`
	Error   string `json:"error,omitempty"`
}
