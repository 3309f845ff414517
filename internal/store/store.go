package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alemandan/pos/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidSale       = errors.New("invalid sale")
)

// InsufficientStockError reports a failed stock check with enough detail
// for the caller to correct the cart. It unwraps to ErrInsufficientStock.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product '%s': requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// SaleCriteria is the repository-level form of a sale filter. Nil time
// bounds and zero ids mean no constraint on that dimension. ProductID
// matches sales containing at least one line for the product.
type SaleCriteria struct {
	From          *time.Time
	To            *time.Time
	UserID        int64
	ProductID     int64
	PaymentMethod string
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	// CreateSale persists the sale, its lines, and the per-line stock
	// decrements as a single atomic unit. The stock check is repeated
	// inside the same transaction; on any failure nothing is written and
	// no stock changes.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)

	FindSales(ctx context.Context, criteria SaleCriteria) ([]domain.Sale, error)
	CountSalesInRange(ctx context.Context, from time.Time, to time.Time) (int64, error)
	CountSalesByUser(ctx context.Context, userID int64, from *time.Time, to *time.Time) (int64, error)
	SalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error)
	TopProducts(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error)
	TopSellers(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SellerSales, error)
	LowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error)
}
