// Package memory is an in-memory store.Repository used for development
// and tests. All operations run under a single mutex, so the sale commit
// (stock check, decrement, insert) is atomic the same way the postgres
// transaction is.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"alemandan/pos/internal/domain"
	"alemandan/pos/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	products      map[int64]domain.Product
	sales         []domain.Sale
	nextProductID int64
	nextSaleID    int64
	nextLineID    int64
}

func New() *Store {
	return &Store{
		products: make(map[int64]domain.Product),
		sales:    make([]domain.Sale, 0, 64),
	}
}

// NewSeeded returns a store preloaded with a small demo catalog.
func NewSeeded() *Store {
	s := New()
	seed := []domain.Product{
		{Name: "Espresso Beans 1kg", Description: "House blend, whole bean", Quantity: 40, Price: dec("18.50"), TaxRate: dec("19.00")},
		{Name: "Ceramic Mug", Description: "350ml stoneware mug", Quantity: 120, Price: dec("7.90"), TaxRate: dec("19.00")},
		{Name: "Drip Filter Pack", Description: "100 paper filters", Quantity: 75, Price: dec("3.25"), TaxRate: dec("19.00")},
		{Name: "Milk 1L", Description: "Whole milk", Quantity: 60, Price: dec("1.45"), TaxRate: dec("0.00")},
		{Name: "Gift Card", Description: "Prepaid store credit", Quantity: 200, Price: dec("25.00"), TaxRate: dec("0.00")},
		{Name: "Pour-over Kettle", Description: "Gooseneck, 1L", Quantity: 8, Price: dec("42.00"), TaxRate: dec("19.00")},
	}
	for _, p := range seed {
		p.Active = true
		if _, err := s.CreateProduct(context.Background(), p); err != nil {
			panic(err)
		}
	}
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return int(a.ID - b.ID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Quantity < 0 || product.Price.Sign() <= 0 || product.TaxRate.Sign() < 0 {
		return nil, store.ErrInvalidSale
	}

	s.nextProductID++
	product.ID = s.nextProductID
	product.Active = true
	s.products[product.ID] = product

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Quantity < 0 || product.Price.Sign() <= 0 || product.TaxRate.Sign() < 0 {
		return nil, store.ErrInvalidSale
	}
	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidSale
	}

	// Check every line before touching any stock so a failing line never
	// leaves earlier lines half-applied.
	requested := make(map[int64]int, len(sale.Lines))
	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidSale
		}
		product, exists := s.products[line.ProductID]
		if !exists {
			return nil, store.ErrNotFound
		}
		requested[line.ProductID] += line.Quantity
		if requested[line.ProductID] > product.Quantity {
			return nil, &store.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Quantity,
				Requested:   requested[line.ProductID],
			}
		}
	}

	for id, qty := range requested {
		product := s.products[id]
		product.Quantity -= qty
		s.products[id] = product
	}

	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	s.nextSaleID++
	sale.ID = s.nextSaleID
	lines := make([]domain.SaleLine, len(sale.Lines))
	copy(lines, sale.Lines)
	for i := range lines {
		s.nextLineID++
		lines[i].ID = s.nextLineID
	}
	sale.Lines = lines

	s.sales = append(s.sales, sale)
	saved := cloneSale(sale)
	return &saved, nil
}

func (s *Store) FindSales(_ context.Context, criteria store.SaleCriteria) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if criteria.From != nil && sale.CreatedAt.Before(*criteria.From) {
			continue
		}
		if criteria.To != nil && sale.CreatedAt.After(*criteria.To) {
			continue
		}
		if criteria.UserID != 0 && sale.UserID != criteria.UserID {
			continue
		}
		if criteria.ProductID != 0 && !saleContainsProduct(sale, criteria.ProductID) {
			continue
		}
		if criteria.PaymentMethod != "" && !strings.EqualFold(sale.PaymentMethod, criteria.PaymentMethod) {
			continue
		}
		result = append(result, cloneSale(sale))
	}

	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return int(b.ID - a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CountSalesInRange(_ context.Context, from time.Time, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := int64(0)
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || sale.CreatedAt.After(to) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *Store) CountSalesByUser(_ context.Context, userID int64, from *time.Time, to *time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := int64(0)
	for _, sale := range s.sales {
		if sale.UserID != userID {
			continue
		}
		if from != nil && sale.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && sale.CreatedAt.After(*to) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *Store) SalesSummary(_ context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{Total: decimal.Zero}
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || sale.CreatedAt.After(to) {
			continue
		}
		summary.Count++
		summary.Total = summary.Total.Add(sale.Total)
	}
	return summary, nil
}

func (s *Store) TopProducts(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := make(map[int64]*domain.ProductSales)
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || sale.CreatedAt.After(to) {
			continue
		}
		for _, line := range sale.Lines {
			entry, exists := byProduct[line.ProductID]
			if !exists {
				entry = &domain.ProductSales{ProductID: line.ProductID, Name: line.ProductName, TotalAmount: decimal.Zero}
				byProduct[line.ProductID] = entry
			}
			entry.QuantitySold += int64(line.Quantity)
			entry.TotalAmount = entry.TotalAmount.Add(line.Subtotal())
		}
	}

	result := make([]domain.ProductSales, 0, len(byProduct))
	for _, entry := range byProduct {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.ProductSales) int {
		if a.QuantitySold != b.QuantitySold {
			return int(b.QuantitySold - a.QuantitySold)
		}
		return int(a.ProductID - b.ProductID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) TopSellers(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.SellerSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := make(map[int64]*domain.SellerSales)
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || sale.CreatedAt.After(to) {
			continue
		}
		entry, exists := byUser[sale.UserID]
		if !exists {
			entry = &domain.SellerSales{UserID: sale.UserID, TotalAmount: decimal.Zero}
			byUser[sale.UserID] = entry
		}
		entry.Sales++
		entry.TotalAmount = entry.TotalAmount.Add(sale.Total)
	}

	result := make([]domain.SellerSales, 0, len(byUser))
	for _, entry := range byUser {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.SellerSales) int {
		if cmp := b.TotalAmount.Cmp(a.TotalAmount); cmp != 0 {
			return cmp
		}
		return int(a.UserID - b.UserID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) LowStockProducts(_ context.Context, threshold int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, 8)
	for _, product := range s.products {
		if !product.Active || product.Quantity > threshold {
			continue
		}
		result = append(result, product)
	}
	slices.SortFunc(result, func(a, b domain.Product) int {
		if a.Quantity != b.Quantity {
			return a.Quantity - b.Quantity
		}
		return int(a.ID - b.ID)
	})
	return result, nil
}

func saleContainsProduct(sale domain.Sale, productID int64) bool {
	for _, line := range sale.Lines {
		if line.ProductID == productID {
			return true
		}
	}
	return false
}

func cloneSale(sale domain.Sale) domain.Sale {
	cloned := sale
	cloned.Lines = make([]domain.SaleLine, len(sale.Lines))
	copy(cloned.Lines, sale.Lines)
	return cloned
}
