package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alemandan/pos/internal/domain"
	"alemandan/pos/internal/store"
)

func createProduct(t *testing.T, s *Store, name string, qty int, price string, taxRate string) domain.Product {
	t.Helper()
	created, err := s.CreateProduct(context.Background(), domain.Product{
		Name:     name,
		Quantity: qty,
		Price:    dec(price),
		TaxRate:  dec(taxRate),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return *created
}

func buildSale(at time.Time, userID int64, payment string, lines ...domain.SaleLine) domain.Sale {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return domain.Sale{
		CreatedAt:     at,
		UserID:        userID,
		PaymentMethod: payment,
		Subtotal:      total,
		TaxTotal:      decimal.Zero,
		Total:         total,
		Lines:         lines,
	}
}

func line(p domain.Product, qty int) domain.SaleLine {
	return domain.SaleLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    qty,
		UnitPrice:   p.Price,
		TaxRate:     p.TaxRate,
		TaxAmount:   decimal.Zero,
	}
}

func TestCreateSaleDecrementsStockAndAssignsIDs(t *testing.T) {
	s := New()
	product := createProduct(t, s, "Widget", 10, "5.00", "0")

	saved, err := s.CreateSale(context.Background(), buildSale(time.Now().UTC(), 1, "cash", line(product, 4)))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if saved.ID == 0 {
		t.Fatalf("expected sale id to be assigned")
	}
	if saved.Lines[0].ID == 0 {
		t.Fatalf("expected line id to be assigned")
	}

	after, err := s.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Quantity != 6 {
		t.Fatalf("expected quantity 6, got %d", after.Quantity)
	}
}

func TestCreateSaleRejectsOverAccumulatedQuantity(t *testing.T) {
	s := New()
	product := createProduct(t, s, "Widget", 5, "5.00", "0")

	_, err := s.CreateSale(context.Background(), buildSale(time.Now().UTC(), 1, "cash",
		line(product, 3), line(product, 3)))
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected typed stock error, got %v", err)
	}
	if stockErr.Available != 5 || stockErr.Requested != 6 {
		t.Fatalf("unexpected stock error detail: %+v", stockErr)
	}

	after, _ := s.GetProduct(context.Background(), product.ID)
	if after.Quantity != 5 {
		t.Fatalf("stock changed on rejected sale: %d", after.Quantity)
	}
}

func TestCreateSaleRejectsUnknownProductWithoutSideEffects(t *testing.T) {
	s := New()
	known := createProduct(t, s, "Widget", 5, "5.00", "0")

	unknown := domain.SaleLine{ProductID: 999, ProductName: "ghost", Quantity: 1, UnitPrice: dec("1.00")}
	_, err := s.CreateSale(context.Background(), buildSale(time.Now().UTC(), 1, "cash",
		line(known, 2), unknown))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	after, _ := s.GetProduct(context.Background(), known.ID)
	if after.Quantity != 5 {
		t.Fatalf("stock changed on rejected sale: %d", after.Quantity)
	}
}

func TestCreateSalePreservesExplicitTimestamp(t *testing.T) {
	s := New()
	product := createProduct(t, s, "Widget", 5, "5.00", "0")

	at := time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)
	saved, err := s.CreateSale(context.Background(), buildSale(at, 1, "cash", line(product, 1)))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !saved.CreatedAt.Equal(at) {
		t.Fatalf("expected created_at %s, got %s", at, saved.CreatedAt)
	}
}

func TestFindSalesOrdersNewestFirst(t *testing.T) {
	s := New()
	product := createProduct(t, s, "Widget", 100, "5.00", "0")

	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	older, _ := s.CreateSale(context.Background(), buildSale(base, 1, "cash", line(product, 1)))
	newer, _ := s.CreateSale(context.Background(), buildSale(base.Add(time.Hour), 1, "cash", line(product, 1)))

	sales, err := s.FindSales(context.Background(), store.SaleCriteria{})
	if err != nil {
		t.Fatalf("find sales: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales, got %d", len(sales))
	}
	if sales[0].ID != newer.ID || sales[1].ID != older.ID {
		t.Fatalf("unexpected order: %d, %d", sales[0].ID, sales[1].ID)
	}
}

func TestFindSalesFiltersByProductLine(t *testing.T) {
	s := New()
	widget := createProduct(t, s, "Widget", 100, "5.00", "0")
	gadget := createProduct(t, s, "Gadget", 100, "8.00", "0")

	at := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	withWidget, _ := s.CreateSale(context.Background(), buildSale(at, 1, "cash", line(widget, 1), line(gadget, 1)))
	s.CreateSale(context.Background(), buildSale(at, 1, "cash", line(gadget, 1)))

	sales, err := s.FindSales(context.Background(), store.SaleCriteria{ProductID: widget.ID})
	if err != nil {
		t.Fatalf("find sales: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != withWidget.ID {
		t.Fatalf("expected only the widget sale, got %d results", len(sales))
	}
}

func TestFindSalesTimeBoundsAreInclusive(t *testing.T) {
	s := New()
	product := createProduct(t, s, "Widget", 100, "5.00", "0")

	from := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Second)

	onFrom, _ := s.CreateSale(context.Background(), buildSale(from, 1, "cash", line(product, 1)))
	onTo, _ := s.CreateSale(context.Background(), buildSale(to, 1, "cash", line(product, 1)))
	s.CreateSale(context.Background(), buildSale(to.Add(time.Second), 1, "cash", line(product, 1)))

	sales, err := s.FindSales(context.Background(), store.SaleCriteria{From: &from, To: &to})
	if err != nil {
		t.Fatalf("find sales: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales in range, got %d", len(sales))
	}
	found := map[int64]bool{}
	for _, sale := range sales {
		found[sale.ID] = true
	}
	if !found[onFrom.ID] || !found[onTo.ID] {
		t.Fatalf("boundary sales missing from result")
	}
}

func TestAggregates(t *testing.T) {
	s := New()
	widget := createProduct(t, s, "Widget", 100, "10.00", "0")
	gadget := createProduct(t, s, "Gadget", 100, "20.00", "0")

	at := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	s.CreateSale(context.Background(), buildSale(at, 1, "cash", line(widget, 3)))
	s.CreateSale(context.Background(), buildSale(at, 2, "card", line(gadget, 1)))
	s.CreateSale(context.Background(), buildSale(at, 2, "card", line(widget, 1)))

	from := at.Add(-time.Hour)
	to := at.Add(time.Hour)

	summary, err := s.SalesSummary(context.Background(), from, to)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 3 {
		t.Fatalf("expected count 3, got %d", summary.Count)
	}
	if !summary.Total.Equal(dec("60.00")) {
		t.Fatalf("expected total 60.00, got %s", summary.Total)
	}

	top, err := s.TopProducts(context.Background(), from, to, 1)
	if err != nil {
		t.Fatalf("top products: %v", err)
	}
	if len(top) != 1 || top[0].ProductID != widget.ID || top[0].QuantitySold != 4 {
		t.Fatalf("unexpected top products: %+v", top)
	}

	sellers, err := s.TopSellers(context.Background(), from, to, 5)
	if err != nil {
		t.Fatalf("top sellers: %v", err)
	}
	if len(sellers) != 2 || sellers[0].UserID != 1 {
		t.Fatalf("unexpected top sellers: %+v", sellers)
	}

	count, err := s.CountSalesByUser(context.Background(), 2, &from, &to)
	if err != nil {
		t.Fatalf("count by user: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 sales for user 2, got %d", count)
	}
}

func TestLowStockProductsSkipsInactive(t *testing.T) {
	s := New()
	low := createProduct(t, s, "Low", 2, "5.00", "0")
	createProduct(t, s, "Fine", 50, "5.00", "0")
	retired := createProduct(t, s, "Retired", 0, "5.00", "0")
	retired.Active = false
	if _, err := s.UpdateProduct(context.Background(), retired); err != nil {
		t.Fatalf("update product: %v", err)
	}

	products, err := s.LowStockProducts(context.Background(), 5)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(products) != 1 || products[0].ID != low.ID {
		t.Fatalf("unexpected low stock result: %+v", products)
	}
}

func TestUpdateProductUnknownID(t *testing.T) {
	s := New()
	_, err := s.UpdateProduct(context.Background(), domain.Product{
		ID: 42, Name: "Ghost", Quantity: 1, Price: dec("1.00"),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewSeededHasSellableCatalog(t *testing.T) {
	s := NewSeeded()
	products, err := s.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("expected seeded products")
	}
	for _, p := range products {
		if !p.Active || p.Price.Sign() <= 0 {
			t.Fatalf("unsellable seeded product: %+v", p)
		}
	}
}
