// Package postgres is the production store.Repository backed by
// PostgreSQL via database/sql and the pgx stdlib driver. Sale commits
// run in a single serializable transaction with row locks on the
// affected products.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"alemandan/pos/internal/domain"
	"alemandan/pos/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, quantity, price, tax_rate, active
		FROM products
		WHERE active = true
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Quantity, &p.Price, &p.TaxRate, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, quantity, price, tax_rate, active
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Description, &product.Quantity, &product.Price, &product.TaxRate, &product.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Quantity < 0 || product.Price.Sign() <= 0 || product.TaxRate.Sign() < 0 {
		return nil, store.ErrInvalidSale
	}

	product.Active = true
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, quantity, price, tax_rate, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
		RETURNING id
	`, product.Name, product.Description, product.Quantity, product.Price, product.TaxRate, product.Active).Scan(&product.ID)
	if err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Quantity < 0 || product.Price.Sign() <= 0 || product.TaxRate.Sign() < 0 {
		return nil, store.ErrInvalidSale
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, quantity = $3, price = $4, tax_rate = $5, active = $6, updated_at = now()
		WHERE id = $7
	`, product.Name, product.Description, product.Quantity, product.Price, product.TaxRate, product.Active, product.ID)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

// CreateSale locks the affected product rows, re-checks stock against
// the accumulated per-product quantities, decrements it, and inserts the
// sale with its lines. The deferred rollback undoes everything if any
// step fails.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidSale
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	ids := uniqueProductIDs(sale.Lines)

	productRows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, quantity
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	type lockedProduct struct {
		name     string
		quantity int
	}
	locked := make(map[int64]lockedProduct, len(ids))
	for productRows.Next() {
		var id int64
		var p lockedProduct
		if err := productRows.Scan(&id, &p.name, &p.quantity); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		locked[id] = p
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	requested := make(map[int64]int, len(ids))
	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidSale
		}
		product, exists := locked[line.ProductID]
		if !exists {
			return nil, store.ErrNotFound
		}
		requested[line.ProductID] += line.Quantity
		if requested[line.ProductID] > product.quantity {
			return nil, &store.InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: product.name,
				Available:   product.quantity,
				Requested:   requested[line.ProductID],
			}
		}
	}

	for id, qty := range requested {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $1, updated_at = now()
			WHERE id = $2
		`, qty, id)
		if err != nil {
			return nil, err
		}
	}

	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO sales (created_at, user_id, payment_method, subtotal, tax_total, total)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, sale.CreatedAt, sale.UserID, sale.PaymentMethod, sale.Subtotal, sale.TaxTotal, sale.Total).Scan(&sale.ID)
	if err != nil {
		return nil, err
	}

	for i := range sale.Lines {
		line := &sale.Lines[i]
		err = pgTx.QueryRowContext(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, product_name, quantity, unit_price, tax_rate, tax_amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`, sale.ID, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice, line.TaxRate, line.TaxAmount).Scan(&line.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	saved := sale
	return &saved, nil
}

func (s *Store) FindSales(ctx context.Context, criteria store.SaleCriteria) ([]domain.Sale, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if criteria.From != nil {
		conditions = append(conditions, "created_at >= "+arg(*criteria.From))
	}
	if criteria.To != nil {
		conditions = append(conditions, "created_at <= "+arg(*criteria.To))
	}
	if criteria.UserID != 0 {
		conditions = append(conditions, "user_id = "+arg(criteria.UserID))
	}
	if criteria.ProductID != 0 {
		conditions = append(conditions, "id IN (SELECT sale_id FROM sale_lines WHERE product_id = "+arg(criteria.ProductID)+")")
	}
	if criteria.PaymentMethod != "" {
		conditions = append(conditions, "LOWER(payment_method) = LOWER("+arg(criteria.PaymentMethod)+")")
	}

	query := `
		SELECT id, created_at, user_id, payment_method, subtotal, tax_total, total
		FROM sales
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	saleIDs := make([]int64, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.CreatedAt, &sale.UserID, &sale.PaymentMethod, &sale.Subtotal, &sale.TaxTotal, &sale.Total); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		saleIDs = append(saleIDs, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}

	lineRows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, tax_rate, tax_amount
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY id
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()

	bySale := make(map[int64][]domain.SaleLine, len(sales))
	for lineRows.Next() {
		var saleID int64
		var line domain.SaleLine
		if err := lineRows.Scan(&line.ID, &saleID, &line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice, &line.TaxRate, &line.TaxAmount); err != nil {
			return nil, err
		}
		bySale[saleID] = append(bySale[saleID], line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		sales[i].Lines = bySale[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) CountSalesInRange(ctx context.Context, from time.Time, to time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sales
		WHERE created_at >= $1 AND created_at <= $2
	`, from, to).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CountSalesByUser(ctx context.Context, userID int64, from *time.Time, to *time.Time) (int64, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}
	if from != nil {
		args = append(args, *from)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sales WHERE `+strings.Join(conditions, " AND "),
		args...).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) SalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0)
		FROM sales
		WHERE created_at >= $1 AND created_at <= $2
	`, from, to).Scan(&summary.Count, &summary.Total)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	return summary, nil
}

func (s *Store) TopProducts(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.product_id, l.product_name, SUM(l.quantity), SUM(l.unit_price * l.quantity)
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		WHERE s.created_at >= $1 AND s.created_at <= $2
		GROUP BY l.product_id, l.product_name
		ORDER BY SUM(l.quantity) DESC, l.product_id
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.ProductSales, 0, limit)
	for rows.Next() {
		var entry domain.ProductSales
		if err := rows.Scan(&entry.ProductID, &entry.Name, &entry.QuantitySold, &entry.TotalAmount); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) TopSellers(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SellerSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*), SUM(total)
		FROM sales
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY user_id
		ORDER BY SUM(total) DESC, user_id
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.SellerSales, 0, limit)
	for rows.Next() {
		var entry domain.SellerSales
		if err := rows.Scan(&entry.UserID, &entry.Sales, &entry.TotalAmount); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) LowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, quantity, price, tax_rate, active
		FROM products
		WHERE active = true AND quantity <= $1
		ORDER BY quantity, id
	`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Quantity, &p.Price, &p.TaxRate, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func uniqueProductIDs(lines []domain.SaleLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}
