package sale

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"alemandan/pos/internal/domain"
	"alemandan/pos/internal/store"
)

const dateLayout = "2006-01-02"

// Filter returns the committed sales matching the given conjunctive
// filters. Date bounds are calendar dates expanded to whole days: the
// lower bound becomes 00:00:00 and the upper bound 23:59:59 of that day,
// both inclusive. Empty filter fields impose no constraint.
func (s *Service) Filter(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	criteria := store.SaleCriteria{
		UserID:        filter.UserID,
		ProductID:     filter.ProductID,
		PaymentMethod: strings.TrimSpace(filter.PaymentMethod),
	}

	if strings.TrimSpace(filter.DateFrom) != "" {
		day, err := time.Parse(dateLayout, strings.TrimSpace(filter.DateFrom))
		if err != nil {
			return nil, fmt.Errorf("%w: date_from %q", ErrInvalidFilter, filter.DateFrom)
		}
		from := day.UTC()
		criteria.From = &from
	}
	if strings.TrimSpace(filter.DateTo) != "" {
		day, err := time.Parse(dateLayout, strings.TrimSpace(filter.DateTo))
		if err != nil {
			return nil, fmt.Errorf("%w: date_to %q", ErrInvalidFilter, filter.DateTo)
		}
		to := day.UTC().Add(24*time.Hour - time.Second)
		criteria.To = &to
	}

	return s.repo.FindSales(ctx, criteria)
}

// Summary aggregates total amount and sale count over a period. Results
// are cached briefly; the cache is best-effort and any cache error falls
// back to the repository.
func (s *Service) Summary(ctx context.Context, dateFrom string, dateTo string) (domain.SalesSummary, error) {
	from, to, err := s.parseRange(dateFrom, dateTo)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	key := fmt.Sprintf("sales:summary:%d:%d", from.Unix(), to.Unix())
	if cached, ok, err := s.summaries.Get(ctx, key); err == nil && ok {
		return *cached, nil
	}

	summary, err := s.repo.SalesSummary(ctx, from, to)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	if err := s.summaries.Set(ctx, key, &summary, s.summaryTTL); err != nil {
		s.logger.Warn("summary cache write failed", zap.String("key", key), zap.Error(err))
	}
	return summary, nil
}

// TopProducts returns the best-selling products by quantity over a
// period, most sold first.
func (s *Service) TopProducts(ctx context.Context, dateFrom string, dateTo string, limit int) ([]domain.ProductSales, error) {
	from, to, err := s.parseRange(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 5
	}
	return s.repo.TopProducts(ctx, from, to, limit)
}

// TopSellers returns the acting users with the highest total sale amount
// over a period.
func (s *Service) TopSellers(ctx context.Context, dateFrom string, dateTo string, limit int) ([]domain.SellerSales, error) {
	from, to, err := s.parseRange(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 5
	}
	return s.repo.TopSellers(ctx, from, to, limit)
}

// LowStock lists active products at or below the threshold.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	if threshold < 0 {
		threshold = 0
	}
	return s.repo.LowStockProducts(ctx, threshold)
}

// CountSalesToday counts all sales committed today (UTC).
func (s *Service) CountSalesToday(ctx context.Context) (int64, error) {
	from, to := dayBounds(time.Now().UTC())
	return s.repo.CountSalesInRange(ctx, from, to)
}

// CountUserSalesToday counts today's sales for one acting user.
func (s *Service) CountUserSalesToday(ctx context.Context, userID int64) (int64, error) {
	from, to := dayBounds(time.Now().UTC())
	return s.repo.CountSalesByUser(ctx, userID, &from, &to)
}

// CountUserSales counts all sales ever committed by one acting user.
func (s *Service) CountUserSales(ctx context.Context, userID int64) (int64, error) {
	return s.repo.CountSalesByUser(ctx, userID, nil, nil)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.Quantity < 0 || req.Price.Sign() <= 0 || req.TaxRate.Sign() < 0 {
		return domain.Product{}, fmt.Errorf("%w: product fields", ErrInvalidFilter)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
		Price:       req.Price,
		TaxRate:     req.TaxRate,
		Active:      true,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

// UpdateProduct applies a partial update. Nil fields keep the stored
// value; the merged product is re-validated before saving.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	current, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	merged := *current
	if req.Name != nil {
		merged.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		merged.Description = strings.TrimSpace(*req.Description)
	}
	if req.Quantity != nil {
		merged.Quantity = *req.Quantity
	}
	if req.Price != nil {
		merged.Price = *req.Price
	}
	if req.TaxRate != nil {
		merged.TaxRate = *req.TaxRate
	}
	if req.Active != nil {
		merged.Active = *req.Active
	}
	if merged.Name == "" || merged.Quantity < 0 || merged.Price.Sign() <= 0 || merged.TaxRate.Sign() < 0 {
		return domain.Product{}, fmt.Errorf("%w: product fields", ErrInvalidFilter)
	}

	updated, err := s.repo.UpdateProduct(ctx, merged)
	if err != nil {
		return domain.Product{}, err
	}
	return *updated, nil
}

// parseRange turns optional calendar-date strings into an inclusive
// range of whole days. Both bounds default to today.
func (s *Service) parseRange(dateFrom string, dateTo string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, _ := dayBounds(now)
	_, to := dayBounds(now)

	if strings.TrimSpace(dateFrom) != "" {
		day, err := time.Parse(dateLayout, strings.TrimSpace(dateFrom))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: date_from %q", ErrInvalidFilter, dateFrom)
		}
		from = day.UTC()
	}
	if strings.TrimSpace(dateTo) != "" {
		day, err := time.Parse(dateLayout, strings.TrimSpace(dateTo))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: date_to %q", ErrInvalidFilter, dateTo)
		}
		to = day.UTC().Add(24*time.Hour - time.Second)
	}
	return from, to, nil
}

func dayBounds(at time.Time) (time.Time, time.Time) {
	start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Second)
}
