// Package sale implements the point-of-sale transaction engine: cart
// validation, per-line tax computation, atomic stock decrement plus sale
// persistence, and the read-only query and report layer over committed
// sales.
package sale

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"alemandan/pos/internal/cache"
	"alemandan/pos/internal/domain"
	"alemandan/pos/internal/store"
	"alemandan/pos/internal/tax"
)

type Service struct {
	repo       store.Repository
	summaries  cache.SummaryCache
	logger     *zap.Logger
	summaryTTL time.Duration
}

func New(repo store.Repository, summaries cache.SummaryCache, logger *zap.Logger, summaryTTL time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}
	if summaryTTL <= 0 {
		summaryTTL = time.Minute
	}
	return &Service{
		repo:       repo,
		summaries:  summaries,
		logger:     logger,
		summaryTTL: summaryTTL,
	}
}

// Process runs the full sale pipeline: validate the cart, resolve each
// line against the catalog, compute tax, derive totals, and persist the
// sale together with the stock decrements as one atomic unit. On any
// failure it returns a typed *Error and leaves no partial state.
func (s *Service) Process(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	createdAt := time.Now().UTC()

	products, err := s.validate(ctx, req)
	if err != nil {
		return domain.Sale{}, err
	}

	lines := make([]domain.SaleLine, 0, len(req.Lines))
	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	for _, item := range req.Lines {
		product := products[item.ProductID]

		unitPrice := product.Price
		if item.UnitPrice != nil {
			// Caller-pinned line price. The tax rate is still taken live
			// from the catalog.
			unitPrice = *item.UnitPrice
		}

		line := domain.SaleLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			TaxRate:     product.TaxRate,
			TaxAmount:   tax.LineTax(unitPrice, item.Quantity, product.TaxRate),
		}
		lines = append(lines, line)
		subtotal = subtotal.Add(line.Subtotal())
		taxTotal = taxTotal.Add(line.TaxAmount)
	}

	draft := domain.Sale{
		CreatedAt:     createdAt,
		UserID:        req.UserID,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Subtotal:      subtotal.Round(2),
		TaxTotal:      taxTotal.Round(2),
		Lines:         lines,
	}
	draft.Total = draft.Subtotal.Add(draft.TaxTotal).Round(2)

	saved, err := s.repo.CreateSale(ctx, draft)
	if err != nil {
		return domain.Sale{}, s.mapStoreError(err)
	}

	s.logger.Info("sale committed",
		zap.Int64("sale_id", saved.ID),
		zap.Int64("user_id", saved.UserID),
		zap.String("payment_method", saved.PaymentMethod),
		zap.Int("lines", len(saved.Lines)),
		zap.String("total", saved.Total.String()),
	)
	return *saved, nil
}

// Register is the legacy-compatible adapter around Process: the returned
// message is empty on success and human-readable on rejection.
func (s *Service) Register(ctx context.Context, req domain.SaleRequest) (int64, string) {
	saved, err := s.Process(ctx, req)
	if err != nil {
		return 0, err.Error()
	}
	return saved.ID, ""
}

// validate runs the read-only preconditions on the cart in cart order:
// non-empty cart, positive quantities, resolvable products, and enough
// stock per line. It mutates nothing; the stock check is repeated inside
// the commit transaction by the repository. The resolved products are
// returned so processing does not look them up twice.
func (s *Service) validate(ctx context.Context, req domain.SaleRequest) (map[int64]domain.Product, error) {
	if len(req.Lines) == 0 {
		return nil, &Error{Kind: KindEmptyCart}
	}

	products := make(map[int64]domain.Product, len(req.Lines))
	requested := make(map[int64]int, len(req.Lines))
	for _, item := range req.Lines {
		product, ok := products[item.ProductID]
		if !ok {
			found, err := s.repo.GetProduct(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, &Error{Kind: KindProductNotFound, ProductID: item.ProductID}
				}
				return nil, &Error{Kind: KindUnexpected, ProductID: item.ProductID, cause: err}
			}
			product = *found
			products[item.ProductID] = product
		}

		if item.Quantity < 1 {
			return nil, &Error{Kind: KindInvalidQuantity, ProductID: product.ID, ProductName: product.Name}
		}

		// The same product may appear on several lines; the stock check
		// covers the accumulated quantity.
		requested[item.ProductID] += item.Quantity
		if requested[item.ProductID] > product.Quantity {
			return nil, &Error{
				Kind:        KindInsufficientStock,
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Quantity,
			}
		}
	}

	return products, nil
}

func (s *Service) mapStoreError(err error) error {
	var stockErr *store.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return &Error{
			Kind:        KindInsufficientStock,
			ProductID:   stockErr.ProductID,
			ProductName: stockErr.ProductName,
			Available:   stockErr.Available,
		}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindProductNotFound}
	case errors.Is(err, store.ErrInvalidSale):
		return &Error{Kind: KindEmptyCart}
	default:
		s.logger.Error("sale persistence failed", zap.Error(err))
		return &Error{Kind: KindPersistence, cause: err}
	}
}
