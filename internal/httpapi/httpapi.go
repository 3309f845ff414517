// Package httpapi exposes the sales engine over HTTP. The sale endpoint
// keeps the legacy contract: it always answers 200 with a success flag
// and a human-readable error message so older terminals can parse it.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"alemandan/pos/internal/domain"
	"alemandan/pos/internal/sale"
	"alemandan/pos/internal/store"
)

type API struct {
	service           *sale.Service
	logger            *zap.Logger
	lowStockThreshold int
}

func New(svc *sale.Service, logger *zap.Logger, lowStockThreshold int) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:           svc,
		logger:            logger,
		lowStockThreshold: lowStockThreshold,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", a.handleListProducts)
		r.Post("/products", a.handleCreateProduct)
		r.Put("/products/{id}", a.handleUpdateProduct)

		r.Post("/sales", a.handleRegisterSale)
		r.Get("/sales", a.handleListSales)

		r.Get("/reports/summary", a.handleSummary)
		r.Get("/reports/top-products", a.handleTopProducts)
		r.Get("/reports/top-sellers", a.handleTopSellers)
		r.Get("/reports/low-stock", a.handleLowStock)
	})

	return r
}

func (a *API) handleRegisterSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeJSON(w, http.StatusOK, domain.RegisterResponse{Success: false, Error: "invalid request body"})
		return
	}

	saved, err := a.service.Process(r.Context(), req)
	if err != nil {
		var saleErr *sale.Error
		if errors.As(err, &saleErr) && !saleErr.Recoverable() {
			a.logger.Error("sale failed", zap.Error(err))
		}
		a.writeJSON(w, http.StatusOK, domain.RegisterResponse{Success: false, Error: err.Error()})
		return
	}

	a.writeJSON(w, http.StatusOK, domain.RegisterResponse{Success: true, SaleID: saved.ID})
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.SaleFilter{
		DateFrom:      q.Get("date_from"),
		DateTo:        q.Get("date_to"),
		UserID:        parseID(q.Get("user_id")),
		ProductID:     parseID(q.Get("product_id")),
		PaymentMethod: q.Get("payment_method"),
	}

	sales, err := a.service.Filter(r.Context(), filter)
	if err != nil {
		if errors.Is(err, sale.ErrInvalidFilter) {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := a.service.Summary(r.Context(), q.Get("date_from"), q.Get("date_to"))
	if err != nil {
		if errors.Is(err, sale.ErrInvalidFilter) {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parsePositiveLimit(q.Get("limit"), 5, 50)
	top, err := a.service.TopProducts(r.Context(), q.Get("date_from"), q.Get("date_to"), limit)
	if err != nil {
		if errors.Is(err, sale.ErrInvalidFilter) {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"products": top})
}

func (a *API) handleTopSellers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parsePositiveLimit(q.Get("limit"), 5, 50)
	top, err := a.service.TopSellers(r.Context(), q.Get("date_from"), q.Get("date_to"), limit)
	if err != nil {
		if errors.Is(err, sale.ErrInvalidFilter) {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"sellers": top})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := a.lowStockThreshold
	if raw := strings.TrimSpace(r.URL.Query().Get("threshold")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			threshold = parsed
		}
	}

	products, err := a.service.LowStock(r.Context(), threshold)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	created, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		if errors.Is(err, sale.ErrInvalidFilter) {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := parseID(chi.URLParam(r, "id"))
	if id == 0 {
		a.writeError(w, http.StatusBadRequest, errors.New("invalid product id"))
		return
	}

	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	updated, err := a.service.UpdateProduct(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			a.writeError(w, http.StatusNotFound, errors.New("product not found"))
		case errors.Is(err, sale.ErrInvalidFilter):
			a.writeError(w, http.StatusBadRequest, err)
		default:
			a.writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	a.writeJSON(w, http.StatusOK, updated)
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		a.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parseID(raw string) int64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses carry a generic message; the real cause goes to the log.
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	a.writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
