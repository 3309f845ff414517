package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alemandan/pos/internal/cache"
	"alemandan/pos/internal/domain"
	"alemandan/pos/internal/sale"
	"alemandan/pos/internal/store/memory"
)

func newTestAPI(t *testing.T) (*API, *memory.Store) {
	t.Helper()
	repo := memory.New()
	svc := sale.New(repo, cache.NoopSummaryCache{}, nil, time.Minute)
	return New(svc, nil, 5), repo
}

func createProduct(t *testing.T, repo *memory.Store, name string, qty int, price string, taxRate string) domain.Product {
	t.Helper()
	created, err := repo.CreateProduct(context.Background(), domain.Product{
		Name:     name,
		Quantity: qty,
		Price:    decimal.RequireFromString(price),
		TaxRate:  decimal.RequireFromString(taxRate),
	})
	require.NoError(t, err)
	return *created
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRegisterSaleSuccessEnvelope(t *testing.T) {
	api, repo := newTestAPI(t)
	product := createProduct(t, repo, "Widget", 10, "100.00", "19.00")
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", domain.SaleRequest{
		UserID:        1,
		PaymentMethod: "cash",
		Lines:         []domain.CartLine{{ProductID: product.ID, Quantity: 2}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotZero(t, resp.SaleID)
	assert.Empty(t, resp.Error)
}

func TestRegisterSaleFailureStillAnswers200(t *testing.T) {
	api, repo := newTestAPI(t)
	product := createProduct(t, repo, "Widget", 1, "100.00", "19.00")
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", domain.SaleRequest{
		UserID: 1,
		Lines:  []domain.CartLine{{ProductID: product.ID, Quantity: 5}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Zero(t, resp.SaleID)
	assert.Contains(t, resp.Error, "Available: 1")
}

func TestRegisterSaleMalformedBody(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid request body", resp.Error)
}

func TestListSalesAppliesFilters(t *testing.T) {
	api, repo := newTestAPI(t)
	product := createProduct(t, repo, "Widget", 100, "5.00", "0")
	handler := api.Handler()

	for _, userID := range []int64{1, 1, 2} {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", domain.SaleRequest{
			UserID: userID,
			Lines:  []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/sales?user_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Sales []domain.Sale `json:"sales"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Sales, 2)
}

func TestListSalesRejectsBadDate(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/sales?date_from=31-12-2026", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	api, repo := newTestAPI(t)
	product := createProduct(t, repo, "Widget", 100, "10.00", "0")
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", domain.SaleRequest{
		UserID: 1,
		Lines:  []domain.CartLine{{ProductID: product.ID, Quantity: 2}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	today := time.Now().UTC().Format("2006-01-02")
	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/v1/reports/summary?date_from=%s&date_to=%s", today, today), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary domain.SalesSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.Count)
	assert.True(t, summary.Total.Equal(decimal.RequireFromString("20.00")))
}

func TestLowStockEndpointUsesConfiguredThreshold(t *testing.T) {
	api, repo := newTestAPI(t)
	createProduct(t, repo, "Scarce", 3, "5.00", "0")
	createProduct(t, repo, "Plenty", 50, "5.00", "0")
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/low-stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Products []domain.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Products, 1)
	assert.Equal(t, "Scarce", payload.Products[0].Name)
}

func TestCreateProductEndpoint(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", domain.ProductCreateRequest{
		Name:     "New Thing",
		Quantity: 4,
		Price:    decimal.RequireFromString("12.50"),
		TaxRate:  decimal.RequireFromString("19.00"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.True(t, created.Active)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", domain.ProductCreateRequest{
		Name: "", Quantity: 1, Price: decimal.RequireFromString("1.00"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProductEndpoint(t *testing.T) {
	api, repo := newTestAPI(t)
	product := createProduct(t, repo, "Widget", 10, "5.00", "0")
	handler := api.Handler()

	newName := "Widget Pro"
	rec := doJSON(t, handler, http.MethodPut, fmt.Sprintf("/api/v1/products/%d", product.ID), domain.ProductUpdateRequest{
		Name: &newName,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Widget Pro", updated.Name)

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/products/999", domain.ProductUpdateRequest{Name: &newName})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
