package httppresentation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apporder "github.com/sellerhub/stockengine/internal/application/order"
	appproduct "github.com/sellerhub/stockengine/internal/application/product"
	appstock "github.com/sellerhub/stockengine/internal/application/stock"
	"github.com/sellerhub/stockengine/internal/infrastructure/memory"
)

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store := memory.NewStore()
	coordinator := appstock.NewCoordinator(nil)
	idGen := &seqIDGen{}
	orderSvc := apporder.NewService(store, coordinator, idGen, nil, nil)
	productSvc := appproduct.NewService(store, coordinator, idGen, nil, nil)
	return NewHandler(orderSvc, productSvc, nil, nil).Router()
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func registerProduct(t *testing.T, h http.Handler, productID string, level int) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/products", map[string]any{
		"product_id":    productID,
		"seller_id":     "seller",
		"stock_level":   level,
		"minimum_stock": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func createOrder(t *testing.T, h http.Handler, productID string, qty int) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/orders", map[string]any{
		"buyer_id":   "buyer",
		"product_id": productID,
		"quantity":   qty,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["order_id"].(string)
}

func TestRegisterAndGetProduct(t *testing.T) {
	h := newTestHandler(t)
	registerProduct(t, h, "p1", 100)

	rec := doJSON(t, h, http.MethodGet, "/products/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "p1", body["product_id"])
	assert.Equal(t, float64(100), body["stock_level"])
	assert.Equal(t, float64(100), body["stock_percentage"])
	assert.Equal(t, "HIGH", body["stock_status"])
}

func TestGetProduct_NotFound(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec)["code"])
}

func TestCreateOrder_EndToEnd(t *testing.T) {
	h := newTestHandler(t)
	registerProduct(t, h, "p1", 10)

	rec := doJSON(t, h, http.MethodPost, "/orders", map[string]any{
		"buyer_id":   "buyer",
		"product_id": "p1",
		"quantity":   3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, float64(7), body["stock_remaining"])

	orderRec := doJSON(t, h, http.MethodGet, "/orders/"+body["order_id"].(string), nil)
	require.Equal(t, http.StatusOK, orderRec.Code)
	assert.Equal(t, "seller", decode(t, orderRec)["seller_id"])
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	h := newTestHandler(t)
	registerProduct(t, h, "p1", 2)

	rec := doJSON(t, h, http.MethodPost, "/orders", map[string]any{
		"buyer_id":   "buyer",
		"product_id": "p1",
		"quantity":   5,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", decode(t, rec)["code"])
}

func TestCreateOrder_InvalidBody(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_BODY", decode(t, rec)["code"])
}

func TestCancelOrder_Flow(t *testing.T) {
	h := newTestHandler(t)
	registerProduct(t, h, "p1", 10)
	orderID := createOrder(t, h, "p1", 4)

	// wrong actor
	rec := doJSON(t, h, http.MethodPost, "/orders/"+orderID+"/cancel", map[string]any{"buyer_id": "intruder"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, rec)["code"])

	rec = doJSON(t, h, http.MethodPost, "/orders/"+orderID+"/cancel", map[string]any{"buyer_id": "buyer"})
	require.Equal(t, http.StatusOK, rec.Code)

	// stock restored
	productRec := doJSON(t, h, http.MethodGet, "/products/p1", nil)
	assert.Equal(t, float64(10), decode(t, productRec)["stock_level"])

	// double cancel conflicts
	rec = doJSON(t, h, http.MethodPost, "/orders/"+orderID+"/cancel", map[string]any{"buyer_id": "buyer"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode(t, rec)["code"])
}

func TestRejectOrder(t *testing.T) {
	h := newTestHandler(t)
	registerProduct(t, h, "p1", 10)
	orderID := createOrder(t, h, "p1", 4)

	rec := doJSON(t, h, http.MethodPost, "/orders/"+orderID+"/reject", map[string]any{
		"seller_id": "seller",
		"reason":    "out of season",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	orderRec := doJSON(t, h, http.MethodGet, "/orders/"+orderID, nil)
	body := decode(t, orderRec)
	assert.Equal(t, "REJECTED", body["status"])
	assert.Equal(t, "out of season", body["rejection_reason"])
}

func TestOrderLifecycle_AcceptFulfillDeliver(t *testing.T) {
	h := newTestHandler(t)
	registerProduct(t, h, "p1", 10)
	orderID := createOrder(t, h, "p1", 1)

	for _, step := range []string{"accept", "fulfill", "deliver"} {
		rec := doJSON(t, h, http.MethodPost, "/orders/"+orderID+"/"+step, map[string]any{"seller_id": "seller"})
		require.Equal(t, http.StatusOK, rec.Code, "step %s: %s", step, rec.Body.String())
	}

	orderRec := doJSON(t, h, http.MethodGet, "/orders/"+orderID, nil)
	body := decode(t, orderRec)
	assert.Equal(t, "DELIVERED", body["status"])
	assert.NotEmpty(t, body["completed_at"])
}

func TestUpdateStock_Restock(t *testing.T) {
	h := newTestHandler(t)
	registerProduct(t, h, "p1", 100)

	rec := doJSON(t, h, http.MethodPut, "/products/p1/stock", map[string]any{
		"seller_id":   "seller",
		"stock_level": 150,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(150), body["baseline_stock"])
	assert.Equal(t, float64(100), body["initial_stock"])

	// non-owner is refused
	rec = doJSON(t, h, http.MethodPut, "/products/p1/stock", map[string]any{
		"seller_id":   "intruder",
		"stock_level": 1,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestIDHeaderEchoed(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
