package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apporder "github.com/sellerhub/stockengine/internal/application/order"
	appproduct "github.com/sellerhub/stockengine/internal/application/product"
	domainOrder "github.com/sellerhub/stockengine/internal/domain/order"
	domainProduct "github.com/sellerhub/stockengine/internal/domain/product"
	"github.com/sellerhub/stockengine/internal/observability"
	"github.com/sellerhub/stockengine/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
)

type Handler struct {
	orderService   *apporder.Service
	productService *appproduct.Service
	log            observability.Logger
	tel            observability.Telemetry
}

func NewHandler(orderSvc *apporder.Service, productSvc *appproduct.Service, logger observability.Logger,
	tel observability.Telemetry,
) *Handler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = observability.NopLogger()
	}
	return &Handler{
		orderService:   orderSvc,
		productService: productSvc,
		log:            baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:            tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger + HTTP metrics) → Access log → Handler
	h.handle(mux, http.MethodPost, "/products", h.handleRegisterProduct)
	h.handle(mux, http.MethodGet, "/products/{id}", h.handleGetProduct)
	h.handle(mux, http.MethodPut, "/products/{id}/stock", h.handleUpdateStock)
	h.handle(mux, http.MethodPost, "/orders", h.handleCreateOrder)
	h.handle(mux, http.MethodGet, "/orders/{id}", h.handleGetOrder)
	h.handle(mux, http.MethodPost, "/orders/{id}/cancel", h.handleCancelOrder)
	h.handle(mux, http.MethodPost, "/orders/{id}/reject", h.handleRejectOrder)
	h.handle(mux, http.MethodPost, "/orders/{id}/accept", h.handleAcceptOrder)
	h.handle(mux, http.MethodPost, "/orders/{id}/fulfill", h.handleFulfillOrder)
	h.handle(mux, http.MethodPost, "/orders/{id}/deliver", h.handleDeliverOrder)
	h.handle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) handle(mux *http.ServeMux, method, pattern string, handler http.HandlerFunc) {
	route := method + " " + pattern
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), route)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			ObservabilityMiddleware(
				logctx.FromOr(ctx, h.log),
				func(r *http.Request) string {
					return r.Header.Get(headerRequestID)
				},
				h.tel,
			)(
				h.withAccessLog(http.HandlerFunc(handler)),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

type registerProductRequest struct {
	ProductID    string `json:"product_id"`
	SellerID     string `json:"seller_id"`
	StockLevel   int    `json:"stock_level"`
	MinimumStock int    `json:"minimum_stock"`
}

type stockViewResponse struct {
	ProductID         string               `json:"product_id"`
	SellerID          string               `json:"seller_id"`
	StockLevel        int                  `json:"stock_level"`
	MinimumStock      int                  `json:"minimum_stock"`
	InitialStock      int                  `json:"initial_stock"`
	BaselineStock     int                  `json:"baseline_stock"`
	BaselineUpdatedAt time.Time            `json:"baseline_updated_at"`
	StockPercentage   float64              `json:"stock_percentage"`
	StockStatus       domainProduct.Status `json:"stock_status"`
}

func toStockViewResponse(v *appproduct.StockView) stockViewResponse {
	return stockViewResponse{
		ProductID:         v.ProductID,
		SellerID:          v.SellerID,
		StockLevel:        v.StockLevel,
		MinimumStock:      v.MinimumStock,
		InitialStock:      v.InitialStock,
		BaselineStock:     v.BaselineStock,
		BaselineUpdatedAt: v.BaselineUpdatedAt,
		StockPercentage:   v.StockPercentage,
		StockStatus:       v.StockStatus,
	}
}

func (h *Handler) handleRegisterProduct(w http.ResponseWriter, r *http.Request) {
	var req registerProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}

	view, err := h.productService.Register(r.Context(), appproduct.RegisterInput{
		ProductID:    req.ProductID,
		SellerID:     req.SellerID,
		StockLevel:   req.StockLevel,
		MinimumStock: req.MinimumStock,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStockViewResponse(view))
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	view, err := h.productService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockViewResponse(view))
}

type updateStockRequest struct {
	SellerID   string `json:"seller_id"`
	StockLevel int    `json:"stock_level"`
}

func (h *Handler) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var req updateStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}

	view, err := h.productService.UpdateStock(r.Context(), r.PathValue("id"), req.StockLevel, req.SellerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockViewResponse(view))
}

type createOrderRequest struct {
	BuyerID   string `json:"buyer_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderResponse struct {
	OrderID        string             `json:"order_id"`
	Status         domainOrder.Status `json:"status"`
	StockRemaining int                `json:"stock_remaining"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}

	result, err := h.orderService.CreateOrder(r.Context(), apporder.CreateOrderInput{
		BuyerID:   req.BuyerID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:        result.OrderID,
		Status:         result.Status,
		StockRemaining: result.StockRemaining,
	})
}

type orderResponse struct {
	OrderID         string             `json:"order_id"`
	ProductID       string             `json:"product_id"`
	BuyerID         string             `json:"buyer_id"`
	SellerID        string             `json:"seller_id"`
	Quantity        int                `json:"quantity"`
	Status          domainOrder.Status `json:"status"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orderService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:         o.ID,
		ProductID:       o.ProductID,
		BuyerID:         o.BuyerID,
		SellerID:        o.SellerID,
		Quantity:        o.Quantity,
		Status:          o.Status,
		RejectionReason: o.RejectionReason,
		CreatedAt:       o.CreatedAt,
		CompletedAt:     o.CompletedAt,
	})
}

type cancelOrderRequest struct {
	BuyerID string `json:"buyer_id"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	if err := h.orderService.CancelOrder(r.Context(), r.PathValue("id"), req.BuyerID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w)
}

type rejectOrderRequest struct {
	SellerID string `json:"seller_id"`
	Reason   string `json:"reason"`
}

func (h *Handler) handleRejectOrder(w http.ResponseWriter, r *http.Request) {
	var req rejectOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	if err := h.orderService.RejectOrder(r.Context(), r.PathValue("id"), req.SellerID, req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w)
}

type sellerActionRequest struct {
	SellerID string `json:"seller_id"`
}

func (h *Handler) handleAcceptOrder(w http.ResponseWriter, r *http.Request) {
	h.sellerAction(w, r, h.orderService.AcceptOrder)
}

func (h *Handler) handleFulfillOrder(w http.ResponseWriter, r *http.Request) {
	h.sellerAction(w, r, h.orderService.FulfillOrder)
}

func (h *Handler) handleDeliverOrder(w http.ResponseWriter, r *http.Request) {
	h.sellerAction(w, r, h.orderService.DeliverOrder)
}

func (h *Handler) sellerAction(w http.ResponseWriter, r *http.Request, action func(context.Context, string, string) error) {
	var req sellerActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	if err := action(r.Context(), r.PathValue("id"), req.SellerID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]string{"code": code, "error": err.Error()})
}

// writeDomainError maps domain errors to machine-readable codes.
// InsufficientStock and InvalidTransition are distinct conflict codes, never
// generic 500s.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainProduct.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err)
	case errors.Is(err, domainOrder.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err)
	case errors.Is(err, domainOrder.ErrForbidden),
		errors.Is(err, domainProduct.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err)
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainProduct.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err)
	case errors.Is(err, domainOrder.ErrConflict),
		errors.Is(err, domainProduct.ErrConflict):
		writeError(w, http.StatusConflict, "CONFLICT", err)
	case errors.Is(err, domainOrder.ErrInvalidQuantity),
		errors.Is(err, domainProduct.ErrInvalidQuantity),
		errors.Is(err, domainProduct.ErrInvalidStockLevel):
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err)
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
