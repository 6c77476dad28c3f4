package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/foodhunt/api/internal/database"
	"github.com/foodhunt/api/internal/enum"
	"github.com/foodhunt/api/internal/metrics"
	"github.com/foodhunt/api/internal/middleware"
	"github.com/foodhunt/api/internal/service"
	"github.com/foodhunt/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	Cancel(ctx context.Context, orderID, userID uuid.UUID) (*database.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*database.Order, error)
}

// OrderReadStore defines the database methods needed by order read handlers
// and the manual sweep. Satisfied by *database.Queries.
type OrderReadStore interface {
	GetOrderForUser(ctx context.Context, arg database.GetOrderForUserParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrdersByUser(ctx context.Context, arg database.ListOrdersByUserParams) ([]database.Order, error)
	CountOrdersByUser(ctx context.Context, arg database.CountOrdersByUserParams) (int64, error)
	ListAllOrders(ctx context.Context, arg database.ListAllOrdersParams) ([]database.Order, error)
	SweepReadyOrders(ctx context.Context, now pgtype.Timestamptz) (int64, error)
}

// OrderBroadcaster pushes order events to the staff live feed.
type OrderBroadcaster interface {
	Broadcast(event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderReadStore
	feed  OrderBroadcaster
}

// NewOrderHandler creates a new OrderHandler. feed may be nil in tests.
func NewOrderHandler(svc OrderServicer, store OrderReadStore, feed OrderBroadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, feed: feed}
}

// RegisterRoutes registers the student-facing order endpoints.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Get("/orders/my-orders", h.MyOrders)
	r.Get("/orders/{id}", h.Get)
	r.Patch("/orders/{id}/cancel", h.Cancel)
}

// RegisterStaffRoutes registers the staff/admin order endpoints.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/orders/admin/all", h.AdminList)
	r.Patch("/orders/admin/{id}/status", h.AdminUpdateStatus)
	r.Post("/orders/admin/sweep-ready", h.SweepReady)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType     string                   `json:"order_type"`
	ScheduledTime string                   `json:"scheduled_time"`
	Notes         string                   `json:"notes"`
	Items         []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	FoodItemID string `json:"food_item_id"`
	Quantity   int32  `json:"quantity"`
}

type orderResponse struct {
	ID                   uuid.UUID           `json:"id"`
	UserID               uuid.UUID           `json:"user_id"`
	Status               string              `json:"status"`
	OrderType            string              `json:"order_type"`
	ScheduledTime        *time.Time          `json:"scheduled_time"`
	PaymentStatus        string              `json:"payment_status"`
	PaymentMethod        string              `json:"payment_method"`
	Notes                *string             `json:"notes"`
	TotalAmount          string              `json:"total_amount"`
	PreparationStartedAt *time.Time          `json:"preparation_started_at"`
	EstimatedReadyTime   *time.Time          `json:"estimated_ready_time"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	Items                []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID              uuid.UUID `json:"id"`
	FoodItemID      uuid.UUID `json:"food_item_id"`
	Name            string    `json:"name"`
	Quantity        int32     `json:"quantity"`
	UnitPrice       string    `json:"unit_price"`
	PreparationTime int32     `json:"preparation_time"`
}

// orderListResponse wraps a list of orders with page-based pagination.
type orderListResponse struct {
	Orders     []orderResponse `json:"orders"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	TotalPages int64           `json:"total_pages"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.CreateOrderItemRequest{
			FoodItemID: item.FoodItemID,
			Quantity:   item.Quantity,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		UserID:        claims.UserID,
		OrderType:     req.OrderType,
		ScheduledTime: req.ScheduledTime,
		Notes:         req.Notes,
		Items:         svcItems,
	})
	if err != nil {
		var stockErr *service.InsufficientStockError
		if errors.As(err, &stockErr) {
			metrics.StockRejections.Inc()
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": stockErr.Error()})
			return
		}
		if isOrderValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	metrics.OrdersCreated.Inc()
	resp := toOrderResponse(result)
	h.publish("order.created", resp)

	writeJSON(w, http.StatusCreated, resp)
}

// MyOrders handles GET /orders/my-orders.
func (h *OrderHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	page := 1
	if s := r.URL.Query().Get("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			page = v
		}
	}
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	status := r.URL.Query().Get("status")

	orders, err := h.store.ListOrdersByUser(r.Context(), database.ListOrdersByUserParams{
		UserID: claims.UserID,
		Status: status,
		Limit:  int32(limit),
		Offset: int32((page - 1) * limit),
	})
	if err != nil {
		log.Printf("ERROR: list my orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountOrdersByUser(r.Context(), database.CountOrdersByUserParams{
		UserID: claims.UserID,
		Status: status,
	})
	if err != nil {
		log.Printf("ERROR: count my orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	writeJSON(w, http.StatusOK, orderListResponse{
		Orders:     resp,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	})
}

// Get handles GET /orders/{id}. Students only see their own orders; the
// ownership check is part of the query itself.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var order database.Order
	if claims.Role == enum.UserRoleStaff || claims.Role == enum.UserRoleAdmin {
		order, err = h.store.GetOrder(r.Context(), orderID)
	} else {
		order, err = h.store.GetOrderForUser(r.Context(), database.GetOrderForUserParams{
			ID:     orderID,
			UserID: claims.UserID,
		})
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Cancel handles PATCH /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.Cancel(r.Context(), orderID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		if errors.Is(err, service.ErrNotCancellable) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only pending orders can be cancelled"})
			return
		}
		log.Printf("ERROR: cancel order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	metrics.OrdersCancelled.Inc()
	resp := dbOrderToResponse(*order)
	h.publish("order.cancelled", resp)

	writeJSON(w, http.StatusOK, resp)
}

// AdminList handles GET /orders/admin/all.
func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListAllOrdersParams{
		Status: r.URL.Query().Get("status"),
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		// Inclusive end date: the query uses created_at < end.
		params.EndDate = pgtype.Timestamptz{Time: t.AddDate(0, 0, 1), Valid: true}
	}

	orders, err := h.store.ListAllOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list all orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// AdminUpdateStatus handles PATCH /orders/admin/{id}/status.
func (h *OrderHandler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrInvalidStatus),
			errors.Is(err, service.ErrInvalidTransition):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrStatusConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order status changed, please retry"})
		default:
			log.Printf("ERROR: update order status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	if order.Status == database.OrderStatusCancelled {
		metrics.OrdersCancelled.Inc()
	}
	resp := dbOrderToResponse(*order)
	h.publish("order.status_changed", resp)

	writeJSON(w, http.StatusOK, resp)
}

// SweepReady handles POST /orders/admin/sweep-ready: a manual trigger for
// the same idempotent promotion the background sweeper runs.
func (h *OrderHandler) SweepReady(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.SweepReadyOrders(r.Context(), pgtype.Timestamptz{Time: time.Now(), Valid: true})
	if err != nil {
		log.Printf("ERROR: sweep ready orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if n > 0 {
		metrics.OrdersSweptReady.Add(float64(n))
	}
	writeJSON(w, http.StatusOK, map[string]int64{"orders_marked_ready": n})
}

// --- Helpers ---

func (h *OrderHandler) publish(eventType string, payload interface{}) {
	if h.feed == nil {
		return
	}
	h.feed.Broadcast(ws.NewOrderEvent(eventType, payload))
}

// isOrderValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidFoodItemID) ||
		errors.Is(err, service.ErrItemUnavailable) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrScheduledTimeMissing) ||
		errors.Is(err, service.ErrInvalidScheduledTime) ||
		errors.Is(err, service.ErrNotesTooLong)
}

func toOrderResponse(result *service.CreateOrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}
	return resp
}

// dbOrderToResponse converts a database.Order to an orderResponse.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		OrderType:     string(o.OrderType),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: string(o.PaymentMethod),
		TotalAmount:   numericToString(o.TotalAmount),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.ScheduledTime.Valid {
		resp.ScheduledTime = &o.ScheduledTime.Time
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.PreparationStartedAt.Valid {
		resp.PreparationStartedAt = &o.PreparationStartedAt.Time
	}
	if o.EstimatedReadyTime.Valid {
		resp.EstimatedReadyTime = &o.EstimatedReadyTime.Time
	}
	return resp
}

func dbOrderItemToResponse(item database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:              item.ID,
		FoodItemID:      item.FoodItemID,
		Name:            item.Name,
		Quantity:        item.Quantity,
		UnitPrice:       numericToString(item.UnitPrice),
		PreparationTime: item.PreparationTime,
	}
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
