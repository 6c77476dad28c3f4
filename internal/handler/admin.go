package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/foodhunt/api/internal/database"
	"github.com/foodhunt/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AdminStore defines the database methods needed by admin handlers.
// Satisfied by *database.Queries.
type AdminStore interface {
	SetFoodItemStock(ctx context.Context, arg database.SetFoodItemStockParams) (database.FoodItem, error)
	SetFoodItemAvailability(ctx context.Context, arg database.SetFoodItemAvailabilityParams) (database.FoodItem, error)
	GetFoodItem(ctx context.Context, id uuid.UUID) (database.FoodItem, error)
	ListStudentsWithDues(ctx context.Context) ([]database.ListStudentsWithDuesRow, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// DuesServicer defines the service methods needed by dues settlement
// handlers. Satisfied by *service.DuesService.
type DuesServicer interface {
	Summary(ctx context.Context, userID uuid.UUID) (*service.DuesSummary, error)
	MarkPaid(ctx context.Context, req service.MarkPaidRequest) (*service.SettlementResult, error)
	MarkAllPaid(ctx context.Context, userID uuid.UUID, paymentMethod string) (*service.SettlementResult, error)
}

// AdminHandler handles stock management and dues administration.
type AdminHandler struct {
	store AdminStore
	dues  DuesServicer
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(store AdminStore, dues DuesServicer) *AdminHandler {
	return &AdminHandler{store: store, dues: dues}
}

// RegisterRoutes registers the admin endpoints.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Patch("/admin/menu/{id}/stock", h.SetStock)
	r.Patch("/admin/menu/{id}/availability", h.SetAvailability)
	r.Get("/admin/students/dues", h.ListStudentDues)
	r.Get("/admin/students/{id}/dues", h.StudentDues)
	r.Post("/admin/students/{id}/mark-paid", h.MarkPaid)
	r.Post("/admin/students/{id}/mark-all-paid", h.MarkAllPaid)
}

// --- Request / Response types ---

type setStockRequest struct {
	Stock int32 `json:"stock"`
}

type setAvailabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

type studentDuesResponse struct {
	ID            uuid.UUID `json:"id"`
	StudentID     string    `json:"student_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Department    *string   `json:"department"`
	Year          *int32    `json:"year"`
	TotalDues     string    `json:"total_dues"`
	PendingOrders int64     `json:"pending_orders"`
}

type markPaidRequest struct {
	OrderIDs      []string `json:"order_ids"`
	PaymentMethod string   `json:"payment_method"`
}

type markAllPaidRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type settlementResponse struct {
	OrdersSettled int    `json:"orders_settled"`
	TotalAmount   string `json:"total_amount"`
}

// --- Handlers ---

// SetStock handles PATCH /admin/menu/{id}/stock. Setting stock to zero also
// flips the item unavailable.
func (h *AdminHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid food item ID"})
		return
	}

	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Stock < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stock cannot be negative"})
		return
	}

	item, err := h.store.SetFoodItemStock(r.Context(), database.SetFoodItemStockParams{
		ID:    id,
		Stock: req.Stock,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The conditional update rejects both a missing item and a stock
			// value above max_daily_stock. Look up the item to tell them apart.
			if _, getErr := h.store.GetFoodItem(r.Context(), id); getErr != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "food item not found"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stock cannot exceed max_daily_stock"})
			return
		}
		log.Printf("ERROR: set food item stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbFoodItemToResponse(item))
}

// SetAvailability handles PATCH /admin/menu/{id}/availability. An item with
// zero stock cannot be made available.
func (h *AdminHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid food item ID"})
		return
	}

	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.store.SetFoodItemAvailability(r.Context(), database.SetFoodItemAvailabilityParams{
		ID:          id,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := h.store.GetFoodItem(r.Context(), id); getErr != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "food item not found"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "an item with zero stock cannot be made available"})
			return
		}
		log.Printf("ERROR: set food item availability: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbFoodItemToResponse(item))
}

// ListStudentDues handles GET /admin/students/dues. Only students with at
// least one payment-pending order are listed.
func (h *AdminHandler) ListStudentDues(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListStudentsWithDues(r.Context())
	if err != nil {
		log.Printf("ERROR: list students with dues: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]studentDuesResponse, len(rows))
	for i, row := range rows {
		resp[i] = studentDuesResponse{
			ID:            row.ID,
			StudentID:     row.StudentID,
			Name:          row.Name,
			Email:         row.Email,
			TotalDues:     numericToString(row.TotalDues),
			PendingOrders: row.PendingOrders,
		}
		if row.Department.Valid {
			resp[i].Department = &row.Department.String
		}
		if row.Year.Valid {
			resp[i].Year = &row.Year.Int32
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"students": resp})
}

// StudentDues handles GET /admin/students/{id}/dues.
func (h *AdminHandler) StudentDues(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid student ID"})
		return
	}

	if _, err := h.store.GetUserByID(r.Context(), userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "student not found"})
			return
		}
		log.Printf("ERROR: get student: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	summary, err := h.dues.Summary(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR: dues summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, duesSummaryToResponse(summary))
}

// MarkPaid handles POST /admin/students/{id}/mark-paid.
func (h *AdminHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid student ID"})
		return
	}

	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	orderIDs := make([]uuid.UUID, len(req.OrderIDs))
	for i, s := range req.OrderIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID: " + s})
			return
		}
		orderIDs[i] = id
	}

	result, err := h.dues.MarkPaid(r.Context(), service.MarkPaidRequest{
		UserID:        userID,
		OrderIDs:      orderIDs,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.writeSettlementError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settlementResponse{
		OrdersSettled: result.OrdersSettled,
		TotalAmount:   result.TotalAmount.StringFixed(2),
	})
}

// MarkAllPaid handles POST /admin/students/{id}/mark-all-paid.
func (h *AdminHandler) MarkAllPaid(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid student ID"})
		return
	}

	// The body is optional; an empty one settles with the default method.
	var req markAllPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = markAllPaidRequest{}
	}

	result, err := h.dues.MarkAllPaid(r.Context(), userID, req.PaymentMethod)
	if err != nil {
		h.writeSettlementError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settlementResponse{
		OrdersSettled: result.OrdersSettled,
		TotalAmount:   result.TotalAmount.StringFixed(2),
	})
}

// --- Helpers ---

func (h *AdminHandler) writeSettlementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoOrderIDs),
		errors.Is(err, service.ErrNoPendingOrders),
		errors.Is(err, service.ErrOrdersNotPending),
		errors.Is(err, service.ErrInvalidPayMethod),
		errors.Is(err, service.ErrInsufficientBalance):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrStudentNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: settle dues: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func duesSummaryToResponse(s *service.DuesSummary) map[string]interface{} {
	resp := map[string]interface{}{
		"total_dues":       s.TotalDues.StringFixed(2),
		"pending_payments": s.PendingPayments,
		"overdue_payments": s.OverduePayments,
	}
	if s.NextDueDate != nil {
		resp["next_due_date"] = s.NextDueDate
	} else {
		resp["next_due_date"] = nil
	}
	return resp
}
