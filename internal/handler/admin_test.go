package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/foodhunt/api/internal/database"
	"github.com/foodhunt/api/internal/enum"
	"github.com/foodhunt/api/internal/handler"
	"github.com/foodhunt/api/internal/middleware"
	"github.com/foodhunt/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Mocks ---

type mockAdminStore struct {
	setStockFn        func(ctx context.Context, arg database.SetFoodItemStockParams) (database.FoodItem, error)
	setAvailabilityFn func(ctx context.Context, arg database.SetFoodItemAvailabilityParams) (database.FoodItem, error)
	getFoodItemFn     func(ctx context.Context, id uuid.UUID) (database.FoodItem, error)
	listDuesFn        func(ctx context.Context) ([]database.ListStudentsWithDuesRow, error)
	getUserFn         func(ctx context.Context, id uuid.UUID) (database.User, error)
}

func (m *mockAdminStore) SetFoodItemStock(ctx context.Context, arg database.SetFoodItemStockParams) (database.FoodItem, error) {
	return m.setStockFn(ctx, arg)
}

func (m *mockAdminStore) SetFoodItemAvailability(ctx context.Context, arg database.SetFoodItemAvailabilityParams) (database.FoodItem, error) {
	return m.setAvailabilityFn(ctx, arg)
}

func (m *mockAdminStore) GetFoodItem(ctx context.Context, id uuid.UUID) (database.FoodItem, error) {
	return m.getFoodItemFn(ctx, id)
}

func (m *mockAdminStore) ListStudentsWithDues(ctx context.Context) ([]database.ListStudentsWithDuesRow, error) {
	return m.listDuesFn(ctx)
}

func (m *mockAdminStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	return m.getUserFn(ctx, id)
}

type mockDuesServicer struct {
	summaryFn     func(ctx context.Context, userID uuid.UUID) (*service.DuesSummary, error)
	markPaidFn    func(ctx context.Context, req service.MarkPaidRequest) (*service.SettlementResult, error)
	markAllPaidFn func(ctx context.Context, userID uuid.UUID, paymentMethod string) (*service.SettlementResult, error)
}

func (m *mockDuesServicer) Summary(ctx context.Context, userID uuid.UUID) (*service.DuesSummary, error) {
	return m.summaryFn(ctx, userID)
}

func (m *mockDuesServicer) MarkPaid(ctx context.Context, req service.MarkPaidRequest) (*service.SettlementResult, error) {
	return m.markPaidFn(ctx, req)
}

func (m *mockDuesServicer) MarkAllPaid(ctx context.Context, userID uuid.UUID, paymentMethod string) (*service.SettlementResult, error) {
	return m.markAllPaidFn(ctx, userID, paymentMethod)
}

// --- Helpers ---

func newAdminRouter(store handler.AdminStore, dues handler.DuesServicer) chi.Router {
	h := handler.NewAdminHandler(store, dues)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		h.RegisterRoutes(r)
	})
	return r
}

func adminToken(t *testing.T) string {
	t.Helper()
	return tokenFor(t, uuid.New(), enum.UserRoleAdmin)
}

func stockItem(stock, max int32) database.FoodItem {
	return database.FoodItem{
		ID:              uuid.New(),
		Name:            "Veg Thali",
		Price:           makeTestNumeric("70.00"),
		Category:        "lunch",
		IsAvailable:     stock > 0,
		PreparationTime: 20,
		Stock:           stock,
		MaxDailyStock:   max,
	}
}

// --- Stock tests ---

func TestSetStock_Success(t *testing.T) {
	item := stockItem(15, 50)
	store := &mockAdminStore{
		setStockFn: func(ctx context.Context, arg database.SetFoodItemStockParams) (database.FoodItem, error) {
			if arg.Stock != 15 {
				t.Errorf("stock: got %d, want 15", arg.Stock)
			}
			return item, nil
		},
	}
	r := newAdminRouter(store, &mockDuesServicer{})

	rr := doRequest(t, r, "PATCH", "/admin/menu/"+item.ID.String()+"/stock", adminToken(t), map[string]int32{"stock": 15})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestSetStock_ExceedsMax(t *testing.T) {
	item := stockItem(10, 50)
	store := &mockAdminStore{
		setStockFn: func(ctx context.Context, arg database.SetFoodItemStockParams) (database.FoodItem, error) {
			return database.FoodItem{}, pgx.ErrNoRows
		},
		getFoodItemFn: func(ctx context.Context, id uuid.UUID) (database.FoodItem, error) {
			return item, nil
		},
	}
	r := newAdminRouter(store, &mockDuesServicer{})

	rr := doRequest(t, r, "PATCH", "/admin/menu/"+item.ID.String()+"/stock", adminToken(t), map[string]int32{"stock": 60})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSetStock_ItemNotFound(t *testing.T) {
	store := &mockAdminStore{
		setStockFn: func(ctx context.Context, arg database.SetFoodItemStockParams) (database.FoodItem, error) {
			return database.FoodItem{}, pgx.ErrNoRows
		},
		getFoodItemFn: func(ctx context.Context, id uuid.UUID) (database.FoodItem, error) {
			return database.FoodItem{}, pgx.ErrNoRows
		},
	}
	r := newAdminRouter(store, &mockDuesServicer{})

	rr := doRequest(t, r, "PATCH", "/admin/menu/"+uuid.NewString()+"/stock", adminToken(t), map[string]int32{"stock": 10})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSetStock_Negative(t *testing.T) {
	r := newAdminRouter(&mockAdminStore{}, &mockDuesServicer{})

	rr := doRequest(t, r, "PATCH", "/admin/menu/"+uuid.NewString()+"/stock", adminToken(t), map[string]int32{"stock": -1})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Availability tests ---

func TestSetAvailability_ZeroStockRejected(t *testing.T) {
	item := stockItem(0, 50)
	store := &mockAdminStore{
		setAvailabilityFn: func(ctx context.Context, arg database.SetFoodItemAvailabilityParams) (database.FoodItem, error) {
			return database.FoodItem{}, pgx.ErrNoRows
		},
		getFoodItemFn: func(ctx context.Context, id uuid.UUID) (database.FoodItem, error) {
			return item, nil
		},
	}
	r := newAdminRouter(store, &mockDuesServicer{})

	rr := doRequest(t, r, "PATCH", "/admin/menu/"+item.ID.String()+"/availability", adminToken(t), map[string]bool{"is_available": true})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSetAvailability_Disable(t *testing.T) {
	item := stockItem(10, 50)
	item.IsAvailable = false
	store := &mockAdminStore{
		setAvailabilityFn: func(ctx context.Context, arg database.SetFoodItemAvailabilityParams) (database.FoodItem, error) {
			if arg.IsAvailable {
				t.Error("expected is_available=false")
			}
			return item, nil
		},
	}
	r := newAdminRouter(store, &mockDuesServicer{})

	rr := doRequest(t, r, "PATCH", "/admin/menu/"+item.ID.String()+"/availability", adminToken(t), map[string]bool{"is_available": false})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

// --- Dues administration tests ---

func TestListStudentDues(t *testing.T) {
	store := &mockAdminStore{
		listDuesFn: func(ctx context.Context) ([]database.ListStudentsWithDuesRow, error) {
			return []database.ListStudentsWithDuesRow{
				{
					ID:            uuid.New(),
					StudentID:     "CS2023001",
					Name:          "Debtor One",
					Email:         "one@test.edu",
					TotalDues:     makeTestNumeric("245.00"),
					PendingOrders: 3,
				},
			}, nil
		},
	}
	r := newAdminRouter(store, &mockDuesServicer{})

	rr := doRequest(t, r, "GET", "/admin/students/dues", adminToken(t), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	students := resp["students"].([]interface{})
	if len(students) != 1 {
		t.Fatalf("expected 1 student, got %d", len(students))
	}
	first := students[0].(map[string]interface{})
	if first["total_dues"] != "245.00" {
		t.Errorf("total_dues: got %v, want 245.00", first["total_dues"])
	}
	if first["pending_orders"] != float64(3) {
		t.Errorf("pending_orders: got %v, want 3", first["pending_orders"])
	}
}

func TestStudentDues_Summary(t *testing.T) {
	studentID := uuid.New()
	due := time.Date(2026, 9, 8, 12, 0, 0, 0, time.UTC)
	store := &mockAdminStore{
		getUserFn: func(ctx context.Context, id uuid.UUID) (database.User, error) {
			return database.User{ID: studentID, Role: enum.UserRoleStudent}, nil
		},
	}
	dues := &mockDuesServicer{
		summaryFn: func(ctx context.Context, userID uuid.UUID) (*service.DuesSummary, error) {
			if userID != studentID {
				t.Errorf("user ID: got %s, want %s", userID, studentID)
			}
			return &service.DuesSummary{
				TotalDues:       decimal.RequireFromString("165.50"),
				PendingPayments: 2,
				OverduePayments: 1,
				NextDueDate:     &due,
			}, nil
		},
	}
	r := newAdminRouter(store, dues)

	rr := doRequest(t, r, "GET", "/admin/students/"+studentID.String()+"/dues", adminToken(t), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["total_dues"] != "165.50" {
		t.Errorf("total_dues: got %v, want 165.50", resp["total_dues"])
	}
	if resp["overdue_payments"] != float64(1) {
		t.Errorf("overdue_payments: got %v, want 1", resp["overdue_payments"])
	}
}

func TestStudentDues_StudentNotFound(t *testing.T) {
	store := &mockAdminStore{
		getUserFn: func(ctx context.Context, id uuid.UUID) (database.User, error) {
			return database.User{}, pgx.ErrNoRows
		},
	}
	r := newAdminRouter(store, &mockDuesServicer{})

	rr := doRequest(t, r, "GET", "/admin/students/"+uuid.NewString()+"/dues", adminToken(t), nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestMarkPaid_Success(t *testing.T) {
	studentID := uuid.New()
	orderID := uuid.New()
	dues := &mockDuesServicer{
		markPaidFn: func(ctx context.Context, req service.MarkPaidRequest) (*service.SettlementResult, error) {
			if req.UserID != studentID {
				t.Errorf("user ID: got %s, want %s", req.UserID, studentID)
			}
			if len(req.OrderIDs) != 1 || req.OrderIDs[0] != orderID {
				t.Errorf("order IDs: got %v", req.OrderIDs)
			}
			if req.PaymentMethod != "cash" {
				t.Errorf("payment method: got %q, want cash", req.PaymentMethod)
			}
			return &service.SettlementResult{OrdersSettled: 1, TotalAmount: decimal.RequireFromString("75.00")}, nil
		},
	}
	r := newAdminRouter(&mockAdminStore{}, dues)

	rr := doRequest(t, r, "POST", "/admin/students/"+studentID.String()+"/mark-paid", adminToken(t), map[string]interface{}{
		"order_ids":      []string{orderID.String()},
		"payment_method": "cash",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["orders_settled"] != float64(1) {
		t.Errorf("orders_settled: got %v, want 1", resp["orders_settled"])
	}
	if resp["total_amount"] != "75.00" {
		t.Errorf("total_amount: got %v, want 75.00", resp["total_amount"])
	}
}

func TestMarkPaid_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"no pending orders", service.ErrNoPendingOrders, http.StatusBadRequest},
		{"orders not pending", service.ErrOrdersNotPending, http.StatusBadRequest},
		{"invalid method", service.ErrInvalidPayMethod, http.StatusBadRequest},
		{"insufficient balance", service.ErrInsufficientBalance, http.StatusBadRequest},
		{"student not found", service.ErrStudentNotFound, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dues := &mockDuesServicer{
				markPaidFn: func(ctx context.Context, req service.MarkPaidRequest) (*service.SettlementResult, error) {
					return nil, tc.err
				},
			}
			r := newAdminRouter(&mockAdminStore{}, dues)

			rr := doRequest(t, r, "POST", "/admin/students/"+uuid.NewString()+"/mark-paid", adminToken(t), map[string]interface{}{
				"order_ids": []string{uuid.NewString()},
			})

			if rr.Code != tc.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tc.wantCode)
			}
		})
	}
}

func TestMarkPaid_BadOrderID(t *testing.T) {
	r := newAdminRouter(&mockAdminStore{}, &mockDuesServicer{})

	rr := doRequest(t, r, "POST", "/admin/students/"+uuid.NewString()+"/mark-paid", adminToken(t), map[string]interface{}{
		"order_ids": []string{"not-a-uuid"},
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMarkAllPaid_DefaultsMethod(t *testing.T) {
	studentID := uuid.New()
	dues := &mockDuesServicer{
		markAllPaidFn: func(ctx context.Context, userID uuid.UUID, paymentMethod string) (*service.SettlementResult, error) {
			if paymentMethod != "" {
				t.Errorf("payment method: got %q, want empty (service defaults it)", paymentMethod)
			}
			return &service.SettlementResult{OrdersSettled: 3, TotalAmount: decimal.RequireFromString("240.00")}, nil
		},
	}
	r := newAdminRouter(&mockAdminStore{}, dues)

	rr := doRequest(t, r, "POST", "/admin/students/"+studentID.String()+"/mark-all-paid", adminToken(t), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["orders_settled"] != float64(3) {
		t.Errorf("orders_settled: got %v, want 3", resp["orders_settled"])
	}
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	r := newAdminRouter(&mockAdminStore{}, &mockDuesServicer{})

	rr := doRequest(t, r, "GET", "/admin/students/dues", tokenFor(t, uuid.New(), enum.UserRoleStudent), nil)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
