package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foodhunt/api/internal/auth"
	"github.com/foodhunt/api/internal/database"
	"github.com/foodhunt/api/internal/enum"
	"github.com/foodhunt/api/internal/handler"
	"github.com/foodhunt/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	userByEmail   map[string]database.User
	userByID      map[uuid.UUID]database.User
	pendingOrders map[uuid.UUID][]database.Order
	createUserErr error
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{
		userByEmail:   make(map[string]database.User),
		userByID:      make(map[uuid.UUID]database.User),
		pendingOrders: make(map[uuid.UUID][]database.Order),
	}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.userByEmail[u.Email] = u
	m.userByID[u.ID] = u
}

func (m *mockAuthStore) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	if m.createUserErr != nil {
		return database.User{}, m.createUserErr
	}
	if _, exists := m.userByEmail[arg.Email]; exists {
		return database.User{}, &pgconn.PgError{Code: "23505"}
	}
	u := database.User{
		ID:             uuid.New(),
		StudentID:      arg.StudentID,
		Name:           arg.Name,
		Email:          arg.Email,
		HashedPassword: arg.HashedPassword,
		Role:           arg.Role,
		Department:     arg.Department,
		Year:           arg.Year,
		Balance:        makeTestNumeric("0.00"),
		IsActive:       true,
	}
	m.addUser(u)
	return u, nil
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	u, ok := m.userByEmail[email]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.userByID[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) ListPendingPaymentOrdersByUser(_ context.Context, userID uuid.UUID) ([]database.Order, error) {
	return m.pendingOrders[userID], nil
}

// --- Helpers ---

func makeTestNumeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		panic(err)
	}
	return n
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeTestStudent(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:             uuid.New(),
		StudentID:      "CS2023001",
		Name:           "Test Student",
		Email:          "student@test.edu",
		HashedPassword: hashPassword(t, "correct-password"),
		Role:           enum.UserRoleStudent,
		Department:     pgtype.Text{String: "Computer Science", Valid: true},
		Year:           pgtype.Int4{Int32: 2, Valid: true},
		Balance:        makeTestNumeric("500.00"),
		IsActive:       true,
	}
}

func tokenFor(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, router, "POST", path, "", body)
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func newAuthRouter(store handler.AuthStore) chi.Router {
	h := handler.NewAuthHandler(store, testSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		h.RegisterProtectedRoutes(r)
	})
	return r
}

// --- Register tests ---

func TestRegister_Success(t *testing.T) {
	store := newMockAuthStore()
	r := newAuthRouter(store)

	rr := postJSON(t, r, "/auth/register", map[string]interface{}{
		"student_id": "CS2023042",
		"name":       "New Student",
		"email":      "new@test.edu",
		"password":   "secret123",
		"department": "Physics",
		"year":       1,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["token"] == nil || resp["token"] == "" {
		t.Error("expected non-empty token")
	}
	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["role"] != "student" {
		t.Errorf("role: got %v, want student", userResp["role"])
	}
	if userResp["balance"] != "0.00" {
		t.Errorf("balance: got %v, want 0.00", userResp["balance"])
	}
}

func TestRegister_RoleCannotBeChosen(t *testing.T) {
	store := newMockAuthStore()
	r := newAuthRouter(store)

	rr := postJSON(t, r, "/auth/register", map[string]interface{}{
		"student_id": "CS2023042",
		"name":       "Sneaky Student",
		"email":      "sneaky@test.edu",
		"password":   "secret123",
		"role":       "admin",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusCreated)
	}
	u := store.userByEmail["sneaky@test.edu"]
	if u.Role != enum.UserRoleStudent {
		t.Errorf("role: got %s, want student", u.Role)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestStudent(t))
	r := newAuthRouter(store)

	rr := postJSON(t, r, "/auth/register", map[string]interface{}{
		"student_id": "CS2023099",
		"name":       "Other Student",
		"email":      "student@test.edu",
		"password":   "secret123",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRegister_Validation(t *testing.T) {
	testCases := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing fields", map[string]interface{}{"email": "a@test.edu"}},
		{"short password", map[string]interface{}{
			"student_id": "CS1", "name": "A", "email": "a@test.edu", "password": "12345",
		}},
		{"year out of range", map[string]interface{}{
			"student_id": "CS1", "name": "A", "email": "a@test.edu", "password": "123456", "year": 5,
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newAuthRouter(newMockAuthStore())
			rr := postJSON(t, r, "/auth/register", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestStudent(t))
	r := newAuthRouter(store)

	rr := postJSON(t, r, "/auth/login", map[string]string{
		"email":    "student@test.edu",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["token"] == nil || resp["token"] == "" {
		t.Error("expected non-empty token")
	}
	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["email"] != "student@test.edu" {
		t.Errorf("email: got %v, want student@test.edu", userResp["email"])
	}
	if userResp["balance"] != "500.00" {
		t.Errorf("balance: got %v, want 500.00", userResp["balance"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestStudent(t))
	r := newAuthRouter(store)

	rr := postJSON(t, r, "/auth/login", map[string]string{
		"email":    "student@test.edu",
		"password": "wrong-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UserNotFound(t *testing.T) {
	r := newAuthRouter(newMockAuthStore())

	rr := postJSON(t, r, "/auth/login", map[string]string{
		"email":    "nobody@test.edu",
		"password": "password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

// --- Profile tests ---

func TestProfile_IncludesDues(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestStudent(t)
	store.addUser(user)
	store.pendingOrders[user.ID] = []database.Order{
		{ID: uuid.New(), UserID: user.ID, TotalAmount: makeTestNumeric("120.00")},
		{ID: uuid.New(), UserID: user.ID, TotalAmount: makeTestNumeric("45.50")},
	}
	r := newAuthRouter(store)

	rr := doRequest(t, r, "GET", "/auth/profile", tokenFor(t, user.ID, user.Role), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["total_dues"] != "165.50" {
		t.Errorf("total_dues: got %v, want 165.50", resp["total_dues"])
	}
	if resp["student_id"] != "CS2023001" {
		t.Errorf("student_id: got %v, want CS2023001", resp["student_id"])
	}
}

func TestProfile_RequiresToken(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestStudent(t))
	r := newAuthRouter(store)

	rr := doRequest(t, r, "GET", "/auth/profile", "", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
