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
	"github.com/foodhunt/api/internal/middleware"
	"github.com/foodhunt/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletStore defines the database methods needed by wallet handlers.
type WalletStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	AdjustUserBalance(ctx context.Context, arg database.AdjustUserBalanceParams) (database.User, error)
	CreateTransaction(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error)
	ListTransactionsByUser(ctx context.Context, arg database.ListTransactionsByUserParams) ([]database.Transaction, error)
}

// NewWalletStore creates a WalletStore from a DBTX (pool or tx).
type NewWalletStore func(db database.DBTX) WalletStore

// WalletHandler handles balance and transaction ledger endpoints.
type WalletHandler struct {
	store    WalletStore
	pool     service.TxBeginner
	newStore NewWalletStore
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(store WalletStore, pool service.TxBeginner, newStore NewWalletStore) *WalletHandler {
	return &WalletHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers wallet endpoints on the given Chi router.
func (h *WalletHandler) RegisterRoutes(r chi.Router) {
	r.Post("/wallet/payments", h.AddPayment)
	r.Get("/wallet/balance", h.Balance)
	r.Get("/wallet/transactions", h.Transactions)
}

// --- Request / Response types ---

type walletPaymentRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type transactionResponse struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	Amount        string     `json:"amount"`
	Description   string     `json:"description"`
	OrderID       *uuid.UUID `json:"order_id"`
	BalanceBefore string     `json:"balance_before"`
	BalanceAfter  string     `json:"balance_after"`
	CreatedAt     time.Time  `json:"created_at"`
}

// --- Handlers ---

// AddPayment handles POST /wallet/payments. A credit tops the balance up, a
// debit spends it. Both write a ledger row with balance snapshots.
func (h *WalletHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req walletPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	txType := database.TransactionType(req.Type)
	if txType != database.TransactionTypeCredit && txType != database.TransactionTypeDebit {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be credit or debit"})
		return
	}

	if req.Amount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	description := req.Description
	if description == "" {
		if txType == database.TransactionTypeCredit {
			description = "Wallet top-up"
		} else {
			description = "Wallet payment"
		}
	}

	// One transaction keeps the balance update and its ledger row atomic.
	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for wallet payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	delta := amount
	if txType == database.TransactionTypeDebit {
		delta = amount.Neg()
	}

	updated, err := txStore.AdjustUserBalance(r.Context(), database.AdjustUserBalanceParams{
		ID:     claims.UserID,
		Amount: decimalToNumeric(delta),
	})
	if err != nil {
		// The conditional update refuses a debit past zero.
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "insufficient balance"})
			return
		}
		log.Printf("ERROR: adjust balance: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Both snapshots derive from the update's returned balance, so
	// balance_after always equals balance_before plus the signed amount
	// no matter what commits in between.
	balanceBefore := numericToDecimal(updated.Balance).Sub(delta)

	entry, err := txStore.CreateTransaction(r.Context(), database.CreateTransactionParams{
		UserID:        claims.UserID,
		Type:          txType,
		Amount:        decimalToNumeric(amount),
		Description:   description,
		BalanceBefore: decimalToNumeric(balanceBefore),
		BalanceAfter:  updated.Balance,
	})
	if err != nil {
		log.Printf("ERROR: create wallet transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for wallet payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"transaction": dbTransactionToResponse(entry),
		"balance":     numericToString(updated.Balance),
	})
}

// Balance handles GET /wallet/balance.
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: get user for balance: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"balance": numericToString(user.Balance)})
}

// Transactions handles GET /wallet/transactions.
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

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

	entries, err := h.store.ListTransactionsByUser(r.Context(), database.ListTransactionsByUserParams{
		UserID: claims.UserID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]transactionResponse, len(entries))
	for i, entry := range entries {
		resp[i] = dbTransactionToResponse(entry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": resp})
}

// --- Helpers ---

func dbTransactionToResponse(t database.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:            t.ID,
		Type:          string(t.Type),
		Amount:        numericToString(t.Amount),
		Description:   t.Description,
		BalanceBefore: numericToString(t.BalanceBefore),
		BalanceAfter:  numericToString(t.BalanceAfter),
		CreatedAt:     t.CreatedAt,
	}
	if t.OrderID.Valid {
		id := uuid.UUID(t.OrderID.Bytes)
		resp.OrderID = &id
	}
	return resp
}
