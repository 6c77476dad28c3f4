package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodhunt/api/internal/database"
	"github.com/foodhunt/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const maxNotesLength = 500

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidFoodItemID    = errors.New("invalid food_item_id")
	ErrItemUnavailable      = errors.New("food item not found or unavailable")
	ErrInvalidOrderType     = errors.New("invalid order_type")
	ErrScheduledTimeMissing = errors.New("scheduled_time is required for scheduled orders")
	ErrInvalidScheduledTime = errors.New("invalid scheduled_time")
	ErrNotesTooLong         = errors.New("notes cannot exceed 500 characters")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotCancellable       = errors.New("only pending orders can be cancelled")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrStatusConflict       = errors.New("order status changed, please retry")
)

// InsufficientStockError names the item that could not be reserved and how
// much of it was left, so the caller can report both.
type InsufficientStockError struct {
	ItemName  string
	Available int32
	Requested int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. Available: %d, Requested: %d",
		e.ItemName, e.Available, e.Requested)
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetFoodItemForOrder(ctx context.Context, id uuid.UUID) (database.GetFoodItemForOrderRow, error)
	DecrementFoodItemStock(ctx context.Context, arg database.DecrementFoodItemStockParams) (database.FoodItem, error)
	RestoreFoodItemStock(ctx context.Context, arg database.RestoreFoodItemStockParams) (database.FoodItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUser(ctx context.Context, arg database.GetOrderForUserParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	StartPreparingOrder(ctx context.Context, arg database.StartPreparingOrderParams) (database.Order, error)
	CancelOrderForUser(ctx context.Context, arg database.CancelOrderForUserParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	UserID        uuid.UUID
	OrderType     string
	ScheduledTime string // RFC3339
	Notes         string
	Items         []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line item in the order.
type CreateOrderItemRequest struct {
	FoodItemID string
	Quantity   int32
}

// CreateOrderResult is the full created order with item snapshots.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService handles the order lifecycle: creation with stock
// reservation, the status state machine, and cancellation with stock
// restoration. Every multi-entity operation runs in a single transaction
// and every stock or status write is a conditional update.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	now      func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, now: time.Now}
}

// preparedItem holds the snapshot taken from the catalog at validation time.
type preparedItem struct {
	foodItemID uuid.UUID
	name       string
	quantity   int32
	unitPrice  decimal.Decimal
	prepTime   int32
}

// CreateOrder validates every line item, reserves stock, and persists the
// order atomically. If any item is unavailable or short on stock the whole
// transaction rolls back: no partial decrements, no dangling order.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if len(req.Notes) > maxNotesLength {
		return nil, ErrNotesTooLong
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = enum.OrderTypeImmediate
	}
	scheduledTime := pgtype.Timestamptz{}
	switch orderType {
	case enum.OrderTypeImmediate:
	case enum.OrderTypeScheduled:
		if req.ScheduledTime == "" {
			return nil, ErrScheduledTimeMissing
		}
		t, err := time.Parse(time.RFC3339, req.ScheduledTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScheduledTime, err)
		}
		scheduledTime = pgtype.Timestamptz{Time: t, Valid: true}
	default:
		return nil, ErrInvalidOrderType
	}

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if _, err := uuid.Parse(item.FoodItemID); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidFoodItemID)
		}
	}

	// --- Begin transaction ---
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Validate items, snapshot prices, reserve stock ---
	totalAmount := decimal.Zero
	var items []preparedItem

	for i, item := range req.Items {
		foodItemID, _ := uuid.Parse(item.FoodItemID)

		row, err := store.GetFoodItemForOrder(ctx, foodItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrItemUnavailable)
			}
			return nil, fmt.Errorf("items[%d]: get food item: %w", i, err)
		}

		// Reserve stock with a conditional decrement. Zero rows means the
		// remaining stock is short; rolling back undoes every earlier
		// decrement in this order.
		if _, err := store.DecrementFoodItemStock(ctx, database.DecrementFoodItemStockParams{
			ID:       foodItemID,
			Quantity: item.Quantity,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &InsufficientStockError{
					ItemName:  row.Name,
					Available: row.Stock,
					Requested: item.Quantity,
				}
			}
			return nil, fmt.Errorf("items[%d]: decrement stock: %w", i, err)
		}

		unitPrice := numericToDecimal(row.Price)
		totalAmount = totalAmount.Add(unitPrice.Mul(decimal.NewFromInt32(item.Quantity)))

		items = append(items, preparedItem{
			foodItemID: foodItemID,
			name:       row.Name,
			quantity:   item.Quantity,
			unitPrice:  unitPrice,
			prepTime:   row.PreparationTime,
		})
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		UserID:        req.UserID,
		Status:        database.OrderStatusPending,
		OrderType:     database.OrderType(orderType),
		ScheduledTime: scheduledTime,
		PaymentStatus: database.PaymentStatusPending,
		PaymentMethod: database.PaymentMethodBalance,
		Notes:         notes,
		TotalAmount:   decimalToNumeric(totalAmount),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert item snapshots ---
	var itemRows []database.OrderItem
	for _, pi := range items {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:         order.ID,
			FoodItemID:      pi.foodItemID,
			Name:            pi.name,
			Quantity:        pi.quantity,
			UnitPrice:       decimalToNumeric(pi.unitPrice),
			PreparationTime: pi.prepTime,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		itemRows = append(itemRows, item)
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: itemRows}, nil
}

// Cancel is the self-service cancel: only the order's owner, only while the
// order is still pending. The status flip and the stock restoration commit
// together.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.CancelOrderForUser(ctx, database.CancelOrderForUserParams{
		ID:     orderID,
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the order doesn't exist for this user or it already
			// left pending. Re-read to report which.
			if _, fetchErr := store.GetOrderForUser(ctx, database.GetOrderForUserParams{
				ID:     orderID,
				UserID: userID,
			}); fetchErr != nil {
				if errors.Is(fetchErr, pgx.ErrNoRows) {
					return nil, ErrOrderNotFound
				}
				return nil, fmt.Errorf("get order for cancel: %w", fetchErr)
			}
			return nil, ErrNotCancellable
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if err := s.restoreStock(ctx, store, order.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, nil
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
// completed and cancelled are terminal: absent keys reject everything.
var allowedTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusPending:   {database.OrderStatusConfirmed, database.OrderStatusPreparing, database.OrderStatusCancelled},
	database.OrderStatusConfirmed: {database.OrderStatusPreparing, database.OrderStatusCancelled},
	database.OrderStatusPreparing: {database.OrderStatusReady, database.OrderStatusCancelled},
	database.OrderStatusReady:     {database.OrderStatusCompleted, database.OrderStatusCancelled},
}

func validateStatusTransition(current, next database.OrderStatus) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("%w: cannot transition from %s", ErrInvalidTransition, current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
}

func isValidOrderStatus(s database.OrderStatus) bool {
	switch s {
	case database.OrderStatusPending,
		database.OrderStatusConfirmed,
		database.OrderStatusPreparing,
		database.OrderStatusReady,
		database.OrderStatusCompleted,
		database.OrderStatusCancelled:
		return true
	}
	return false
}

// UpdateStatus applies the staff-side state machine. The write is a
// compare-and-swap against the status read in the same transaction, so a
// concurrent transition surfaces as ErrStatusConflict instead of silently
// overwriting.
//
// Entering preparing stamps preparation_started_at and derives
// estimated_ready_time from the slowest item's preparation-time snapshot.
// Cancelling a pending order restores its reserved stock; cancelling later
// does not, since the food is already on the line.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*database.Order, error) {
	newStatus := database.OrderStatus(status)
	if !isValidOrderStatus(newStatus) {
		return nil, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := validateStatusTransition(current.Status, newStatus); err != nil {
		return nil, err
	}

	var updated database.Order
	switch newStatus {
	case database.OrderStatusPreparing:
		items, err := store.ListOrderItemsByOrder(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("list order items: %w", err)
		}
		var maxPrep int32
		for _, item := range items {
			if item.PreparationTime > maxPrep {
				maxPrep = item.PreparationTime
			}
		}
		now := s.now()
		updated, err = store.StartPreparingOrder(ctx, database.StartPreparingOrderParams{
			ID:                   orderID,
			PreparationStartedAt: pgtype.Timestamptz{Time: now, Valid: true},
			EstimatedReadyTime:   pgtype.Timestamptz{Time: now.Add(time.Duration(maxPrep) * time.Minute), Valid: true},
			FromStatus:           current.Status,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrStatusConflict
			}
			return nil, fmt.Errorf("start preparing: %w", err)
		}

	case database.OrderStatusCancelled:
		updated, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:         orderID,
			Status:     newStatus,
			FromStatus: current.Status,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrStatusConflict
			}
			return nil, fmt.Errorf("update order status: %w", err)
		}
		// Stock was only reserved while the order sat in pending.
		if current.Status == database.OrderStatusPending {
			if err := s.restoreStock(ctx, store, orderID); err != nil {
				return nil, err
			}
		}

	default:
		updated, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:         orderID,
			Status:     newStatus,
			FromStatus: current.Status,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrStatusConflict
			}
			return nil, fmt.Errorf("update order status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// restoreStock reverses the reservation using the quantities stored on the
// order items, never the live catalog state.
func (s *OrderService) restoreStock(ctx context.Context, store OrderStore, orderID uuid.UUID) error {
	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	for _, item := range items {
		if _, err := store.RestoreFoodItemStock(ctx, database.RestoreFoodItemStockParams{
			ID:       item.FoodItemID,
			Quantity: item.Quantity,
		}); err != nil {
			// The catalog entry may have been deleted since the order was
			// placed; there is nothing to restore in that case.
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return fmt.Errorf("restore stock: %w", err)
		}
	}
	return nil
}

// --- Helpers ---

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
