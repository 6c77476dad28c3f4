package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrder = `
INSERT INTO orders (user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
`

type CreateOrderParams struct {
	UserID        uuid.UUID
	Status        OrderStatus
	OrderType     OrderType
	ScheduledTime pgtype.Timestamptz
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	Notes         pgtype.Text
	TotalAmount   pgtype.Numeric
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.UserID,
		arg.Status,
		arg.OrderType,
		arg.ScheduledTime,
		arg.PaymentStatus,
		arg.PaymentMethod,
		arg.Notes,
		arg.TotalAmount,
	)
	return scanOrder(row)
}

const createOrderItem = `
INSERT INTO order_items (order_id, food_item_id, name, quantity, unit_price, preparation_time)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, food_item_id, name, quantity, unit_price, preparation_time
`

type CreateOrderItemParams struct {
	OrderID         uuid.UUID
	FoodItemID      uuid.UUID
	Name            string
	Quantity        int32
	UnitPrice       pgtype.Numeric
	PreparationTime int32
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.FoodItemID,
		arg.Name,
		arg.Quantity,
		arg.UnitPrice,
		arg.PreparationTime,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.FoodItemID,
		&i.Name,
		&i.Quantity,
		&i.UnitPrice,
		&i.PreparationTime,
	)
	return i, err
}

const getOrder = `
SELECT id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUser = `
SELECT id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
FROM orders
WHERE id = $1 AND user_id = $2
`

type GetOrderForUserParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

func (q *Queries) GetOrderForUser(ctx context.Context, arg GetOrderForUserParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUser, arg.ID, arg.UserID))
}

const listOrderItemsByOrder = `
SELECT id, order_id, food_item_id, name, quantity, unit_price, preparation_time
FROM order_items
WHERE order_id = $1
ORDER BY name
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.FoodItemID,
			&i.Name,
			&i.Quantity,
			&i.UnitPrice,
			&i.PreparationTime,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listOrdersByUser = `
SELECT id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
FROM orders
WHERE user_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListOrdersByUserParams struct {
	UserID uuid.UUID
	Status string
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, arg.UserID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const countOrdersByUser = `
SELECT COUNT(*) FROM orders
WHERE user_id = $1 AND ($2 = '' OR status = $2)
`

type CountOrdersByUserParams struct {
	UserID uuid.UUID
	Status string
}

func (q *Queries) CountOrdersByUser(ctx context.Context, arg CountOrdersByUserParams) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countOrdersByUser, arg.UserID, arg.Status).Scan(&n)
	return n, err
}

const listAllOrders = `
SELECT id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
FROM orders
WHERE ($1 = '' OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListAllOrdersParams struct {
	Status    string
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListAllOrders(ctx context.Context, arg ListAllOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listAllOrders, arg.Status, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
`

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     OrderStatus
	FromStatus OrderStatus
}

// UpdateOrderStatus is a compare-and-swap on the status column. pgx.ErrNoRows
// means the order changed under us (or does not exist); callers re-read.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.FromStatus))
}

const startPreparingOrder = `
UPDATE orders
SET status = 'preparing', preparation_started_at = $2, estimated_ready_time = $3, updated_at = now()
WHERE id = $1 AND status = $4
RETURNING id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
`

type StartPreparingOrderParams struct {
	ID                   uuid.UUID
	PreparationStartedAt pgtype.Timestamptz
	EstimatedReadyTime   pgtype.Timestamptz
	FromStatus           OrderStatus
}

func (q *Queries) StartPreparingOrder(ctx context.Context, arg StartPreparingOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, startPreparingOrder,
		arg.ID,
		arg.PreparationStartedAt,
		arg.EstimatedReadyTime,
		arg.FromStatus,
	))
}

const cancelOrderForUser = `
UPDATE orders
SET status = 'cancelled', updated_at = now()
WHERE id = $1 AND user_id = $2 AND status = 'pending'
RETURNING id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
`

type CancelOrderForUserParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// CancelOrderForUser is the self-service cancel. The precondition (owner,
// still pending) is enforced atomically in the update itself.
func (q *Queries) CancelOrderForUser(ctx context.Context, arg CancelOrderForUserParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrderForUser, arg.ID, arg.UserID))
}

const sweepReadyOrders = `
UPDATE orders
SET status = 'ready', updated_at = now()
WHERE status = 'preparing' AND estimated_ready_time IS NOT NULL AND estimated_ready_time <= $1
`

// SweepReadyOrders promotes preparing orders past their estimated ready time.
// Idempotent; safe to run on any schedule.
func (q *Queries) SweepReadyOrders(ctx context.Context, now pgtype.Timestamptz) (int64, error) {
	tag, err := q.db.Exec(ctx, sweepReadyOrders, now)
	return tag.RowsAffected(), err
}

const listPendingPaymentOrdersByUser = `
SELECT id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
FROM orders
WHERE user_id = $1 AND payment_status = 'pending' AND status != 'cancelled'
ORDER BY created_at ASC
`

func (q *Queries) ListPendingPaymentOrdersByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listPendingPaymentOrdersByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const markOrdersPaid = `
UPDATE orders
SET payment_status = 'paid', payment_method = $3, updated_at = now()
WHERE id = ANY($1::uuid[]) AND user_id = $2 AND payment_status = 'pending' AND status != 'cancelled'
RETURNING id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
`

type MarkOrdersPaidParams struct {
	IDs           []uuid.UUID
	UserID        uuid.UUID
	PaymentMethod PaymentMethod
}

// MarkOrdersPaid flips the named orders to paid, but only those that belong
// to the user and are still pending. Callers compare the returned set
// against the requested set.
func (q *Queries) MarkOrdersPaid(ctx context.Context, arg MarkOrdersPaidParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, markOrdersPaid, arg.IDs, arg.UserID, arg.PaymentMethod)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const markAllOrdersPaid = `
UPDATE orders
SET payment_status = 'paid', payment_method = $2, updated_at = now()
WHERE user_id = $1 AND payment_status = 'pending' AND status != 'cancelled'
RETURNING id, user_id, status, order_type, scheduled_time, payment_status, payment_method, notes, total_amount, preparation_started_at, estimated_ready_time, created_at, updated_at
`

type MarkAllOrdersPaidParams struct {
	UserID        uuid.UUID
	PaymentMethod PaymentMethod
}

func (q *Queries) MarkAllOrdersPaid(ctx context.Context, arg MarkAllOrdersPaidParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, markAllOrdersPaid, arg.UserID, arg.PaymentMethod)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Status,
		&i.OrderType,
		&i.ScheduledTime,
		&i.PaymentStatus,
		&i.PaymentMethod,
		&i.Notes,
		&i.TotalAmount,
		&i.PreparationStartedAt,
		&i.EstimatedReadyTime,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

type orderRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectOrders(rows orderRows) ([]Order, error) {
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}
