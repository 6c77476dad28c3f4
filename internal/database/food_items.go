package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createFoodItem = `
INSERT INTO food_items (name, description, price, category, image_url, is_available, preparation_time, stock, max_daily_stock)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, name, description, price, category, image_url, is_available, preparation_time, stock, max_daily_stock, created_at, updated_at
`

type CreateFoodItemParams struct {
	Name            string
	Description     string
	Price           pgtype.Numeric
	Category        string
	ImageUrl        pgtype.Text
	IsAvailable     bool
	PreparationTime int32
	Stock           int32
	MaxDailyStock   int32
}

func (q *Queries) CreateFoodItem(ctx context.Context, arg CreateFoodItemParams) (FoodItem, error) {
	row := q.db.QueryRow(ctx, createFoodItem,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.Category,
		arg.ImageUrl,
		arg.IsAvailable,
		arg.PreparationTime,
		arg.Stock,
		arg.MaxDailyStock,
	)
	var i FoodItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Category,
		&i.ImageUrl,
		&i.IsAvailable,
		&i.PreparationTime,
		&i.Stock,
		&i.MaxDailyStock,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getFoodItem = `
SELECT id, name, description, price, category, image_url, is_available, preparation_time, stock, max_daily_stock, created_at, updated_at
FROM food_items
WHERE id = $1
`

func (q *Queries) GetFoodItem(ctx context.Context, id uuid.UUID) (FoodItem, error) {
	row := q.db.QueryRow(ctx, getFoodItem, id)
	var i FoodItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Category,
		&i.ImageUrl,
		&i.IsAvailable,
		&i.PreparationTime,
		&i.Stock,
		&i.MaxDailyStock,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listFoodItems = `
SELECT id, name, description, price, category, image_url, is_available, preparation_time, stock, max_daily_stock, created_at, updated_at
FROM food_items
WHERE ($1 = '' OR category = $1)
  AND (NOT $2::bool OR is_available = true)
ORDER BY category, name
`

type ListFoodItemsParams struct {
	Category      string
	OnlyAvailable bool
}

func (q *Queries) ListFoodItems(ctx context.Context, arg ListFoodItemsParams) ([]FoodItem, error) {
	rows, err := q.db.Query(ctx, listFoodItems, arg.Category, arg.OnlyAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FoodItem
	for rows.Next() {
		var i FoodItem
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Description,
			&i.Price,
			&i.Category,
			&i.ImageUrl,
			&i.IsAvailable,
			&i.PreparationTime,
			&i.Stock,
			&i.MaxDailyStock,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateFoodItem = `
UPDATE food_items
SET name = $2, description = $3, price = $4, category = $5, image_url = $6,
    preparation_time = $7, max_daily_stock = $8,
    stock = LEAST(stock, $8),
    updated_at = now()
WHERE id = $1
RETURNING id, name, description, price, category, image_url, is_available, preparation_time, stock, max_daily_stock, created_at, updated_at
`

type UpdateFoodItemParams struct {
	ID              uuid.UUID
	Name            string
	Description     string
	Price           pgtype.Numeric
	Category        string
	ImageUrl        pgtype.Text
	PreparationTime int32
	MaxDailyStock   int32
}

// UpdateFoodItem edits the catalog entry. Lowering max_daily_stock clamps
// stock down with it so the stock <= max_daily_stock invariant holds on
// every write path.
func (q *Queries) UpdateFoodItem(ctx context.Context, arg UpdateFoodItemParams) (FoodItem, error) {
	row := q.db.QueryRow(ctx, updateFoodItem,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.Category,
		arg.ImageUrl,
		arg.PreparationTime,
		arg.MaxDailyStock,
	)
	var i FoodItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Category,
		&i.ImageUrl,
		&i.IsAvailable,
		&i.PreparationTime,
		&i.Stock,
		&i.MaxDailyStock,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteFoodItem = `
DELETE FROM food_items WHERE id = $1
`

func (q *Queries) DeleteFoodItem(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteFoodItem, id)
	return tag.RowsAffected(), err
}

const setFoodItemStock = `
UPDATE food_items
SET stock = $2,
    is_available = CASE WHEN $2 = 0 THEN false ELSE is_available END,
    updated_at = now()
WHERE id = $1 AND $2 <= max_daily_stock
RETURNING id, name, description, price, category, image_url, is_available, preparation_time, stock, max_daily_stock, created_at, updated_at
`

type SetFoodItemStockParams struct {
	ID    uuid.UUID
	Stock int32
}

// SetFoodItemStock is the admin direct stock edit. The update refuses to
// raise stock above max_daily_stock (pgx.ErrNoRows) and flips availability
// off when stock hits zero.
func (q *Queries) SetFoodItemStock(ctx context.Context, arg SetFoodItemStockParams) (FoodItem, error) {
	row := q.db.QueryRow(ctx, setFoodItemStock, arg.ID, arg.Stock)
	var i FoodItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Category,
		&i.ImageUrl,
		&i.IsAvailable,
		&i.PreparationTime,
		&i.Stock,
		&i.MaxDailyStock,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const setFoodItemAvailability = `
UPDATE food_items
SET is_available = $2, updated_at = now()
WHERE id = $1 AND NOT ($2 AND stock = 0)
RETURNING id, name, description, price, category, image_url, is_available, preparation_time, stock, max_daily_stock, created_at, updated_at
`

type SetFoodItemAvailabilityParams struct {
	ID          uuid.UUID
	IsAvailable bool
}

// SetFoodItemAvailability refuses to mark a zero-stock item available.
func (q *Queries) SetFoodItemAvailability(ctx context.Context, arg SetFoodItemAvailabilityParams) (FoodItem, error) {
	row := q.db.QueryRow(ctx, setFoodItemAvailability, arg.ID, arg.IsAvailable)
	var i FoodItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Category,
		&i.ImageUrl,
		&i.IsAvailable,
		&i.PreparationTime,
		&i.Stock,
		&i.MaxDailyStock,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getFoodItemForOrder = `
SELECT id, name, price, stock, preparation_time
FROM food_items
WHERE id = $1 AND is_available = true
`

type GetFoodItemForOrderRow struct {
	ID              uuid.UUID
	Name            string
	Price           pgtype.Numeric
	Stock           int32
	PreparationTime int32
}

func (q *Queries) GetFoodItemForOrder(ctx context.Context, id uuid.UUID) (GetFoodItemForOrderRow, error) {
	row := q.db.QueryRow(ctx, getFoodItemForOrder, id)
	var i GetFoodItemForOrderRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.Stock,
		&i.PreparationTime,
	)
	return i, err
}

const decrementFoodItemStock = `
UPDATE food_items
SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2
RETURNING id, name, description, price, category, image_url, is_available, preparation_time, stock, max_daily_stock, created_at, updated_at
`

type DecrementFoodItemStockParams struct {
	ID       uuid.UUID
	Quantity int32
}

// DecrementFoodItemStock reserves stock in a single conditional update.
// pgx.ErrNoRows means the remaining stock was below the requested quantity;
// callers roll back the surrounding transaction.
func (q *Queries) DecrementFoodItemStock(ctx context.Context, arg DecrementFoodItemStockParams) (FoodItem, error) {
	row := q.db.QueryRow(ctx, decrementFoodItemStock, arg.ID, arg.Quantity)
	var i FoodItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Category,
		&i.ImageUrl,
		&i.IsAvailable,
		&i.PreparationTime,
		&i.Stock,
		&i.MaxDailyStock,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const restoreFoodItemStock = `
UPDATE food_items
SET stock = LEAST(stock + $2, max_daily_stock), updated_at = now()
WHERE id = $1
RETURNING id, name, description, price, category, image_url, is_available, preparation_time, stock, max_daily_stock, created_at, updated_at
`

type RestoreFoodItemStockParams struct {
	ID       uuid.UUID
	Quantity int32
}

// RestoreFoodItemStock reverses a reservation using the quantity stored on
// the order item. Clamped to max_daily_stock so an admin lowering the cap
// between order and cancellation cannot break the invariant.
func (q *Queries) RestoreFoodItemStock(ctx context.Context, arg RestoreFoodItemStockParams) (FoodItem, error) {
	row := q.db.QueryRow(ctx, restoreFoodItemStock, arg.ID, arg.Quantity)
	var i FoodItem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.Category,
		&i.ImageUrl,
		&i.IsAvailable,
		&i.PreparationTime,
		&i.Stock,
		&i.MaxDailyStock,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
