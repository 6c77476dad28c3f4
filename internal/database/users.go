package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createUser = `
INSERT INTO users (student_id, name, email, hashed_password, role, department, year)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, student_id, name, email, hashed_password, role, department, year, balance, is_active, created_at, updated_at
`

type CreateUserParams struct {
	StudentID      string
	Name           string
	Email          string
	HashedPassword string
	Role           string
	Department     pgtype.Text
	Year           pgtype.Int4
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.StudentID,
		arg.Name,
		arg.Email,
		arg.HashedPassword,
		arg.Role,
		arg.Department,
		arg.Year,
	)
	var i User
	err := row.Scan(
		&i.ID,
		&i.StudentID,
		&i.Name,
		&i.Email,
		&i.HashedPassword,
		&i.Role,
		&i.Department,
		&i.Year,
		&i.Balance,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByEmail = `
SELECT id, student_id, name, email, hashed_password, role, department, year, balance, is_active, created_at, updated_at
FROM users
WHERE email = $1 AND is_active = true
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(
		&i.ID,
		&i.StudentID,
		&i.Name,
		&i.Email,
		&i.HashedPassword,
		&i.Role,
		&i.Department,
		&i.Year,
		&i.Balance,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByID = `
SELECT id, student_id, name, email, hashed_password, role, department, year, balance, is_active, created_at, updated_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.StudentID,
		&i.Name,
		&i.Email,
		&i.HashedPassword,
		&i.Role,
		&i.Department,
		&i.Year,
		&i.Balance,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const adjustUserBalance = `
UPDATE users
SET balance = balance + $2, updated_at = now()
WHERE id = $1 AND balance + $2 >= 0
RETURNING id, student_id, name, email, hashed_password, role, department, year, balance, is_active, created_at, updated_at
`

type AdjustUserBalanceParams struct {
	ID     uuid.UUID
	Amount pgtype.Numeric
}

// AdjustUserBalance applies a signed delta to the wallet balance in a single
// conditional update. Returns pgx.ErrNoRows when the user does not exist or
// the debit would drive the balance negative.
func (q *Queries) AdjustUserBalance(ctx context.Context, arg AdjustUserBalanceParams) (User, error) {
	row := q.db.QueryRow(ctx, adjustUserBalance, arg.ID, arg.Amount)
	var i User
	err := row.Scan(
		&i.ID,
		&i.StudentID,
		&i.Name,
		&i.Email,
		&i.HashedPassword,
		&i.Role,
		&i.Department,
		&i.Year,
		&i.Balance,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listStudentsWithDues = `
SELECT u.id, u.student_id, u.name, u.email, u.department, u.year,
       COALESCE(SUM(o.total_amount), 0) AS total_dues,
       COUNT(o.id) AS pending_orders
FROM users u
JOIN orders o ON o.user_id = u.id AND o.payment_status = 'pending' AND o.status != 'cancelled'
WHERE u.role = 'student' AND u.is_active = true
GROUP BY u.id, u.student_id, u.name, u.email, u.department, u.year
ORDER BY total_dues DESC
`

type ListStudentsWithDuesRow struct {
	ID            uuid.UUID
	StudentID     string
	Name          string
	Email         string
	Department    pgtype.Text
	Year          pgtype.Int4
	TotalDues     pgtype.Numeric
	PendingOrders int64
}

func (q *Queries) ListStudentsWithDues(ctx context.Context) ([]ListStudentsWithDuesRow, error) {
	rows, err := q.db.Query(ctx, listStudentsWithDues)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListStudentsWithDuesRow
	for rows.Next() {
		var i ListStudentsWithDuesRow
		if err := rows.Scan(
			&i.ID,
			&i.StudentID,
			&i.Name,
			&i.Email,
			&i.Department,
			&i.Year,
			&i.TotalDues,
			&i.PendingOrders,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
