package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderType string

const (
	OrderTypeImmediate OrderType = "immediate"
	OrderTypeScheduled OrderType = "scheduled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodBalance PaymentMethod = "balance"
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodCard    PaymentMethod = "card"
)

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

type User struct {
	ID             uuid.UUID
	StudentID      string
	Name           string
	Email          string
	HashedPassword string
	Role           string
	Department     pgtype.Text
	Year           pgtype.Int4
	Balance        pgtype.Numeric
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type FoodItem struct {
	ID              uuid.UUID
	Name            string
	Description     string
	Price           pgtype.Numeric
	Category        string
	ImageUrl        pgtype.Text
	IsAvailable     bool
	PreparationTime int32
	Stock           int32
	MaxDailyStock   int32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Order struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	Status               OrderStatus
	OrderType            OrderType
	ScheduledTime        pgtype.Timestamptz
	PaymentStatus        PaymentStatus
	PaymentMethod        PaymentMethod
	Notes                pgtype.Text
	TotalAmount          pgtype.Numeric
	PreparationStartedAt pgtype.Timestamptz
	EstimatedReadyTime   pgtype.Timestamptz
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OrderItem carries denormalized snapshots (name, unit price, preparation
// time) taken from the catalog at order creation. Orders stay intact when
// the catalog entry is edited or deleted later.
type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	FoodItemID      uuid.UUID
	Name            string
	Quantity        int32
	UnitPrice       pgtype.Numeric
	PreparationTime int32
}

// Transaction is an append-only ledger row. No update or delete queries
// exist for this table.
type Transaction struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Type          TransactionType
	Amount        pgtype.Numeric
	Description   string
	OrderID       pgtype.UUID
	BalanceBefore pgtype.Numeric
	BalanceAfter  pgtype.Numeric
	CreatedAt     time.Time
}
