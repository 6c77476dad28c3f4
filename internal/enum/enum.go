package enum

// --- State machines (CHECK constrained in DB) ---

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// --- Roles and order types (CHECK constrained in DB) ---

const (
	UserRoleStudent = "student"
	UserRoleStaff   = "staff"
	UserRoleAdmin   = "admin"
)

const (
	OrderTypeImmediate = "immediate"
	OrderTypeScheduled = "scheduled"
)

// --- Configurable labels ---

const (
	CategoryBreakfast = "breakfast"
	CategoryLunch     = "lunch"
	CategoryDinner    = "dinner"
	CategorySnacks    = "snacks"
	CategoryBeverages = "beverages"
)

const (
	PaymentMethodBalance = "balance"
	PaymentMethodCash    = "cash"
	PaymentMethodCard    = "card"
)

const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
)
