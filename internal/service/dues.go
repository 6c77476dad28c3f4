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

// duesGraceWindow is how long a pending order may sit unpaid before it
// counts as overdue.
const duesGraceWindow = 7 * 24 * time.Hour

// Errors returned by dues settlement.
var (
	ErrNoOrderIDs          = errors.New("order ids are required")
	ErrNoPendingOrders     = errors.New("no pending orders to settle")
	ErrOrdersNotPending    = errors.New("every order must belong to the student and be pending payment")
	ErrInvalidPayMethod    = errors.New("invalid payment_method")
	ErrStudentNotFound     = errors.New("student not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// DuesStore defines the DB methods needed by dues settlement.
// Satisfied by *database.Queries (and its WithTx variant).
type DuesStore interface {
	ListPendingPaymentOrdersByUser(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
	MarkOrdersPaid(ctx context.Context, arg database.MarkOrdersPaidParams) ([]database.Order, error)
	MarkAllOrdersPaid(ctx context.Context, arg database.MarkAllOrdersPaidParams) ([]database.Order, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	AdjustUserBalance(ctx context.Context, arg database.AdjustUserBalanceParams) (database.User, error)
	CreateTransaction(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error)
}

// NewDuesStore creates a DuesStore from a DBTX (pool or tx).
type NewDuesStore func(db database.DBTX) DuesStore

// DuesSummary is the student-facing view of outstanding dues.
type DuesSummary struct {
	TotalDues       decimal.Decimal
	PendingPayments int
	OverduePayments int
	NextDueDate     *time.Time
}

// SettlementResult reports what a mark-paid call actually settled.
type SettlementResult struct {
	OrdersSettled int
	TotalAmount   decimal.Decimal
}

// DuesService computes dues (the sum of totalAmount over a student's
// payment-pending orders) and settles them. Whether settlement also debits
// the wallet balance is a deployment decision; with deductBalance off the
// ledger entry records an unchanged balance and money changes hands at the
// counter.
type DuesService struct {
	store         DuesStore
	pool          TxBeginner
	newStore      NewDuesStore
	deductBalance bool
	now           func() time.Time
}

// NewDuesService creates a new DuesService. store must be pool-backed; the
// factory is used for transactional settlement.
func NewDuesService(store DuesStore, pool TxBeginner, newStore NewDuesStore, deductBalance bool) *DuesService {
	return &DuesService{
		store:         store,
		pool:          pool,
		newStore:      newStore,
		deductBalance: deductBalance,
		now:           time.Now,
	}
}

// Summary computes the dues summary for one user.
func (s *DuesService) Summary(ctx context.Context, userID uuid.UUID) (*DuesSummary, error) {
	pending, err := s.store.ListPendingPaymentOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}

	now := s.now()
	summary := &DuesSummary{TotalDues: decimal.Zero}
	for _, order := range pending {
		summary.TotalDues = summary.TotalDues.Add(numericToDecimal(order.TotalAmount))
		summary.PendingPayments++
		if order.CreatedAt.Add(duesGraceWindow).Before(now) {
			summary.OverduePayments++
		}
	}

	// Orders come back oldest first; the oldest one sets the next due date.
	if len(pending) > 0 {
		due := pending[0].CreatedAt.Add(duesGraceWindow)
		summary.NextDueDate = &due
	}
	return summary, nil
}

// MarkPaidRequest names the orders to settle for one student.
type MarkPaidRequest struct {
	UserID        uuid.UUID
	OrderIDs      []uuid.UUID
	PaymentMethod string
}

// MarkPaid settles a specific set of orders. Every named order must belong
// to the student and still be pending payment, or nothing is settled. One
// debit ledger entry is written per order.
func (s *DuesService) MarkPaid(ctx context.Context, req MarkPaidRequest) (*SettlementResult, error) {
	if len(req.OrderIDs) == 0 {
		return nil, ErrNoOrderIDs
	}
	method, err := settlementMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	settled, err := store.MarkOrdersPaid(ctx, database.MarkOrdersPaidParams{
		IDs:           req.OrderIDs,
		UserID:        req.UserID,
		PaymentMethod: method,
	})
	if err != nil {
		return nil, fmt.Errorf("mark orders paid: %w", err)
	}
	if len(settled) == 0 {
		return nil, ErrNoPendingOrders
	}
	if len(settled) != len(req.OrderIDs) {
		// Some named orders were missing, someone else's, or already paid.
		// Roll back rather than settle a subset the admin didn't ask for.
		return nil, ErrOrdersNotPending
	}

	balance, err := s.settlementBalance(ctx, store, req.UserID, settled)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, order := range settled {
		amount := numericToDecimal(order.TotalAmount)
		total = total.Add(amount)

		// The ledger only holds positive amounts; a zero-total order
		// settles without an entry.
		if amount.IsZero() {
			continue
		}

		after := balance
		if s.deductBalance {
			after = balance.Sub(amount)
		}
		if _, err := store.CreateTransaction(ctx, database.CreateTransactionParams{
			UserID:        req.UserID,
			Type:          database.TransactionTypeDebit,
			Amount:        order.TotalAmount,
			Description:   fmt.Sprintf("Payment for order %s - %s", order.ID, method),
			OrderID:       pgtype.UUID{Bytes: order.ID, Valid: true},
			BalanceBefore: decimalToNumeric(balance),
			BalanceAfter:  decimalToNumeric(after),
		}); err != nil {
			return nil, fmt.Errorf("create transaction: %w", err)
		}
		balance = after
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &SettlementResult{OrdersSettled: len(settled), TotalAmount: total}, nil
}

// MarkAllPaid settles every pending order for the student in one call and
// writes a single aggregated ledger entry.
func (s *DuesService) MarkAllPaid(ctx context.Context, userID uuid.UUID, paymentMethod string) (*SettlementResult, error) {
	method, err := settlementMethod(paymentMethod)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	settled, err := store.MarkAllOrdersPaid(ctx, database.MarkAllOrdersPaidParams{
		UserID:        userID,
		PaymentMethod: method,
	})
	if err != nil {
		return nil, fmt.Errorf("mark all orders paid: %w", err)
	}
	if len(settled) == 0 {
		return nil, ErrNoPendingOrders
	}

	balance, err := s.settlementBalance(ctx, store, userID, settled)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, order := range settled {
		total = total.Add(numericToDecimal(order.TotalAmount))
	}
	after := balance
	if s.deductBalance {
		after = balance.Sub(total)
	}

	// The ledger only holds positive amounts; when every settled order was
	// zero-total there is nothing to record.
	if !total.IsZero() {
		if _, err := store.CreateTransaction(ctx, database.CreateTransactionParams{
			UserID:        userID,
			Type:          database.TransactionTypeDebit,
			Amount:        decimalToNumeric(total),
			Description:   fmt.Sprintf("Payment for all pending dues (%d orders) - %s", len(settled), method),
			BalanceBefore: decimalToNumeric(balance),
			BalanceAfter:  decimalToNumeric(after),
		}); err != nil {
			return nil, fmt.Errorf("create transaction: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &SettlementResult{OrdersSettled: len(settled), TotalAmount: total}, nil
}

// settlementBalance resolves the student's wallet balance for the ledger
// snapshots and, when the service is configured to deduct, applies the
// debit as one conditional update.
func (s *DuesService) settlementBalance(ctx context.Context, store DuesStore, userID uuid.UUID, settled []database.Order) (decimal.Decimal, error) {
	user, err := store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrStudentNotFound
		}
		return decimal.Zero, fmt.Errorf("get user: %w", err)
	}
	balance := numericToDecimal(user.Balance)

	if !s.deductBalance {
		return balance, nil
	}

	total := decimal.Zero
	for _, order := range settled {
		total = total.Add(numericToDecimal(order.TotalAmount))
	}
	if _, err := store.AdjustUserBalance(ctx, database.AdjustUserBalanceParams{
		ID:     userID,
		Amount: decimalToNumeric(total.Neg()),
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrInsufficientBalance
		}
		return decimal.Zero, fmt.Errorf("adjust balance: %w", err)
	}
	return balance, nil
}

func settlementMethod(m string) (database.PaymentMethod, error) {
	if m == "" {
		return database.PaymentMethodCash, nil
	}
	switch m {
	case enum.PaymentMethodBalance, enum.PaymentMethodCash, enum.PaymentMethodCard:
		return database.PaymentMethod(m), nil
	}
	return "", ErrInvalidPayMethod
}
