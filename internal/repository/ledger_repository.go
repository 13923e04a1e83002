package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"settlement-service/internal/ledger"
	"settlement-service/internal/model"
)

// pgLockNotAvailable is raised when lock_timeout expires while waiting on a
// row lock held by a concurrent mutator.
const pgLockNotAvailable = "55P03"

// LedgerRepository is the durable ledger.Store backed by gorm/postgres.
// Same-account mutations serialize on a SELECT ... FOR UPDATE row lock;
// different accounts proceed concurrently.
type LedgerRepository struct {
	db          *gorm.DB
	log         *logrus.Logger
	lockTimeout time.Duration
}

func NewLedgerRepository(db *gorm.DB, log *logrus.Logger, lockTimeout time.Duration) *LedgerRepository {
	return &LedgerRepository{
		db:          db,
		log:         log,
		lockTimeout: lockTimeout,
	}
}

func (r *LedgerRepository) GetOrCreateBalance(ctx context.Context, accountID uint) (*model.Balance, error) {
	var bal model.Balance
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureBalanceRow(tx, accountID); err != nil {
			return err
		}
		return tx.Where("account_id = ?", accountID).First(&bal).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrAccountLookupFailed, err)
	}
	return &bal, nil
}

func (r *LedgerRepository) Mutate(ctx context.Context, m ledger.Mutation) (*model.Balance, *model.Transaction, error) {
	var (
		bal model.Balance
		rec model.Transaction
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.setLockTimeout(tx); err != nil {
			return err
		}
		applied, err := r.applyTx(tx, m)
		if err != nil {
			return err
		}
		rec = *applied
		return tx.Where("account_id = ?", m.AccountID).First(&bal).Error
	})
	if err != nil {
		return nil, nil, mapMutationError(err)
	}
	return &bal, &rec, nil
}

func (r *LedgerRepository) MutateGroup(ctx context.Context, ms []ledger.Mutation) ([]model.Transaction, error) {
	// Lock rows in account-id order so two overlapping groups cannot
	// deadlock against each other. Results keep the caller's order.
	ordered := make([]int, len(ms))
	for i := range ordered {
		ordered[i] = i
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ms[ordered[i]].AccountID < ms[ordered[j]].AccountID
	})

	results := make([]model.Transaction, len(ms))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.setLockTimeout(tx); err != nil {
			return err
		}
		for _, idx := range ordered {
			rec, err := r.applyTx(tx, ms[idx])
			if err != nil {
				return err
			}
			results[idx] = *rec
		}
		return nil
	})
	if err != nil {
		return nil, mapMutationError(err)
	}
	return results, nil
}

// applyTx runs the read-validate-write-append sequence inside the caller's
// transaction: ensure the row exists, lock it, recompute the balance from the
// authoritative row, then persist balance and transaction together.
func (r *LedgerRepository) applyTx(tx *gorm.DB, m ledger.Mutation) (*model.Transaction, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	if err := ensureBalanceRow(tx, m.AccountID); err != nil {
		return nil, err
	}

	var bal model.Balance
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", m.AccountID).
		First(&bal).Error; err != nil {
		return nil, err
	}

	before := bal.Amount
	after := before.Add(m.Delta)
	if m.Delta.Sign() < 0 && after.Sign() < 0 {
		return nil, ledger.ErrInsufficientBalance
	}

	res := tx.Model(&model.Balance{}).
		Where("account_id = ? AND version = ?", m.AccountID, bal.Version).
		Updates(map[string]interface{}{
			"amount":  after,
			"version": bal.Version + 1,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ledger.ErrConcurrencyConflict
	}

	rec := model.Transaction{
		ID:            uuid.NewString(),
		AccountID:     m.AccountID,
		Kind:          m.Kind,
		Amount:        m.Delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		ReferenceKind: m.ReferenceKind,
		ReferenceID:   m.ReferenceID,
		Description:   m.Description,
		Status:        model.TxCompleted,
	}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, accountID uint, opts ledger.ListOptions) ([]model.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Transaction{}).Where("account_id = ?", accountID)
	if opts.Kind != "" {
		q = q.Where("kind = ?", opts.Kind)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	var records []model.Transaction
	err := q.Order("created_at DESC").
		Limit(limit).
		Offset(opts.Offset).
		Find(&records).Error
	return records, total, err
}

func (r *LedgerRepository) HasReference(ctx context.Context, accountID uint, kind model.TransactionKind, refKind model.ReferenceKind, refID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("account_id = ? AND kind = ? AND reference_kind = ? AND reference_id = ?", accountID, kind, refKind, refID).
		Count(&count).Error
	return count > 0, err
}

func (r *LedgerRepository) SumWithdrawnSince(ctx context.Context, accountID uint, since time.Time) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("SUM(amount)").
		Where("account_id = ? AND kind = ? AND created_at >= ?", accountID, model.KindWithdraw, since).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal.Neg(), nil
}

// PlatformRevenue projects total platform revenue over settled orders. Each
// settlement's transactions net to -(commission + platform delivery share),
// so revenue is the negated sum of all order-referenced amounts.
func (r *LedgerRepository) PlatformRevenue(ctx context.Context) (decimal.Decimal, int64, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("SUM(amount)").
		Where("reference_kind = ?", model.RefOrder).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, 0, err
	}

	var orders int64
	err = r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("reference_kind = ? AND kind = ?", model.RefOrder, model.KindPayment).
		Distinct("reference_id").
		Count(&orders).Error
	if err != nil {
		return decimal.Zero, 0, err
	}

	if !sum.Valid {
		return decimal.Zero, orders, nil
	}
	return sum.Decimal.Neg(), orders, nil
}

// ensureBalanceRow creates the zero balance inside the current transaction so
// two first-time mutations on the same new account cannot lose an update.
func ensureBalanceRow(tx *gorm.DB, accountID uint) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoNothing: true,
	}).Create(&model.Balance{
		AccountID: accountID,
		Amount:    decimal.Zero,
	}).Error
}

func (r *LedgerRepository) setLockTimeout(tx *gorm.DB) error {
	ms := r.lockTimeout.Milliseconds()
	if ms <= 0 {
		return nil
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)).Error
}

// mapMutationError translates storage failures into the ledger taxonomy.
// Domain errors pass through; lock-wait timeouts and serialization failures
// become ErrConcurrencyConflict so the caller retries the whole unit of work.
func mapMutationError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrConcurrencyConflict),
		errors.Is(err, ledger.ErrInvalidMutation):
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%w: %v", ledger.ErrConcurrencyConflict, err)
	}

	return fmt.Errorf("%w: %v", ledger.ErrAccountLookupFailed, err)
}
