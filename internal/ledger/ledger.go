// Package ledger defines the wallet ledger abstraction: one balance row per
// participant plus an append-only transaction history, mutated only through
// atomic Store operations.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"settlement-service/internal/model"
)

var (
	// ErrInsufficientBalance means a debit would drive the balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrConcurrencyConflict means the per-account lock could not be acquired
	// in time; the caller retries the whole unit of work.
	ErrConcurrencyConflict = errors.New("concurrent mutation conflict")
	// ErrAccountLookupFailed means the store could not be reached.
	ErrAccountLookupFailed = errors.New("account lookup failed")
	// ErrSettlementAlreadyApplied means the order already has its settlement
	// transactions; the repeated call mutated nothing.
	ErrSettlementAlreadyApplied = errors.New("settlement already applied")
	// ErrInvalidMutation means the mutation failed static validation.
	ErrInvalidMutation = errors.New("invalid mutation")
)

// Mutation is one requested balance change. Delta is signed: credits
// positive, debits negative, matching Kind.
type Mutation struct {
	AccountID     uint
	Delta         decimal.Decimal
	Kind          model.TransactionKind
	ReferenceKind model.ReferenceKind
	ReferenceID   string
	Description   string
}

// creditKinds lists the kinds that must carry a positive delta. PAYMENT and
// WITHDRAW are debits and must be negative.
var creditKinds = map[model.TransactionKind]bool{
	model.KindTopup:   true,
	model.KindEarning: true,
	model.KindRefund:  true,
}

var debitKinds = map[model.TransactionKind]bool{
	model.KindPayment:  true,
	model.KindWithdraw: true,
}

// Validate checks the mutation before it reaches the store: known kind,
// non-zero delta, delta sign matching the kind, and a reference so the
// transaction never floats unattributed.
func (m Mutation) Validate() error {
	if !creditKinds[m.Kind] && !debitKinds[m.Kind] {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMutation, m.Kind)
	}
	if m.Delta.IsZero() {
		return fmt.Errorf("%w: zero delta", ErrInvalidMutation)
	}
	if creditKinds[m.Kind] && m.Delta.Sign() < 0 {
		return fmt.Errorf("%w: %s requires a positive delta", ErrInvalidMutation, m.Kind)
	}
	if debitKinds[m.Kind] && m.Delta.Sign() > 0 {
		return fmt.Errorf("%w: %s requires a negative delta", ErrInvalidMutation, m.Kind)
	}
	if m.ReferenceKind == "" || m.ReferenceID == "" {
		return fmt.Errorf("%w: reference is required", ErrInvalidMutation)
	}
	return nil
}

// ListOptions filters a transaction history query. Kind empty means all kinds.
type ListOptions struct {
	Limit  int
	Offset int
	Kind   model.TransactionKind
}

// Store is the durable ledger. Implementations must serialize concurrent
// mutations on the same account while leaving different accounts independent,
// and must never expose a partially applied mutation.
type Store interface {
	// GetOrCreateBalance initializes a zero balance on first reference.
	GetOrCreateBalance(ctx context.Context, accountID uint) (*model.Balance, error)

	// Mutate applies one balance change and appends its transaction record as
	// a single atomic unit of work.
	Mutate(ctx context.Context, m Mutation) (*model.Balance, *model.Transaction, error)

	// MutateGroup applies all mutations in one atomic unit: either every
	// balance change and transaction record persists, or none does.
	MutateGroup(ctx context.Context, ms []Mutation) ([]model.Transaction, error)

	// ListTransactions returns a page of an account's history, newest first,
	// together with the total count.
	ListTransactions(ctx context.Context, accountID uint, opts ListOptions) ([]model.Transaction, int64, error)

	// HasReference reports whether the account already holds a transaction of
	// the given kind attributed to the given reference.
	HasReference(ctx context.Context, accountID uint, kind model.TransactionKind, refKind model.ReferenceKind, refID string) (bool, error)

	// SumWithdrawnSince totals the account's WITHDRAW amounts (as a positive
	// number) recorded at or after the given time.
	SumWithdrawnSince(ctx context.Context, accountID uint, since time.Time) (decimal.Decimal, error)
}
