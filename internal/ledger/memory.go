package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"settlement-service/internal/model"
)

// MemoryStore is an in-memory Store. It backs tests and local development;
// the gorm store in internal/repository is the durable implementation.
type MemoryStore struct {
	mu           sync.Mutex
	balances     map[uint]*model.Balance
	transactions []model.Transaction
	nextID       uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[uint]*model.Balance),
	}
}

func (s *MemoryStore) GetOrCreateBalance(ctx context.Context, accountID uint) (*model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := s.getOrCreateLocked(accountID)
	cp := *bal
	return &cp, nil
}

func (s *MemoryStore) getOrCreateLocked(accountID uint) *model.Balance {
	if bal, ok := s.balances[accountID]; ok {
		return bal
	}
	s.nextID++
	now := time.Now()
	bal := &model.Balance{
		ID:        s.nextID,
		CreatedAt: now,
		UpdatedAt: now,
		AccountID: accountID,
		Amount:    decimal.Zero,
	}
	s.balances[accountID] = bal
	return bal
}

func (s *MemoryStore) Mutate(ctx context.Context, m Mutation) (*model.Balance, *model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.applyLocked(m)
	if err != nil {
		return nil, nil, err
	}
	cp := *s.balances[m.AccountID]
	return &cp, tx, nil
}

func (s *MemoryStore) MutateGroup(ctx context.Context, ms []Mutation) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stage against copies so a failing leg rolls the whole group back.
	staged := make(map[uint]model.Balance)
	for _, m := range ms {
		bal := s.getOrCreateLocked(m.AccountID)
		if _, ok := staged[m.AccountID]; !ok {
			staged[m.AccountID] = *bal
		}
	}

	txLen := len(s.transactions)
	results := make([]model.Transaction, 0, len(ms))
	for _, m := range ms {
		tx, err := s.applyLocked(m)
		if err != nil {
			for id, snap := range staged {
				restored := snap
				s.balances[id] = &restored
			}
			s.transactions = s.transactions[:txLen]
			return nil, err
		}
		results = append(results, *tx)
	}
	return results, nil
}

func (s *MemoryStore) applyLocked(m Mutation) (*model.Transaction, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	bal := s.getOrCreateLocked(m.AccountID)
	before := bal.Amount
	after := before.Add(m.Delta)
	if m.Delta.Sign() < 0 && after.Sign() < 0 {
		return nil, ErrInsufficientBalance
	}

	bal.Amount = after
	bal.Version++
	bal.UpdatedAt = time.Now()

	tx := model.Transaction{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now(),
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
	s.transactions = append(s.transactions, tx)
	return &tx, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, accountID uint, opts ListOptions) ([]model.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []model.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if tx.AccountID != accountID {
			continue
		}
		if opts.Kind != "" && tx.Kind != opts.Kind {
			continue
		}
		matched = append(matched, tx)
	}

	total := int64(len(matched))
	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[opts.Offset:]
		}
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, total, nil
}

func (s *MemoryStore) HasReference(ctx context.Context, accountID uint, kind model.TransactionKind, refKind model.ReferenceKind, refID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range s.transactions {
		if tx.AccountID == accountID && tx.Kind == kind && tx.ReferenceKind == refKind && tx.ReferenceID == refID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) SumWithdrawnSince(ctx context.Context, accountID uint, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := decimal.Zero
	for _, tx := range s.transactions {
		if tx.AccountID == accountID && tx.Kind == model.KindWithdraw && !tx.CreatedAt.Before(since) {
			sum = sum.Add(tx.Amount.Neg())
		}
	}
	return sum, nil
}
