package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"settlement-service/internal/ledger"
	"settlement-service/internal/model"
)

// OrderSnapshot carries the monetary fields and participant ids the
// orchestrator needs. DriverID nil means no driver was assigned (pickup-only)
// and the driver leg is skipped.
type OrderSnapshot struct {
	ID          string
	CustomerID  uint
	MerchantID  uint
	DriverID    *uint
	TotalAmount decimal.Decimal
	DeliveryFee decimal.Decimal
}

func SnapshotFromOrder(o *model.Order) OrderSnapshot {
	return OrderSnapshot{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		MerchantID:  o.MerchantID,
		DriverID:    o.DriverID,
		TotalAmount: o.TotalAmount,
		DeliveryFee: o.DeliveryFee,
	}
}

// Result reports one applied settlement. PlatformRevenue is a derived
// reporting figure, not a ledger mutation.
type Result struct {
	OrderID      string
	Split        Split
	Transactions []model.Transaction
}

// Orchestrator settles completed orders against the ledger. All legs of one
// settlement run in a single atomic store group: a failed merchant or driver
// credit rolls back the customer debit.
type Orchestrator struct {
	store ledger.Store
	rates Rates
	log   *logrus.Logger
}

func NewOrchestrator(store ledger.Store, rates Rates, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{store: store, rates: rates, log: log}
}

// SettleOrder debits the customer for the order total and credits merchant
// and driver their earnings. A repeat call for an already-settled order
// returns ledger.ErrSettlementAlreadyApplied and mutates nothing.
func (o *Orchestrator) SettleOrder(ctx context.Context, snap OrderSnapshot) (*Result, error) {
	split, err := ComputeSplit(snap.TotalAmount, snap.DeliveryFee, o.rates)
	if err != nil {
		return nil, err
	}

	applied, err := o.store.HasReference(ctx, snap.CustomerID, model.KindPayment, model.RefOrder, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("settlement guard for order %s: %w", snap.ID, err)
	}
	if applied {
		return nil, ledger.ErrSettlementAlreadyApplied
	}

	// Zero-amount legs are skipped, not sent to the store: a free-delivery
	// order yields no driver earning, and the ledger rejects zero deltas.
	muts := make([]ledger.Mutation, 0, 3)
	if snap.TotalAmount.Sign() > 0 {
		muts = append(muts, ledger.Mutation{
			AccountID:     snap.CustomerID,
			Delta:         snap.TotalAmount.Neg(),
			Kind:          model.KindPayment,
			ReferenceKind: model.RefOrder,
			ReferenceID:   snap.ID,
			Description:   fmt.Sprintf("payment for order %s", snap.ID),
		})
	}
	if split.MerchantEarning.Sign() > 0 {
		muts = append(muts, ledger.Mutation{
			AccountID:     snap.MerchantID,
			Delta:         split.MerchantEarning,
			Kind:          model.KindEarning,
			ReferenceKind: model.RefOrder,
			ReferenceID:   snap.ID,
			Description: fmt.Sprintf("earning for order %s: food price %s less commission %s (rate %s)",
				snap.ID, split.FoodPrice, split.MerchantCommission, o.rates.MerchantCommission),
		})
	}
	if snap.DriverID != nil && split.DriverEarning.Sign() > 0 {
		muts = append(muts, ledger.Mutation{
			AccountID:     *snap.DriverID,
			Delta:         split.DriverEarning,
			Kind:          model.KindEarning,
			ReferenceKind: model.RefOrder,
			ReferenceID:   snap.ID,
			Description:   fmt.Sprintf("delivery earning for order %s", snap.ID),
		})
	}

	var txs []model.Transaction
	if len(muts) > 0 {
		txs, err = o.store.MutateGroup(ctx, muts)
		if err != nil {
			return nil, err
		}
	}

	o.log.WithFields(logrus.Fields{
		"order_id":         snap.ID,
		"total_amount":     snap.TotalAmount,
		"merchant_earning": split.MerchantEarning,
		"driver_earning":   split.DriverEarning,
		"platform_revenue": split.PlatformRevenue,
	}).Info("order settled")

	return &Result{
		OrderID:      snap.ID,
		Split:        split,
		Transactions: txs,
	}, nil
}
