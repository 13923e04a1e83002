package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"settlement-service/internal/ledger"
	"settlement-service/internal/model"
	"settlement-service/internal/settlement"
)

// OrderStore is the slice of order persistence the handler needs.
// GetOrder returns (nil, nil) for an unknown order.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	SetStatusPair(ctx context.Context, orderID string, payment model.PaymentStatus, status model.OrderStatus) error
}

// NotificationStore records callbacks keyed by gateway transaction id.
// FindByTransactionID returns (nil, nil) when unseen.
type NotificationStore interface {
	FindByTransactionID(ctx context.Context, transactionID string) (*model.GatewayNotification, error)
	Upsert(ctx context.Context, rec *model.GatewayNotification) error
}

// Settler triggers order settlement. Satisfied by *settlement.Orchestrator.
type Settler interface {
	SettleOrder(ctx context.Context, snap settlement.OrderSnapshot) (*settlement.Result, error)
}

// Outcome reports what one notification did. Settled is true when the order's
// settlement transactions exist after the call, whether this call wrote them
// or an earlier one did.
type Outcome struct {
	PaymentStatus model.PaymentStatus
	OrderStatus   model.OrderStatus
	Settled       bool
}

// Handler maps verified gateway callbacks onto the order aggregate and, on a
// transition into SUCCESS, triggers settlement exactly once per order.
type Handler struct {
	serverKey     string
	orders        OrderStore
	notifications NotificationStore
	settler       Settler
	log           *logrus.Logger
}

func NewHandler(serverKey string, orders OrderStore, notifications NotificationStore, settler Settler, log *logrus.Logger) *Handler {
	return &Handler{
		serverKey:     serverKey,
		orders:        orders,
		notifications: notifications,
		settler:       settler,
		log:           log,
	}
}

// HandleNotification applies one raw callback body. Replaying a payload with
// the same gateway transaction id and the same resulting status is a no-op.
func (h *Handler) HandleNotification(ctx context.Context, raw []byte) (*Outcome, error) {
	n, err := ParseNotification(raw)
	if err != nil {
		return nil, err
	}

	if !n.VerifySignature(h.serverKey) {
		h.log.WithFields(logrus.Fields{
			"order_id":       n.OrderID,
			"transaction_id": n.TransactionID,
		}).Warn("gateway notification failed signature verification, discarding")
		return nil, ErrSignatureInvalid
	}

	order, err := h.orders.GetOrder(ctx, n.OrderID)
	if err != nil {
		return nil, fmt.Errorf("looking up order %s: %w", n.OrderID, err)
	}
	if order == nil {
		h.log.WithFields(logrus.Fields{
			"order_id":       n.OrderID,
			"transaction_id": n.TransactionID,
		}).Warn("gateway notification for unknown order")
		return nil, ErrOrderNotFound
	}

	pair, ok := MapStatus(n.TransactionStatus, n.FraudStatus)
	if !ok {
		h.log.WithFields(logrus.Fields{
			"order_id":           n.OrderID,
			"transaction_status": n.TransactionStatus,
			"fraud_status":       n.FraudStatus,
		}).Warn("unmapped gateway status, leaving order state unchanged")
		return nil, ErrUnmappedStatus
	}

	// Replay guard: same transaction id with the same gateway status already
	// applied means this delivery is a duplicate.
	seen, err := h.notifications.FindByTransactionID(ctx, n.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("notification lookup for %s: %w", n.TransactionID, err)
	}
	if seen != nil && seen.TransactionStatus == n.TransactionStatus && seen.FraudStatus == n.FraudStatus {
		h.log.WithFields(logrus.Fields{
			"order_id":       n.OrderID,
			"transaction_id": n.TransactionID,
		}).Info("duplicate gateway notification, no-op")
		outcome := &Outcome{
			PaymentStatus: order.PaymentStatus,
			OrderStatus:   order.Status,
		}
		// A duplicate of a SUCCESS notification still verifies the
		// settlement exists: the first delivery may have written the status
		// pair and then failed transiently before settling.
		if pair.Payment == model.PaymentSuccess {
			settled, err := h.ensureSettled(ctx, order)
			if err != nil {
				return nil, err
			}
			outcome.Settled = settled
		}
		return outcome, nil
	}

	gross, err := decimal.NewFromString(n.GrossAmount)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"transaction_id": n.TransactionID,
			"gross_amount":   n.GrossAmount,
		}).WithError(err).Warn("unparseable gross amount in gateway notification, recording zero")
		gross = decimal.Zero
	}
	if err := h.notifications.Upsert(ctx, &model.GatewayNotification{
		TransactionID:     n.TransactionID,
		OrderID:           n.OrderID,
		TransactionStatus: n.TransactionStatus,
		FraudStatus:       n.FraudStatus,
		StatusCode:        n.StatusCode,
		GrossAmount:       gross,
		PaymentType:       n.PaymentType,
		RawPayload:        raw,
	}); err != nil {
		return nil, fmt.Errorf("recording notification %s: %w", n.TransactionID, err)
	}

	if err := h.orders.SetStatusPair(ctx, order.ID, pair.Payment, pair.Order); err != nil {
		return nil, fmt.Errorf("updating order %s: %w", order.ID, err)
	}

	outcome := &Outcome{
		PaymentStatus: pair.Payment,
		OrderStatus:   pair.Order,
	}

	// Only a SUCCESS mapping settles. The order's stored status is no proof
	// the settlement was written (a prior delivery may have confirmed the
	// order and then failed transiently), so the orchestrator is invoked on
	// every SUCCESS and its reference guard keeps the operation idempotent.
	if pair.Payment == model.PaymentSuccess {
		settled, err := h.ensureSettled(ctx, order)
		if err != nil {
			return nil, err
		}
		outcome.Settled = settled
	}

	return outcome, nil
}

// ensureSettled settles the order if its settlement transactions do not
// exist yet. An already-applied settlement is success, not an error.
func (h *Handler) ensureSettled(ctx context.Context, order *model.Order) (bool, error) {
	if _, err := h.settler.SettleOrder(ctx, settlement.SnapshotFromOrder(order)); err != nil {
		if errors.Is(err, ledger.ErrSettlementAlreadyApplied) {
			return true, nil
		}
		return false, fmt.Errorf("settling order %s: %w", order.ID, err)
	}
	return true, nil
}
