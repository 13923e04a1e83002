package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settlement-service/internal/ledger"
	"settlement-service/internal/logger"
	"settlement-service/internal/model"
	"settlement-service/internal/settlement"
)

const serverKey = "test-server-key"

type fakeOrderStore struct {
	orders map[string]*model.Order
}

func (f *fakeOrderStore) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (f *fakeOrderStore) SetStatusPair(ctx context.Context, orderID string, payment model.PaymentStatus, status model.OrderStatus) error {
	if order, ok := f.orders[orderID]; ok {
		order.PaymentStatus = payment
		order.Status = status
	}
	return nil
}

type fakeNotificationStore struct {
	recs map[string]*model.GatewayNotification
}

func (f *fakeNotificationStore) FindByTransactionID(ctx context.Context, transactionID string) (*model.GatewayNotification, error) {
	rec, ok := f.recs[transactionID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeNotificationStore) Upsert(ctx context.Context, rec *model.GatewayNotification) error {
	f.recs[rec.TransactionID] = rec
	return nil
}

type env struct {
	handler       *Handler
	orders        *fakeOrderStore
	notifications *fakeNotificationStore
	orch          *settlement.Orchestrator
	store         *ledger.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()

	log := logger.New("error")
	store := ledger.NewMemoryStore()

	driver := uint(3)
	orders := &fakeOrderStore{orders: map[string]*model.Order{
		"order-1": {
			ID:            "order-1",
			CustomerID:    1,
			MerchantID:    2,
			DriverID:      &driver,
			TotalAmount:   decimal.NewFromInt(115000),
			DeliveryFee:   decimal.NewFromInt(15000),
			PaymentStatus: model.PaymentPending,
			Status:        model.OrderPending,
		},
	}}
	notifications := &fakeNotificationStore{recs: make(map[string]*model.GatewayNotification)}
	orch := settlement.NewOrchestrator(store, settlement.DefaultRates(), log)

	// Fund the customer wallet for settlements.
	_, _, err := store.Mutate(context.Background(), ledger.Mutation{
		AccountID:     1,
		Delta:         decimal.NewFromInt(500000),
		Kind:          model.KindTopup,
		ReferenceKind: model.RefPayment,
		ReferenceID:   "seed",
	})
	require.NoError(t, err)

	return &env{
		handler:       NewHandler(serverKey, orders, notifications, orch, log),
		orders:        orders,
		notifications: notifications,
		orch:          orch,
		store:         store,
	}
}

// flakySettler fails a configured number of calls with a transient error
// before delegating.
type flakySettler struct {
	inner    Settler
	failures int
}

func (s *flakySettler) SettleOrder(ctx context.Context, snap settlement.OrderSnapshot) (*settlement.Result, error) {
	if s.failures > 0 {
		s.failures--
		return nil, ledger.ErrConcurrencyConflict
	}
	return s.inner.SettleOrder(ctx, snap)
}

func payload(t *testing.T, orderID, txnID, status, fraud string) []byte {
	t.Helper()
	n := Notification{
		OrderID:           orderID,
		TransactionID:     txnID,
		TransactionStatus: status,
		FraudStatus:       fraud,
		StatusCode:        "200",
		GrossAmount:       "115000.00",
		PaymentType:       "gopay",
	}
	n.SignatureKey = Sign(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	raw, err := json.Marshal(n)
	require.NoError(t, err)
	return raw
}

func TestCaptureAcceptConfirmsAndSettles(t *testing.T) {
	e := newEnv(t)

	outcome, err := e.handler.HandleNotification(context.Background(), payload(t, "order-1", "txn-1", "capture", "accept"))
	require.NoError(t, err)

	assert.Equal(t, model.PaymentSuccess, outcome.PaymentStatus)
	assert.Equal(t, model.OrderConfirmed, outcome.OrderStatus)
	assert.True(t, outcome.Settled)

	order := e.orders.orders["order-1"]
	assert.Equal(t, model.OrderConfirmed, order.Status)
	assert.Equal(t, model.PaymentSuccess, order.PaymentStatus)

	_, total, err := e.store.ListTransactions(context.Background(), 2, ledger.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total, "merchant credited once")
}

func TestReplayedNotificationIsNoOp(t *testing.T) {
	e := newEnv(t)
	raw := payload(t, "order-1", "txn-1", "capture", "accept")

	_, err := e.handler.HandleNotification(context.Background(), raw)
	require.NoError(t, err)

	countFor := func(account uint) int64 {
		_, total, err := e.store.ListTransactions(context.Background(), account, ledger.ListOptions{Limit: 100})
		require.NoError(t, err)
		return total
	}
	customerBefore := countFor(1)
	merchantBefore := countFor(2)

	// Replay the identical payload several times.
	for i := 0; i < 3; i++ {
		outcome, err := e.handler.HandleNotification(context.Background(), raw)
		require.NoError(t, err)
		assert.True(t, outcome.Settled, "replay must report the order as already settled")
		assert.Equal(t, model.OrderConfirmed, outcome.OrderStatus)
	}

	assert.Equal(t, customerBefore, countFor(1), "replay must not append transactions")
	assert.Equal(t, merchantBefore, countFor(2))
}

func TestTransientSettleFailureRecoversOnRedelivery(t *testing.T) {
	e := newEnv(t)
	flaky := &flakySettler{inner: e.orch, failures: 1}
	handler := NewHandler(serverKey, e.orders, e.notifications, flaky, logger.New("error"))
	raw := payload(t, "order-1", "txn-1", "capture", "accept")

	// First delivery: the status pair is written, then settlement fails
	// transiently. The error surfaces so the message is redelivered.
	_, err := handler.HandleNotification(context.Background(), raw)
	require.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	assert.Equal(t, model.OrderConfirmed, e.orders.orders["order-1"].Status)

	// Redelivery of the identical payload must write the settlement even
	// though the order already reads CONFIRMED.
	outcome, err := handler.HandleNotification(context.Background(), raw)
	require.NoError(t, err)
	assert.True(t, outcome.Settled)

	_, total, err := e.store.ListTransactions(context.Background(), 2, ledger.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total, "merchant credited exactly once")

	// Further replays stay no-ops.
	outcome, err = handler.HandleNotification(context.Background(), raw)
	require.NoError(t, err)
	assert.True(t, outcome.Settled)
	_, total, err = e.store.ListTransactions(context.Background(), 2, ledger.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestConfirmedButUnsettledOrderSettlesOnNextNotification(t *testing.T) {
	e := newEnv(t)
	flaky := &flakySettler{inner: e.orch, failures: 1}
	handler := NewHandler(serverKey, e.orders, e.notifications, flaky, logger.New("error"))

	_, err := handler.HandleNotification(context.Background(), payload(t, "order-1", "txn-1", "capture", "accept"))
	require.ErrorIs(t, err, ledger.ErrConcurrencyConflict)

	// A distinct later notification for the same order finds it CONFIRMED
	// but unsettled, and must settle it rather than trust the status.
	outcome, err := handler.HandleNotification(context.Background(), payload(t, "order-1", "txn-2", "settlement", ""))
	require.NoError(t, err)
	assert.True(t, outcome.Settled)

	_, total, err := e.store.ListTransactions(context.Background(), 2, ledger.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestStatusProgressionSameTransactionID(t *testing.T) {
	e := newEnv(t)

	outcome, err := e.handler.HandleNotification(context.Background(), payload(t, "order-1", "txn-1", "pending", ""))
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaymentPending, outcome.OrderStatus)
	assert.False(t, outcome.Settled)

	// The gateway re-notifies the same transaction after capture settles.
	outcome, err = e.handler.HandleNotification(context.Background(), payload(t, "order-1", "txn-1", "settlement", ""))
	require.NoError(t, err)
	assert.Equal(t, model.OrderConfirmed, outcome.OrderStatus)
	assert.True(t, outcome.Settled)
}

func TestDenyDoesNotSettle(t *testing.T) {
	e := newEnv(t)

	outcome, err := e.handler.HandleNotification(context.Background(), payload(t, "order-1", "txn-1", "deny", ""))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, outcome.PaymentStatus)
	assert.Equal(t, model.OrderPaymentFailed, outcome.OrderStatus)
	assert.False(t, outcome.Settled)

	_, total, err := e.store.ListTransactions(context.Background(), 2, ledger.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestInvalidSignatureRejected(t *testing.T) {
	e := newEnv(t)

	n := Notification{
		OrderID:           "order-1",
		TransactionID:     "txn-1",
		TransactionStatus: "capture",
		FraudStatus:       "accept",
		StatusCode:        "200",
		GrossAmount:       "115000.00",
		SignatureKey:      "forged",
	}
	raw, err := json.Marshal(n)
	require.NoError(t, err)

	_, err = e.handler.HandleNotification(context.Background(), raw)
	require.ErrorIs(t, err, ErrSignatureInvalid)

	order := e.orders.orders["order-1"]
	assert.Equal(t, model.OrderPending, order.Status, "unverified payload must change nothing")
}

func TestUnknownOrderRejected(t *testing.T) {
	e := newEnv(t)

	_, err := e.handler.HandleNotification(context.Background(), payload(t, "order-missing", "txn-1", "capture", "accept"))
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUnmappedStatusLeavesStateUnchanged(t *testing.T) {
	e := newEnv(t)

	_, err := e.handler.HandleNotification(context.Background(), payload(t, "order-1", "txn-1", "chargeback", ""))
	require.ErrorIs(t, err, ErrUnmappedStatus)

	order := e.orders.orders["order-1"]
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Equal(t, model.PaymentPending, order.PaymentStatus)
}

func TestUnparseableGrossAmountLoggedNotDiscarded(t *testing.T) {
	e := newEnv(t)
	log, hook := logtest.NewNullLogger()
	handler := NewHandler(serverKey, e.orders, e.notifications, e.orch, log)

	n := Notification{
		OrderID:           "order-1",
		TransactionID:     "txn-1",
		TransactionStatus: "pending",
		StatusCode:        "200",
		GrossAmount:       "not-a-number",
		PaymentType:       "bank_transfer",
	}
	n.SignatureKey = Sign(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	raw, err := json.Marshal(n)
	require.NoError(t, err)

	_, err = handler.HandleNotification(context.Background(), raw)
	require.NoError(t, err)

	rec := e.notifications.recs["txn-1"]
	require.NotNil(t, rec, "the audit record is still written")
	assert.True(t, rec.GrossAmount.IsZero())

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["gross_amount"] == "not-a-number" {
			warned = true
		}
	}
	assert.True(t, warned, "the parse failure must be logged")
}

func TestMalformedPayloadRejected(t *testing.T) {
	e := newEnv(t)

	_, err := e.handler.HandleNotification(context.Background(), []byte("{not json"))
	require.ErrorIs(t, err, ErrMalformedPayload)

	_, err = e.handler.HandleNotification(context.Background(), []byte(`{"order_id":"order-1"}`))
	require.ErrorIs(t, err, ErrMalformedPayload)
}
