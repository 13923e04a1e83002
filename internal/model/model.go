package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a ledger transaction. Credits carry positive
// amounts, debits negative ones.
type TransactionKind string

const (
	KindTopup    TransactionKind = "TOPUP"
	KindPayment  TransactionKind = "PAYMENT"
	KindEarning  TransactionKind = "EARNING"
	KindRefund   TransactionKind = "REFUND"
	KindWithdraw TransactionKind = "WITHDRAW"
)

// ReferenceKind names the external object a transaction is attributed to.
type ReferenceKind string

const (
	RefOrder   ReferenceKind = "ORDER"
	RefPayment ReferenceKind = "PAYMENT"
	RefPayout  ReferenceKind = "PAYOUT"
)

type TransactionStatus string

const (
	TxCompleted TransactionStatus = "COMPLETED"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentSuccess    PaymentStatus = "SUCCESS"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

type OrderStatus string

const (
	OrderPending        OrderStatus = "PENDING"
	OrderPaymentPending OrderStatus = "PAYMENT_PENDING"
	OrderConfirmed      OrderStatus = "CONFIRMED"
	OrderPaymentFailed  OrderStatus = "PAYMENT_FAILED"
	OrderCancelled      OrderStatus = "CANCELLED"
	OrderRefunded       OrderStatus = "REFUNDED"
)

// Balance is the current-balance projection for one participant. Created
// lazily on first reference, never deleted, mutated only by the ledger store.
type Balance struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	AccountID uint            `gorm:"uniqueIndex:idx_account_id;not null" json:"account_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"amount"`
	Version   uint            `gorm:"not null;default:0" json:"version"`
}

func (Balance) TableName() string {
	return "balances"
}

// Transaction is one append-only ledger entry. Immutable once written;
// balance_before/balance_after reconcile with the account's balance timeline.
// The account+kind+reference unique index backs settlement idempotency checks.
type Transaction struct {
	ID            string            `gorm:"primarykey;size:36" json:"id"`
	CreatedAt     time.Time         `gorm:"index:idx_tx_account_created" json:"created_at"`
	AccountID     uint              `gorm:"index:idx_tx_account_created;uniqueIndex:idx_tx_reference;not null" json:"account_id"`
	Kind          TransactionKind   `gorm:"size:16;uniqueIndex:idx_tx_reference;not null" json:"kind"`
	Amount        decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"balance_after"`
	ReferenceKind ReferenceKind     `gorm:"size:16;uniqueIndex:idx_tx_reference" json:"reference_kind"`
	ReferenceID   string            `gorm:"size:64;uniqueIndex:idx_tx_reference" json:"reference_id"`
	Description   string            `gorm:"size:255" json:"description"`
	Status        TransactionStatus `gorm:"size:16;not null" json:"status"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Order is the settlement-relevant snapshot of an order. The wider order
// aggregate lives outside this service; this row owns only the monetary
// fields and the payment/order status pair written by the gateway handler.
type Order struct {
	ID            string          `gorm:"primarykey;size:64" json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CustomerID    uint            `gorm:"not null" json:"customer_id"`
	MerchantID    uint            `gorm:"not null" json:"merchant_id"`
	DriverID      *uint           `json:"driver_id,omitempty"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	DeliveryFee   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"delivery_fee"`
	PaymentStatus PaymentStatus   `gorm:"size:16;not null;default:PENDING" json:"payment_status"`
	Status        OrderStatus     `gorm:"size:24;not null;default:PENDING" json:"status"`
}

func (Order) TableName() string {
	return "orders"
}

// GatewayNotification is the normalized record of a gateway callback, keyed
// by the gateway's transaction id, with the raw payload kept for audit.
type GatewayNotification struct {
	ID                uint            `gorm:"primarykey" json:"id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	TransactionID     string          `gorm:"uniqueIndex:idx_gw_transaction_id;size:64;not null" json:"transaction_id"`
	OrderID           string          `gorm:"index:idx_gw_order_id;size:64;not null" json:"order_id"`
	TransactionStatus string          `gorm:"size:24;not null" json:"transaction_status"`
	FraudStatus       string          `gorm:"size:24" json:"fraud_status"`
	StatusCode        string          `gorm:"size:8" json:"status_code"`
	GrossAmount       decimal.Decimal `gorm:"type:decimal(15,2)" json:"gross_amount"`
	PaymentType       string          `gorm:"size:32" json:"payment_type"`
	RawPayload        []byte          `gorm:"type:jsonb" json:"raw_payload"`
}

func (GatewayNotification) TableName() string {
	return "gateway_notifications"
}
