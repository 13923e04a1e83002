// Package gateway reconciles external payment-gateway callbacks into the
// internal payment/order state machine. Callbacks may retry, duplicate, or
// arrive stale; nothing in a payload is trusted before its signature checks
// out.
package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload means the callback body could not be parsed.
	ErrMalformedPayload = errors.New("malformed gateway payload")
	// ErrSignatureInvalid means the payload failed authenticity verification
	// and was discarded without any state change.
	ErrSignatureInvalid = errors.New("invalid gateway signature")
	// ErrOrderNotFound means the callback references an order this service
	// does not know; unprocessable, not fatal.
	ErrOrderNotFound = errors.New("order not found")
	// ErrUnmappedStatus means the gateway sent a status outside the mapping
	// table; state is left unchanged rather than guessed.
	ErrUnmappedStatus = errors.New("unmapped gateway status")
)

// Notification is the gateway's callback payload.
type Notification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	SignatureKey      string `json:"signature_key"`
}

func ParseNotification(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if n.OrderID == "" || n.TransactionID == "" || n.TransactionStatus == "" {
		return nil, fmt.Errorf("%w: missing order_id, transaction_id or transaction_status", ErrMalformedPayload)
	}
	return &n, nil
}

// VerifySignature checks the gateway's SHA-512 signature over
// order_id + status_code + gross_amount + server key.
func (n *Notification) VerifySignature(serverKey string) bool {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

// Sign computes the signature the gateway would attach. Test helper; the
// service itself only ever verifies.
func Sign(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
