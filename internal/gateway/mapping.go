package gateway

import (
	"settlement-service/internal/model"
)

// StatusPair is the internal state derived from one gateway notification.
// The two fields are always written together.
type StatusPair struct {
	Payment model.PaymentStatus
	Order   model.OrderStatus
}

// MapStatus translates a gateway transaction status plus fraud signal into
// the internal pair. The second return is false for anything outside the
// table; callers must leave state unchanged in that case.
func MapStatus(transactionStatus, fraudStatus string) (StatusPair, bool) {
	switch transactionStatus {
	case "capture":
		switch fraudStatus {
		case "accept":
			return StatusPair{model.PaymentSuccess, model.OrderConfirmed}, true
		case "challenge":
			return StatusPair{model.PaymentProcessing, model.OrderPaymentPending}, true
		}
		return StatusPair{}, false
	case "settlement":
		return StatusPair{model.PaymentSuccess, model.OrderConfirmed}, true
	case "deny":
		return StatusPair{model.PaymentFailed, model.OrderPaymentFailed}, true
	case "cancel", "expire":
		return StatusPair{model.PaymentFailed, model.OrderCancelled}, true
	case "pending":
		return StatusPair{model.PaymentPending, model.OrderPaymentPending}, true
	case "refund":
		return StatusPair{model.PaymentRefunded, model.OrderRefunded}, true
	}
	return StatusPair{}, false
}
