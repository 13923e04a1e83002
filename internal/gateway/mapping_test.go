package gateway

import (
	"testing"

	"settlement-service/internal/model"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		txStatus    string
		fraudStatus string
		wantPayment model.PaymentStatus
		wantOrder   model.OrderStatus
		wantOK      bool
	}{
		{"capture", "accept", model.PaymentSuccess, model.OrderConfirmed, true},
		{"capture", "challenge", model.PaymentProcessing, model.OrderPaymentPending, true},
		{"capture", "deny", "", "", false},
		{"capture", "", "", "", false},
		{"settlement", "", model.PaymentSuccess, model.OrderConfirmed, true},
		{"settlement", "accept", model.PaymentSuccess, model.OrderConfirmed, true},
		{"deny", "", model.PaymentFailed, model.OrderPaymentFailed, true},
		{"cancel", "", model.PaymentFailed, model.OrderCancelled, true},
		{"expire", "", model.PaymentFailed, model.OrderCancelled, true},
		{"pending", "", model.PaymentPending, model.OrderPaymentPending, true},
		{"refund", "", model.PaymentRefunded, model.OrderRefunded, true},
		{"chargeback", "", "", "", false},
		{"", "", "", "", false},
	}

	for _, tc := range cases {
		pair, ok := MapStatus(tc.txStatus, tc.fraudStatus)
		if ok != tc.wantOK {
			t.Errorf("MapStatus(%q, %q): ok = %v, want %v", tc.txStatus, tc.fraudStatus, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if pair.Payment != tc.wantPayment || pair.Order != tc.wantOrder {
			t.Errorf("MapStatus(%q, %q) = {%s, %s}, want {%s, %s}",
				tc.txStatus, tc.fraudStatus, pair.Payment, pair.Order, tc.wantPayment, tc.wantOrder)
		}
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	n := Notification{
		OrderID:     "order-1",
		StatusCode:  "200",
		GrossAmount: "115000.00",
	}
	n.SignatureKey = Sign(n.OrderID, n.StatusCode, n.GrossAmount, "server-key")

	if !n.VerifySignature("server-key") {
		t.Error("valid signature rejected")
	}
	if n.VerifySignature("other-key") {
		t.Error("signature accepted with the wrong server key")
	}

	n.GrossAmount = "999999.00"
	if n.VerifySignature("server-key") {
		t.Error("signature accepted after payload tampering")
	}
}
