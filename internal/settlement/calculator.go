// Package settlement splits a completed order's money among customer,
// merchant, driver, and platform, and applies the split to the ledger.
package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmounts = errors.New("invalid order amounts")

// Rates are the configured platform take rates. The platform keeps
// MerchantCommission of the food price and the complement of DriverShare of
// the delivery fee.
type Rates struct {
	MerchantCommission decimal.Decimal
	DriverShare        decimal.Decimal
}

func DefaultRates() Rates {
	return Rates{
		MerchantCommission: decimal.NewFromFloat(0.15),
		DriverShare:        decimal.NewFromFloat(0.80),
	}
}

// Split is the exact division of one order's money. It is computed once,
// consumed immediately, and persists only through the resulting transactions.
type Split struct {
	FoodPrice           decimal.Decimal
	MerchantCommission  decimal.Decimal
	MerchantEarning     decimal.Decimal
	DriverEarning       decimal.Decimal
	PlatformDeliveryFee decimal.Decimal
	PlatformRevenue     decimal.Decimal
}

// ComputeSplit is pure: no I/O, no side effects. Rounding (half-up, to the
// minor currency unit) is applied once per multiplied field; the matching
// share is always derived by subtraction so the parts sum to the whole even
// when the rate does not divide evenly.
func ComputeSplit(totalAmount, deliveryFee decimal.Decimal, rates Rates) (Split, error) {
	if deliveryFee.Sign() < 0 {
		return Split{}, fmt.Errorf("%w: negative delivery fee %s", ErrInvalidAmounts, deliveryFee)
	}
	if totalAmount.LessThan(deliveryFee) {
		return Split{}, fmt.Errorf("%w: total %s below delivery fee %s", ErrInvalidAmounts, totalAmount, deliveryFee)
	}

	foodPrice := totalAmount.Sub(deliveryFee)
	commission := foodPrice.Mul(rates.MerchantCommission).Round(0)
	merchantEarning := foodPrice.Sub(commission)
	driverEarning := deliveryFee.Mul(rates.DriverShare).Round(0)
	platformDeliveryFee := deliveryFee.Sub(driverEarning)

	return Split{
		FoodPrice:           foodPrice,
		MerchantCommission:  commission,
		MerchantEarning:     merchantEarning,
		DriverEarning:       driverEarning,
		PlatformDeliveryFee: platformDeliveryFee,
		PlatformRevenue:     commission.Add(platformDeliveryFee),
	}, nil
}
