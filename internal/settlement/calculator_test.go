package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestComputeSplitWorkedExample(t *testing.T) {
	// 115,000 total with a 15,000 delivery fee at the default rates.
	split, err := ComputeSplit(d(115000), d(15000), DefaultRates())
	require.NoError(t, err)

	assert.True(t, split.FoodPrice.Equal(d(100000)))
	assert.True(t, split.MerchantCommission.Equal(d(15000)))
	assert.True(t, split.MerchantEarning.Equal(d(85000)))
	assert.True(t, split.DriverEarning.Equal(d(12000)))
	assert.True(t, split.PlatformDeliveryFee.Equal(d(3000)))
	assert.True(t, split.PlatformRevenue.Equal(d(18000)))
}

// The shares must sum to the whole exactly for any amounts, including ones
// where the rate does not divide evenly. Complement subtraction guarantees
// this; multiplying both shares independently would not.
func TestComputeSplitCompleteness(t *testing.T) {
	rates := DefaultRates()
	cases := []struct {
		total, fee int64
	}{
		{115000, 15000},
		{100001, 0},
		{99999, 9999},
		{77777, 7777},
		{1, 1},
		{1, 0},
		{50001, 12501},
		{123457, 10003},
	}
	for _, tc := range cases {
		split, err := ComputeSplit(d(tc.total), d(tc.fee), rates)
		require.NoError(t, err)

		foodPrice := d(tc.total).Sub(d(tc.fee))
		assert.True(t, split.MerchantEarning.Add(split.MerchantCommission).Equal(foodPrice),
			"total=%d fee=%d: merchant shares %s+%s != food price %s",
			tc.total, tc.fee, split.MerchantEarning, split.MerchantCommission, foodPrice)
		assert.True(t, split.DriverEarning.Add(split.PlatformDeliveryFee).Equal(d(tc.fee)),
			"total=%d fee=%d: delivery shares %s+%s != fee %d",
			tc.total, tc.fee, split.DriverEarning, split.PlatformDeliveryFee, tc.fee)
		assert.True(t, split.PlatformRevenue.Equal(split.MerchantCommission.Add(split.PlatformDeliveryFee)))
	}
}

func TestComputeSplitRoundsHalfUp(t *testing.T) {
	// 15% of 10 is 1.5; half-up rounding gives commission 2, earning 8.
	split, err := ComputeSplit(d(10), d(0), DefaultRates())
	require.NoError(t, err)
	assert.True(t, split.MerchantCommission.Equal(d(2)), "got %s", split.MerchantCommission)
	assert.True(t, split.MerchantEarning.Equal(d(8)))
}

func TestComputeSplitRejectsInvalidAmounts(t *testing.T) {
	_, err := ComputeSplit(d(1000), d(2000), DefaultRates())
	assert.ErrorIs(t, err, ErrInvalidAmounts)

	_, err = ComputeSplit(d(1000), d(-1), DefaultRates())
	assert.ErrorIs(t, err, ErrInvalidAmounts)
}

func TestComputeSplitZeroFee(t *testing.T) {
	split, err := ComputeSplit(d(40000), d(0), DefaultRates())
	require.NoError(t, err)
	assert.True(t, split.DriverEarning.IsZero())
	assert.True(t, split.PlatformDeliveryFee.IsZero())
	assert.True(t, split.PlatformRevenue.Equal(split.MerchantCommission))
}
