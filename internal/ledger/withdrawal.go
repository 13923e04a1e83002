package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Role selects the per-day withdrawal cap for a participant.
type Role string

const (
	RoleDriver   Role = "driver"
	RoleMerchant Role = "merchant"
)

// WithdrawalPolicy bounds payout requests. Amounts are minor currency units.
type WithdrawalPolicy struct {
	MinAmount        decimal.Decimal
	DailyMaxDriver   decimal.Decimal
	DailyMaxMerchant decimal.Decimal
}

// WithdrawalValidation collects every violated constraint so the caller can
// present them all at once.
type WithdrawalValidation struct {
	Valid  bool
	Errors []string
}

// ValidateWithdrawal is pure: it mutates nothing and reads nothing beyond its
// arguments. withdrawnToday is the positive sum of the account's WITHDRAW
// transactions for the current day, supplied from SumWithdrawnSince.
func (p WithdrawalPolicy) ValidateWithdrawal(balance, amount, withdrawnToday decimal.Decimal, role Role) WithdrawalValidation {
	var errs []string

	if amount.Sign() <= 0 {
		errs = append(errs, "withdrawal amount must be positive")
	}
	if amount.Sign() > 0 && amount.LessThan(p.MinAmount) {
		errs = append(errs, fmt.Sprintf("withdrawal amount %s is below the minimum of %s", amount, p.MinAmount))
	}
	if balance.Sub(amount).Sign() < 0 {
		errs = append(errs, fmt.Sprintf("withdrawal amount %s exceeds the available balance of %s", amount, balance))
	}

	dailyMax := p.DailyMaxMerchant
	if role == RoleDriver {
		dailyMax = p.DailyMaxDriver
	}
	if dailyMax.Sign() > 0 && withdrawnToday.Add(amount).GreaterThan(dailyMax) {
		errs = append(errs, fmt.Sprintf("withdrawal would exceed the daily limit of %s (already withdrawn today: %s)", dailyMax, withdrawnToday))
	}

	return WithdrawalValidation{Valid: len(errs) == 0, Errors: errs}
}
