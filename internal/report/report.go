// Package report derives the platform-revenue projection. The platform has
// no ledger account of its own: every settled order leaves a net negative
// flow across its transactions equal to commission plus the platform's
// delivery share, so revenue is computed from rows already written.
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const queryTimeout = 30 * time.Second

// RevenueSource supplies the projection inputs. Implemented by
// repository.LedgerRepository.
type RevenueSource interface {
	PlatformRevenue(ctx context.Context) (revenue decimal.Decimal, settledOrders int64, err error)
}

// Run recomputes and logs the projection on a fixed interval until the
// context is cancelled. Read-only; it never touches balances.
func Run(
	ctx context.Context,
	src RevenueSource,
	interval time.Duration,
	log *logrus.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce(ctx, src, log)

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping revenue reporter")
			return
		case <-ticker.C:
			runOnce(ctx, src, log)
		}
	}
}

func runOnce(ctx context.Context, src RevenueSource, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	revenue, orders, err := src.PlatformRevenue(ctx)
	if err != nil {
		log.WithError(err).Error("failed to compute platform revenue projection")
		return
	}

	log.WithFields(logrus.Fields{
		"platform_revenue": revenue,
		"settled_orders":   orders,
	}).Info("platform revenue projection")
}
