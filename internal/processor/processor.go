// Package processor drains the notification channel and applies each payload
// through the gateway handler, acking or nacking the delivery based on the
// error class.
package processor

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"settlement-service/internal/gateway"
	"settlement-service/internal/ledger"
)

const (
	applyTimeout = 10 * time.Second
	retryDelay   = 50 * time.Millisecond
)

// IncomingNotification is one raw gateway callback plus its AMQP delivery.
type IncomingNotification struct {
	Body     []byte
	Delivery amqp.Delivery
}

// NotificationHandler is satisfied by *gateway.Handler.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, raw []byte) (*gateway.Outcome, error)
}

// Process applies notifications one at a time per worker. Each notification
// is an independent atomic unit of work: lock conflicts retry the whole unit
// up to maxRetries, untrusted or unprocessable payloads are dropped, and
// transient store failures go back on the queue.
func Process(
	ctx context.Context,
	handler NotificationHandler,
	updates <-chan IncomingNotification,
	maxRetries int,
	log *logrus.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			handleOne(ctx, handler, upd, maxRetries, log)
		}
	}
}

func handleOne(
	ctx context.Context,
	handler NotificationHandler,
	upd IncomingNotification,
	maxRetries int,
	log *logrus.Logger,
) {
	ctx, cancel := context.WithTimeout(ctx, applyTimeout)
	defer cancel()

	var (
		outcome *gateway.Outcome
		err     error
	)
	for attempt := 0; ; attempt++ {
		outcome, err = handler.HandleNotification(ctx, upd.Body)
		if !errors.Is(err, ledger.ErrConcurrencyConflict) || attempt >= maxRetries {
			break
		}
		log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
		}).Warn("concurrency conflict applying notification, retrying unit of work")

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			_ = upd.Delivery.Nack(false, true)
			return
		}
	}

	switch {
	case err == nil:
		if ackErr := upd.Delivery.Ack(false); ackErr != nil {
			log.WithError(ackErr).Warn("failed to ack notification")
		}
		log.WithFields(logrus.Fields{
			"payment_status": outcome.PaymentStatus,
			"order_status":   outcome.OrderStatus,
			"settled":        outcome.Settled,
		}).Info("gateway notification applied")

	case errors.Is(err, gateway.ErrMalformedPayload),
		errors.Is(err, gateway.ErrSignatureInvalid),
		errors.Is(err, gateway.ErrOrderNotFound),
		errors.Is(err, gateway.ErrUnmappedStatus),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInvalidMutation):
		// Unprocessable: redelivery cannot fix it, drop without requeue.
		log.WithError(err).Warn("discarding unprocessable gateway notification")
		_ = upd.Delivery.Nack(false, false)

	default:
		// Transient store failure or exhausted retries: requeue for redelivery.
		log.WithError(err).Error("failed to apply gateway notification, requeueing")
		_ = upd.Delivery.Nack(false, true)
	}
}
