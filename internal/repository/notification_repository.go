package repository

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"settlement-service/internal/model"
)

// NotificationRepository persists normalized gateway callbacks keyed by the
// gateway's transaction id, raw payload included for audit.
type NotificationRepository struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewNotificationRepository(db *gorm.DB, log *logrus.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, log: log}
}

// FindByTransactionID returns (nil, nil) when no callback with this gateway
// transaction id has been recorded yet.
func (r *NotificationRepository) FindByTransactionID(ctx context.Context, transactionID string) (*model.GatewayNotification, error) {
	var rec model.GatewayNotification
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert records the callback, replacing the stored status fields when the
// gateway re-notifies the same transaction with a newer status.
func (r *NotificationRepository) Upsert(ctx context.Context, rec *model.GatewayNotification) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "transaction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"transaction_status", "fraud_status", "status_code",
			"gross_amount", "payment_type", "raw_payload", "updated_at",
		}),
	}).Create(rec).Error
}
