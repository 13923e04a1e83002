package repository

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"settlement-service/internal/model"
)

// OrderRepository reads and writes the settlement-relevant order snapshot.
// Only the payment/order status pair is ever written from this service.
type OrderRepository struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewOrderRepository(db *gorm.DB, log *logrus.Logger) *OrderRepository {
	return &OrderRepository{db: db, log: log}
}

// GetOrder returns (nil, nil) when the order does not exist.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SetStatusPair writes the payment and order statuses together; they are
// always derived from a single gateway notification, never set independently.
func (r *OrderRepository) SetStatusPair(ctx context.Context, orderID string, payment model.PaymentStatus, status model.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_status": payment,
			"status":         status,
		}).Error
}
