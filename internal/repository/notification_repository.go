package repository

import (
	"context"

	"github.com/d60-Lab/engagement/internal/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByRecipient(ctx context.Context, toUID string, limit int) ([]*model.Notification, error)
}

type notificationRepository struct {
	tx *TxRunner
}

func NewNotificationRepository(tx *TxRunner) NotificationRepository {
	return &notificationRepository{tx: tx}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if err := model.Validate(n); err != nil {
		return err
	}
	return r.tx.DB(ctx).Create(n).Error
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, toUID string, limit int) ([]*model.Notification, error) {
	var res []*model.Notification
	err := r.tx.DB(ctx).Where("to_uid = ?", toUID).Order("created_at DESC").Limit(limit).Find(&res).Error
	return res, err
}
