package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"gorm.io/gorm"
)

type NotificationKind string

const (
	NotificationKindStockShortage NotificationKind = "stock_shortage"
	NotificationKindReorderLevel  NotificationKind = "reorder_level"
	NotificationKindOverpayment   NotificationKind = "overpayment"
	NotificationKindBatchStatus   NotificationKind = "batch_status"
)

// Notification surfaces advisory warnings produced by workflow handlers.
type Notification struct {
	ID            int              `gorm:"primary_key" json:"id"`
	Kind          NotificationKind `gorm:"size:30;not null;index" json:"kind"`
	Title         string           `gorm:"size:255;not null" json:"title"`
	Message       string           `gorm:"type:text" json:"message"`
	ReferenceType string           `gorm:"size:30;index:idx_notification_ref,priority:1" json:"reference_type"`
	ReferenceId   int              `gorm:"index:idx_notification_ref,priority:2" json:"reference_id"`
	IsRead        bool             `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func CreateNotification(ctx context.Context, tx *gorm.DB, n *Notification) error {
	return tx.WithContext(ctx).Create(n).Error
}

func ListNotifications(ctx context.Context, unreadOnly bool) ([]*Notification, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	if unreadOnly {
		dbCtx = dbCtx.Where("is_read = ?", false)
	}
	var results []*Notification
	if err := dbCtx.Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func MarkNotificationRead(ctx context.Context, id int) (*Notification, error) {
	n, err := utils.FetchModel[Notification](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Model(&Notification{}).Where("id = ?", id).Update("is_read", true).Error; err != nil {
		return nil, err
	}
	n.IsRead = true
	return n, nil
}
