package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/shopspring/decimal"
)

// StockMovement is the append-only journal behind every stock or reservation change.
type StockMovement struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	ItemType      StockItemType       `gorm:"size:20;not null;index:idx_stock_movement_item,priority:1" json:"item_type"`
	ItemId        int                 `gorm:"not null;index:idx_stock_movement_item,priority:2" json:"item_id"`
	BatchId       *int                `gorm:"index" json:"batch_id"`
	Reason        StockMovementReason `gorm:"size:30;not null" json:"reason"`
	Quantity      decimal.Decimal     `gorm:"type:decimal(30,10);not null" json:"quantity"`
	StockAfter    decimal.Decimal     `gorm:"type:decimal(30,10);not null" json:"stock_after"`
	ReservedAfter decimal.Decimal     `gorm:"type:decimal(30,10);default:0" json:"reserved_after"`
	ReferenceType string              `gorm:"size:30;index:idx_stock_movement_ref,priority:1" json:"reference_type"`
	ReferenceId   int                 `gorm:"index:idx_stock_movement_ref,priority:2" json:"reference_id"`
	Notes         string              `gorm:"type:text" json:"notes"`
	CreatedBy     string              `gorm:"size:100" json:"created_by"`
	CreatedAt     time.Time           `gorm:"autoCreateTime;index" json:"created_at"`
}

// stockRef identifies the document that caused a movement.
type stockRef struct {
	Type  string
	Id    int
	Notes string
	Actor string
}

func ListStockMovements(ctx context.Context, itemType StockItemType, itemId int) ([]*StockMovement, error) {
	var results []*StockMovement
	if err := config.GetDB().WithContext(ctx).
		Where("item_type = ? AND item_id = ?", itemType, itemId).
		Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ListStockMovementsByReference(ctx context.Context, refType string, refId int) ([]*StockMovement, error) {
	var results []*StockMovement
	if err := config.GetDB().WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refId).
		Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
