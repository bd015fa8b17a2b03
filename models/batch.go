package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Batch is the traceable output of one completed production order.
// 0 <= QuantityRemaining <= QuantityProduced, and Status is depleted exactly when
// QuantityRemaining is zero.
type Batch struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ProductId         int             `gorm:"not null;index:idx_batch_fifo,priority:1" json:"product_id"`
	ProductionOrderId int             `gorm:"not null;uniqueIndex" json:"production_order_id"`
	BatchNumber       string          `gorm:"size:50;not null;uniqueIndex" json:"batch_number"`
	QuantityProduced  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_produced"`
	QuantityRemaining decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_remaining"`
	Status            BatchStatus     `gorm:"size:20;not null;index:idx_batch_fifo,priority:2" json:"status"`
	ProductionDate    time.Time       `gorm:"not null;index:idx_batch_fifo,priority:3" json:"production_date"`
	ExpiryDate        *time.Time      `gorm:"index" json:"expiry_date"`
	StatusReason      string          `gorm:"size:255" json:"status_reason"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BatchAllocation is the part of a finished-goods withdrawal drawn from one batch.
type BatchAllocation struct {
	BatchId     int             `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type NewBatchStatus struct {
	Status BatchStatus `json:"status" validate:"required"`
	Reason string      `json:"reason" validate:"max=255"`
}

type NewFinishedGoodsConsumption struct {
	ProductId int             `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0,dp=4"`
	Reason    string          `json:"reason" validate:"required,max=255"`
}

func formatBatchNumber(prefix string, productionDate time.Time, productCode string, seq int64) string {
	return fmt.Sprintf("%s%s-%s-%04d", prefix, productionDate.Format("20060102"), productCode, seq)
}

// createBatch records the output of a completion and books it into finished-goods stock.
// product must be locked by the caller.
func createBatch(tx *gorm.DB, order *ProductionOrder, product *Product, quantity decimal.Decimal, productionDate time.Time, actor string) (*Batch, error) {
	seq, prefix, err := nextSequence(tx, ModuleBatch)
	if err != nil {
		return nil, err
	}
	batch := Batch{
		ProductId:         product.ID,
		ProductionOrderId: order.ID,
		BatchNumber:       formatBatchNumber(prefix, productionDate, product.Code, seq),
		QuantityProduced:  quantity,
		QuantityRemaining: quantity,
		Status:            BatchStatusAvailable,
		ProductionDate:    productionDate,
	}
	if product.ShelfLifeDays > 0 {
		expiry := productionDate.AddDate(0, 0, product.ShelfLifeDays)
		batch.ExpiryDate = &expiry
	}
	if err := tx.Create(&batch).Error; err != nil {
		return nil, err
	}
	ref := stockRef{Type: stockRefProductionOrder, Id: order.ID, Notes: batch.BatchNumber, Actor: actor}
	if err := incrementProductStock(tx, product, quantity, &batch.ID, StockMovementReasonProductionOutput, ref); err != nil {
		return nil, err
	}
	return &batch, nil
}

// consumeFinishedGoods draws quantity from the product's available batches, oldest
// production date first. product must be locked by the caller.
func consumeFinishedGoods(tx *gorm.DB, product *Product, quantity decimal.Decimal, reason StockMovementReason, ref stockRef) ([]BatchAllocation, error) {
	if err := requirePositive("quantity", quantity); err != nil {
		return nil, err
	}
	var batches []Batch
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND status = ?", product.ID, BatchStatusAvailable).
		Order("production_date ASC, id ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}

	onHand := decimal.Zero
	for _, b := range batches {
		onHand = onHand.Add(b.QuantityRemaining)
	}
	if onHand.LessThan(quantity) {
		return nil, &NegativeStockError{Item: "product", ItemId: product.ID, OnHand: onHand, Requested: quantity}
	}

	allocations := make([]BatchAllocation, 0)
	outstanding := quantity
	for i := range batches {
		if !outstanding.IsPositive() {
			break
		}
		b := &batches[i]
		take := decimal.Min(b.QuantityRemaining, outstanding)
		if !take.IsPositive() {
			continue
		}
		remaining := b.QuantityRemaining.Sub(take)
		status := BatchStatusAvailable
		if remaining.IsZero() {
			status = BatchStatusDepleted
		}
		if err := tx.Model(&Batch{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
			"quantity_remaining": remaining,
			"status":             status,
		}).Error; err != nil {
			return nil, err
		}
		if err := decrementProductStock(tx, product, take, &b.ID, reason, ref); err != nil {
			return nil, err
		}
		allocations = append(allocations, BatchAllocation{BatchId: b.ID, BatchNumber: b.BatchNumber, Quantity: take})
		outstanding = outstanding.Sub(take)
	}
	return allocations, nil
}

// ConsumeFinishedGoods issues finished goods outside of invoicing (samples, write-offs).
func ConsumeFinishedGoods(ctx context.Context, input *NewFinishedGoodsConsumption) ([]BatchAllocation, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	var allocations []BatchAllocation
	err := runInTx(ctx, func(tx *gorm.DB) error {
		product, err := lockProduct(tx, input.ProductId)
		if err != nil {
			return err
		}
		ref := stockRef{Type: stockRefAdjustment, Id: product.ID, Notes: input.Reason, Actor: utils.ActorFromContext(ctx)}
		allocations, err = consumeFinishedGoods(tx, product, input.Quantity, StockMovementReasonAdjustment, ref)
		return err
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "Batch", "ConsumeFinishedGoods", "consume finished goods", input, err)
		}
		return nil, err
	}
	return allocations, nil
}

func GetBatch(ctx context.Context, id int) (*Batch, error) {
	return utils.FetchModel[Batch](ctx, id)
}

// ListBatchesByProduct returns the product's batches in consumption order.
func ListBatchesByProduct(ctx context.Context, productId int, status *BatchStatus) ([]*Batch, error) {
	dbCtx := config.GetDB().WithContext(ctx).Where("product_id = ?", productId)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*Batch
	if err := dbCtx.Order("production_date ASC, id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ListBatchesByStatus(ctx context.Context, status BatchStatus) ([]*Batch, error) {
	if !status.IsValid() {
		return nil, newValidationError("status", "invalid batch status")
	}
	var results []*Batch
	if err := config.GetDB().WithContext(ctx).
		Where("status = ?", status).
		Order("production_date ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func canChangeBatchStatus(from BatchStatus, to BatchStatus) bool {
	switch to {
	case BatchStatusExpired:
		return from == BatchStatusAvailable
	case BatchStatusRecalled:
		return from == BatchStatusAvailable || from == BatchStatusExpired
	}
	return false
}

// UpdateBatchStatus expires or recalls a batch. Whatever is left of an available batch
// leaves finished-goods stock; the remaining quantity itself is kept for traceability.
func UpdateBatchStatus(ctx context.Context, batchId int, input *NewBatchStatus) (*Batch, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.Status.IsValid() {
		return nil, newValidationError("status", "invalid batch status")
	}
	var batch *Batch
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var current Batch
		if err := tx.First(&current, batchId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}
		product, err := lockProduct(tx, current.ProductId)
		if err != nil {
			return err
		}
		batch, err = changeBatchStatus(ctx, tx, product, &current, input.Status, input.Reason)
		return err
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "Batch", "UpdateBatchStatus", "change batch status", input, err)
		}
		return nil, err
	}
	return batch, nil
}

// GetBatchForUpdate reads a batch FOR UPDATE inside tx.
func GetBatchForUpdate(tx *gorm.DB, batchId int) (*Batch, error) {
	return utils.LockModel[Batch](tx, batchId)
}

func changeBatchStatus(ctx context.Context, tx *gorm.DB, product *Product, batch *Batch, to BatchStatus, reason string) (*Batch, error) {
	// re-read under the product lock
	current, err := GetBatchForUpdate(tx, batch.ID)
	if err != nil {
		return nil, err
	}
	if !canChangeBatchStatus(current.Status, to) {
		return nil, invalidState("batch", current.ID, string(current.Status), "mark "+string(to))
	}
	if current.Status == BatchStatusAvailable && current.QuantityRemaining.IsPositive() {
		movementReason := StockMovementReasonBatchExpired
		if to == BatchStatusRecalled {
			movementReason = StockMovementReasonBatchRecalled
		}
		ref := stockRef{Type: stockRefBatch, Id: current.ID, Notes: reason, Actor: utils.ActorFromContext(ctx)}
		if err := decrementProductStock(tx, product, current.QuantityRemaining, &current.ID, movementReason, ref); err != nil {
			return nil, err
		}
	}
	if err := tx.Model(&Batch{}).Where("id = ?", current.ID).Updates(map[string]interface{}{
		"status":        to,
		"status_reason": reason,
	}).Error; err != nil {
		return nil, err
	}
	current.Status = to
	current.StatusReason = reason
	if err := PublishWorkflowEvent(ctx, tx, current.ID, WorkflowReferenceBatch, WorkflowActionStatusChanged, current); err != nil {
		return nil, err
	}
	return current, nil
}

// ExpireBatches marks every available batch whose expiry date is on or before asOf as
// expired. Each batch is expired in its own transaction; it returns how many changed.
func ExpireBatches(ctx context.Context, asOf time.Time) (int, error) {
	var due []Batch
	if err := config.GetDB().WithContext(ctx).
		Where("status = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", BatchStatusAvailable, asOf).
		Order("id").Find(&due).Error; err != nil {
		return 0, err
	}
	expired := 0
	for i := range due {
		err := runInTx(ctx, func(tx *gorm.DB) error {
			product, err := lockProduct(tx, due[i].ProductId)
			if err != nil {
				return err
			}
			_, err = changeBatchStatus(ctx, tx, product, &due[i], BatchStatusExpired, "shelf life ended")
			return err
		})
		if err != nil {
			if isBusinessError(err) {
				// changed concurrently
				continue
			}
			config.LogError(config.GetLogger(), "Batch", "ExpireBatches", "expire batch", due[i].ID, err)
			return expired, err
		}
		expired++
	}
	return expired, nil
}
