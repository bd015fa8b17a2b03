package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductionOrder struct {
	ID                int                       `gorm:"primary_key" json:"id"`
	OrderNumber       string                    `gorm:"size:50;not null;uniqueIndex" json:"order_number"`
	SequenceNo        int64                     `gorm:"not null" json:"sequence_no"`
	ProductId         int                       `gorm:"not null;index" json:"product_id"`
	QuantityToProduce decimal.Decimal           `gorm:"type:decimal(20,4);not null" json:"quantity_to_produce"`
	QuantityProduced  decimal.Decimal           `gorm:"type:decimal(20,4);default:0" json:"quantity_produced"`
	Status            ProductionOrderStatus     `gorm:"size:20;not null;index" json:"status"`
	Notes             string                    `gorm:"type:text" json:"notes"`
	CreatedBy         string                    `gorm:"size:100" json:"created_by"`
	StartedAt         *time.Time                `json:"started_at"`
	CompletedAt       *time.Time                `json:"completed_at"`
	CancelledAt       *time.Time                `json:"cancelled_at"`
	CancelReason      string                    `gorm:"size:255" json:"cancel_reason"`
	Materials         []ProductionOrderMaterial `gorm:"foreignKey:ProductionOrderId" json:"materials"`
	Batch             *Batch                    `gorm:"foreignKey:ProductionOrderId" json:"batch,omitempty"`
	CreatedAt         time.Time                 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time                 `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductionOrderMaterial snapshots the recipe at start, so completion charges the
// materials that were reserved even if the recipe has changed since.
type ProductionOrderMaterial struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ProductionOrderId int             `gorm:"not null;index" json:"production_order_id"`
	RawMaterialId     int             `gorm:"not null;index" json:"raw_material_id"`
	QuantityPerUnit   decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity_per_unit"`
	QuantityReserved  decimal.Decimal `gorm:"type:decimal(30,10);default:0" json:"quantity_reserved"`
	QuantityConsumed  decimal.Decimal `gorm:"type:decimal(30,10);default:0" json:"quantity_consumed"`
}

type NewProductionOrder struct {
	ProductId         int             `json:"product_id" validate:"required,gt=0"`
	QuantityToProduce decimal.Decimal `json:"quantity_to_produce" validate:"gt=0,dp=4"`
	Notes             string          `json:"notes"`
}

type ProductionCompletion struct {
	QuantityProduced decimal.Decimal `json:"quantity_produced" validate:"gt=0,dp=4"`
	ProductionDate   *time.Time      `json:"production_date"`
}

func lockProductionOrder(tx *gorm.DB, id int) (*ProductionOrder, error) {
	return utils.LockModel[ProductionOrder](tx, id, "Materials")
}

func CreateProductionOrder(ctx context.Context, input *NewProductionOrder) (*ProductionOrder, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var order ProductionOrder
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var product Product
		if err := tx.First(&product, input.ProductId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newValidationError("product_id", "unknown product")
			}
			return err
		}
		if !product.Active() {
			return newValidationError("product_id", "product is inactive")
		}
		var recipeLines int64
		if err := tx.Model(&RecipeLine{}).Where("product_id = ?", product.ID).Count(&recipeLines).Error; err != nil {
			return err
		}
		if recipeLines == 0 {
			if !config.AllowProductionWithoutRecipe() {
				return ErrNoRecipe
			}
			config.LogWarn(config.GetLogger(), "ProductionOrder", "CreateProductionOrder", "production order created for product without recipe", product.ID)
		}

		seq, number, err := nextTransactionNumber(tx, ModuleProductionOrder)
		if err != nil {
			return err
		}
		order = ProductionOrder{
			OrderNumber:       number,
			SequenceNo:        seq,
			ProductId:         product.ID,
			QuantityToProduce: input.QuantityToProduce,
			QuantityProduced:  decimal.Zero,
			Status:            ProductionOrderStatusPending,
			Notes:             input.Notes,
			CreatedBy:         utils.ActorFromContext(ctx),
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "ProductionOrder", "CreateProductionOrder", "create production order", input, err)
		}
		return nil, err
	}
	return &order, nil
}

// StartProductionOrder moves a pending order to in_progress and reserves the materials for
// the planned quantity. Any shortage rejects the start and leaves stock untouched.
func StartProductionOrder(ctx context.Context, id int) (*ProductionOrder, error) {
	release, err := utils.EntityLock(ctx, "production_order", id, "ProductionOrder", "StartProductionOrder")
	if err != nil {
		return nil, err
	}
	defer release()

	var order *ProductionOrder
	err = runInTx(ctx, func(tx *gorm.DB) error {
		order, err = lockProductionOrder(tx, id)
		if err != nil {
			return err
		}
		if order.Status != ProductionOrderStatusPending {
			return invalidState("production order", order.ID, string(order.Status), "start")
		}

		lines, err := loadRecipe(tx, order.ProductId)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrNoRecipe
		}
		ids := make([]int, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.RawMaterialId)
		}
		materials, err := lockRawMaterials(tx, ids)
		if err != nil {
			return err
		}

		byId := make(map[int]RawMaterial, len(materials))
		for id, m := range materials {
			byId[id] = *m
		}
		var shortages []MaterialShortage
		for _, req := range materialRequirements(lines, byId, order.QuantityToProduce) {
			if !req.IsSufficient {
				shortages = append(shortages, MaterialShortage{
					RawMaterialId: req.RawMaterialId,
					Name:          req.Name,
					Required:      req.TotalRequired,
					Available:     req.Available,
					Shortage:      req.Shortage,
				})
			}
		}
		if len(shortages) > 0 {
			return &InsufficientMaterialError{Shortages: shortages}
		}

		ref := stockRef{Type: stockRefProductionOrder, Id: order.ID, Notes: order.OrderNumber, Actor: utils.ActorFromContext(ctx)}
		snapshot := make([]ProductionOrderMaterial, 0, len(lines))
		for _, l := range lines {
			required := l.QuantityRequired.Mul(order.QuantityToProduce)
			if err := reserveRawMaterial(tx, materials[l.RawMaterialId], required, ref); err != nil {
				return err
			}
			snapshot = append(snapshot, ProductionOrderMaterial{
				ProductionOrderId: order.ID,
				RawMaterialId:     l.RawMaterialId,
				QuantityPerUnit:   l.QuantityRequired,
				QuantityReserved:  required,
				QuantityConsumed:  decimal.Zero,
			})
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Model(&ProductionOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"status":     ProductionOrderStatusInProgress,
			"started_at": now,
		}).Error; err != nil {
			return err
		}
		order.Status = ProductionOrderStatusInProgress
		order.StartedAt = &now
		order.Materials = snapshot
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "ProductionOrder", "StartProductionOrder", "start production order", id, err)
		}
		return nil, err
	}
	return order, nil
}

// CompleteProductionOrder records the actual output. Materials are charged for the
// quantity produced, one batch is created and finished-goods stock grows by the output,
// all in one transaction.
func CompleteProductionOrder(ctx context.Context, id int, input *ProductionCompletion) (*ProductionOrder, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	release, err := utils.EntityLock(ctx, "production_order", id, "ProductionOrder", "CompleteProductionOrder")
	if err != nil {
		return nil, err
	}
	defer release()

	actor := utils.ActorFromContext(ctx)
	var order *ProductionOrder
	err = runInTx(ctx, func(tx *gorm.DB) error {
		order, err = lockProductionOrder(tx, id)
		if err != nil {
			return err
		}
		if order.Status != ProductionOrderStatusInProgress {
			return invalidState("production order", order.ID, string(order.Status), "complete")
		}

		ids := make([]int, 0, len(order.Materials))
		for _, m := range order.Materials {
			ids = append(ids, m.RawMaterialId)
		}
		materials, err := lockRawMaterials(tx, ids)
		if err != nil {
			return err
		}
		ref := stockRef{Type: stockRefProductionOrder, Id: order.ID, Notes: order.OrderNumber, Actor: actor}
		for i := range order.Materials {
			line := &order.Materials[i]
			material := materials[line.RawMaterialId]
			if err := releaseRawMaterial(tx, material, line.QuantityReserved, ref); err != nil {
				return err
			}
			consumed := line.QuantityPerUnit.Mul(input.QuantityProduced)
			if err := decrementRawMaterial(tx, material, consumed, StockMovementReasonProductionConsume, ref); err != nil {
				return err
			}
			if err := tx.Model(&ProductionOrderMaterial{}).Where("id = ?", line.ID).
				Update("quantity_consumed", consumed).Error; err != nil {
				return err
			}
			line.QuantityConsumed = consumed
		}

		product, err := lockProduct(tx, order.ProductId)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		productionDate := now
		if input.ProductionDate != nil {
			productionDate = input.ProductionDate.UTC()
		}
		batch, err := createBatch(tx, order, product, input.QuantityProduced, productionDate, actor)
		if err != nil {
			return err
		}

		if err := tx.Model(&ProductionOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"status":            ProductionOrderStatusCompleted,
			"quantity_produced": input.QuantityProduced,
			"completed_at":      now,
		}).Error; err != nil {
			return err
		}
		order.Status = ProductionOrderStatusCompleted
		order.QuantityProduced = input.QuantityProduced
		order.CompletedAt = &now
		order.Batch = batch

		return PublishWorkflowEvent(ctx, tx, order.ID, WorkflowReferenceProductionOrder, WorkflowActionCompleted, order)
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "ProductionOrder", "CompleteProductionOrder", "complete production order", input, err)
		}
		return nil, err
	}
	return order, nil
}

// CancelProductionOrder cancels a pending or in-progress order and releases any reservation.
func CancelProductionOrder(ctx context.Context, id int, reason string) (*ProductionOrder, error) {
	release, err := utils.EntityLock(ctx, "production_order", id, "ProductionOrder", "CancelProductionOrder")
	if err != nil {
		return nil, err
	}
	defer release()

	var order *ProductionOrder
	err = runInTx(ctx, func(tx *gorm.DB) error {
		order, err = lockProductionOrder(tx, id)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return invalidState("production order", order.ID, string(order.Status), "cancel")
		}
		if order.Status == ProductionOrderStatusInProgress {
			ids := make([]int, 0, len(order.Materials))
			for _, m := range order.Materials {
				ids = append(ids, m.RawMaterialId)
			}
			materials, err := lockRawMaterials(tx, ids)
			if err != nil {
				return err
			}
			ref := stockRef{Type: stockRefProductionOrder, Id: order.ID, Notes: "cancelled", Actor: utils.ActorFromContext(ctx)}
			for _, line := range order.Materials {
				if err := releaseRawMaterial(tx, materials[line.RawMaterialId], line.QuantityReserved, ref); err != nil {
					return err
				}
			}
		}
		now := time.Now().UTC()
		if err := tx.Model(&ProductionOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"status":        ProductionOrderStatusCancelled,
			"cancelled_at":  now,
			"cancel_reason": reason,
		}).Error; err != nil {
			return err
		}
		order.Status = ProductionOrderStatusCancelled
		order.CancelledAt = &now
		order.CancelReason = reason
		return PublishWorkflowEvent(ctx, tx, order.ID, WorkflowReferenceProductionOrder, WorkflowActionCancelled, order)
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "ProductionOrder", "CancelProductionOrder", "cancel production order", id, err)
		}
		return nil, err
	}
	return order, nil
}

func GetProductionOrder(ctx context.Context, id int) (*ProductionOrder, error) {
	return utils.FetchModel[ProductionOrder](ctx, id, "Materials", "Batch")
}

func ListProductionOrders(ctx context.Context, status *ProductionOrderStatus, productId *int) ([]*ProductionOrder, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if productId != nil && *productId > 0 {
		dbCtx = dbCtx.Where("product_id = ?", *productId)
	}
	var results []*ProductionOrder
	if err := dbCtx.Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
