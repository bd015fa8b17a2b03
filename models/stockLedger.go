package models

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	stockRefAdjustment      = "stock_adjustment"
	stockRefProductionOrder = "production_order"
	stockRefSalesInvoice    = "sales_invoice"
	stockRefPurchaseReceipt = "purchase_receipt"
	stockRefBatch           = "batch"
)

// lockRawMaterials reads the materials FOR UPDATE in ascending id order so concurrent
// callers always queue on rows in the same order.
func lockRawMaterials(tx *gorm.DB, ids []int) (map[int]*RawMaterial, error) {
	unique := utils.UniqueSlice(ids)
	sort.Ints(unique)
	var materials []*RawMaterial
	if len(unique) > 0 {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", unique).Order("id").
			Find(&materials).Error; err != nil {
			return nil, err
		}
	}
	result := make(map[int]*RawMaterial, len(materials))
	for _, m := range materials {
		result[m.ID] = m
	}
	for _, id := range unique {
		if _, ok := result[id]; !ok {
			return nil, newValidationError("raw_material_id", "unknown raw material")
		}
	}
	return result, nil
}

func lockProduct(tx *gorm.DB, id int) (*Product, error) {
	product, err := utils.LockModel[Product](tx, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, newValidationError("product_id", "unknown product")
	}
	return product, err
}

func writeRawMaterialStock(tx *gorm.DB, m *RawMaterial, stock decimal.Decimal, reserved decimal.Decimal) error {
	if err := tx.Model(&RawMaterial{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
		"stock_qty":    stock,
		"reserved_qty": reserved,
	}).Error; err != nil {
		return err
	}
	m.StockQty = stock
	m.ReservedQty = reserved
	return nil
}

func recordMovement(tx *gorm.DB, itemType StockItemType, itemId int, batchId *int, reason StockMovementReason, qty decimal.Decimal, stockAfter decimal.Decimal, reservedAfter decimal.Decimal, ref stockRef) error {
	movement := StockMovement{
		ItemType:      itemType,
		ItemId:        itemId,
		BatchId:       batchId,
		Reason:        reason,
		Quantity:      qty,
		StockAfter:    stockAfter,
		ReservedAfter: reservedAfter,
		ReferenceType: ref.Type,
		ReferenceId:   ref.Id,
		Notes:         ref.Notes,
		CreatedBy:     ref.Actor,
	}
	return tx.Create(&movement).Error
}

// incrementRawMaterial adds qty to a locked material.
func incrementRawMaterial(tx *gorm.DB, m *RawMaterial, qty decimal.Decimal, reason StockMovementReason, ref stockRef) error {
	if qty.IsNegative() {
		return newValidationError("quantity", "increment must not be negative")
	}
	stock := m.StockQty.Add(qty)
	if err := writeRawMaterialStock(tx, m, stock, m.ReservedQty); err != nil {
		return err
	}
	return recordMovement(tx, StockItemTypeRawMaterial, m.ID, nil, reason, qty, stock, m.ReservedQty, ref)
}

// decrementRawMaterial removes qty from the unreserved stock of a locked material.
func decrementRawMaterial(tx *gorm.DB, m *RawMaterial, qty decimal.Decimal, reason StockMovementReason, ref stockRef) error {
	if qty.IsNegative() {
		return newValidationError("quantity", "decrement must not be negative")
	}
	if m.AvailableQty().LessThan(qty) {
		return &NegativeStockError{Item: "raw material", ItemId: m.ID, OnHand: m.AvailableQty(), Requested: qty}
	}
	stock := m.StockQty.Sub(qty)
	if err := writeRawMaterialStock(tx, m, stock, m.ReservedQty); err != nil {
		return err
	}
	return recordMovement(tx, StockItemTypeRawMaterial, m.ID, nil, reason, qty.Neg(), stock, m.ReservedQty, ref)
}

// reserveRawMaterial holds qty of a locked material for running production.
func reserveRawMaterial(tx *gorm.DB, m *RawMaterial, qty decimal.Decimal, ref stockRef) error {
	if m.AvailableQty().LessThan(qty) {
		return &NegativeStockError{Item: "raw material", ItemId: m.ID, OnHand: m.AvailableQty(), Requested: qty}
	}
	reserved := m.ReservedQty.Add(qty)
	if err := writeRawMaterialStock(tx, m, m.StockQty, reserved); err != nil {
		return err
	}
	return recordMovement(tx, StockItemTypeRawMaterial, m.ID, nil, StockMovementReasonProductionReserve, decimal.Zero, m.StockQty, reserved, ref)
}

// releaseRawMaterial gives back a reservation; it never releases more than is held.
func releaseRawMaterial(tx *gorm.DB, m *RawMaterial, qty decimal.Decimal, ref stockRef) error {
	if qty.GreaterThan(m.ReservedQty) {
		qty = m.ReservedQty
	}
	reserved := m.ReservedQty.Sub(qty)
	if err := writeRawMaterialStock(tx, m, m.StockQty, reserved); err != nil {
		return err
	}
	return recordMovement(tx, StockItemTypeRawMaterial, m.ID, nil, StockMovementReasonProductionRelease, decimal.Zero, m.StockQty, reserved, ref)
}

func incrementProductStock(tx *gorm.DB, p *Product, qty decimal.Decimal, batchId *int, reason StockMovementReason, ref stockRef) error {
	stock := p.StockQty.Add(qty)
	if err := tx.Model(&Product{}).Where("id = ?", p.ID).Update("stock_qty", stock).Error; err != nil {
		return err
	}
	p.StockQty = stock
	return recordMovement(tx, StockItemTypeProduct, p.ID, batchId, reason, qty, stock, decimal.Zero, ref)
}

func decrementProductStock(tx *gorm.DB, p *Product, qty decimal.Decimal, batchId *int, reason StockMovementReason, ref stockRef) error {
	if p.StockQty.LessThan(qty) {
		return &NegativeStockError{Item: "product", ItemId: p.ID, OnHand: p.StockQty, Requested: qty}
	}
	stock := p.StockQty.Sub(qty)
	if err := tx.Model(&Product{}).Where("id = ?", p.ID).Update("stock_qty", stock).Error; err != nil {
		return err
	}
	p.StockQty = stock
	return recordMovement(tx, StockItemTypeProduct, p.ID, batchId, reason, qty.Neg(), stock, decimal.Zero, ref)
}

type NewStockAdjustment struct {
	Delta  decimal.Decimal `json:"delta" validate:"dp=4"`
	Reason string          `json:"reason" validate:"required,max=255"`
}

// AdjustRawMaterialStock applies a manual correction. A negative delta may not take the
// material below what is reserved by running production.
func AdjustRawMaterialStock(ctx context.Context, materialId int, input *NewStockAdjustment) (*RawMaterial, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.Delta.IsZero() {
		return nil, newValidationError("delta", "must not be zero")
	}
	ref := stockRef{Type: stockRefAdjustment, Id: materialId, Notes: strings.TrimSpace(input.Reason), Actor: utils.ActorFromContext(ctx)}

	var material *RawMaterial
	err := runInTx(ctx, func(tx *gorm.DB) error {
		locked, err := lockRawMaterials(tx, []int{materialId})
		if err != nil {
			return err
		}
		material = locked[materialId]
		if input.Delta.IsPositive() {
			err = incrementRawMaterial(tx, material, input.Delta, StockMovementReasonAdjustment, ref)
		} else {
			err = decrementRawMaterial(tx, material, input.Delta.Neg(), StockMovementReasonAdjustment, ref)
		}
		if err != nil {
			return err
		}
		return PublishWorkflowEvent(ctx, tx, material.ID, WorkflowReferenceStockAdjustment, WorkflowActionAdjusted, material)
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "StockLedger", "AdjustRawMaterialStock", "adjust stock", input, err)
		}
		return nil, err
	}
	return material, nil
}

// isBusinessError reports errors that are expected outcomes rather than failures worth logging.
func isBusinessError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInsufficientMaterial) ||
		errors.Is(err, ErrNegativeStock) ||
		errors.Is(err, ErrNoRecipe) ||
		errors.Is(err, ErrInvalidMargin) ||
		errors.Is(err, ErrRecordNotFound)
}
