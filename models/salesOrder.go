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
)

type SalesOrder struct {
	ID          int                `gorm:"primary_key" json:"id"`
	OrderNumber string             `gorm:"size:50;not null;uniqueIndex" json:"order_number"`
	SequenceNo  int64              `gorm:"not null" json:"sequence_no"`
	StoreId     int                `gorm:"index;not null" json:"store_id"`
	Status      SalesOrderStatus   `gorm:"size:20;not null;index" json:"status"`
	Notes       string             `gorm:"type:text" json:"notes"`
	CreatedBy   string             `gorm:"size:100" json:"created_by"`
	SubmittedAt *time.Time         `json:"submitted_at"`
	ApprovedAt  *time.Time         `json:"approved_at"`
	CancelledAt *time.Time         `json:"cancelled_at"`
	Details     []SalesOrderDetail `gorm:"foreignKey:SalesOrderId" json:"details"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// SalesOrderDetail is one ordered product. StockQty is the store's own count at order
// time and is informational only. InvoicedQty grows as invoices are raised.
type SalesOrderDetail struct {
	ID           int             `gorm:"primary_key" json:"id"`
	SalesOrderId int             `gorm:"index;not null" json:"sales_order_id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	Name         string          `gorm:"size:100" json:"name"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	InvoicedQty  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"invoiced_qty"`
	StockQty     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"stock_qty"`
	Mrp          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"mrp"`
}

type NewSalesOrder struct {
	StoreId int                   `json:"store_id" validate:"required,gt=0"`
	Notes   string                `json:"notes"`
	Details []NewSalesOrderDetail `json:"details" validate:"required,min=1,dive"`
}

type NewSalesOrderDetail struct {
	ProductId int             `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0,dp=4"`
	StockQty  decimal.Decimal `json:"stock_qty" validate:"gte=0,dp=4"`
}

// StockShortageWarning is advisory; it never blocks an approval.
type StockShortageWarning struct {
	ProductId   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Ordered     decimal.Decimal `json:"ordered"`
	Available   decimal.Decimal `json:"available"`
	Shortage    decimal.Decimal `json:"shortage"`
}

type SalesOrderApproval struct {
	Order    *SalesOrder            `json:"order"`
	Warnings []StockShortageWarning `json:"warnings"`
}

// SalesOrderApprovedEvent is the payload of the SO approved workflow message.
type SalesOrderApprovedEvent struct {
	OrderId     int                    `json:"order_id"`
	OrderNumber string                 `json:"order_number"`
	StoreId     int                    `json:"store_id"`
	Warnings    []StockShortageWarning `json:"warnings"`
}

func (d SalesOrderDetail) RemainingQty() decimal.Decimal {
	return d.Quantity.Sub(d.InvoicedQty)
}

func (so SalesOrder) hasInvoicedQty() bool {
	for _, d := range so.Details {
		if d.InvoicedQty.IsPositive() {
			return true
		}
	}
	return false
}

func (so SalesOrder) fullyInvoiced() bool {
	for _, d := range so.Details {
		if d.RemainingQty().IsPositive() {
			return false
		}
	}
	return true
}

func (input NewSalesOrder) validate() error {
	if err := validateInput(&input); err != nil {
		return err
	}
	seen := make(map[int]bool, len(input.Details))
	for i, d := range input.Details {
		if seen[d.ProductId] {
			return newValidationError(fmt.Sprintf("details[%d].product_id", i), "product listed twice")
		}
		seen[d.ProductId] = true
	}
	return nil
}

func validateStore(tx *gorm.DB, storeId int) error {
	var count int64
	if err := tx.Model(&Store{}).Where("id = ?", storeId).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return newValidationError("store_id", "unknown store")
	}
	return nil
}

// buildOrderDetails resolves the products and snapshots their mrp.
func buildOrderDetails(tx *gorm.DB, input []NewSalesOrderDetail) ([]SalesOrderDetail, error) {
	ids := make([]int, 0, len(input))
	for _, d := range input {
		ids = append(ids, d.ProductId)
	}
	var products []Product
	if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]Product, len(products))
	for _, p := range products {
		byId[p.ID] = p
	}

	details := make([]SalesOrderDetail, 0, len(input))
	for i, d := range input {
		p, ok := byId[d.ProductId]
		if !ok {
			return nil, newValidationError(fmt.Sprintf("details[%d].product_id", i), "unknown product")
		}
		if !p.Active() {
			return nil, newValidationError(fmt.Sprintf("details[%d].product_id", i), "product is inactive")
		}
		details = append(details, SalesOrderDetail{
			ProductId:   p.ID,
			Name:        p.Name,
			Quantity:    d.Quantity,
			InvoicedQty: decimal.Zero,
			StockQty:    d.StockQty,
			Mrp:         p.Mrp,
		})
	}
	return details, nil
}

func lockSalesOrder(tx *gorm.DB, id int) (*SalesOrder, error) {
	return utils.LockModel[SalesOrder](tx, id, "Details")
}

func CreateSalesOrder(ctx context.Context, input *NewSalesOrder) (*SalesOrder, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var order SalesOrder
	err := runInTx(ctx, func(tx *gorm.DB) error {
		if err := validateStore(tx, input.StoreId); err != nil {
			return err
		}
		details, err := buildOrderDetails(tx, input.Details)
		if err != nil {
			return err
		}
		seq, number, err := nextTransactionNumber(tx, ModuleSalesOrder)
		if err != nil {
			return err
		}
		order = SalesOrder{
			OrderNumber: number,
			SequenceNo:  seq,
			StoreId:     input.StoreId,
			Status:      SalesOrderStatusDraft,
			Notes:       input.Notes,
			CreatedBy:   utils.ActorFromContext(ctx),
			Details:     details,
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "SalesOrder", "CreateSalesOrder", "create sales order", input, err)
		}
		return nil, err
	}
	return &order, nil
}

// UpdateSalesOrder replaces the store, notes and lines of a draft or submitted order.
// The status is left as it is.
func UpdateSalesOrder(ctx context.Context, id int, input *NewSalesOrder) (*SalesOrder, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var order *SalesOrder
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = lockSalesOrder(tx, id)
		if err != nil {
			return err
		}
		if order.Status != SalesOrderStatusDraft && order.Status != SalesOrderStatusSubmitted {
			return invalidState("sales order", order.ID, string(order.Status), "update")
		}
		if err := validateStore(tx, input.StoreId); err != nil {
			return err
		}
		details, err := buildOrderDetails(tx, input.Details)
		if err != nil {
			return err
		}
		if err := tx.Where("sales_order_id = ?", order.ID).Delete(&SalesOrderDetail{}).Error; err != nil {
			return err
		}
		for i := range details {
			details[i].SalesOrderId = order.ID
		}
		if err := tx.Create(&details).Error; err != nil {
			return err
		}
		if err := tx.Model(&SalesOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"store_id": input.StoreId,
			"notes":    input.Notes,
		}).Error; err != nil {
			return err
		}
		order.StoreId = input.StoreId
		order.Notes = input.Notes
		order.Details = details
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "SalesOrder", "UpdateSalesOrder", "update sales order", input, err)
		}
		return nil, err
	}
	return order, nil
}

// transitionSalesOrder locks the order, checks it is in one of from and moves it to
// the target status. apply runs under the same lock before the status is written.
func transitionSalesOrder(ctx context.Context, id int, action string, to SalesOrderStatus, from []SalesOrderStatus,
	apply func(tx *gorm.DB, order *SalesOrder, fields map[string]interface{}) error) (*SalesOrder, error) {

	var order *SalesOrder
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = lockSalesOrder(tx, id)
		if err != nil {
			return err
		}
		allowed := false
		for _, s := range from {
			if order.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return invalidState("sales order", order.ID, string(order.Status), action)
		}
		fields := map[string]interface{}{"status": to}
		if apply != nil {
			if err := apply(tx, order, fields); err != nil {
				return err
			}
		}
		if err := tx.Model(&SalesOrder{}).Where("id = ?", order.ID).Updates(fields).Error; err != nil {
			return err
		}
		order.Status = to
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "SalesOrder", action, "change sales order status", id, err)
		}
		return nil, err
	}
	return order, nil
}

func SubmitSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	return transitionSalesOrder(ctx, id, "submit", SalesOrderStatusSubmitted,
		[]SalesOrderStatus{SalesOrderStatusDraft},
		func(tx *gorm.DB, order *SalesOrder, fields map[string]interface{}) error {
			now := time.Now().UTC()
			fields["submitted_at"] = now
			order.SubmittedAt = &now
			return nil
		})
}

// ApproveSalesOrder approves a submitted order. Lines that exceed finished-goods stock
// come back as warnings; the approval itself always goes through.
func ApproveSalesOrder(ctx context.Context, id int) (*SalesOrderApproval, error) {
	var warnings []StockShortageWarning
	order, err := transitionSalesOrder(ctx, id, "approve", SalesOrderStatusApproved,
		[]SalesOrderStatus{SalesOrderStatusSubmitted},
		func(tx *gorm.DB, order *SalesOrder, fields map[string]interface{}) error {
			var err error
			warnings, err = stockShortages(tx, order.Details)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			fields["approved_at"] = now
			order.ApprovedAt = &now
			return PublishWorkflowEvent(ctx, tx, order.ID, WorkflowReferenceSalesOrder, WorkflowActionApproved, SalesOrderApprovedEvent{
				OrderId:     order.ID,
				OrderNumber: order.OrderNumber,
				StoreId:     order.StoreId,
				Warnings:    warnings,
			})
		})
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		config.LogWarn(config.GetLogger(), "SalesOrder", "ApproveSalesOrder", "approved with stock shortages", warnings)
	}
	return &SalesOrderApproval{Order: order, Warnings: warnings}, nil
}

func stockShortages(tx *gorm.DB, details []SalesOrderDetail) ([]StockShortageWarning, error) {
	ids := make([]int, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ProductId)
	}
	var products []Product
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return nil, err
		}
	}
	byId := make(map[int]Product, len(products))
	for _, p := range products {
		byId[p.ID] = p
	}
	warnings := make([]StockShortageWarning, 0)
	for _, d := range details {
		p := byId[d.ProductId]
		if d.Quantity.GreaterThan(p.StockQty) {
			warnings = append(warnings, StockShortageWarning{
				ProductId:   d.ProductId,
				ProductName: p.Name,
				Ordered:     d.Quantity,
				Available:   p.StockQty,
				Shortage:    d.Quantity.Sub(p.StockQty),
			})
		}
	}
	return warnings, nil
}

// CancelSalesOrder cancels an order that has nothing invoiced against it yet.
func CancelSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	return transitionSalesOrder(ctx, id, "cancel", SalesOrderStatusCancelled,
		[]SalesOrderStatus{SalesOrderStatusDraft, SalesOrderStatusSubmitted, SalesOrderStatusApproved},
		func(tx *gorm.DB, order *SalesOrder, fields map[string]interface{}) error {
			if order.hasInvoicedQty() {
				return invalidState("sales order", order.ID, "partially invoiced", "cancel")
			}
			now := time.Now().UTC()
			fields["cancelled_at"] = now
			order.CancelledAt = &now
			return PublishWorkflowEvent(ctx, tx, order.ID, WorkflowReferenceSalesOrder, WorkflowActionCancelled, order)
		})
}

// DeleteSalesOrder removes a draft or cancelled order with its lines.
func DeleteSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	var order *SalesOrder
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = lockSalesOrder(tx, id)
		if err != nil {
			return err
		}
		if order.Status != SalesOrderStatusDraft && order.Status != SalesOrderStatusCancelled {
			return invalidState("sales order", order.ID, string(order.Status), "delete")
		}
		var invoices int64
		if err := tx.Model(&SalesInvoice{}).Where("sales_order_id = ?", order.ID).Count(&invoices).Error; err != nil {
			return err
		}
		if invoices > 0 {
			return invalidState("sales order", order.ID, "referenced by invoices", "delete")
		}
		if err := tx.Where("sales_order_id = ?", order.ID).Delete(&SalesOrderDetail{}).Error; err != nil {
			return err
		}
		return tx.Delete(&SalesOrder{}, order.ID).Error
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "SalesOrder", "DeleteSalesOrder", "delete sales order", id, err)
		}
		return nil, err
	}
	return order, nil
}

func GetSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	return utils.FetchModel[SalesOrder](ctx, id, "Details")
}

func ListSalesOrders(ctx context.Context, storeId *int, status *SalesOrderStatus) ([]*SalesOrder, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	if storeId != nil && *storeId > 0 {
		dbCtx = dbCtx.Where("store_id = ?", *storeId)
	}
	if status != nil {
		if !status.IsValid() {
			return nil, newValidationError("status", "invalid sales order status")
		}
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*SalesOrder
	if err := dbCtx.Preload("Details").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// markOrderInvoiced adds invoiced quantities to a locked approved order and moves it to
// invoiced once every line is covered.
func markOrderInvoiced(tx *gorm.DB, order *SalesOrder, invoiced map[int]decimal.Decimal) error {
	for i := range order.Details {
		d := &order.Details[i]
		qty, ok := invoiced[d.ProductId]
		if !ok {
			continue
		}
		d.InvoicedQty = d.InvoicedQty.Add(qty)
		if err := tx.Model(&SalesOrderDetail{}).Where("id = ?", d.ID).
			Update("invoiced_qty", d.InvoicedQty).Error; err != nil {
			return err
		}
	}
	if order.fullyInvoiced() {
		if err := tx.Model(&SalesOrder{}).Where("id = ?", order.ID).
			Update("status", SalesOrderStatusInvoiced).Error; err != nil {
			return err
		}
		order.Status = SalesOrderStatusInvoiced
	}
	return nil
}

func errIsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
