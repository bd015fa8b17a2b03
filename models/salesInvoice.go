package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesInvoice is immutable once created apart from its status fields. Totals come from
// CalculateInvoiceTotals and are never edited.
type SalesInvoice struct {
	ID            int                      `gorm:"primary_key" json:"id"`
	InvoiceNumber string                   `gorm:"size:50;not null;uniqueIndex" json:"invoice_number"`
	SequenceNo    int64                    `gorm:"not null" json:"sequence_no"`
	StoreId       int                      `gorm:"index;not null" json:"store_id"`
	SalesOrderId  *int                     `gorm:"index" json:"sales_order_id"`
	InvoiceDate   time.Time                `gorm:"not null" json:"invoice_date"`
	Status        InvoiceStatus            `gorm:"size:20;not null;index" json:"status"`
	BillingStatus BillingStatus            `gorm:"size:20;not null" json:"billing_status"`
	PaymentStatus PaymentStatus            `gorm:"size:20;not null;index" json:"payment_status"`
	IsIgst        bool                     `gorm:"not null;default:false" json:"is_igst"`
	Subtotal      decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	Cgst          decimal.Decimal          `gorm:"type:decimal(30,10);default:0" json:"cgst"`
	Sgst          decimal.Decimal          `gorm:"type:decimal(30,10);default:0" json:"sgst"`
	Igst          decimal.Decimal          `gorm:"type:decimal(30,10);default:0" json:"igst"`
	RoundOff      decimal.Decimal          `gorm:"type:decimal(30,10);default:0" json:"round_off"`
	TotalAmount   decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	TotalPaid     decimal.Decimal          `gorm:"type:decimal(20,4);default:0" json:"total_paid"`
	Notes         string                   `gorm:"type:text" json:"notes"`
	CreatedBy     string                   `gorm:"size:100" json:"created_by"`
	DispatchedAt  *time.Time               `json:"dispatched_at"`
	CancelledAt   *time.Time               `json:"cancelled_at"`
	CancelReason  string                   `gorm:"size:255" json:"cancel_reason"`
	Details       []SalesInvoiceDetail     `gorm:"foreignKey:SalesInvoiceId" json:"details"`
	Allocations   []InvoiceBatchAllocation `gorm:"foreignKey:SalesInvoiceId" json:"allocations,omitempty"`
	CreatedAt     time.Time                `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                `gorm:"autoUpdateTime" json:"updated_at"`
}

type SalesInvoiceDetail struct {
	ID               int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId   int             `gorm:"index;not null" json:"sales_invoice_id"`
	ProductId        int             `gorm:"index;not null" json:"product_id"`
	Name             string          `gorm:"size:100" json:"name"`
	HsnCode          string          `gorm:"size:20" json:"hsn_code"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Mrp              decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"mrp"`
	MarginPercentage decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"margin_percentage"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(30,10);not null" json:"unit_price"`
	GstRate          decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"gst_rate"`
	LineTotal        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
	GstAmount        decimal.Decimal `gorm:"type:decimal(30,10);default:0" json:"gst_amount"`
	CgstAmount       decimal.Decimal `gorm:"type:decimal(30,10);default:0" json:"cgst_amount"`
	SgstAmount       decimal.Decimal `gorm:"type:decimal(30,10);default:0" json:"sgst_amount"`
	IgstAmount       decimal.Decimal `gorm:"type:decimal(30,10);default:0" json:"igst_amount"`
}

// InvoiceBatchAllocation records which batches a dispatched invoice line was drawn from.
type InvoiceBatchAllocation struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId       int             `gorm:"index;not null" json:"sales_invoice_id"`
	SalesInvoiceDetailId int             `gorm:"index;not null" json:"sales_invoice_detail_id"`
	ProductId            int             `gorm:"not null" json:"product_id"`
	BatchId              int             `gorm:"index;not null" json:"batch_id"`
	BatchNumber          string          `gorm:"size:50" json:"batch_number"`
	Quantity             decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewInvoiceItem struct {
	ProductId        int              `json:"product_id" validate:"required,gt=0"`
	Quantity         decimal.Decimal  `json:"quantity" validate:"gt=0,dp=4"`
	MarginPercentage *decimal.Decimal `json:"margin_percentage" validate:"omitempty,dp=4"`
}

// NewInvoiceFromOrder invoices an approved order. Without items every line is invoiced
// for what is still outstanding.
type NewInvoiceFromOrder struct {
	SalesOrderId int              `json:"sales_order_id" validate:"required,gt=0"`
	Items        []NewInvoiceItem `json:"items" validate:"dive"`
	IsIgst       *bool            `json:"is_igst"`
	InvoiceDate  *time.Time       `json:"invoice_date"`
	Notes        string           `json:"notes"`
}

type NewAdHocInvoice struct {
	StoreId     int              `json:"store_id" validate:"required,gt=0"`
	Items       []NewInvoiceItem `json:"items" validate:"required,min=1,dive"`
	IsIgst      *bool            `json:"is_igst"`
	InvoiceDate *time.Time       `json:"invoice_date"`
	Notes       string           `json:"notes"`
}

type InvoiceFilter struct {
	StoreId       *int           `json:"store_id"`
	SalesOrderId  *int           `json:"sales_order_id"`
	Status        *InvoiceStatus `json:"status"`
	PaymentStatus *PaymentStatus `json:"payment_status"`
}

// invoiceLine is an item resolved against its product, ready for pricing.
type invoiceLine struct {
	product Product
	mrp     decimal.Decimal
	margin  decimal.Decimal
	qty     decimal.Decimal
}

func rejectDuplicateItems(items []NewInvoiceItem) error {
	seen := make(map[int]bool, len(items))
	for i, item := range items {
		if seen[item.ProductId] {
			return newValidationError(fmt.Sprintf("items[%d].product_id", i), "product listed twice")
		}
		seen[item.ProductId] = true
	}
	return nil
}

func loadProducts(tx *gorm.DB, ids []int) (map[int]Product, error) {
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
	return byId, nil
}

// priceInvoice runs the lines through the pricing engine and fills the invoice totals
// and details.
func priceInvoice(invoice *SalesInvoice, lines []invoiceLine) error {
	pricing := make([]PricingLine, 0, len(lines))
	for _, l := range lines {
		pricing = append(pricing, PricingLine{
			Mrp:              l.mrp,
			MarginPercentage: l.margin,
			Quantity:         l.qty,
			GstRate:          l.product.GstRate,
		})
	}
	totals, err := CalculateInvoiceTotals(pricing, invoice.IsIgst)
	if err != nil {
		return err
	}
	invoice.Subtotal = totals.Subtotal
	invoice.Cgst = totals.Cgst
	invoice.Sgst = totals.Sgst
	invoice.Igst = totals.Igst
	invoice.RoundOff = totals.RoundOff
	invoice.TotalAmount = totals.TotalAmount
	invoice.TotalPaid = decimal.Zero
	invoice.Details = make([]SalesInvoiceDetail, 0, len(lines))
	for i, l := range lines {
		priced := totals.Lines[i]
		invoice.Details = append(invoice.Details, SalesInvoiceDetail{
			ProductId:        l.product.ID,
			Name:             l.product.Name,
			HsnCode:          l.product.HsnCode,
			Quantity:         l.qty,
			Mrp:              l.mrp,
			MarginPercentage: l.margin,
			UnitPrice:        priced.UnitPrice,
			GstRate:          l.product.GstRate,
			LineTotal:        priced.LineTotal,
			GstAmount:        priced.GstAmount,
			CgstAmount:       priced.CgstAmount,
			SgstAmount:       priced.SgstAmount,
			IgstAmount:       priced.IgstAmount,
		})
	}
	return nil
}

// insertInvoice numbers, prices and stores a new active invoice.
func insertInvoice(ctx context.Context, tx *gorm.DB, invoice *SalesInvoice, lines []invoiceLine, invoiceDate *time.Time) error {
	if err := priceInvoice(invoice, lines); err != nil {
		return err
	}
	seq, number, err := nextTransactionNumber(tx, ModuleSalesInvoice)
	if err != nil {
		return err
	}
	invoice.InvoiceNumber = number
	invoice.SequenceNo = seq
	invoice.Status = InvoiceStatusActive
	invoice.BillingStatus = BillingStatusPending
	invoice.PaymentStatus = PaymentStatusPending
	invoice.CreatedBy = utils.ActorFromContext(ctx)
	invoice.InvoiceDate = time.Now().UTC()
	if invoiceDate != nil {
		invoice.InvoiceDate = invoiceDate.UTC()
	}
	return tx.Create(invoice).Error
}

func loadStore(tx *gorm.DB, storeId int) (*Store, error) {
	var store Store
	if err := tx.First(&store, storeId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newValidationError("store_id", "unknown store")
		}
		return nil, err
	}
	return &store, nil
}

func resolveIgst(flag *bool, store *Store) bool {
	if flag != nil {
		return *flag
	}
	return store.IsInterState()
}

func resolveMargin(item *decimal.Decimal, store *Store) decimal.Decimal {
	if item != nil {
		return *item
	}
	return store.MarginPercentage
}

// CreateInvoiceFromOrder invoices an approved order. Invoiced quantities are added to
// the order lines and the order becomes invoiced when nothing is left outstanding. Both
// happen in the same transaction.
func CreateInvoiceFromOrder(ctx context.Context, input *NewInvoiceFromOrder) (*SalesInvoice, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := rejectDuplicateItems(input.Items); err != nil {
		return nil, err
	}
	release, err := utils.EntityLock(ctx, "sales_order", input.SalesOrderId, "SalesInvoice", "CreateInvoiceFromOrder")
	if err != nil {
		return nil, err
	}
	defer release()

	var invoice SalesInvoice
	err = runInTx(ctx, func(tx *gorm.DB) error {
		order, err := lockSalesOrder(tx, input.SalesOrderId)
		if err != nil {
			if errIsNotFound(err) {
				return newValidationError("sales_order_id", "unknown sales order")
			}
			return err
		}
		if order.Status != SalesOrderStatusApproved {
			return invalidState("sales order", order.ID, string(order.Status), "invoice")
		}
		store, err := loadStore(tx, order.StoreId)
		if err != nil {
			return err
		}

		items := input.Items
		if len(items) == 0 {
			for _, d := range order.Details {
				if d.RemainingQty().IsPositive() {
					items = append(items, NewInvoiceItem{ProductId: d.ProductId, Quantity: d.RemainingQty()})
				}
			}
		}
		if len(items) == 0 {
			return newValidationError("items", "nothing left to invoice")
		}

		detailByProduct := make(map[int]SalesOrderDetail, len(order.Details))
		ids := make([]int, 0, len(order.Details))
		for _, d := range order.Details {
			detailByProduct[d.ProductId] = d
			ids = append(ids, d.ProductId)
		}
		products, err := loadProducts(tx, ids)
		if err != nil {
			return err
		}

		lines := make([]invoiceLine, 0, len(items))
		invoiced := make(map[int]decimal.Decimal, len(items))
		for i, item := range items {
			d, ok := detailByProduct[item.ProductId]
			if !ok {
				return newValidationError(fmt.Sprintf("items[%d].product_id", i), "product is not on the order")
			}
			if item.Quantity.GreaterThan(d.RemainingQty()) {
				return newValidationError(fmt.Sprintf("items[%d].quantity", i),
					fmt.Sprintf("exceeds outstanding quantity %s", d.RemainingQty().String()))
			}
			lines = append(lines, invoiceLine{
				product: products[item.ProductId],
				mrp:     d.Mrp,
				margin:  resolveMargin(item.MarginPercentage, store),
				qty:     item.Quantity,
			})
			invoiced[item.ProductId] = item.Quantity
		}

		orderId := order.ID
		invoice = SalesInvoice{
			StoreId:      order.StoreId,
			SalesOrderId: &orderId,
			IsIgst:       resolveIgst(input.IsIgst, store),
			Notes:        input.Notes,
		}
		if err := insertInvoice(ctx, tx, &invoice, lines, input.InvoiceDate); err != nil {
			return err
		}
		return markOrderInvoiced(tx, order, invoiced)
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "SalesInvoice", "CreateInvoiceFromOrder", "create invoice from order", input, err)
		}
		return nil, err
	}
	return &invoice, nil
}

// CreateAdHocInvoice invoices items for a store with no backing order, at current mrp.
func CreateAdHocInvoice(ctx context.Context, input *NewAdHocInvoice) (*SalesInvoice, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := rejectDuplicateItems(input.Items); err != nil {
		return nil, err
	}

	var invoice SalesInvoice
	err := runInTx(ctx, func(tx *gorm.DB) error {
		store, err := loadStore(tx, input.StoreId)
		if err != nil {
			return err
		}
		ids := make([]int, 0, len(input.Items))
		for _, item := range input.Items {
			ids = append(ids, item.ProductId)
		}
		products, err := loadProducts(tx, ids)
		if err != nil {
			return err
		}
		lines := make([]invoiceLine, 0, len(input.Items))
		for i, item := range input.Items {
			p, ok := products[item.ProductId]
			if !ok {
				return newValidationError(fmt.Sprintf("items[%d].product_id", i), "unknown product")
			}
			if !p.Active() {
				return newValidationError(fmt.Sprintf("items[%d].product_id", i), "product is inactive")
			}
			lines = append(lines, invoiceLine{
				product: p,
				mrp:     p.Mrp,
				margin:  resolveMargin(item.MarginPercentage, store),
				qty:     item.Quantity,
			})
		}
		invoice = SalesInvoice{
			StoreId: store.ID,
			IsIgst:  resolveIgst(input.IsIgst, store),
			Notes:   input.Notes,
		}
		return insertInvoice(ctx, tx, &invoice, lines, input.InvoiceDate)
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "SalesInvoice", "CreateAdHocInvoice", "create ad hoc invoice", input, err)
		}
		return nil, err
	}
	return &invoice, nil
}

func lockInvoice(tx *gorm.DB, id int) (*SalesInvoice, error) {
	return utils.LockModel[SalesInvoice](tx, id, "Details")
}

// CancelInvoice cancels an active invoice that has not been dispatched. The order it was
// raised from keeps its status and invoiced quantities.
func CancelInvoice(ctx context.Context, id int, reason string) (*SalesInvoice, error) {
	var invoice *SalesInvoice
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var err error
		invoice, err = lockInvoice(tx, id)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusActive {
			return invalidState("invoice", invoice.ID, string(invoice.Status), "cancel")
		}
		if invoice.DispatchedAt != nil {
			return invalidState("invoice", invoice.ID, "dispatched", "cancel")
		}
		if config.BlockCancelPaidInvoice() && invoice.TotalPaid.IsPositive() {
			return invalidState("invoice", invoice.ID, string(invoice.PaymentStatus), "cancel")
		}
		now := time.Now().UTC()
		if err := tx.Model(&SalesInvoice{}).Where("id = ?", invoice.ID).Updates(map[string]interface{}{
			"status":        InvoiceStatusCancelled,
			"cancelled_at":  now,
			"cancel_reason": reason,
		}).Error; err != nil {
			return err
		}
		invoice.Status = InvoiceStatusCancelled
		invoice.CancelledAt = &now
		invoice.CancelReason = reason
		return PublishWorkflowEvent(ctx, tx, invoice.ID, WorkflowReferenceSalesInvoice, WorkflowActionCancelled, invoice)
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "SalesInvoice", "CancelInvoice", "cancel invoice", id, err)
		}
		return nil, err
	}
	return invoice, nil
}

// DeleteInvoice permanently removes a cancelled invoice. Invoices with payments are kept
// since payments are never deleted.
func DeleteInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	var invoice *SalesInvoice
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var err error
		invoice, err = lockInvoice(tx, id)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusCancelled {
			return invalidState("invoice", invoice.ID, string(invoice.Status), "delete")
		}
		var payments int64
		if err := tx.Model(&InvoicePayment{}).Where("sales_invoice_id = ?", invoice.ID).Count(&payments).Error; err != nil {
			return err
		}
		if payments > 0 {
			return invalidState("invoice", invoice.ID, "has payments", "delete")
		}
		if err := tx.Where("sales_invoice_id = ?", invoice.ID).Delete(&SalesInvoiceDetail{}).Error; err != nil {
			return err
		}
		return tx.Delete(&SalesInvoice{}, invoice.ID).Error
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "SalesInvoice", "DeleteInvoice", "delete invoice", id, err)
		}
		return nil, err
	}
	return invoice, nil
}

func UpdateInvoiceBillingStatus(ctx context.Context, id int, status BillingStatus) (*SalesInvoice, error) {
	if !status.IsValid() {
		return nil, newValidationError("billing_status", "invalid billing status")
	}
	var invoice *SalesInvoice
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var err error
		invoice, err = lockInvoice(tx, id)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusActive {
			return invalidState("invoice", invoice.ID, string(invoice.Status), "change billing status of")
		}
		if err := tx.Model(&SalesInvoice{}).Where("id = ?", invoice.ID).Update("billing_status", status).Error; err != nil {
			return err
		}
		invoice.BillingStatus = status
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "SalesInvoice", "UpdateInvoiceBillingStatus", "update billing status", id, err)
		}
		return nil, err
	}
	return invoice, nil
}

// DispatchInvoice ships an active invoice. Finished goods leave stock here, drawn from the
// oldest available batches, and the batches used are recorded per line. An invoice is
// dispatched at most once.
func DispatchInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	release, err := utils.EntityLock(ctx, "sales_invoice", id, "SalesInvoice", "DispatchInvoice")
	if err != nil {
		return nil, err
	}
	defer release()

	var invoice *SalesInvoice
	err = runInTx(ctx, func(tx *gorm.DB) error {
		invoice, err = lockInvoice(tx, id)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusActive {
			return invalidState("invoice", invoice.ID, string(invoice.Status), "dispatch")
		}
		if invoice.DispatchedAt != nil {
			return invalidState("invoice", invoice.ID, "dispatched", "dispatch")
		}

		details := make([]SalesInvoiceDetail, len(invoice.Details))
		copy(details, invoice.Details)
		sort.Slice(details, func(i, j int) bool { return details[i].ProductId < details[j].ProductId })

		ref := stockRef{Type: stockRefSalesInvoice, Id: invoice.ID, Notes: invoice.InvoiceNumber, Actor: utils.ActorFromContext(ctx)}
		allocations := make([]InvoiceBatchAllocation, 0, len(details))
		for _, d := range details {
			product, err := lockProduct(tx, d.ProductId)
			if err != nil {
				return err
			}
			drawn, err := consumeFinishedGoods(tx, product, d.Quantity, StockMovementReasonInvoiceDispatch, ref)
			if err != nil {
				return err
			}
			for _, a := range drawn {
				allocations = append(allocations, InvoiceBatchAllocation{
					SalesInvoiceId:       invoice.ID,
					SalesInvoiceDetailId: d.ID,
					ProductId:            d.ProductId,
					BatchId:              a.BatchId,
					BatchNumber:          a.BatchNumber,
					Quantity:             a.Quantity,
				})
			}
		}
		if len(allocations) > 0 {
			if err := tx.Create(&allocations).Error; err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := tx.Model(&SalesInvoice{}).Where("id = ?", invoice.ID).Update("dispatched_at", now).Error; err != nil {
			return err
		}
		invoice.DispatchedAt = &now
		invoice.Allocations = allocations
		return PublishWorkflowEvent(ctx, tx, invoice.ID, WorkflowReferenceSalesInvoice, WorkflowActionDispatched, invoice)
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "SalesInvoice", "DispatchInvoice", "dispatch invoice", id, err)
		}
		return nil, err
	}
	return invoice, nil
}

func GetInvoice(ctx context.Context, id int) (*SalesInvoice, error) {
	return utils.FetchModel[SalesInvoice](ctx, id, "Details", "Allocations")
}

func ListInvoices(ctx context.Context, filter InvoiceFilter) ([]*SalesInvoice, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	if filter.StoreId != nil && *filter.StoreId > 0 {
		dbCtx = dbCtx.Where("store_id = ?", *filter.StoreId)
	}
	if filter.SalesOrderId != nil && *filter.SalesOrderId > 0 {
		dbCtx = dbCtx.Where("sales_order_id = ?", *filter.SalesOrderId)
	}
	if filter.Status != nil {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		dbCtx = dbCtx.Where("payment_status = ?", *filter.PaymentStatus)
	}
	var results []*SalesInvoice
	if err := dbCtx.Preload("Details").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
