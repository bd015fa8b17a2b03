package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// BatchTraceabilityRow is one batch, or one dispatch drawn from it.
type BatchTraceabilityRow struct {
	BatchId           int             `json:"batch_id"`
	BatchNumber       string          `json:"batch_number"`
	ProductCode       string          `json:"product_code"`
	ProductName       string          `json:"product_name"`
	ProductionOrder   string          `json:"production_order"`
	ProductionDate    time.Time       `json:"production_date"`
	ExpiryDate        *time.Time      `json:"expiry_date"`
	Status            string          `json:"status"`
	QuantityProduced  decimal.Decimal `json:"quantity_produced"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	InvoiceNumber     string          `json:"invoice_number"`
	StoreName         string          `json:"store_name"`
	DispatchedAt      *time.Time      `json:"dispatched_at"`
	QuantityShipped   decimal.Decimal `json:"quantity_shipped"`
}

var batchTraceabilityHeadings = []string{
	"Batch", "Product Code", "Product", "Production Order", "Production Date", "Expiry Date",
	"Status", "Produced", "Remaining", "Invoice", "Store", "Dispatched At", "Shipped",
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func (r BatchTraceabilityRow) GetCellValues() []interface{} {
	shipped := ""
	if r.InvoiceNumber != "" {
		shipped = r.QuantityShipped.String()
	}
	return []interface{}{
		r.BatchNumber, r.ProductCode, r.ProductName, r.ProductionOrder,
		r.ProductionDate.Format("2006-01-02"), formatDate(r.ExpiryDate), r.Status,
		r.QuantityProduced.String(), r.QuantityRemaining.String(),
		r.InvoiceNumber, r.StoreName, formatDate(r.DispatchedAt), shipped,
	}
}

// GetBatchTraceabilityReport lists every batch of productId (all products when nil) with
// the invoices it was dispatched against, oldest batch first.
func GetBatchTraceabilityReport(ctx context.Context, productId *int) ([]*BatchTraceabilityRow, error) {
	db := config.GetDB().WithContext(ctx)

	var batches []models.Batch
	q := db.Order("production_date ASC, id ASC")
	if productId != nil && *productId > 0 {
		q = q.Where("product_id = ?", *productId)
	}
	if err := q.Find(&batches).Error; err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return []*BatchTraceabilityRow{}, nil
	}

	batchIds := make([]int, 0, len(batches))
	productIds := make([]int, 0, len(batches))
	orderIds := make([]int, 0, len(batches))
	for _, b := range batches {
		batchIds = append(batchIds, b.ID)
		productIds = append(productIds, b.ProductId)
		orderIds = append(orderIds, b.ProductionOrderId)
	}

	var products []models.Product
	if err := db.Where("id IN ?", productIds).Find(&products).Error; err != nil {
		return nil, err
	}
	productById := make(map[int]models.Product, len(products))
	for _, p := range products {
		productById[p.ID] = p
	}

	var orders []models.ProductionOrder
	if err := db.Select("id", "order_number").Where("id IN ?", orderIds).Find(&orders).Error; err != nil {
		return nil, err
	}
	orderNumber := make(map[int]string, len(orders))
	for _, o := range orders {
		orderNumber[o.ID] = o.OrderNumber
	}

	var allocations []models.InvoiceBatchAllocation
	if err := db.Where("batch_id IN ?", batchIds).Order("id ASC").Find(&allocations).Error; err != nil {
		return nil, err
	}
	invoiceIds := make([]int, 0, len(allocations))
	byBatch := make(map[int][]models.InvoiceBatchAllocation, len(batches))
	for _, a := range allocations {
		byBatch[a.BatchId] = append(byBatch[a.BatchId], a)
		invoiceIds = append(invoiceIds, a.SalesInvoiceId)
	}

	invoiceById := make(map[int]models.SalesInvoice)
	storeName := make(map[int]string)
	if len(invoiceIds) > 0 {
		var invoices []models.SalesInvoice
		if err := db.Where("id IN ?", invoiceIds).Find(&invoices).Error; err != nil {
			return nil, err
		}
		storeIds := make([]int, 0, len(invoices))
		for _, inv := range invoices {
			invoiceById[inv.ID] = inv
			storeIds = append(storeIds, inv.StoreId)
		}
		var stores []models.Store
		if err := db.Where("id IN ?", storeIds).Find(&stores).Error; err != nil {
			return nil, err
		}
		for _, s := range stores {
			storeName[s.ID] = s.Name
		}
	}

	rows := make([]*BatchTraceabilityRow, 0, len(batches)+len(allocations))
	for _, b := range batches {
		p := productById[b.ProductId]
		base := BatchTraceabilityRow{
			BatchId:           b.ID,
			BatchNumber:       b.BatchNumber,
			ProductCode:       p.Code,
			ProductName:       p.Name,
			ProductionOrder:   orderNumber[b.ProductionOrderId],
			ProductionDate:    b.ProductionDate,
			ExpiryDate:        b.ExpiryDate,
			Status:            string(b.Status),
			QuantityProduced:  b.QuantityProduced,
			QuantityRemaining: b.QuantityRemaining,
		}
		allocs := byBatch[b.ID]
		if len(allocs) == 0 {
			row := base
			rows = append(rows, &row)
			continue
		}
		for _, a := range allocs {
			row := base
			inv := invoiceById[a.SalesInvoiceId]
			row.InvoiceNumber = inv.InvoiceNumber
			row.StoreName = storeName[inv.StoreId]
			row.DispatchedAt = inv.DispatchedAt
			row.QuantityShipped = a.Quantity
			rows = append(rows, &row)
		}
	}
	return rows, nil
}

// WriteBatchTraceabilityExcel renders rows as a single-sheet xlsx workbook.
func WriteBatchTraceabilityExcel(w io.Writer, rows []*BatchTraceabilityRow) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Batches"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	for i, h := range batchTraceabilityHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	for r, row := range rows {
		for c, value := range row.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	return f.Write(w)
}
