package models

import (
	"context"

	"github.com/mmdatafocus/consumables_backend/config"
)

func MigrateTable(ctx context.Context) error {
	db := config.GetDB()

	err := db.WithContext(ctx).AutoMigrate(
		&Batch{},
		&IdempotencyKey{}, &InvoiceBatchAllocation{}, &InvoicePayment{},
		&Notification{},
		&Product{}, &ProductionOrder{}, &ProductionOrderMaterial{},
		&PurchaseReceipt{}, &PurchaseReceiptDetail{}, &PurchaseRequest{}, &PurchaseRequestDetail{},
		&RawMaterial{}, &RecipeLine{},
		&SalesInvoice{}, &SalesInvoiceDetail{}, &SalesOrder{}, &SalesOrderDetail{},
		&StockMovement{}, &Store{},
		&TransactionNumberSeries{},
		&Vendor{}, &VendorBill{}, &VendorBillPayment{},
		&WorkflowMessageRecord{},
	)
	if err != nil {
		return err
	}
	return SeedTransactionNumberSeries(ctx, db)
}
