package models_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mmdatafocus/consumables_backend/models"
)

func TestCreateInvoiceFromOrderInvoicesEverything(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "20")
	product := createProduct(t, ctx, "BIS200", "100", "18", 180)
	order := approvedOrder(t, ctx, store.ID, orderLine(product.ID, "10"))

	invoice, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{SalesOrderId: order.ID})
	if err != nil {
		t.Fatalf("CreateInvoiceFromOrder: %v", err)
	}
	if !strings.HasPrefix(invoice.InvoiceNumber, "INV-") {
		t.Fatalf("invoice number = %q", invoice.InvoiceNumber)
	}
	if invoice.Status != models.InvoiceStatusActive || invoice.PaymentStatus != models.PaymentStatusPending ||
		invoice.BillingStatus != models.BillingStatusPending {
		t.Fatalf("invoice statuses = %s/%s/%s", invoice.Status, invoice.PaymentStatus, invoice.BillingStatus)
	}
	if invoice.IsIgst {
		t.Fatalf("store in home state invoiced under IGST")
	}
	assertDecimal(t, "subtotal", invoice.Subtotal, "1200")
	assertDecimal(t, "cgst", invoice.Cgst, "108")
	assertDecimal(t, "sgst", invoice.Sgst, "108")
	assertDecimal(t, "total_amount", invoice.TotalAmount, "1416")
	assertDecimal(t, "details[0].margin_percentage", invoice.Details[0].MarginPercentage, "20")

	stored, err := models.GetSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if stored.Status != models.SalesOrderStatusInvoiced {
		t.Fatalf("order status = %s, want invoiced", stored.Status)
	}
	assertDecimal(t, "invoiced_qty", stored.Details[0].InvoicedQty, "10")
}

func TestCreateInvoiceFromOrderPartially(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "10")
	product := createProduct(t, ctx, "P1", "50", "5", 0)
	order := approvedOrder(t, ctx, store.ID, orderLine(product.ID, "10"))

	first, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{
		SalesOrderId: order.ID,
		Items:        []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("4"), MarginPercentage: decPtr("0")}},
	})
	if err != nil {
		t.Fatalf("first invoice: %v", err)
	}
	assertDecimal(t, "unit_price", first.Details[0].UnitPrice, "50")

	stored, err := models.GetSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if stored.Status != models.SalesOrderStatusApproved {
		t.Fatalf("partially invoiced order status = %s, want approved", stored.Status)
	}
	assertDecimal(t, "remaining", stored.Details[0].RemainingQty(), "6")

	if _, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{
		SalesOrderId: order.ID,
		Items:        []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("7")}},
	}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("over-invoice: err = %v, want ErrValidation", err)
	}

	if _, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{SalesOrderId: order.ID}); err != nil {
		t.Fatalf("invoice remainder: %v", err)
	}
	stored, err = models.GetSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if stored.Status != models.SalesOrderStatusInvoiced {
		t.Fatalf("order status = %s, want invoiced", stored.Status)
	}

	if _, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{SalesOrderId: order.ID}); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("invoice invoiced order: err = %v, want ErrInvalidState", err)
	}

	invoices, err := models.ListInvoices(ctx, models.InvoiceFilter{SalesOrderId: &order.ID})
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(invoices) != 2 {
		t.Fatalf("invoices for order = %d, want 2", len(invoices))
	}
}

func TestCreateInvoiceFromOrderRequiresApproval(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := createProduct(t, ctx, "P1", "50", "5", 0)
	order, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{
		StoreId: store.ID,
		Details: []models.NewSalesOrderDetail{orderLine(product.ID, "1")},
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	if _, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{SalesOrderId: order.ID}); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("invoice draft order: err = %v, want ErrInvalidState", err)
	}
	if _, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{SalesOrderId: order.ID + 100}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("invoice unknown order: err = %v, want ErrValidation", err)
	}
}

func TestInvoiceIgstFollowsStoreState(t *testing.T) {
	t.Setenv("COMPANY_STATE_CODE", "KA")
	ctx := setupTestDB(t)
	store, err := models.CreateStore(ctx, &models.NewStore{Name: "Far Away", StateCode: "tn", MarginPercentage: dec("20")})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	product := createProduct(t, ctx, "BIS200", "100", "18", 0)

	invoice, err := models.CreateAdHocInvoice(ctx, &models.NewAdHocInvoice{
		StoreId: store.ID,
		Items:   []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("10")}},
	})
	if err != nil {
		t.Fatalf("CreateAdHocInvoice: %v", err)
	}
	if !invoice.IsIgst {
		t.Fatalf("inter-state store not invoiced under IGST")
	}
	assertDecimal(t, "igst", invoice.Igst, "216")
	assertDecimal(t, "cgst", invoice.Cgst, "0")
	assertDecimal(t, "total_amount", invoice.TotalAmount, "1416")
	if invoice.SalesOrderId != nil {
		t.Fatalf("ad hoc invoice references order %d", *invoice.SalesOrderId)
	}

	intra := false
	invoice, err = models.CreateAdHocInvoice(ctx, &models.NewAdHocInvoice{
		StoreId: store.ID,
		IsIgst:  &intra,
		Items:   []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("10")}},
	})
	if err != nil {
		t.Fatalf("CreateAdHocInvoice: %v", err)
	}
	if invoice.IsIgst {
		t.Fatalf("explicit is_igst=false ignored")
	}
}

func TestCancelAndDeleteInvoice(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := createProduct(t, ctx, "P1", "50", "5", 0)
	order := approvedOrder(t, ctx, store.ID, orderLine(product.ID, "2"))

	invoice, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{SalesOrderId: order.ID})
	if err != nil {
		t.Fatalf("CreateInvoiceFromOrder: %v", err)
	}
	if _, err := models.DeleteInvoice(ctx, invoice.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("delete active: err = %v, want ErrInvalidState", err)
	}

	cancelled, err := models.CancelInvoice(ctx, invoice.ID, "wrong store")
	if err != nil {
		t.Fatalf("CancelInvoice: %v", err)
	}
	if cancelled.Status != models.InvoiceStatusCancelled || cancelled.CancelReason != "wrong store" {
		t.Fatalf("cancelled invoice = %+v", cancelled)
	}
	if cancelled.SalesOrderId == nil || *cancelled.SalesOrderId != order.ID {
		t.Fatalf("cancelled invoice lost its order reference")
	}
	if _, err := models.CancelInvoice(ctx, invoice.ID, "again"); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("cancel twice: err = %v, want ErrInvalidState", err)
	}
	if _, err := models.RecordInvoicePayment(ctx, invoice.ID, &models.NewInvoicePayment{
		Amount: dec("10"),
		Method: models.PaymentMethodCash,
	}); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("pay cancelled: err = %v, want ErrInvalidState", err)
	}

	if _, err := models.DeleteInvoice(ctx, invoice.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}
	if _, err := models.GetInvoice(ctx, invoice.ID); !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("get deleted: err = %v, want ErrRecordNotFound", err)
	}
}

func TestCancelPaidInvoiceWhenBlocked(t *testing.T) {
	t.Setenv("BLOCK_CANCEL_PAID_INVOICE", "true")
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := createProduct(t, ctx, "P1", "50", "5", 0)

	invoice, err := models.CreateAdHocInvoice(ctx, &models.NewAdHocInvoice{
		StoreId: store.ID,
		Items:   []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("1")}},
	})
	if err != nil {
		t.Fatalf("CreateAdHocInvoice: %v", err)
	}
	if _, err := models.RecordInvoicePayment(ctx, invoice.ID, &models.NewInvoicePayment{
		Amount: dec("20"),
		Method: models.PaymentMethodUpi,
	}); err != nil {
		t.Fatalf("RecordInvoicePayment: %v", err)
	}
	if _, err := models.CancelInvoice(ctx, invoice.ID, "returned"); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("cancel paid: err = %v, want ErrInvalidState", err)
	}
}

func TestDispatchInvoiceDrawsOldestBatchFirst(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := stockedProduct(t, ctx, "BIS200", "100", "18")
	older := produce(t, ctx, product.ID, "6", date(2026, 3, 1))
	newer := produce(t, ctx, product.ID, "10", date(2026, 3, 5))

	invoice, err := models.CreateAdHocInvoice(ctx, &models.NewAdHocInvoice{
		StoreId: store.ID,
		Items:   []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("8")}},
	})
	if err != nil {
		t.Fatalf("CreateAdHocInvoice: %v", err)
	}
	assertDecimal(t, "stock before dispatch", getProduct(t, ctx, product.ID).StockQty, "16")

	dispatched, err := models.DispatchInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("DispatchInvoice: %v", err)
	}
	if dispatched.DispatchedAt == nil {
		t.Fatalf("dispatched_at not set")
	}
	if len(dispatched.Allocations) != 2 {
		t.Fatalf("allocations = %+v, want two", dispatched.Allocations)
	}
	if dispatched.Allocations[0].BatchId != older.ID {
		t.Fatalf("first allocation from batch %d, want %d", dispatched.Allocations[0].BatchId, older.ID)
	}
	assertDecimal(t, "allocations[0]", dispatched.Allocations[0].Quantity, "6")
	assertDecimal(t, "allocations[1]", dispatched.Allocations[1].Quantity, "2")

	b, err := models.GetBatch(ctx, older.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if b.Status != models.BatchStatusDepleted || !b.QuantityRemaining.IsZero() {
		t.Fatalf("older batch = %s remaining %s, want depleted 0", b.Status, b.QuantityRemaining)
	}
	b, err = models.GetBatch(ctx, newer.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if b.Status != models.BatchStatusAvailable {
		t.Fatalf("newer batch status = %s", b.Status)
	}
	assertDecimal(t, "newer remaining", b.QuantityRemaining, "8")
	assertDecimal(t, "stock after dispatch", getProduct(t, ctx, product.ID).StockQty, "8")

	stored, err := models.GetInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if len(stored.Allocations) != 2 {
		t.Fatalf("stored allocations = %d", len(stored.Allocations))
	}

	if _, err := models.DispatchInvoice(ctx, invoice.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("dispatch twice: err = %v, want ErrInvalidState", err)
	}
	if _, err := models.CancelInvoice(ctx, invoice.ID, "late"); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("cancel dispatched: err = %v, want ErrInvalidState", err)
	}

	movements, err := models.ListStockMovementsByReference(ctx, "sales_invoice", invoice.ID)
	if err != nil {
		t.Fatalf("ListStockMovementsByReference: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("dispatch movements = %d, want 2", len(movements))
	}
}

func TestDispatchInvoiceWithoutStock(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := stockedProduct(t, ctx, "P1", "10", "5")
	produce(t, ctx, product.ID, "3", date(2026, 3, 1))

	invoice, err := models.CreateAdHocInvoice(ctx, &models.NewAdHocInvoice{
		StoreId: store.ID,
		Items:   []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("5")}},
	})
	if err != nil {
		t.Fatalf("CreateAdHocInvoice: %v", err)
	}
	_, err = models.DispatchInvoice(ctx, invoice.ID)
	var nse *models.NegativeStockError
	if !errors.As(err, &nse) {
		t.Fatalf("err = %v, want NegativeStockError", err)
	}
	assertDecimal(t, "on_hand", nse.OnHand, "3")
	assertDecimal(t, "stock unchanged", getProduct(t, ctx, product.ID).StockQty, "3")

	stored, err := models.GetInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if stored.DispatchedAt != nil {
		t.Fatalf("failed dispatch left dispatched_at set")
	}
}

func TestUpdateInvoiceBillingStatus(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := createProduct(t, ctx, "P1", "10", "5", 0)
	invoice, err := models.CreateAdHocInvoice(ctx, &models.NewAdHocInvoice{
		StoreId: store.ID,
		Items:   []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("1")}},
	})
	if err != nil {
		t.Fatalf("CreateAdHocInvoice: %v", err)
	}
	updated, err := models.UpdateInvoiceBillingStatus(ctx, invoice.ID, models.BillingStatusBilled)
	if err != nil {
		t.Fatalf("UpdateInvoiceBillingStatus: %v", err)
	}
	if updated.BillingStatus != models.BillingStatusBilled {
		t.Fatalf("billing status = %s", updated.BillingStatus)
	}
	if _, err := models.UpdateInvoiceBillingStatus(ctx, invoice.ID, models.BillingStatus("sent")); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("bogus billing status: err = %v, want ErrValidation", err)
	}
}

func TestInvoiceStoresFullGstScale(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := createProduct(t, ctx, "SACHET", "1.01", "0.25", 90)
	order := approvedOrder(t, ctx, store.ID, orderLine(product.ID, "1"))

	created, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{SalesOrderId: order.ID})
	if err != nil {
		t.Fatalf("CreateInvoiceFromOrder: %v", err)
	}
	invoice, err := models.GetInvoice(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	assertDecimal(t, "cgst", invoice.Cgst, "0.0012625")
	assertDecimal(t, "sgst", invoice.Sgst, "0.0012625")
	assertDecimal(t, "round_off", invoice.RoundOff, "-0.012525")
	assertDecimal(t, "total_amount", invoice.TotalAmount, "1")
	assertDecimal(t, "details[0].cgst_amount", invoice.Details[0].CgstAmount, "0.0012625")

	sum := invoice.Subtotal.Add(invoice.Cgst).Add(invoice.Sgst).Add(invoice.Igst).Add(invoice.RoundOff)
	if !sum.Equal(invoice.TotalAmount) {
		t.Fatalf("stored components add up to %s, total is %s", sum, invoice.TotalAmount)
	}
}
