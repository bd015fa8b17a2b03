package models_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mmdatafocus/consumables_backend/models"
)

func TestSalesOrderLifecycle(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "20")
	product := createProduct(t, ctx, "BIS200", "100", "18", 180)

	order, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{
		StoreId: store.ID,
		Details: []models.NewSalesOrderDetail{orderLine(product.ID, "10")},
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	if order.Status != models.SalesOrderStatusDraft {
		t.Fatalf("status = %s, want draft", order.Status)
	}
	if !strings.HasPrefix(order.OrderNumber, "SO-") {
		t.Fatalf("order number = %q", order.OrderNumber)
	}
	assertDecimal(t, "details[0].mrp", order.Details[0].Mrp, "100")

	if _, err := models.ApproveSalesOrder(ctx, order.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("approve draft: err = %v, want ErrInvalidState", err)
	}

	submitted, err := models.SubmitSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("SubmitSalesOrder: %v", err)
	}
	if submitted.Status != models.SalesOrderStatusSubmitted || submitted.SubmittedAt == nil {
		t.Fatalf("submitted order = %+v", submitted)
	}

	approval, err := models.ApproveSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ApproveSalesOrder: %v", err)
	}
	if approval.Order.Status != models.SalesOrderStatusApproved {
		t.Fatalf("status = %s, want approved", approval.Order.Status)
	}

	outbox, err := models.ListOutboxStatus(ctx, models.WorkflowReferenceSalesOrder, order.ID)
	if err != nil {
		t.Fatalf("ListOutboxStatus: %v", err)
	}
	if len(outbox) != 1 || outbox[0].Action != models.WorkflowActionApproved {
		t.Fatalf("outbox after approve = %+v", outbox)
	}
	records := countRows(t, &models.WorkflowMessageRecord{})
	notes := countRows(t, &models.Notification{})

	if _, err := models.ApproveSalesOrder(ctx, order.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("second approve: err = %v, want ErrInvalidState", err)
	}
	if n := countRows(t, &models.WorkflowMessageRecord{}); n != records {
		t.Fatalf("outbox rows after second approve = %d, want %d", n, records)
	}
	if n := countRows(t, &models.Notification{}); n != notes {
		t.Fatalf("notifications after second approve = %d, want %d", n, notes)
	}
	if _, err := models.UpdateSalesOrder(ctx, order.ID, &models.NewSalesOrder{
		StoreId: store.ID,
		Details: []models.NewSalesOrderDetail{orderLine(product.ID, "5")},
	}); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("update approved: err = %v, want ErrInvalidState", err)
	}

	stored, err := models.GetSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if stored.Status != models.SalesOrderStatusApproved || stored.ApprovedAt == nil {
		t.Fatalf("stored order = %+v", stored)
	}
}

func TestApproveSalesOrderWarnsOnShortage(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "10")
	stocked := stockedProduct(t, ctx, "JAM", "80", "12")
	produce(t, ctx, stocked.ID, "5", date(2026, 1, 10))
	plenty := stockedProduct(t, ctx, "TEA", "50", "5")
	produce(t, ctx, plenty.ID, "100", date(2026, 1, 10))

	approval := func() *models.SalesOrderApproval {
		order, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{
			StoreId: store.ID,
			Details: []models.NewSalesOrderDetail{orderLine(stocked.ID, "8"), orderLine(plenty.ID, "10")},
		})
		if err != nil {
			t.Fatalf("CreateSalesOrder: %v", err)
		}
		if _, err := models.SubmitSalesOrder(ctx, order.ID); err != nil {
			t.Fatalf("SubmitSalesOrder: %v", err)
		}
		a, err := models.ApproveSalesOrder(ctx, order.ID)
		if err != nil {
			t.Fatalf("ApproveSalesOrder: %v", err)
		}
		return a
	}()

	if approval.Order.Status != models.SalesOrderStatusApproved {
		t.Fatalf("shortage blocked approval: status = %s", approval.Order.Status)
	}
	if len(approval.Warnings) != 1 {
		t.Fatalf("warnings = %+v, want one", approval.Warnings)
	}
	w := approval.Warnings[0]
	if w.ProductId != stocked.ID {
		t.Fatalf("warning for product %d, want %d", w.ProductId, stocked.ID)
	}
	assertDecimal(t, "available", w.Available, "5")
	assertDecimal(t, "shortage", w.Shortage, "3")

	records, err := models.ListOutboxStatus(ctx, models.WorkflowReferenceSalesOrder, approval.Order.ID)
	if err != nil {
		t.Fatalf("ListOutboxStatus: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("outbox records = %d, want 1", len(records))
	}
}

func TestCreateSalesOrderValidation(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := createProduct(t, ctx, "P1", "10", "5", 0)
	inactive := createProduct(t, ctx, "P2", "10", "5", 0)
	if _, err := models.ToggleActiveProduct(ctx, inactive.ID, false); err != nil {
		t.Fatalf("ToggleActiveProduct: %v", err)
	}

	tests := []struct {
		name  string
		input models.NewSalesOrder
	}{
		{name: "no lines", input: models.NewSalesOrder{StoreId: store.ID}},
		{name: "unknown store", input: models.NewSalesOrder{StoreId: store.ID + 100, Details: []models.NewSalesOrderDetail{orderLine(product.ID, "1")}}},
		{name: "duplicate product", input: models.NewSalesOrder{StoreId: store.ID, Details: []models.NewSalesOrderDetail{orderLine(product.ID, "1"), orderLine(product.ID, "2")}}},
		{name: "zero quantity", input: models.NewSalesOrder{StoreId: store.ID, Details: []models.NewSalesOrderDetail{orderLine(product.ID, "0")}}},
		{name: "unknown product", input: models.NewSalesOrder{StoreId: store.ID, Details: []models.NewSalesOrderDetail{orderLine(product.ID+100, "1")}}},
		{name: "inactive product", input: models.NewSalesOrder{StoreId: store.ID, Details: []models.NewSalesOrderDetail{orderLine(inactive.ID, "1")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			if _, err := models.CreateSalesOrder(ctx, &input); !errors.Is(err, models.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestUpdateSalesOrderReplacesLines(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	first := createProduct(t, ctx, "A1", "10", "5", 0)
	second := createProduct(t, ctx, "A2", "20", "5", 0)

	order, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{
		StoreId: store.ID,
		Details: []models.NewSalesOrderDetail{orderLine(first.ID, "1")},
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	if _, err := models.SubmitSalesOrder(ctx, order.ID); err != nil {
		t.Fatalf("SubmitSalesOrder: %v", err)
	}
	if _, err := models.UpdateSalesOrder(ctx, order.ID, &models.NewSalesOrder{
		StoreId: store.ID,
		Notes:   "revised",
		Details: []models.NewSalesOrderDetail{orderLine(second.ID, "4")},
	}); err != nil {
		t.Fatalf("UpdateSalesOrder: %v", err)
	}

	stored, err := models.GetSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	if stored.Status != models.SalesOrderStatusSubmitted {
		t.Fatalf("status = %s, want submitted", stored.Status)
	}
	if len(stored.Details) != 1 || stored.Details[0].ProductId != second.ID {
		t.Fatalf("details = %+v", stored.Details)
	}
	assertDecimal(t, "quantity", stored.Details[0].Quantity, "4")
	if stored.Notes != "revised" {
		t.Fatalf("notes = %q", stored.Notes)
	}
}

func TestCancelAndDeleteSalesOrder(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := createProduct(t, ctx, "C1", "10", "5", 0)

	order, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{
		StoreId: store.ID,
		Details: []models.NewSalesOrderDetail{orderLine(product.ID, "3")},
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	if _, err := models.SubmitSalesOrder(ctx, order.ID); err != nil {
		t.Fatalf("SubmitSalesOrder: %v", err)
	}
	if _, err := models.DeleteSalesOrder(ctx, order.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("delete submitted: err = %v, want ErrInvalidState", err)
	}
	cancelled, err := models.CancelSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelSalesOrder: %v", err)
	}
	if cancelled.Status != models.SalesOrderStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("cancelled order = %+v", cancelled)
	}
	if _, err := models.SubmitSalesOrder(ctx, order.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("submit cancelled: err = %v, want ErrInvalidState", err)
	}
	if _, err := models.DeleteSalesOrder(ctx, order.ID); err != nil {
		t.Fatalf("DeleteSalesOrder: %v", err)
	}
	if _, err := models.GetSalesOrder(ctx, order.ID); !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("get deleted: err = %v, want ErrRecordNotFound", err)
	}
}

func TestCancelSalesOrderWithInvoiceFails(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := createProduct(t, ctx, "C2", "10", "5", 0)
	order := approvedOrder(t, ctx, store.ID, orderLine(product.ID, "10"))

	if _, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{
		SalesOrderId: order.ID,
		Items:        []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("4")}},
	}); err != nil {
		t.Fatalf("CreateInvoiceFromOrder: %v", err)
	}
	if _, err := models.CancelSalesOrder(ctx, order.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("cancel invoiced order: err = %v, want ErrInvalidState", err)
	}
}

func TestListSalesOrdersFilters(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	other := createStore(t, ctx, "0")
	product := createProduct(t, ctx, "L1", "10", "5", 0)

	approvedOrder(t, ctx, store.ID, orderLine(product.ID, "1"))
	if _, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{
		StoreId: other.ID,
		Details: []models.NewSalesOrderDetail{orderLine(product.ID, "1")},
	}); err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}

	approved := models.SalesOrderStatusApproved
	results, err := models.ListSalesOrders(ctx, nil, &approved)
	if err != nil {
		t.Fatalf("ListSalesOrders: %v", err)
	}
	if len(results) != 1 || results[0].StoreId != store.ID {
		t.Fatalf("approved orders = %+v", results)
	}

	results, err = models.ListSalesOrders(ctx, &other.ID, nil)
	if err != nil {
		t.Fatalf("ListSalesOrders: %v", err)
	}
	if len(results) != 1 || results[0].Status != models.SalesOrderStatusDraft {
		t.Fatalf("orders of other store = %+v", results)
	}

	bogus := models.SalesOrderStatus("shipped")
	if _, err := models.ListSalesOrders(ctx, nil, &bogus); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("bogus status: err = %v, want ErrValidation", err)
	}
}
