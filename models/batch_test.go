package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/consumables_backend/models"
)

func TestConsumeFinishedGoodsDepletesBatches(t *testing.T) {
	ctx := setupTestDB(t)
	product := stockedProduct(t, ctx, "JAM", "80", "12")
	first := produce(t, ctx, product.ID, "4", date(2026, 1, 5))
	second := produce(t, ctx, product.ID, "4", date(2026, 1, 6))

	allocations, err := models.ConsumeFinishedGoods(ctx, &models.NewFinishedGoodsConsumption{
		ProductId: product.ID,
		Quantity:  dec("4"),
		Reason:    "trade samples",
	})
	if err != nil {
		t.Fatalf("ConsumeFinishedGoods: %v", err)
	}
	if len(allocations) != 1 || allocations[0].BatchId != first.ID {
		t.Fatalf("allocations = %+v", allocations)
	}

	b, err := models.GetBatch(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if b.Status != models.BatchStatusDepleted || !b.QuantityRemaining.IsZero() {
		t.Fatalf("first batch = %s remaining %s", b.Status, b.QuantityRemaining)
	}
	assertDecimal(t, "product stock", getProduct(t, ctx, product.ID).StockQty, "4")

	if _, err := models.ConsumeFinishedGoods(ctx, &models.NewFinishedGoodsConsumption{
		ProductId: product.ID,
		Quantity:  dec("5"),
		Reason:    "write-off",
	}); !errors.Is(err, models.ErrNegativeStock) {
		t.Fatalf("over-consume: err = %v, want ErrNegativeStock", err)
	}
	b, err = models.GetBatch(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	assertDecimal(t, "second batch remaining", b.QuantityRemaining, "4")

	depleted := models.BatchStatusDepleted
	results, err := models.ListBatchesByProduct(ctx, product.ID, &depleted)
	if err != nil {
		t.Fatalf("ListBatchesByProduct: %v", err)
	}
	if len(results) != 1 || results[0].ID != first.ID {
		t.Fatalf("depleted batches = %+v", results)
	}
}

func TestUpdateBatchStatusTransitions(t *testing.T) {
	ctx := setupTestDB(t)
	product := stockedProduct(t, ctx, "JAM", "80", "12")
	batch := produce(t, ctx, product.ID, "10", date(2026, 1, 5))
	other := produce(t, ctx, product.ID, "5", date(2026, 1, 6))

	expired, err := models.UpdateBatchStatus(ctx, batch.ID, &models.NewBatchStatus{Status: models.BatchStatusExpired, Reason: "mould"})
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired.Status != models.BatchStatusExpired || expired.StatusReason != "mould" {
		t.Fatalf("expired batch = %+v", expired)
	}
	assertDecimal(t, "remaining kept for traceability", expired.QuantityRemaining, "10")
	assertDecimal(t, "product stock", getProduct(t, ctx, product.ID).StockQty, "5")

	if _, err := models.UpdateBatchStatus(ctx, batch.ID, &models.NewBatchStatus{Status: models.BatchStatusExpired}); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expire twice: err = %v, want ErrInvalidState", err)
	}
	if _, err := models.UpdateBatchStatus(ctx, batch.ID, &models.NewBatchStatus{Status: models.BatchStatusAvailable}); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("revive: err = %v, want ErrInvalidState", err)
	}

	recalled, err := models.UpdateBatchStatus(ctx, batch.ID, &models.NewBatchStatus{Status: models.BatchStatusRecalled, Reason: "supplier recall"})
	if err != nil {
		t.Fatalf("recall expired: %v", err)
	}
	if recalled.Status != models.BatchStatusRecalled {
		t.Fatalf("status = %s, want recalled", recalled.Status)
	}
	assertDecimal(t, "stock not decremented twice", getProduct(t, ctx, product.ID).StockQty, "5")

	if _, err := models.UpdateBatchStatus(ctx, other.ID, &models.NewBatchStatus{Status: models.BatchStatusRecalled}); err != nil {
		t.Fatalf("recall available: %v", err)
	}
	assertDecimal(t, "product stock", getProduct(t, ctx, product.ID).StockQty, "0")

	if _, err := models.UpdateBatchStatus(ctx, batch.ID+100, &models.NewBatchStatus{Status: models.BatchStatusExpired}); !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("unknown batch: err = %v, want ErrRecordNotFound", err)
	}

	results, err := models.ListBatchesByStatus(ctx, models.BatchStatusRecalled)
	if err != nil {
		t.Fatalf("ListBatchesByStatus: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("recalled batches = %d, want 2", len(results))
	}
}

func TestExpireBatches(t *testing.T) {
	ctx := setupTestDB(t)
	product := createProduct(t, ctx, "MILK", "30", "5", 10)
	material := createMaterial(t, ctx, "Milk powder", "1000", "0")
	setRecipe(t, ctx, product.ID, models.NewRecipeLine{RawMaterialId: material.ID, QuantityRequired: dec("1")})

	old := produce(t, ctx, product.ID, "3", date(2026, 1, 1))
	fresh := produce(t, ctx, product.ID, "7", date(2026, 1, 20))

	count, err := models.ExpireBatches(ctx, date(2026, 1, 15))
	if err != nil {
		t.Fatalf("ExpireBatches: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired %d batches, want 1", count)
	}
	b, err := models.GetBatch(ctx, old.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if b.Status != models.BatchStatusExpired {
		t.Fatalf("old batch status = %s", b.Status)
	}
	b, err = models.GetBatch(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if b.Status != models.BatchStatusAvailable {
		t.Fatalf("fresh batch status = %s", b.Status)
	}
	assertDecimal(t, "product stock", getProduct(t, ctx, product.ID).StockQty, "7")

	count, err = models.ExpireBatches(ctx, date(2026, 1, 15))
	if err != nil {
		t.Fatalf("ExpireBatches again: %v", err)
	}
	if count != 0 {
		t.Fatalf("second run expired %d batches", count)
	}
}

func TestBatchStockMatchesAvailableBatches(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	product := stockedProduct(t, ctx, "TEA", "50", "5")
	produce(t, ctx, product.ID, "12", date(2026, 2, 1))
	produce(t, ctx, product.ID, "8", date(2026, 2, 2))
	third := produce(t, ctx, product.ID, "5", date(2026, 2, 3))

	invoice, err := models.CreateAdHocInvoice(ctx, &models.NewAdHocInvoice{
		StoreId: store.ID,
		Items:   []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("15")}},
	})
	if err != nil {
		t.Fatalf("CreateAdHocInvoice: %v", err)
	}
	if _, err := models.DispatchInvoice(ctx, invoice.ID); err != nil {
		t.Fatalf("DispatchInvoice: %v", err)
	}
	if _, err := models.UpdateBatchStatus(ctx, third.ID, &models.NewBatchStatus{Status: models.BatchStatusRecalled}); err != nil {
		t.Fatalf("UpdateBatchStatus: %v", err)
	}

	available := models.BatchStatusAvailable
	batches, err := models.ListBatchesByProduct(ctx, product.ID, &available)
	if err != nil {
		t.Fatalf("ListBatchesByProduct: %v", err)
	}
	sum := dec("0")
	for _, b := range batches {
		sum = sum.Add(b.QuantityRemaining)
	}
	assertDecimal(t, "available batches", sum, "5")
	assertDecimal(t, "product stock", getProduct(t, ctx, product.ID).StockQty, "5")

	all, err := models.ListBatchesByProduct(ctx, product.ID, nil)
	if err != nil {
		t.Fatalf("ListBatchesByProduct: %v", err)
	}
	for _, b := range all {
		if (b.Status == models.BatchStatusDepleted) != b.QuantityRemaining.IsZero() {
			t.Fatalf("batch %s is %s with %s remaining", b.BatchNumber, b.Status, b.QuantityRemaining)
		}
	}
}
