package models_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/models"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBSeq int64

// setupTestDB installs a fresh in-memory database as the global connection for the
// duration of the test and returns a context carrying a test user.
func setupTestDB(t *testing.T) context.Context {
	t.Helper()
	dsn := fmt.Sprintf("file:models_test_%d?mode=memory&cache=shared&_busy_timeout=5000", atomic.AddInt64(&testDBSeq, 1))
	conn, err := gorm.Open(sqlite.Open(dsn), config.InitGormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	prev := config.GetDB()
	config.UseDB(conn)
	t.Cleanup(func() {
		config.UseDB(prev)
		_ = sqlDB.Close()
	})

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	if err := models.MigrateTable(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return ctx
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %s, want %s", field, got.String(), want)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func createStore(t *testing.T, ctx context.Context, margin string) *models.Store {
	t.Helper()
	store, err := models.CreateStore(ctx, &models.NewStore{
		Name:             "Corner Mart",
		Address:          "12 Market Road",
		MarginPercentage: dec(margin),
	})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func createProduct(t *testing.T, ctx context.Context, code string, mrp string, gst string, shelfLifeDays int) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Code:          code,
		Name:          "Product " + code,
		Mrp:           dec(mrp),
		GstRate:       dec(gst),
		HsnCode:       "1905",
		ShelfLifeDays: shelfLifeDays,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// createMaterial registers a raw material and books its opening stock.
func createMaterial(t *testing.T, ctx context.Context, name string, stock string, reorderLevel string) *models.RawMaterial {
	t.Helper()
	material, err := models.CreateRawMaterial(ctx, &models.NewRawMaterial{
		Name:         name,
		Unit:         "kg",
		ReorderLevel: dec(reorderLevel),
		CostPerUnit:  dec("10"),
	})
	if err != nil {
		t.Fatalf("create raw material: %v", err)
	}
	if dec(stock).IsPositive() {
		material, err = models.AdjustRawMaterialStock(ctx, material.ID, &models.NewStockAdjustment{
			Delta:  dec(stock),
			Reason: "opening stock",
		})
		if err != nil {
			t.Fatalf("opening stock: %v", err)
		}
	}
	return material
}

func setRecipe(t *testing.T, ctx context.Context, productId int, lines ...models.NewRecipeLine) {
	t.Helper()
	if _, err := models.SetRecipe(ctx, productId, lines); err != nil {
		t.Fatalf("set recipe: %v", err)
	}
}

func getMaterial(t *testing.T, ctx context.Context, id int) *models.RawMaterial {
	t.Helper()
	material, err := models.GetRawMaterial(ctx, id)
	if err != nil {
		t.Fatalf("get raw material: %v", err)
	}
	return material
}

func getProduct(t *testing.T, ctx context.Context, id int) *models.Product {
	t.Helper()
	product, err := models.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return product
}

// produce runs a production order end to end and returns its batch.
func produce(t *testing.T, ctx context.Context, productId int, quantity string, productionDate time.Time) *models.Batch {
	t.Helper()
	order, err := models.CreateProductionOrder(ctx, &models.NewProductionOrder{
		ProductId:         productId,
		QuantityToProduce: dec(quantity),
	})
	if err != nil {
		t.Fatalf("create production order: %v", err)
	}
	if _, err := models.StartProductionOrder(ctx, order.ID); err != nil {
		t.Fatalf("start production order: %v", err)
	}
	completed, err := models.CompleteProductionOrder(ctx, order.ID, &models.ProductionCompletion{
		QuantityProduced: dec(quantity),
		ProductionDate:   &productionDate,
	})
	if err != nil {
		t.Fatalf("complete production order: %v", err)
	}
	if completed.Batch == nil {
		t.Fatalf("completed order has no batch")
	}
	return completed.Batch
}

// stockedProduct creates a product with a one-line recipe and enough material to
// produce from it.
func stockedProduct(t *testing.T, ctx context.Context, code string, mrp string, gst string) *models.Product {
	t.Helper()
	product := createProduct(t, ctx, code, mrp, gst, 180)
	material := createMaterial(t, ctx, "Material "+code, "10000", "0")
	setRecipe(t, ctx, product.ID, models.NewRecipeLine{RawMaterialId: material.ID, QuantityRequired: dec("1")})
	return product
}

func approvedOrder(t *testing.T, ctx context.Context, storeId int, details ...models.NewSalesOrderDetail) *models.SalesOrder {
	t.Helper()
	order, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{StoreId: storeId, Details: details})
	if err != nil {
		t.Fatalf("create sales order: %v", err)
	}
	if _, err := models.SubmitSalesOrder(ctx, order.ID); err != nil {
		t.Fatalf("submit sales order: %v", err)
	}
	approval, err := models.ApproveSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("approve sales order: %v", err)
	}
	return approval.Order
}

func orderLine(productId int, quantity string) models.NewSalesOrderDetail {
	return models.NewSalesOrderDetail{ProductId: productId, Quantity: dec(quantity)}
}

// countRows counts every stored row of model.
func countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := config.GetDB().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}
