// seed-dev loads a small demo catalogue (store, vendor, raw materials, one product with a
// recipe) and prints an admin bearer token for calling the API locally.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/models"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
)

func must[T any](v T, err error) T {
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	return v
}

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	if err := models.MigrateTable(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	store := must(models.CreateStore(ctx, &models.NewStore{
		Name:             "Demo Store",
		StateCode:        config.CompanyStateCode(),
		MarginPercentage: decimal.NewFromInt(15),
	}))
	vendor := must(models.CreateVendor(ctx, &models.NewVendor{
		Name:        "Demo Supplies",
		PaymentDays: 30,
	}))
	flour := must(models.CreateRawMaterial(ctx, &models.NewRawMaterial{
		Name:         "Flour",
		Unit:         "kg",
		ReorderLevel: decimal.NewFromInt(20),
		CostPerUnit:  decimal.NewFromInt(40),
	}))
	sugar := must(models.CreateRawMaterial(ctx, &models.NewRawMaterial{
		Name:         "Sugar",
		Unit:         "kg",
		ReorderLevel: decimal.NewFromInt(10),
		CostPerUnit:  decimal.NewFromInt(45),
	}))
	biscuit := must(models.CreateProduct(ctx, &models.NewProduct{
		Code:          "BISC200",
		Name:          "Biscuits 200g",
		Mrp:           decimal.NewFromInt(100),
		GstRate:       decimal.NewFromInt(18),
		HsnCode:       "1905",
		WeightPerUnit: "200g",
		ShelfLifeDays: 180,
	}))
	must(models.SetRecipe(ctx, biscuit.ID, []models.NewRecipeLine{
		{RawMaterialId: flour.ID, QuantityRequired: decimal.RequireFromString("0.15")},
		{RawMaterialId: sugar.ID, QuantityRequired: decimal.RequireFromString("0.04")},
	}))
	for _, m := range []*models.RawMaterial{flour, sugar} {
		must(models.AdjustRawMaterialStock(ctx, m.ID, &models.NewStockAdjustment{
			Delta:  decimal.NewFromInt(100),
			Reason: "opening stock",
		}))
	}

	token := must(utils.JwtGenerate(1, "admin", "admin"))
	fmt.Printf("store=%d vendor=%d product=%d raw_materials=[%d %d]\n", store.ID, vendor.ID, biscuit.ID, flour.ID, sugar.ID)
	fmt.Printf("admin token: %s\n", token)
}
