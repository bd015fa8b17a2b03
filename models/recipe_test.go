package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/consumables_backend/models"
)

func TestSetRecipeReplacesLines(t *testing.T) {
	ctx := setupTestDB(t)
	product := createProduct(t, ctx, "BIS200", "100", "18", 0)
	flour := createMaterial(t, ctx, "Flour", "0", "0")
	sugar := createMaterial(t, ctx, "Sugar", "0", "0")

	setRecipe(t, ctx, product.ID,
		models.NewRecipeLine{RawMaterialId: flour.ID, QuantityRequired: dec("0.15")},
		models.NewRecipeLine{RawMaterialId: sugar.ID, QuantityRequired: dec("0.04")},
	)
	lines, err := models.GetRecipe(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetRecipe: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("recipe lines = %d, want 2", len(lines))
	}

	setRecipe(t, ctx, product.ID, models.NewRecipeLine{RawMaterialId: sugar.ID, QuantityRequired: dec("0.05")})
	lines, err = models.GetRecipe(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetRecipe: %v", err)
	}
	if len(lines) != 1 || lines[0].RawMaterialId != sugar.ID {
		t.Fatalf("recipe = %+v", lines)
	}
	assertDecimal(t, "quantity_required", lines[0].QuantityRequired, "0.05")

	if _, err := models.SetRecipe(ctx, product.ID, []models.NewRecipeLine{
		{RawMaterialId: flour.ID, QuantityRequired: dec("1")},
		{RawMaterialId: flour.ID, QuantityRequired: dec("2")},
	}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("duplicate material: err = %v, want ErrValidation", err)
	}
	if _, err := models.SetRecipe(ctx, product.ID, []models.NewRecipeLine{
		{RawMaterialId: flour.ID + 100, QuantityRequired: dec("1")},
	}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("unknown material: err = %v, want ErrValidation", err)
	}
	if _, err := models.GetRecipe(ctx, product.ID+100); !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("unknown product: err = %v, want ErrRecordNotFound", err)
	}
}

func TestGetRequiredMaterials(t *testing.T) {
	ctx := setupTestDB(t)
	product := createProduct(t, ctx, "CAKE", "60", "18", 0)
	flour := createMaterial(t, ctx, "Flour", "150", "0")
	sugar := createMaterial(t, ctx, "Sugar", "100", "0")
	setRecipe(t, ctx, product.ID,
		models.NewRecipeLine{RawMaterialId: flour.ID, QuantityRequired: dec("2")},
		models.NewRecipeLine{RawMaterialId: sugar.ID, QuantityRequired: dec("0.5")},
	)

	reqs, err := models.GetRequiredMaterials(ctx, product.ID, dec("100"))
	if err != nil {
		t.Fatalf("GetRequiredMaterials: %v", err)
	}
	byMaterial := map[int]models.MaterialRequirement{}
	for _, r := range reqs {
		byMaterial[r.RawMaterialId] = r
	}
	f := byMaterial[flour.ID]
	assertDecimal(t, "flour required", f.TotalRequired, "200")
	assertDecimal(t, "flour shortage", f.Shortage, "50")
	if f.IsSufficient {
		t.Fatalf("flour reported sufficient")
	}
	s := byMaterial[sugar.ID]
	assertDecimal(t, "sugar required", s.TotalRequired, "50")
	if !s.IsSufficient {
		t.Fatalf("sugar reported short")
	}

	bare := createProduct(t, ctx, "NEW", "10", "5", 0)
	if _, err := models.GetRequiredMaterials(ctx, bare.ID, dec("1")); !errors.Is(err, models.ErrNoRecipe) {
		t.Fatalf("no recipe: err = %v, want ErrNoRecipe", err)
	}
	if _, err := models.GetRequiredMaterials(ctx, product.ID, dec("0")); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("zero quantity: err = %v, want ErrValidation", err)
	}
}

func TestGetProductionSuggestions(t *testing.T) {
	ctx := setupTestDB(t)
	store := createStore(t, ctx, "0")
	jam := createProduct(t, ctx, "JAM", "80", "12", 0)
	fruit := createMaterial(t, ctx, "Fruit", "95", "0")
	setRecipe(t, ctx, jam.ID, models.NewRecipeLine{RawMaterialId: fruit.ID, QuantityRequired: dec("2")})
	produce(t, ctx, jam.ID, "10", date(2026, 2, 1))

	tea := createProduct(t, ctx, "TEA", "50", "5", 0)
	idle := createProduct(t, ctx, "IDLE", "5", "5", 0)

	order := approvedOrder(t, ctx, store.ID, orderLine(jam.ID, "60"), orderLine(tea.ID, "5"))
	if _, err := models.CreateInvoiceFromOrder(ctx, &models.NewInvoiceFromOrder{
		SalesOrderId: order.ID,
		Items:        []models.NewInvoiceItem{{ProductId: jam.ID, Quantity: dec("20")}},
	}); err != nil {
		t.Fatalf("CreateInvoiceFromOrder: %v", err)
	}
	// draft orders are not demand
	if _, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{
		StoreId: store.ID,
		Details: []models.NewSalesOrderDetail{orderLine(idle.ID, "100")},
	}); err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}

	suggestions, err := models.GetProductionSuggestions(ctx, false)
	if err != nil {
		t.Fatalf("GetProductionSuggestions: %v", err)
	}
	if len(suggestions) != 3 {
		t.Fatalf("suggestions = %d, want 3", len(suggestions))
	}
	byProduct := map[int]*models.ProductionSuggestion{}
	for _, s := range suggestions {
		byProduct[s.ProductId] = s
	}

	j := byProduct[jam.ID]
	assertDecimal(t, "jam required", j.TotalRequired, "40")
	assertDecimal(t, "jam stock", j.CurrentStock, "10")
	assertDecimal(t, "jam needed", j.ProductionNeeded, "30")
	if !j.HasRecipe {
		t.Fatalf("jam has a recipe")
	}
	// 95 - 20 used = 75 kg of fruit at 2 kg per jar
	assertDecimal(t, "jam can produce", j.CanProduce, "37")

	te := byProduct[tea.ID]
	assertDecimal(t, "tea needed", te.ProductionNeeded, "5")
	if te.HasRecipe || !te.CanProduce.IsZero() {
		t.Fatalf("tea suggestion = %+v", te)
	}

	assertDecimal(t, "idle required", byProduct[idle.ID].TotalRequired, "0")

	needed, err := models.GetProductionSuggestions(ctx, true)
	if err != nil {
		t.Fatalf("GetProductionSuggestions: %v", err)
	}
	if len(needed) != 2 {
		t.Fatalf("needed suggestions = %d, want 2", len(needed))
	}
}
