package models

import (
	"context"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/shopspring/decimal"
)

type ProductionSuggestion struct {
	ProductId        int             `json:"product_id"`
	ProductCode      string          `json:"product_code"`
	ProductName      string          `json:"product_name"`
	TotalRequired    decimal.Decimal `json:"total_required"`
	CurrentStock     decimal.Decimal `json:"current_stock"`
	ProductionNeeded decimal.Decimal `json:"production_needed"`
	HasRecipe        bool            `json:"has_recipe"`
	CanProduce       decimal.Decimal `json:"can_produce"`
}

// GetProductionSuggestions compares outstanding demand of submitted and approved orders
// with finished-goods stock, per active product. Demand of a line is what is still
// uninvoiced. can_produce is limited by unreserved raw-material stock; a recipe whose
// lines all consume nothing is not limited and reports production_needed.
func GetProductionSuggestions(ctx context.Context, onlyNeeded bool) ([]*ProductionSuggestion, error) {
	db := config.GetDB().WithContext(ctx)

	var products []Product
	if err := db.Where("is_active = ?", true).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}

	var details []SalesOrderDetail
	if err := db.Model(&SalesOrderDetail{}).
		Joins("JOIN sales_orders ON sales_orders.id = sales_order_details.sales_order_id").
		Where("sales_orders.status IN ?", []SalesOrderStatus{SalesOrderStatusSubmitted, SalesOrderStatusApproved}).
		Find(&details).Error; err != nil {
		return nil, err
	}
	demand := make(map[int]decimal.Decimal)
	for _, d := range details {
		outstanding := d.Quantity.Sub(d.InvoicedQty)
		if outstanding.IsPositive() {
			demand[d.ProductId] = demand[d.ProductId].Add(outstanding)
		}
	}

	var lines []RecipeLine
	if err := db.Order("product_id, raw_material_id").Find(&lines).Error; err != nil {
		return nil, err
	}
	var materials []RawMaterial
	if err := db.Find(&materials).Error; err != nil {
		return nil, err
	}
	materialById := make(map[int]RawMaterial, len(materials))
	for _, m := range materials {
		materialById[m.ID] = m
	}
	recipes := make(map[int][]RecipeLine)
	for _, l := range lines {
		recipes[l.ProductId] = append(recipes[l.ProductId], l)
	}

	results := make([]*ProductionSuggestion, 0, len(products))
	for _, p := range products {
		required := demand[p.ID]
		needed := required.Sub(p.StockQty)
		if needed.IsNegative() {
			needed = decimal.Zero
		}
		if onlyNeeded && !needed.IsPositive() {
			continue
		}
		s := &ProductionSuggestion{
			ProductId:        p.ID,
			ProductCode:      p.Code,
			ProductName:      p.Name,
			TotalRequired:    required,
			CurrentStock:     p.StockQty,
			ProductionNeeded: needed,
			CanProduce:       decimal.Zero,
		}
		if recipe, ok := recipes[p.ID]; ok {
			s.HasRecipe = true
			s.CanProduce = maxProducible(recipe, materialById, needed)
		}
		results = append(results, s)
	}
	return results, nil
}

// maxProducible is min over consuming lines of floor(available / quantity_required).
func maxProducible(recipe []RecipeLine, materials map[int]RawMaterial, unbounded decimal.Decimal) decimal.Decimal {
	var limit *decimal.Decimal
	for _, l := range recipe {
		if !l.QuantityRequired.IsPositive() {
			continue
		}
		available := materials[l.RawMaterialId].AvailableQty()
		if available.IsNegative() {
			available = decimal.Zero
		}
		units := available.Div(l.QuantityRequired).Floor()
		if limit == nil || units.LessThan(*limit) {
			limit = &units
		}
	}
	if limit == nil {
		return unbounded
	}
	return *limit
}
