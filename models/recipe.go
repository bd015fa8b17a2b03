package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const recipeCacheLifespan = time.Hour

// RecipeLine is the quantity of one raw material needed per unit of product.
// A product without lines has no recipe; a line with zero quantity is a recipe
// that consumes none of that material.
type RecipeLine struct {
	ProductId        int             `gorm:"primaryKey;autoIncrement:false" json:"product_id"`
	RawMaterialId    int             `gorm:"primaryKey;autoIncrement:false;index" json:"raw_material_id"`
	QuantityRequired decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity_required"`
	RawMaterial      *RawMaterial    `gorm:"foreignKey:RawMaterialId" json:"raw_material,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRecipeLine struct {
	RawMaterialId    int             `json:"raw_material_id" validate:"required,gt=0"`
	QuantityRequired decimal.Decimal `json:"quantity_required" validate:"gte=0,dp=6"`
}

type MaterialRequirement struct {
	RawMaterialId   int             `json:"raw_material_id"`
	Name            string          `json:"name"`
	Unit            string          `json:"unit"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
	TotalRequired   decimal.Decimal `json:"total_required"`
	Available       decimal.Decimal `json:"available"`
	Shortage        decimal.Decimal `json:"shortage"`
	IsSufficient    bool            `json:"is_sufficient"`
}

func recipeCacheKey(productId int) string {
	return fmt.Sprintf("Recipe:%d", productId)
}

// GetRecipe returns the product's recipe lines ordered by raw material id.
func GetRecipe(ctx context.Context, productId int) ([]RecipeLine, error) {
	var lines []RecipeLine
	exists, err := config.GetRedisObject(ctx, recipeCacheKey(productId), &lines)
	if err != nil {
		config.LogError(config.GetLogger(), "Recipe", "GetRecipe", "read recipe cache", productId, err)
	}
	if exists {
		return lines, nil
	}

	if err := utils.ValidateResourceId[Product](ctx, config.GetDB(), productId); err != nil {
		return nil, err
	}
	lines, err = loadRecipe(config.GetDB().WithContext(ctx), productId)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, recipeCacheKey(productId), lines, recipeCacheLifespan); err != nil {
		config.LogError(config.GetLogger(), "Recipe", "GetRecipe", "write recipe cache", productId, err)
	}
	return lines, nil
}

func loadRecipe(tx *gorm.DB, productId int) ([]RecipeLine, error) {
	var lines []RecipeLine
	if err := tx.Where("product_id = ?", productId).
		Order("raw_material_id").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// SetRecipe replaces all recipe lines of a product. An empty list removes the recipe.
func SetRecipe(ctx context.Context, productId int, input []NewRecipeLine) ([]RecipeLine, error) {
	seen := make(map[int]bool, len(input))
	materialIds := make([]int, 0, len(input))
	for i := range input {
		if err := validateInput(&input[i]); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return nil, prefixValidation(ve, fmt.Sprintf("lines[%d]", i))
			}
			return nil, err
		}
		if seen[input[i].RawMaterialId] {
			return nil, newValidationError(fmt.Sprintf("lines[%d].raw_material_id", i), "duplicate raw material")
		}
		seen[input[i].RawMaterialId] = true
		materialIds = append(materialIds, input[i].RawMaterialId)
	}

	var lines []RecipeLine
	err := runInTx(ctx, func(tx *gorm.DB) error {
		if _, err := lockProduct(tx, productId); err != nil {
			return err
		}
		if len(materialIds) > 0 {
			var count int64
			if err := tx.Model(&RawMaterial{}).Where("id IN ?", materialIds).Count(&count).Error; err != nil {
				return err
			}
			if count != int64(len(materialIds)) {
				return newValidationError("raw_material_id", "unknown raw material")
			}
		}
		if err := tx.Where("product_id = ?", productId).Delete(&RecipeLine{}).Error; err != nil {
			return err
		}
		for _, in := range input {
			line := RecipeLine{
				ProductId:        productId,
				RawMaterialId:    in.RawMaterialId,
				QuantityRequired: in.QuantityRequired,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		}
		var err error
		lines, err = loadRecipe(tx, productId)
		return err
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "Recipe", "SetRecipe", "replace recipe", input, err)
		}
		return nil, err
	}
	if err := config.RemoveRedisKey(ctx, recipeCacheKey(productId)); err != nil {
		config.LogError(config.GetLogger(), "Recipe", "SetRecipe", "invalidate recipe cache", productId, err)
	}
	return lines, nil
}

// GetRequiredMaterials computes what producing quantity units would consume, against
// the currently unreserved stock.
func GetRequiredMaterials(ctx context.Context, productId int, quantity decimal.Decimal) ([]MaterialRequirement, error) {
	if err := requirePositive("quantity", quantity); err != nil {
		return nil, err
	}
	lines, err := GetRecipe(ctx, productId)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrNoRecipe
	}
	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.RawMaterialId)
	}
	var materials []RawMaterial
	if err := config.GetDB().WithContext(ctx).Where("id IN ?", ids).Find(&materials).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]RawMaterial, len(materials))
	for _, m := range materials {
		byId[m.ID] = m
	}
	return materialRequirements(lines, byId, quantity), nil
}

func materialRequirements(lines []RecipeLine, materials map[int]RawMaterial, quantity decimal.Decimal) []MaterialRequirement {
	result := make([]MaterialRequirement, 0, len(lines))
	for _, l := range lines {
		m := materials[l.RawMaterialId]
		required := l.QuantityRequired.Mul(quantity)
		available := m.AvailableQty()
		shortage := decimal.Zero
		if available.LessThan(required) {
			shortage = required.Sub(available)
		}
		result = append(result, MaterialRequirement{
			RawMaterialId:   l.RawMaterialId,
			Name:            m.Name,
			Unit:            m.Unit,
			QuantityPerUnit: l.QuantityRequired,
			TotalRequired:   required,
			Available:       available,
			Shortage:        shortage,
			IsSufficient:    shortage.IsZero(),
		})
	}
	return result
}
