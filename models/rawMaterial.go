package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
)

// RawMaterial stock is only changed through the stock ledger. ReservedQty is the part of
// StockQty held by in-progress production orders.
type RawMaterial struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:100;not null" json:"name"`
	Unit         string          `gorm:"size:20;not null" json:"unit"`
	StockQty     decimal.Decimal `gorm:"type:decimal(30,10);default:0" json:"stock_qty"`
	ReservedQty  decimal.Decimal `gorm:"type:decimal(30,10);default:0" json:"reserved_qty"`
	ReorderLevel decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reorder_level"`
	CostPerUnit  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_per_unit"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRawMaterial struct {
	Name         string          `json:"name" validate:"required,max=100"`
	Unit         string          `json:"unit" validate:"required,max=20"`
	ReorderLevel decimal.Decimal `json:"reorder_level" validate:"gte=0,dp=4"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit" validate:"gte=0,dp=4"`
}

// AvailableQty is the stock not held by running production.
func (m RawMaterial) AvailableQty() decimal.Decimal {
	return m.StockQty.Sub(m.ReservedQty)
}

func (m RawMaterial) BelowReorderLevel() bool {
	return m.ReorderLevel.IsPositive() && m.StockQty.LessThanOrEqual(m.ReorderLevel)
}

// CreateRawMaterial registers a material with zero stock; opening stock is booked
// through AdjustRawMaterialStock so it shows up in the movement history.
func CreateRawMaterial(ctx context.Context, input *NewRawMaterial) (*RawMaterial, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	material := RawMaterial{
		Name:         strings.TrimSpace(input.Name),
		Unit:         strings.TrimSpace(input.Unit),
		ReorderLevel: input.ReorderLevel,
		CostPerUnit:  input.CostPerUnit,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&material).Error; err != nil {
		config.LogError(config.GetLogger(), "RawMaterial", "CreateRawMaterial", "create raw material", input, err)
		return nil, err
	}
	return &material, nil
}

func GetRawMaterial(ctx context.Context, id int) (*RawMaterial, error) {
	return utils.FetchModel[RawMaterial](ctx, id)
}

func ListRawMaterials(ctx context.Context, belowReorderOnly bool) ([]*RawMaterial, error) {
	db := config.GetDB()
	var results []*RawMaterial
	dbCtx := db.WithContext(ctx)
	if belowReorderOnly {
		dbCtx = dbCtx.Where("reorder_level > 0 AND stock_qty <= reorder_level")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
