package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
)

// Product is a finished good. StockQty is owned by the stock ledger and always
// equals the remaining quantity of the product's available batches.
type Product struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Code          string          `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Mrp           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"mrp"`
	GstRate       decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"gst_rate"`
	HsnCode       string          `gorm:"size:20" json:"hsn_code"`
	WeightPerUnit string          `gorm:"size:50" json:"weight_per_unit"`
	StockQty      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"stock_qty"`
	ShelfLifeDays int             `gorm:"not null;default:0" json:"shelf_life_days"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Code          string          `json:"code" validate:"required,max=50"`
	Name          string          `json:"name" validate:"required,max=100"`
	Mrp           decimal.Decimal `json:"mrp" validate:"gte=0,dp=4"`
	GstRate       decimal.Decimal `json:"gst_rate" validate:"gte=0,lte=100,dp=4"`
	HsnCode       string          `json:"hsn_code" validate:"max=20"`
	WeightPerUnit string          `json:"weight_per_unit"`
	ShelfLifeDays int             `json:"shelf_life_days" validate:"gte=0"`
}

func (p Product) Active() bool {
	return p.IsActive == nil || *p.IsActive
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	active := true
	product := Product{
		Code:          strings.TrimSpace(input.Code),
		Name:          strings.TrimSpace(input.Name),
		Mrp:           input.Mrp,
		GstRate:       input.GstRate,
		HsnCode:       input.HsnCode,
		WeightPerUnit: input.WeightPerUnit,
		ShelfLifeDays: input.ShelfLifeDays,
		IsActive:      &active,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		config.LogError(config.GetLogger(), "Product", "CreateProduct", "create product", input, err)
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, id)
}

func ListProducts(ctx context.Context, name *string) ([]*Product, error) {
	db := config.GetDB()
	var results []*Product
	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	product, err := GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(product).Update("is_active", isActive).Error; err != nil {
		return nil, err
	}
	product.IsActive = &isActive
	return product, nil
}
