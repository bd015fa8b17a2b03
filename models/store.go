package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
)

// Store is a retail customer. MarginPercentage is the default margin priced into its invoices.
type Store struct {
	ID               int             `gorm:"primary_key" json:"id"`
	Name             string          `gorm:"size:100;not null" json:"name"`
	Phone            string          `gorm:"size:20" json:"phone"`
	Address          string          `gorm:"type:text" json:"address"`
	StateCode        string          `gorm:"size:10" json:"state_code"`
	MarginPercentage decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"margin_percentage"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStore struct {
	Name             string          `json:"name" validate:"required,max=100"`
	Phone            string          `json:"phone"`
	Address          string          `json:"address"`
	StateCode        string          `json:"state_code" validate:"max=10"`
	MarginPercentage decimal.Decimal `json:"margin_percentage" validate:"dp=4"`
}

// IsInterState reports whether supplies to the store fall under IGST.
func (s Store) IsInterState() bool {
	home := config.CompanyStateCode()
	return home != "" && s.StateCode != "" && !strings.EqualFold(home, s.StateCode)
}

func CreateStore(ctx context.Context, input *NewStore) (*Store, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(input.Phone)
	if phone != "" {
		formatted, err := utils.FormatPhoneNumber(phone, utils.CountryCode)
		if err != nil {
			return nil, newValidationError("phone", err.Error())
		}
		phone = formatted
	}
	store := Store{
		Name:             strings.TrimSpace(input.Name),
		Phone:            phone,
		Address:          input.Address,
		StateCode:        strings.ToUpper(strings.TrimSpace(input.StateCode)),
		MarginPercentage: input.MarginPercentage,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&store).Error; err != nil {
		config.LogError(config.GetLogger(), "Store", "CreateStore", "create store", input, err)
		return nil, err
	}
	return &store, nil
}

func GetStore(ctx context.Context, id int) (*Store, error) {
	return utils.FetchModel[Store](ctx, id)
}
