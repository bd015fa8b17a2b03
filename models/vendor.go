package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
)

type Vendor struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Email       string    `gorm:"size:100" json:"email"`
	PaymentDays int       `gorm:"not null;default:0" json:"payment_days"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendor struct {
	Name        string `json:"name" validate:"required,max=100"`
	Phone       string `json:"phone"`
	Email       string `json:"email" validate:"omitempty,email"`
	PaymentDays int    `json:"payment_days" validate:"gte=0,lte=365"`
}

func CreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {
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
	vendor := Vendor{
		Name:        strings.TrimSpace(input.Name),
		Phone:       phone,
		Email:       input.Email,
		PaymentDays: input.PaymentDays,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&vendor).Error; err != nil {
		config.LogError(config.GetLogger(), "Vendor", "CreateVendor", "create vendor", input, err)
		return nil, err
	}
	return &vendor, nil
}

func GetVendor(ctx context.Context, id int) (*Vendor, error) {
	return utils.FetchModel[Vendor](ctx, id)
}
