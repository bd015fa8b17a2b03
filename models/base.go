package models

import (
	"context"
	"sort"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// roundMoney rounds to the currency minor unit, half away from zero.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// runInTx executes fn in one database transaction bound to ctx.
func runInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return config.GetDB().WithContext(ctx).Transaction(fn)
}

// requirePositive reports a validation error when qty is not > 0.
func requirePositive(field string, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return newValidationError(field, "must be greater than 0")
	}
	return nil
}

func validateInput(input any) error {
	details, err := utils.ValidateStruct(input)
	if err != nil {
		return err
	}
	if len(details) > 0 {
		return validationErrorFromMap(details)
	}
	return nil
}
