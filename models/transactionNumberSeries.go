package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ModuleSalesOrder      = "Sales Order"
	ModuleSalesInvoice    = "Sales Invoice"
	ModuleProductionOrder = "Production Order"
	ModulePurchaseRequest = "Purchase Request"
	ModulePurchaseReceipt = "Purchase Receipt"
	ModuleVendorBill      = "Vendor Bill"
	ModuleBatch           = "Batch"
)

var defaultPrefixes = map[string]string{
	ModuleSalesOrder:      "SO-",
	ModuleSalesInvoice:    "INV-",
	ModuleProductionOrder: "PRD-",
	ModulePurchaseRequest: "PR-",
	ModulePurchaseReceipt: "GRN-",
	ModuleVendorBill:      "BILL-",
	ModuleBatch:           "B",
}

// TransactionNumberSeries holds the last issued sequence per module. Rows are locked
// while a number is issued so numbers are unique and gap-free per committed transaction.
type TransactionNumberSeries struct {
	ModuleName   string    `gorm:"primaryKey;size:50" json:"module_name"`
	Prefix       string    `gorm:"size:10" json:"prefix"`
	LastSequence int64     `gorm:"not null;default:0" json:"last_sequence"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTransactionNumberSeries struct {
	ModuleName string `json:"module_name" validate:"required"`
	Prefix     string `json:"prefix" validate:"max=10"`
}

// SeedTransactionNumberSeries creates the default series rows that are missing.
func SeedTransactionNumberSeries(ctx context.Context, db *gorm.DB) error {
	for _, module := range sortedKeys(defaultPrefixes) {
		series := TransactionNumberSeries{ModuleName: module, Prefix: defaultPrefixes[module]}
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&series).Error; err != nil {
			return err
		}
	}
	return nil
}

// nextSequence issues the next number of module inside tx.
func nextSequence(tx *gorm.DB, module string) (int64, string, error) {
	if _, ok := defaultPrefixes[module]; !ok {
		return 0, "", fmt.Errorf("unknown transaction number module %q", module)
	}
	series, _, err := lockOrCreateSeries(tx, module)
	if err != nil {
		return 0, "", err
	}

	next := series.LastSequence + 1
	if err := tx.Model(&TransactionNumberSeries{}).
		Where("module_name = ?", module).
		Update("last_sequence", next).Error; err != nil {
		return 0, "", err
	}
	return next, series.Prefix, nil
}

// nextTransactionNumber returns e.g. "INV-00042".
func nextTransactionNumber(tx *gorm.DB, module string) (int64, string, error) {
	seq, prefix, err := nextSequence(tx, module)
	if err != nil {
		return 0, "", err
	}
	return seq, fmt.Sprintf("%s%05d", prefix, seq), nil
}

func ListTransactionNumberSeries(ctx context.Context) ([]*TransactionNumberSeries, error) {
	var results []*TransactionNumberSeries
	if err := config.GetDB().WithContext(ctx).Order("module_name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateTransactionNumberPrefix changes the prefix used for numbers issued from now on.
func UpdateTransactionNumberPrefix(ctx context.Context, input *NewTransactionNumberSeries) (*TransactionNumberSeries, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if _, ok := defaultPrefixes[input.ModuleName]; !ok {
		return nil, newValidationError("module_name", "unknown module")
	}
	var series TransactionNumberSeries
	err := runInTx(ctx, func(tx *gorm.DB) error {
		if _, _, err := lockOrCreateSeries(tx, input.ModuleName); err != nil {
			return err
		}
		if err := tx.Model(&TransactionNumberSeries{}).
			Where("module_name = ?", input.ModuleName).
			Update("prefix", input.Prefix).Error; err != nil {
			return err
		}
		return tx.Where("module_name = ?", input.ModuleName).First(&series).Error
	})
	if err != nil {
		return nil, err
	}
	return &series, nil
}

func lockOrCreateSeries(tx *gorm.DB, module string) (*TransactionNumberSeries, bool, error) {
	series := TransactionNumberSeries{ModuleName: module, Prefix: defaultPrefixes[module]}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("module_name = ?", module).
		FirstOrCreate(&series)
	if result.Error != nil {
		return nil, false, result.Error
	}
	return &series, result.RowsAffected == 1, nil
}
