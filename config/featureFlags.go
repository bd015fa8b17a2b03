package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// AllowProductionWithoutRecipe lets a production order be created for a product
// with no recipe lines (a warning is logged). Starting such an order still fails.
//
// Set via env:
// - ALLOW_PRODUCTION_WITHOUT_RECIPE=true
func AllowProductionWithoutRecipe() bool {
	return boolFromEnv("ALLOW_PRODUCTION_WITHOUT_RECIPE")
}

// BlockCancelPaidInvoice forbids cancelling an invoice that has recorded payments.
//
// Set via env:
// - BLOCK_CANCEL_PAID_INVOICE=true
func BlockCancelPaidInvoice() bool {
	return boolFromEnv("BLOCK_CANCEL_PAID_INVOICE")
}

// PaymentTolerance is the absolute difference under which an invoice counts as settled.
// Defaults to 0.01.
func PaymentTolerance() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("PAYMENT_TOLERANCE"))
	if v == "" {
		return decimal.NewFromFloat(0.01)
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.NewFromFloat(0.01)
	}
	return d
}

// OutboxDirectProcessing processes workflow messages in-process instead of publishing to Pub/Sub.
func OutboxDirectProcessing() bool {
	return boolFromEnv("OUTBOX_DIRECT_PROCESSING")
}

// CompanyStateCode is the GST state of the manufacturer; supplies to stores in another
// state are invoiced under IGST when the caller does not say otherwise.
func CompanyStateCode() string {
	return strings.ToUpper(strings.TrimSpace(os.Getenv("COMPANY_STATE_CODE")))
}
