package models

import (
	"errors"
	"fmt"

	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
)

// priceInputScale is the scale of the stored mrp, margin, gst_rate and quantity columns.
// With it, unit_price and the GST halves fit decimal(30,10) exactly.
const priceInputScale = 4

// PricingLine is one invoice line as seen by the tax engine.
type PricingLine struct {
	Mrp              decimal.Decimal
	MarginPercentage decimal.Decimal
	Quantity         decimal.Decimal
	GstRate          decimal.Decimal
}

type PricedLine struct {
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
	GstAmount  decimal.Decimal `json:"gst_amount"`
	CgstAmount decimal.Decimal `json:"cgst_amount"`
	SgstAmount decimal.Decimal `json:"sgst_amount"`
	IgstAmount decimal.Decimal `json:"igst_amount"`
}

type InvoiceTotals struct {
	Lines       []PricedLine    `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Cgst        decimal.Decimal `json:"cgst"`
	Sgst        decimal.Decimal `json:"sgst"`
	Igst        decimal.Decimal `json:"igst"`
	RoundOff    decimal.Decimal `json:"round_off"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// UnitPrice is mrp marked up (or discounted) by margin percent. It is not rounded.
func UnitPrice(mrp decimal.Decimal, margin decimal.Decimal) (decimal.Decimal, error) {
	price := mrp.Mul(hundred.Add(margin)).Div(hundred)
	if price.IsNegative() {
		return decimal.Zero, &InvalidMarginError{Mrp: mrp, Margin: margin}
	}
	return price, nil
}

// PriceLine prices one line. GST is kept unrounded and the CGST/SGST halves are exact.
func PriceLine(line PricingLine, isIgst bool) (PricedLine, error) {
	if line.Mrp.IsNegative() {
		return PricedLine{}, newValidationError("mrp", "must not be negative")
	}
	if line.GstRate.IsNegative() {
		return PricedLine{}, newValidationError("gst_rate", "must not be negative")
	}
	if !line.Quantity.IsPositive() {
		return PricedLine{}, newValidationError("quantity", "must be greater than 0")
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"mrp", line.Mrp},
		{"margin_percentage", line.MarginPercentage},
		{"quantity", line.Quantity},
		{"gst_rate", line.GstRate},
	} {
		if !utils.HasDecimalPlaces(f.value, priceInputScale) {
			return PricedLine{}, newValidationError(f.name, fmt.Sprintf("must have at most %d decimal places", priceInputScale))
		}
	}
	unitPrice, err := UnitPrice(line.Mrp, line.MarginPercentage)
	if err != nil {
		return PricedLine{}, err
	}

	priced := PricedLine{
		UnitPrice: unitPrice,
		LineTotal: roundMoney(unitPrice.Mul(line.Quantity)),
	}
	priced.GstAmount = priced.LineTotal.Mul(line.GstRate).Div(hundred)
	if isIgst {
		priced.IgstAmount = priced.GstAmount
		priced.CgstAmount = decimal.Zero
		priced.SgstAmount = decimal.Zero
	} else {
		half := priced.GstAmount.Div(decimal.NewFromInt(2))
		priced.CgstAmount = half
		priced.SgstAmount = half
		priced.IgstAmount = decimal.Zero
	}
	return priced, nil
}

// CalculateInvoiceTotals prices every line and rounds once, over the grand total, to a
// whole currency unit. The result depends only on its inputs.
func CalculateInvoiceTotals(lines []PricingLine, isIgst bool) (*InvoiceTotals, error) {
	if len(lines) == 0 {
		return nil, newValidationError("items", "at least one item is required")
	}
	totals := &InvoiceTotals{
		Lines:    make([]PricedLine, 0, len(lines)),
		Subtotal: decimal.Zero,
		Cgst:     decimal.Zero,
		Sgst:     decimal.Zero,
		Igst:     decimal.Zero,
	}
	for i, line := range lines {
		priced, err := PriceLine(line, isIgst)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return nil, prefixValidation(ve, fmt.Sprintf("items[%d]", i))
			}
			return nil, err
		}
		totals.Lines = append(totals.Lines, priced)
		totals.Subtotal = totals.Subtotal.Add(priced.LineTotal)
		totals.Cgst = totals.Cgst.Add(priced.CgstAmount)
		totals.Sgst = totals.Sgst.Add(priced.SgstAmount)
		totals.Igst = totals.Igst.Add(priced.IgstAmount)
	}

	grand := totals.Subtotal.Add(totals.Cgst).Add(totals.Sgst).Add(totals.Igst)
	totals.RoundOff = grand.Round(0).Sub(grand)
	totals.TotalAmount = grand.Add(totals.RoundOff)
	return totals, nil
}
