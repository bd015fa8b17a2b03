package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/consumables_backend/models"
)

func TestCalculateInvoiceTotalsIntraState(t *testing.T) {
	totals, err := models.CalculateInvoiceTotals([]models.PricingLine{
		{Mrp: dec("100"), MarginPercentage: dec("20"), Quantity: dec("10"), GstRate: dec("18")},
	}, false)
	if err != nil {
		t.Fatalf("CalculateInvoiceTotals: %v", err)
	}
	line := totals.Lines[0]
	assertDecimal(t, "unit_price", line.UnitPrice, "120")
	assertDecimal(t, "line_total", line.LineTotal, "1200")
	assertDecimal(t, "gst_amount", line.GstAmount, "216")
	assertDecimal(t, "cgst", totals.Cgst, "108")
	assertDecimal(t, "sgst", totals.Sgst, "108")
	assertDecimal(t, "igst", totals.Igst, "0")
	assertDecimal(t, "round_off", totals.RoundOff, "0")
	assertDecimal(t, "total_amount", totals.TotalAmount, "1416")
}

func TestCalculateInvoiceTotalsInterState(t *testing.T) {
	totals, err := models.CalculateInvoiceTotals([]models.PricingLine{
		{Mrp: dec("100"), MarginPercentage: dec("20"), Quantity: dec("10"), GstRate: dec("18")},
	}, true)
	if err != nil {
		t.Fatalf("CalculateInvoiceTotals: %v", err)
	}
	assertDecimal(t, "igst", totals.Igst, "216")
	assertDecimal(t, "cgst", totals.Cgst, "0")
	assertDecimal(t, "sgst", totals.Sgst, "0")
	assertDecimal(t, "total_amount", totals.TotalAmount, "1416")
}

func TestCalculateInvoiceTotalsRoundsGrandTotalOnce(t *testing.T) {
	totals, err := models.CalculateInvoiceTotals([]models.PricingLine{
		{Mrp: dec("99.99"), MarginPercentage: dec("0"), Quantity: dec("1"), GstRate: dec("5")},
		{Mrp: dec("10.10"), MarginPercentage: dec("0"), Quantity: dec("1"), GstRate: dec("5")},
	}, false)
	if err != nil {
		t.Fatalf("CalculateInvoiceTotals: %v", err)
	}
	// 110.09 + 5.5045 = 115.5945
	assertDecimal(t, "subtotal", totals.Subtotal, "110.09")
	assertDecimal(t, "cgst", totals.Cgst, "2.75225")
	assertDecimal(t, "round_off", totals.RoundOff, "0.4055")
	assertDecimal(t, "total_amount", totals.TotalAmount, "116")

	grand := totals.Subtotal.Add(totals.Cgst).Add(totals.Sgst).Add(totals.Igst).Add(totals.RoundOff)
	if !grand.Equal(totals.TotalAmount) {
		t.Fatalf("components add up to %s, total is %s", grand, totals.TotalAmount)
	}
}

func TestCalculateInvoiceTotalsQuarterPercentGst(t *testing.T) {
	totals, err := models.CalculateInvoiceTotals([]models.PricingLine{
		{Mrp: dec("1.01"), MarginPercentage: dec("0"), Quantity: dec("1"), GstRate: dec("0.25")},
	}, false)
	if err != nil {
		t.Fatalf("CalculateInvoiceTotals: %v", err)
	}
	// 1.01 * 0.25% = 0.002525, split in two
	assertDecimal(t, "cgst", totals.Cgst, "0.0012625")
	assertDecimal(t, "sgst", totals.Sgst, "0.0012625")
	assertDecimal(t, "round_off", totals.RoundOff, "-0.012525")
	assertDecimal(t, "total_amount", totals.TotalAmount, "1")

	grand := totals.Subtotal.Add(totals.Cgst).Add(totals.Sgst).Add(totals.Igst).Add(totals.RoundOff)
	if !grand.Equal(totals.TotalAmount) {
		t.Fatalf("components add up to %s, total is %s", grand, totals.TotalAmount)
	}
}

func TestUnitPriceKeepsFullScale(t *testing.T) {
	// four places of mrp and four of margin need ten places of unit price
	price, err := models.UnitPrice(dec("0.0001"), dec("0.0001"))
	if err != nil {
		t.Fatalf("UnitPrice: %v", err)
	}
	assertDecimal(t, "unit_price", price, "0.0001000001")
}

func TestCalculateInvoiceTotalsIsDeterministic(t *testing.T) {
	lines := []models.PricingLine{
		{Mrp: dec("45.50"), MarginPercentage: dec("12.5"), Quantity: dec("3"), GstRate: dec("12")},
		{Mrp: dec("18"), MarginPercentage: dec("-5"), Quantity: dec("7"), GstRate: dec("5")},
	}
	first, err := models.CalculateInvoiceTotals(lines, false)
	if err != nil {
		t.Fatalf("CalculateInvoiceTotals: %v", err)
	}
	second, err := models.CalculateInvoiceTotals(lines, false)
	if err != nil {
		t.Fatalf("CalculateInvoiceTotals: %v", err)
	}
	if !first.TotalAmount.Equal(second.TotalAmount) || !first.RoundOff.Equal(second.RoundOff) {
		t.Fatalf("totals differ between runs: %s/%s vs %s/%s", first.TotalAmount, first.RoundOff, second.TotalAmount, second.RoundOff)
	}
}

func TestUnitPriceRejectsNegativePrice(t *testing.T) {
	_, err := models.UnitPrice(dec("100"), dec("-150"))
	if !errors.Is(err, models.ErrInvalidMargin) {
		t.Fatalf("err = %v, want ErrInvalidMargin", err)
	}

	price, err := models.UnitPrice(dec("100"), dec("-100"))
	if err != nil {
		t.Fatalf("UnitPrice at -100%%: %v", err)
	}
	assertDecimal(t, "unit_price", price, "0")
}

func TestCalculateInvoiceTotalsValidation(t *testing.T) {
	tests := []struct {
		name  string
		lines []models.PricingLine
		field string
	}{
		{name: "no lines", lines: nil, field: "items"},
		{
			name:  "zero quantity",
			lines: []models.PricingLine{{Mrp: dec("10"), Quantity: dec("0"), GstRate: dec("5")}},
			field: "items[0].quantity",
		},
		{
			name:  "negative gst",
			lines: []models.PricingLine{{Mrp: dec("10"), Quantity: dec("1"), GstRate: dec("-1")}},
			field: "items[0].gst_rate",
		},
		{
			name: "gst rate beyond four places",
			lines: []models.PricingLine{
				{Mrp: dec("10"), Quantity: dec("1"), GstRate: dec("5")},
				{Mrp: dec("10"), Quantity: dec("1"), GstRate: dec("0.12345")},
			},
			field: "items[1].gst_rate",
		},
		{
			name:  "margin beyond four places",
			lines: []models.PricingLine{{Mrp: dec("10"), MarginPercentage: dec("2.00001"), Quantity: dec("1"), GstRate: dec("5")}},
			field: "items[0].margin_percentage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := models.CalculateInvoiceTotals(tt.lines, false)
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if _, ok := ve.Details[tt.field]; !ok {
				t.Fatalf("details = %v, want key %q", ve.Details, tt.field)
			}
		})
	}
}
