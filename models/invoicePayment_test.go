package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/consumables_backend/models"
)

// invoiceOf1416 raises the 10 x 100 mrp, 20% margin, 18% GST invoice.
func invoiceOf1416(t *testing.T, ctx context.Context) *models.SalesInvoice {
	t.Helper()
	store := createStore(t, ctx, "20")
	product := createProduct(t, ctx, "BIS200", "100", "18", 0)
	invoice, err := models.CreateAdHocInvoice(ctx, &models.NewAdHocInvoice{
		StoreId: store.ID,
		Items:   []models.NewInvoiceItem{{ProductId: product.ID, Quantity: dec("10")}},
	})
	if err != nil {
		t.Fatalf("CreateAdHocInvoice: %v", err)
	}
	assertDecimal(t, "total_amount", invoice.TotalAmount, "1416")
	return invoice
}

func TestRecordInvoicePaymentSettlesInvoice(t *testing.T) {
	ctx := setupTestDB(t)
	invoice := invoiceOf1416(t, ctx)
	if invoice.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("new invoice payment status = %s", invoice.PaymentStatus)
	}

	first, err := models.RecordInvoicePayment(ctx, invoice.ID, &models.NewInvoicePayment{
		Amount: dec("1000"),
		Method: models.PaymentMethodBank,
	})
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if first.Summary.PaymentStatus != models.PaymentStatusPartial {
		t.Fatalf("after 1000: status = %s, want partial", first.Summary.PaymentStatus)
	}
	assertDecimal(t, "balance", first.Summary.Balance, "416")
	if first.Payment.CollectedBy != "Test" {
		t.Fatalf("collected_by = %q", first.Payment.CollectedBy)
	}

	second, err := models.RecordInvoicePayment(ctx, invoice.ID, &models.NewInvoicePayment{
		Amount:          dec("416"),
		Method:          models.PaymentMethodCheque,
		ReferenceNumber: " CHQ-77 ",
	})
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if second.Summary.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("after 1416: status = %s, want paid", second.Summary.PaymentStatus)
	}
	if second.Payment.ReferenceNumber != "CHQ-77" {
		t.Fatalf("reference number = %q", second.Payment.ReferenceNumber)
	}
	if second.Summary.Overpaid {
		t.Fatalf("exact settlement flagged as overpaid")
	}

	stored, err := models.GetInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if !stored.TotalPaid.Equal(stored.TotalAmount) {
		t.Fatalf("total_paid %s != total_amount %s", stored.TotalPaid, stored.TotalAmount)
	}

	history, err := models.GetInvoicePaymentHistory(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoicePaymentHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d payments, want 2", len(history))
	}
	sum := history[0].Amount.Add(history[1].Amount)
	assertDecimal(t, "sum of payments", sum, "1416")
}

func TestRecordInvoicePaymentFlagsOverpayment(t *testing.T) {
	ctx := setupTestDB(t)
	invoice := invoiceOf1416(t, ctx)

	result, err := models.RecordInvoicePayment(ctx, invoice.ID, &models.NewInvoicePayment{
		Amount: dec("1500"),
		Method: models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("overpayment rejected: %v", err)
	}
	if !result.Summary.Overpaid {
		t.Fatalf("overpayment not flagged")
	}
	assertDecimal(t, "overpayment", result.Summary.Overpayment, "84")
	assertDecimal(t, "balance", result.Summary.Balance, "0")
	if result.Summary.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid", result.Summary.PaymentStatus)
	}

	records, err := models.ListOutboxStatus(ctx, models.WorkflowReferencePayment, result.Payment.ID)
	if err != nil {
		t.Fatalf("ListOutboxStatus: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("payment outbox records = %d, want 1", len(records))
	}
}

func TestRecordInvoicePaymentWithinTolerance(t *testing.T) {
	ctx := setupTestDB(t)
	invoice := invoiceOf1416(t, ctx)

	result, err := models.RecordInvoicePayment(ctx, invoice.ID, &models.NewInvoicePayment{
		Amount: dec("1415.995"),
		Method: models.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("RecordInvoicePayment: %v", err)
	}
	if result.Summary.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid within tolerance", result.Summary.PaymentStatus)
	}
}

func TestRecordInvoicePaymentValidation(t *testing.T) {
	ctx := setupTestDB(t)
	invoice := invoiceOf1416(t, ctx)

	tests := []struct {
		name  string
		input models.NewInvoicePayment
	}{
		{name: "zero amount", input: models.NewInvoicePayment{Amount: dec("0"), Method: models.PaymentMethodCash}},
		{name: "negative amount", input: models.NewInvoicePayment{Amount: dec("-5"), Method: models.PaymentMethodCash}},
		{name: "missing method", input: models.NewInvoicePayment{Amount: dec("5")}},
		{name: "unknown method", input: models.NewInvoicePayment{Amount: dec("5"), Method: models.PaymentMethod("barter")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			if _, err := models.RecordInvoicePayment(ctx, invoice.ID, &input); !errors.Is(err, models.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}

	if _, err := models.RecordInvoicePayment(ctx, invoice.ID+100, &models.NewInvoicePayment{
		Amount: dec("5"),
		Method: models.PaymentMethodCash,
	}); !errors.Is(err, models.ErrRecordNotFound) {
		t.Fatalf("unknown invoice: err = %v, want ErrRecordNotFound", err)
	}
}

func TestUpdateInvoicePaymentStatus(t *testing.T) {
	ctx := setupTestDB(t)
	invoice := invoiceOf1416(t, ctx)

	if _, err := models.UpdateInvoicePaymentStatus(ctx, invoice.ID, &models.NewInvoicePaymentStatus{
		Status: models.PaymentStatusPaid,
	}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("paid without payment: err = %v, want ErrValidation", err)
	}

	if _, err := models.UpdateInvoicePaymentStatus(ctx, invoice.ID, &models.NewInvoicePaymentStatus{
		Status:  models.PaymentStatusPaid,
		Payment: &models.NewInvoicePayment{Amount: dec("500"), Method: models.PaymentMethodCash},
	}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("paid with short payment: err = %v, want ErrValidation", err)
	}
	history, err := models.GetInvoicePaymentHistory(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoicePaymentHistory: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("rejected status change kept its payment")
	}

	updated, err := models.UpdateInvoicePaymentStatus(ctx, invoice.ID, &models.NewInvoicePaymentStatus{
		Status:  models.PaymentStatusPaid,
		Payment: &models.NewInvoicePayment{Amount: dec("1416"), Method: models.PaymentMethodUpi},
	})
	if err != nil {
		t.Fatalf("UpdateInvoicePaymentStatus: %v", err)
	}
	if updated.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid", updated.PaymentStatus)
	}

	again, err := models.UpdateInvoicePaymentStatus(ctx, invoice.ID, &models.NewInvoicePaymentStatus{
		Status: models.PaymentStatusPaid,
	})
	if err != nil {
		t.Fatalf("mark settled invoice paid: %v", err)
	}
	if again.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("status = %s, want paid", again.PaymentStatus)
	}
	history, err = models.GetInvoicePaymentHistory(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoicePaymentHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d payments, want 1", len(history))
	}
}

func TestDerivePaymentStatus(t *testing.T) {
	tolerance := dec("0.01")
	tests := []struct {
		paid  string
		total string
		want  models.PaymentStatus
	}{
		{paid: "0", total: "1416", want: models.PaymentStatusPending},
		{paid: "1000", total: "1416", want: models.PaymentStatusPartial},
		{paid: "1415.98", total: "1416", want: models.PaymentStatusPartial},
		{paid: "1415.99", total: "1416", want: models.PaymentStatusPaid},
		{paid: "1416", total: "1416", want: models.PaymentStatusPaid},
		{paid: "2000", total: "1416", want: models.PaymentStatusPaid},
		{paid: "0", total: "0", want: models.PaymentStatusPending},
	}
	for _, tt := range tests {
		got := models.DerivePaymentStatus(dec(tt.paid), dec(tt.total), tolerance)
		if got != tt.want {
			t.Errorf("DerivePaymentStatus(%s, %s) = %s, want %s", tt.paid, tt.total, got, tt.want)
		}
	}
}

func TestGetInvoicePaymentSummary(t *testing.T) {
	ctx := setupTestDB(t)
	invoice := invoiceOf1416(t, ctx)
	if _, err := models.RecordInvoicePayment(ctx, invoice.ID, &models.NewInvoicePayment{
		Amount: dec("400"),
		Method: models.PaymentMethodCash,
	}); err != nil {
		t.Fatalf("RecordInvoicePayment: %v", err)
	}
	summary, err := models.GetInvoicePaymentSummary(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoicePaymentSummary: %v", err)
	}
	assertDecimal(t, "total_paid", summary.TotalPaid, "400")
	assertDecimal(t, "balance", summary.Balance, "1016")
	if summary.PaymentStatus != models.PaymentStatusPartial {
		t.Fatalf("status = %s, want partial", summary.PaymentStatus)
	}
}
