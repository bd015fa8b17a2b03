package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoicePayment is append-only. Nothing in this package updates or deletes a payment.
type InvoicePayment struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SalesInvoiceId  int             `gorm:"index:idx_invoice_payment_date,priority:1;not null" json:"sales_invoice_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method          PaymentMethod   `gorm:"size:20;not null" json:"method"`
	PaymentDate     time.Time       `gorm:"index:idx_invoice_payment_date,priority:2;not null" json:"payment_date"`
	ReferenceNumber string          `gorm:"size:100" json:"reference_number"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CollectedBy     string          `gorm:"size:100" json:"collected_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewInvoicePayment struct {
	Amount          decimal.Decimal `json:"amount" validate:"gt=0,dp=4"`
	Method          PaymentMethod   `json:"method" validate:"required"`
	PaymentDate     *time.Time      `json:"payment_date"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	Notes           string          `json:"notes"`
}

// NewInvoicePaymentStatus is a manual payment status edit. Marking an invoice paid needs
// a payment unless recorded payments already settle it.
type NewInvoicePaymentStatus struct {
	Status  PaymentStatus      `json:"payment_status" validate:"required"`
	Payment *NewInvoicePayment `json:"payment"`
}

type InvoicePaymentSummary struct {
	InvoiceId     int             `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Balance       decimal.Decimal `json:"balance"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Overpaid      bool            `json:"overpaid"`
	Overpayment   decimal.Decimal `json:"overpayment"`
}

type PaymentResult struct {
	Payment *InvoicePayment        `json:"payment"`
	Summary *InvoicePaymentSummary `json:"summary"`
}

// PaymentRecordedEvent is the payload of the PAY payment_recorded workflow message.
type PaymentRecordedEvent struct {
	PaymentId     int             `json:"payment_id"`
	InvoiceId     int             `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Overpaid      bool            `json:"overpaid"`
	Overpayment   decimal.Decimal `json:"overpayment"`
}

// DerivePaymentStatus maps what has been paid against the invoice total. Differences
// within tolerance count as settled.
func DerivePaymentStatus(totalPaid decimal.Decimal, totalAmount decimal.Decimal, tolerance decimal.Decimal) PaymentStatus {
	if !totalPaid.IsPositive() {
		return PaymentStatusPending
	}
	if totalPaid.GreaterThanOrEqual(totalAmount.Sub(tolerance)) {
		return PaymentStatusPaid
	}
	return PaymentStatusPartial
}

func paymentSummary(invoice *SalesInvoice, tolerance decimal.Decimal) *InvoicePaymentSummary {
	summary := &InvoicePaymentSummary{
		InvoiceId:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		TotalAmount:   invoice.TotalAmount,
		TotalPaid:     invoice.TotalPaid,
		Balance:       invoice.TotalAmount.Sub(invoice.TotalPaid),
		PaymentStatus: invoice.PaymentStatus,
		Overpayment:   decimal.Zero,
	}
	if over := invoice.TotalPaid.Sub(invoice.TotalAmount); over.GreaterThan(tolerance) {
		summary.Overpaid = true
		summary.Overpayment = over
		summary.Balance = decimal.Zero
	}
	return summary
}

func (input *NewInvoicePayment) validate() error {
	if err := validateInput(input); err != nil {
		return err
	}
	if !input.Method.IsValid() {
		return newValidationError("method", "invalid payment method")
	}
	return nil
}

// appendInvoicePayment adds a payment to a locked invoice and re-derives its paid total
// and payment status from the whole ledger.
func appendInvoicePayment(ctx context.Context, tx *gorm.DB, invoice *SalesInvoice, input *NewInvoicePayment) (*PaymentResult, error) {
	paymentDate := time.Now().UTC()
	if input.PaymentDate != nil {
		paymentDate = input.PaymentDate.UTC()
	}
	payment := InvoicePayment{
		SalesInvoiceId:  invoice.ID,
		Amount:          input.Amount,
		Method:          input.Method,
		PaymentDate:     paymentDate,
		ReferenceNumber: strings.TrimSpace(input.ReferenceNumber),
		Notes:           input.Notes,
		CollectedBy:     utils.ActorFromContext(ctx),
	}
	if err := tx.Create(&payment).Error; err != nil {
		return nil, err
	}

	var payments []InvoicePayment
	if err := tx.Where("sales_invoice_id = ?", invoice.ID).Find(&payments).Error; err != nil {
		return nil, err
	}
	totalPaid := decimal.Zero
	for _, p := range payments {
		totalPaid = totalPaid.Add(p.Amount)
	}
	tolerance := config.PaymentTolerance()
	status := DerivePaymentStatus(totalPaid, invoice.TotalAmount, tolerance)
	if err := tx.Model(&SalesInvoice{}).Where("id = ?", invoice.ID).Updates(map[string]interface{}{
		"total_paid":     totalPaid,
		"payment_status": status,
	}).Error; err != nil {
		return nil, err
	}
	invoice.TotalPaid = totalPaid
	invoice.PaymentStatus = status

	summary := paymentSummary(invoice, tolerance)
	if summary.Overpaid {
		config.LogWarn(config.GetLogger(), "InvoicePayment", "appendInvoicePayment", "invoice overpaid", summary)
	}
	event := PaymentRecordedEvent{
		PaymentId:     payment.ID,
		InvoiceId:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Amount:        payment.Amount,
		TotalPaid:     totalPaid,
		TotalAmount:   invoice.TotalAmount,
		Overpaid:      summary.Overpaid,
		Overpayment:   summary.Overpayment,
	}
	if err := PublishWorkflowEvent(ctx, tx, payment.ID, WorkflowReferencePayment, WorkflowActionPaymentRecorded, event); err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: &payment, Summary: summary}, nil
}

// RecordInvoicePayment appends a payment to an active invoice. Overpayment is accepted
// and flagged in the summary.
func RecordInvoicePayment(ctx context.Context, invoiceId int, input *NewInvoicePayment) (*PaymentResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var result *PaymentResult
	err := runInTx(ctx, func(tx *gorm.DB) error {
		invoice, err := lockInvoice(tx, invoiceId)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusActive {
			return invalidState("invoice", invoice.ID, string(invoice.Status), "record payment on")
		}
		result, err = appendInvoicePayment(ctx, tx, invoice, input)
		return err
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "InvoicePayment", "RecordInvoicePayment", "record payment", input, err)
		}
		return nil, err
	}
	return result, nil
}

// UpdateInvoicePaymentStatus applies a manual payment status. The optional payment is
// recorded first, then the requested status must agree with the ledger. Asking for paid
// on an invoice the ledger already settles records nothing.
func UpdateInvoicePaymentStatus(ctx context.Context, invoiceId int, input *NewInvoicePaymentStatus) (*SalesInvoice, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.Status.IsValid() {
		return nil, newValidationError("payment_status", "invalid payment status")
	}
	if input.Payment != nil {
		if err := input.Payment.validate(); err != nil {
			return nil, err
		}
	}

	var invoice *SalesInvoice
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var err error
		invoice, err = lockInvoice(tx, invoiceId)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusActive {
			return invalidState("invoice", invoice.ID, string(invoice.Status), "change payment status of")
		}
		tolerance := config.PaymentTolerance()
		settled := DerivePaymentStatus(invoice.TotalPaid, invoice.TotalAmount, tolerance) == PaymentStatusPaid

		if input.Status == PaymentStatusPaid && settled {
			if invoice.PaymentStatus != PaymentStatusPaid {
				if err := tx.Model(&SalesInvoice{}).Where("id = ?", invoice.ID).Update("payment_status", PaymentStatusPaid).Error; err != nil {
					return err
				}
				invoice.PaymentStatus = PaymentStatusPaid
			}
			return nil
		}
		if input.Status == PaymentStatusPaid && input.Payment == nil {
			return newValidationError("payment", "amount, method and date are required to mark an invoice paid")
		}
		if input.Payment != nil {
			if _, err := appendInvoicePayment(ctx, tx, invoice, input.Payment); err != nil {
				return err
			}
		}
		derived := DerivePaymentStatus(invoice.TotalPaid, invoice.TotalAmount, tolerance)
		if derived != input.Status {
			return newValidationError("payment_status", "recorded payments make the invoice "+string(derived))
		}
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "InvoicePayment", "UpdateInvoicePaymentStatus", "update payment status", input, err)
		}
		return nil, err
	}
	return invoice, nil
}

// GetInvoicePaymentHistory returns the payments of an invoice, oldest payment date first.
func GetInvoicePaymentHistory(ctx context.Context, invoiceId int) ([]*InvoicePayment, error) {
	db := config.GetDB()
	if err := utils.ValidateResourceId[SalesInvoice](ctx, db, invoiceId); err != nil {
		return nil, err
	}
	var results []*InvoicePayment
	if err := db.WithContext(ctx).
		Where("sales_invoice_id = ?", invoiceId).
		Order("payment_date ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetInvoicePaymentSummary(ctx context.Context, invoiceId int) (*InvoicePaymentSummary, error) {
	invoice, err := utils.FetchModel[SalesInvoice](ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	return paymentSummary(invoice, config.PaymentTolerance()), nil
}
