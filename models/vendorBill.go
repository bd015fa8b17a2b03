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

// VendorBill is the payable raised by one purchase receipt.
type VendorBill struct {
	ID                int                 `gorm:"primary_key" json:"id"`
	BillNumber        string              `gorm:"size:50;not null;uniqueIndex" json:"bill_number"`
	SequenceNo        int64               `gorm:"not null" json:"sequence_no"`
	VendorId          int                 `gorm:"index;not null" json:"vendor_id"`
	PurchaseReceiptId int                 `gorm:"not null;uniqueIndex" json:"purchase_receipt_id"`
	BillDate          time.Time           `gorm:"not null" json:"bill_date"`
	DueDate           time.Time           `gorm:"not null;index" json:"due_date"`
	Amount            decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"amount"`
	AmountPaid        decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"amount_paid"`
	PaymentStatus     PaymentStatus       `gorm:"size:20;not null;index" json:"payment_status"`
	Payments          []VendorBillPayment `gorm:"foreignKey:VendorBillId" json:"payments,omitempty"`
	CreatedAt         time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type VendorBillPayment struct {
	ID              int             `gorm:"primary_key" json:"id"`
	VendorBillId    int             `gorm:"index;not null" json:"vendor_bill_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method          PaymentMethod   `gorm:"size:20;not null" json:"method"`
	PaymentDate     time.Time       `gorm:"not null" json:"payment_date"`
	ReferenceNumber string          `gorm:"size:100" json:"reference_number"`
	Notes           string          `gorm:"type:text" json:"notes"`
	PaidBy          string          `gorm:"size:100" json:"paid_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewVendorBillPayment struct {
	Amount          decimal.Decimal `json:"amount" validate:"gt=0,dp=4"`
	Method          PaymentMethod   `json:"method" validate:"required"`
	PaymentDate     *time.Time      `json:"payment_date"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	Notes           string          `json:"notes"`
}

func (b VendorBill) Balance() decimal.Decimal {
	return b.Amount.Sub(b.AmountPaid)
}

func (b VendorBill) IsOverdue(asOf time.Time) bool {
	return b.PaymentStatus != PaymentStatusPaid && b.DueDate.Before(asOf)
}

func createVendorBill(tx *gorm.DB, vendor *Vendor, receipt *PurchaseReceipt, amount decimal.Decimal) (*VendorBill, error) {
	seq, number, err := nextTransactionNumber(tx, ModuleVendorBill)
	if err != nil {
		return nil, err
	}
	bill := VendorBill{
		BillNumber:        number,
		SequenceNo:        seq,
		VendorId:          vendor.ID,
		PurchaseReceiptId: receipt.ID,
		BillDate:          receipt.ReceiptDate,
		DueDate:           receipt.ReceiptDate.AddDate(0, 0, vendor.PaymentDays),
		Amount:            amount,
		AmountPaid:        decimal.Zero,
		PaymentStatus:     PaymentStatusPending,
	}
	if amount.IsZero() {
		bill.PaymentStatus = PaymentStatusPaid
	}
	if err := tx.Create(&bill).Error; err != nil {
		return nil, err
	}
	return &bill, nil
}

// RecordVendorBillPayment pays a vendor bill. Unlike customer invoices, paying more than
// the balance (beyond tolerance) is rejected.
func RecordVendorBillPayment(ctx context.Context, billId int, input *NewVendorBillPayment) (*VendorBill, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.Method.IsValid() {
		return nil, newValidationError("method", "invalid payment method")
	}

	var bill *VendorBill
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var err error
		bill, err = utils.LockModel[VendorBill](tx, billId)
		if err != nil {
			return err
		}
		tolerance := config.PaymentTolerance()
		if bill.PaymentStatus == PaymentStatusPaid {
			return invalidState("vendor bill", bill.ID, string(bill.PaymentStatus), "pay")
		}
		if input.Amount.GreaterThan(bill.Balance().Add(tolerance)) {
			return newValidationError("amount", "exceeds the bill balance "+bill.Balance().String())
		}
		paymentDate := time.Now().UTC()
		if input.PaymentDate != nil {
			paymentDate = input.PaymentDate.UTC()
		}
		payment := VendorBillPayment{
			VendorBillId:    bill.ID,
			Amount:          input.Amount,
			Method:          input.Method,
			PaymentDate:     paymentDate,
			ReferenceNumber: strings.TrimSpace(input.ReferenceNumber),
			Notes:           input.Notes,
			PaidBy:          utils.ActorFromContext(ctx),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		paid := bill.AmountPaid.Add(input.Amount)
		status := DerivePaymentStatus(paid, bill.Amount, tolerance)
		if err := tx.Model(&VendorBill{}).Where("id = ?", bill.ID).Updates(map[string]interface{}{
			"amount_paid":    paid,
			"payment_status": status,
		}).Error; err != nil {
			return err
		}
		bill.AmountPaid = paid
		bill.PaymentStatus = status
		bill.Payments = append(bill.Payments, payment)
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "VendorBill", "RecordVendorBillPayment", "record vendor bill payment", input, err)
		}
		return nil, err
	}
	return bill, nil
}

func GetVendorBill(ctx context.Context, id int) (*VendorBill, error) {
	return utils.FetchModel[VendorBill](ctx, id, "Payments")
}

// ListDueVendorBills returns unpaid bills due on or before asOf, earliest due first.
func ListDueVendorBills(ctx context.Context, asOf time.Time) ([]*VendorBill, error) {
	var results []*VendorBill
	if err := config.GetDB().WithContext(ctx).
		Where("payment_status <> ? AND due_date <= ?", PaymentStatusPaid, asOf).
		Order("due_date ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
