package models

import (
	"encoding/json"
	"fmt"
)

type SalesOrderStatus string

const (
	SalesOrderStatusDraft     SalesOrderStatus = "draft"
	SalesOrderStatusSubmitted SalesOrderStatus = "submitted"
	SalesOrderStatusApproved  SalesOrderStatus = "approved"
	SalesOrderStatusInvoiced  SalesOrderStatus = "invoiced"
	SalesOrderStatusCancelled SalesOrderStatus = "cancelled"
)

func (s SalesOrderStatus) IsValid() bool {
	switch s {
	case SalesOrderStatusDraft, SalesOrderStatusSubmitted, SalesOrderStatusApproved,
		SalesOrderStatusInvoiced, SalesOrderStatusCancelled:
		return true
	}
	return false
}

func (s *SalesOrderStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, "sales order status")
}

type ProductionOrderStatus string

const (
	ProductionOrderStatusPending    ProductionOrderStatus = "pending"
	ProductionOrderStatusInProgress ProductionOrderStatus = "in_progress"
	ProductionOrderStatusCompleted  ProductionOrderStatus = "completed"
	ProductionOrderStatusCancelled  ProductionOrderStatus = "cancelled"
)

func (s ProductionOrderStatus) IsValid() bool {
	switch s {
	case ProductionOrderStatusPending, ProductionOrderStatusInProgress,
		ProductionOrderStatusCompleted, ProductionOrderStatusCancelled:
		return true
	}
	return false
}

func (s ProductionOrderStatus) IsTerminal() bool {
	return s == ProductionOrderStatusCompleted || s == ProductionOrderStatusCancelled
}

func (s *ProductionOrderStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, "production order status")
}

type BatchStatus string

const (
	BatchStatusAvailable BatchStatus = "available"
	BatchStatusDepleted  BatchStatus = "depleted"
	BatchStatusExpired   BatchStatus = "expired"
	BatchStatusRecalled  BatchStatus = "recalled"
)

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusAvailable, BatchStatusDepleted, BatchStatusExpired, BatchStatusRecalled:
		return true
	}
	return false
}

func (s *BatchStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, "batch status")
}

type InvoiceStatus string

const (
	InvoiceStatusActive    InvoiceStatus = "active"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) IsValid() bool {
	return s == InvoiceStatusActive || s == InvoiceStatusCancelled
}

func (s *InvoiceStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, "invoice status")
}

type BillingStatus string

const (
	BillingStatusPending BillingStatus = "pending"
	BillingStatusBilled  BillingStatus = "billed"
	BillingStatusOverdue BillingStatus = "overdue"
)

func (s BillingStatus) IsValid() bool {
	switch s {
	case BillingStatusPending, BillingStatusBilled, BillingStatusOverdue:
		return true
	}
	return false
}

func (s *BillingStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, "billing status")
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

func (s *PaymentStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, "payment status")
}

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodUpi    PaymentMethod = "upi"
	PaymentMethodBank   PaymentMethod = "bank_transfer"
	PaymentMethodCheque PaymentMethod = "cheque"
	PaymentMethodCard   PaymentMethod = "card"
)

func (s PaymentMethod) IsValid() bool {
	switch s {
	case PaymentMethodCash, PaymentMethodUpi, PaymentMethodBank, PaymentMethodCheque, PaymentMethodCard:
		return true
	}
	return false
}

func (s *PaymentMethod) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, "payment method")
}

type PurchaseRequestStatus string

const (
	PurchaseRequestStatusDraft             PurchaseRequestStatus = "draft"
	PurchaseRequestStatusSubmitted         PurchaseRequestStatus = "submitted"
	PurchaseRequestStatusPartiallyReceived PurchaseRequestStatus = "partially_received"
	PurchaseRequestStatusReceived          PurchaseRequestStatus = "received"
	PurchaseRequestStatusClosed            PurchaseRequestStatus = "closed"
	PurchaseRequestStatusCancelled         PurchaseRequestStatus = "cancelled"
)

func (s PurchaseRequestStatus) IsValid() bool {
	switch s {
	case PurchaseRequestStatusDraft, PurchaseRequestStatusSubmitted, PurchaseRequestStatusPartiallyReceived,
		PurchaseRequestStatusReceived, PurchaseRequestStatusClosed, PurchaseRequestStatusCancelled:
		return true
	}
	return false
}

func (s *PurchaseRequestStatus) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, s, "purchase request status")
}

type StockMovementReason string

const (
	StockMovementReasonAdjustment        StockMovementReason = "adjustment"
	StockMovementReasonProductionReserve StockMovementReason = "production_reserve"
	StockMovementReasonProductionRelease StockMovementReason = "production_release"
	StockMovementReasonProductionConsume StockMovementReason = "production_consume"
	StockMovementReasonProductionOutput  StockMovementReason = "production_output"
	StockMovementReasonInvoiceDispatch   StockMovementReason = "invoice_dispatch"
	StockMovementReasonPurchaseReceipt   StockMovementReason = "purchase_receipt"
	StockMovementReasonBatchExpired      StockMovementReason = "batch_expired"
	StockMovementReasonBatchRecalled     StockMovementReason = "batch_recalled"
)

type StockItemType string

const (
	StockItemTypeRawMaterial StockItemType = "raw_material"
	StockItemTypeProduct     StockItemType = "product"
)

type enumValue interface {
	IsValid() bool
}

func unmarshalEnum[T ~string](b []byte, dst *T, name string) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("%s must be string", name)
	}
	v := T(str)
	if e, ok := any(v).(enumValue); ok && !e.IsValid() {
		return newValidationError(name, fmt.Sprintf("invalid value %q", str))
	}
	*dst = v
	return nil
}
