package models

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseReceipt is one delivery of raw materials against a purchase request (GRN).
type PurchaseReceipt struct {
	ID                int                     `gorm:"primary_key" json:"id"`
	ReceiptNumber     string                  `gorm:"size:50;not null;uniqueIndex" json:"receipt_number"`
	SequenceNo        int64                   `gorm:"not null" json:"sequence_no"`
	PurchaseRequestId int                     `gorm:"index;not null" json:"purchase_request_id"`
	VendorId          int                     `gorm:"index;not null" json:"vendor_id"`
	ReceiptDate       time.Time               `gorm:"not null" json:"receipt_date"`
	Notes             string                  `gorm:"type:text" json:"notes"`
	ReceivedBy        string                  `gorm:"size:100" json:"received_by"`
	Details           []PurchaseReceiptDetail `gorm:"foreignKey:PurchaseReceiptId" json:"details"`
	Bill              *VendorBill             `gorm:"foreignKey:PurchaseReceiptId" json:"bill,omitempty"`
	CreatedAt         time.Time               `gorm:"autoCreateTime" json:"created_at"`
}

type PurchaseReceiptDetail struct {
	ID                      int             `gorm:"primary_key" json:"id"`
	PurchaseReceiptId       int             `gorm:"index;not null" json:"purchase_receipt_id"`
	PurchaseRequestDetailId int             `gorm:"index;not null" json:"purchase_request_detail_id"`
	RawMaterialId           int             `gorm:"index;not null" json:"raw_material_id"`
	Quantity                decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitCost                decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	LineTotal               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"line_total"`
}

type NewPurchaseReceipt struct {
	ReceiptDate *time.Time               `json:"receipt_date"`
	Notes       string                   `json:"notes"`
	Items       []NewPurchaseReceiptItem `json:"items" validate:"required,min=1,dive"`
}

// NewPurchaseReceiptItem.UnitCost overrides the requested unit cost when set.
type NewPurchaseReceiptItem struct {
	RawMaterialId int              `json:"raw_material_id" validate:"required,gt=0"`
	Quantity      decimal.Decimal  `json:"quantity" validate:"gt=0,dp=4"`
	UnitCost      *decimal.Decimal `json:"unit_cost" validate:"omitempty,dp=4"`
}

// PurchaseReceivedEvent is the payload of the GRN received workflow message.
type PurchaseReceivedEvent struct {
	ReceiptId      int   `json:"receipt_id"`
	RequestId      int   `json:"request_id"`
	RawMaterialIds []int `json:"raw_material_ids"`
}

func (input NewPurchaseReceipt) validate() error {
	if err := validateInput(&input); err != nil {
		return err
	}
	seen := make(map[int]bool, len(input.Items))
	for i, item := range input.Items {
		if seen[item.RawMaterialId] {
			return newValidationError(fmt.Sprintf("items[%d].raw_material_id", i), "raw material listed twice")
		}
		seen[item.RawMaterialId] = true
		if item.UnitCost != nil && item.UnitCost.IsNegative() {
			return newValidationError(fmt.Sprintf("items[%d].unit_cost", i), "must not be negative")
		}
	}
	return nil
}

// ReceivePurchase books a delivery: the request lines' received quantities grow, raw
// material stock is incremented and a payable bill due receipt_date + vendor payment days
// is raised. No line may be received beyond what is outstanding.
func ReceivePurchase(ctx context.Context, requestId int, input *NewPurchaseReceipt) (*PurchaseReceipt, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	release, err := utils.EntityLock(ctx, "purchase_request", requestId, "PurchaseReceipt", "ReceivePurchase")
	if err != nil {
		return nil, err
	}
	defer release()

	actor := utils.ActorFromContext(ctx)
	var receipt PurchaseReceipt
	err = runInTx(ctx, func(tx *gorm.DB) error {
		request, err := lockPurchaseRequest(tx, requestId)
		if err != nil {
			return err
		}
		if request.Status != PurchaseRequestStatusSubmitted && request.Status != PurchaseRequestStatusPartiallyReceived {
			return invalidState("purchase request", request.ID, string(request.Status), "receive against")
		}
		vendor, err := loadVendor(tx, request.VendorId)
		if err != nil {
			return err
		}

		detailByMaterial := make(map[int]*PurchaseRequestDetail, len(request.Details))
		for i := range request.Details {
			detailByMaterial[request.Details[i].RawMaterialId] = &request.Details[i]
		}
		for i, item := range input.Items {
			d, ok := detailByMaterial[item.RawMaterialId]
			if !ok {
				return newValidationError(fmt.Sprintf("items[%d].raw_material_id", i), "raw material is not on the request")
			}
			if item.Quantity.GreaterThan(d.OutstandingQty()) {
				return newValidationError(fmt.Sprintf("items[%d].quantity", i),
					fmt.Sprintf("exceeds outstanding quantity %s", d.OutstandingQty().String()))
			}
		}
		// lock order
		items := make([]NewPurchaseReceiptItem, len(input.Items))
		copy(items, input.Items)
		sort.Slice(items, func(i, j int) bool { return items[i].RawMaterialId < items[j].RawMaterialId })
		ids := make([]int, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.RawMaterialId)
		}
		materials, err := lockRawMaterials(tx, ids)
		if err != nil {
			return err
		}

		seq, number, err := nextTransactionNumber(tx, ModulePurchaseReceipt)
		if err != nil {
			return err
		}
		receiptDate := time.Now().UTC()
		if input.ReceiptDate != nil {
			receiptDate = input.ReceiptDate.UTC()
		}
		receipt = PurchaseReceipt{
			ReceiptNumber:     number,
			SequenceNo:        seq,
			PurchaseRequestId: request.ID,
			VendorId:          vendor.ID,
			ReceiptDate:       receiptDate,
			Notes:             input.Notes,
			ReceivedBy:        actor,
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return err
		}

		ref := stockRef{Type: stockRefPurchaseReceipt, Id: receipt.ID, Notes: receipt.ReceiptNumber, Actor: actor}
		billAmount := decimal.Zero
		receipt.Details = make([]PurchaseReceiptDetail, 0, len(items))
		for _, item := range items {
			d := detailByMaterial[item.RawMaterialId]
			if err := incrementRawMaterial(tx, materials[item.RawMaterialId], item.Quantity, StockMovementReasonPurchaseReceipt, ref); err != nil {
				return err
			}
			d.QuantityReceived = d.QuantityReceived.Add(item.Quantity)
			if err := tx.Model(&PurchaseRequestDetail{}).Where("id = ?", d.ID).
				Update("quantity_received", d.QuantityReceived).Error; err != nil {
				return err
			}
			unitCost := d.UnitCost
			if item.UnitCost != nil {
				unitCost = *item.UnitCost
			}
			lineTotal := roundMoney(unitCost.Mul(item.Quantity))
			billAmount = billAmount.Add(lineTotal)
			receipt.Details = append(receipt.Details, PurchaseReceiptDetail{
				PurchaseReceiptId:       receipt.ID,
				PurchaseRequestDetailId: d.ID,
				RawMaterialId:           item.RawMaterialId,
				Quantity:                item.Quantity,
				UnitCost:                unitCost,
				LineTotal:               lineTotal,
			})
		}
		if err := tx.Create(&receipt.Details).Error; err != nil {
			return err
		}

		status := PurchaseRequestStatusPartiallyReceived
		if request.fullyReceived() {
			status = PurchaseRequestStatusReceived
		}
		if err := tx.Model(&PurchaseRequest{}).Where("id = ?", request.ID).Update("status", status).Error; err != nil {
			return err
		}

		bill, err := createVendorBill(tx, vendor, &receipt, billAmount)
		if err != nil {
			return err
		}
		receipt.Bill = bill

		return PublishWorkflowEvent(ctx, tx, receipt.ID, WorkflowReferencePurchaseReceipt, WorkflowActionReceived, PurchaseReceivedEvent{
			ReceiptId:      receipt.ID,
			RequestId:      request.ID,
			RawMaterialIds: ids,
		})
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "PurchaseReceipt", "ReceivePurchase", "receive purchase", input, err)
		}
		return nil, err
	}
	return &receipt, nil
}

func GetPurchaseReceipt(ctx context.Context, id int) (*PurchaseReceipt, error) {
	return utils.FetchModel[PurchaseReceipt](ctx, id, "Details", "Bill")
}

func ListPurchaseReceipts(ctx context.Context, requestId int) ([]*PurchaseReceipt, error) {
	var results []*PurchaseReceipt
	if err := config.GetDB().WithContext(ctx).
		Preload("Details").Preload("Bill").
		Where("purchase_request_id = ?", requestId).
		Order("receipt_date ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
