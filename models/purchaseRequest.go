package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseRequest struct {
	ID            int                     `gorm:"primary_key" json:"id"`
	RequestNumber string                  `gorm:"size:50;not null;uniqueIndex" json:"request_number"`
	SequenceNo    int64                   `gorm:"not null" json:"sequence_no"`
	VendorId      int                     `gorm:"index;not null" json:"vendor_id"`
	Status        PurchaseRequestStatus   `gorm:"size:20;not null;index" json:"status"`
	Notes         string                  `gorm:"type:text" json:"notes"`
	CreatedBy     string                  `gorm:"size:100" json:"created_by"`
	SubmittedAt   *time.Time              `json:"submitted_at"`
	ClosedAt      *time.Time              `json:"closed_at"`
	CancelledAt   *time.Time              `json:"cancelled_at"`
	Details       []PurchaseRequestDetail `gorm:"foreignKey:PurchaseRequestId" json:"details"`
	CreatedAt     time.Time               `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
}

// PurchaseRequestDetail.QuantityReceived only ever grows, and never past QuantityOrdered.
type PurchaseRequestDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	PurchaseRequestId int             `gorm:"index;not null" json:"purchase_request_id"`
	RawMaterialId     int             `gorm:"index;not null" json:"raw_material_id"`
	Name              string          `gorm:"size:100" json:"name"`
	QuantityOrdered   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_ordered"`
	QuantityReceived  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_received"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
}

type NewPurchaseRequest struct {
	VendorId int                        `json:"vendor_id" validate:"required,gt=0"`
	Notes    string                     `json:"notes"`
	Details  []NewPurchaseRequestDetail `json:"details" validate:"required,min=1,dive"`
}

type NewPurchaseRequestDetail struct {
	RawMaterialId   int             `json:"raw_material_id" validate:"required,gt=0"`
	QuantityOrdered decimal.Decimal `json:"quantity_ordered" validate:"gt=0,dp=4"`
	UnitCost        decimal.Decimal `json:"unit_cost" validate:"gte=0,dp=4"`
}

func (d PurchaseRequestDetail) OutstandingQty() decimal.Decimal {
	return d.QuantityOrdered.Sub(d.QuantityReceived)
}

func (pr PurchaseRequest) hasReceipts() bool {
	for _, d := range pr.Details {
		if d.QuantityReceived.IsPositive() {
			return true
		}
	}
	return false
}

func (pr PurchaseRequest) fullyReceived() bool {
	for _, d := range pr.Details {
		if d.OutstandingQty().IsPositive() {
			return false
		}
	}
	return true
}

func (input NewPurchaseRequest) validate() error {
	if err := validateInput(&input); err != nil {
		return err
	}
	seen := make(map[int]bool, len(input.Details))
	for i, d := range input.Details {
		if seen[d.RawMaterialId] {
			return newValidationError(fmt.Sprintf("details[%d].raw_material_id", i), "raw material listed twice")
		}
		seen[d.RawMaterialId] = true
	}
	return nil
}

func loadVendor(tx *gorm.DB, vendorId int) (*Vendor, error) {
	var vendor Vendor
	if err := tx.First(&vendor, vendorId).Error; err != nil {
		if errIsNotFound(err) {
			return nil, newValidationError("vendor_id", "unknown vendor")
		}
		return nil, err
	}
	return &vendor, nil
}

func buildPurchaseRequestDetails(tx *gorm.DB, input []NewPurchaseRequestDetail) ([]PurchaseRequestDetail, error) {
	ids := make([]int, 0, len(input))
	for _, d := range input {
		ids = append(ids, d.RawMaterialId)
	}
	var materials []RawMaterial
	if err := tx.Where("id IN ?", ids).Find(&materials).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]RawMaterial, len(materials))
	for _, m := range materials {
		byId[m.ID] = m
	}
	details := make([]PurchaseRequestDetail, 0, len(input))
	for i, d := range input {
		m, ok := byId[d.RawMaterialId]
		if !ok {
			return nil, newValidationError(fmt.Sprintf("details[%d].raw_material_id", i), "unknown raw material")
		}
		details = append(details, PurchaseRequestDetail{
			RawMaterialId:    m.ID,
			Name:             m.Name,
			QuantityOrdered:  d.QuantityOrdered,
			QuantityReceived: decimal.Zero,
			UnitCost:         d.UnitCost,
		})
	}
	return details, nil
}

func lockPurchaseRequest(tx *gorm.DB, id int) (*PurchaseRequest, error) {
	return utils.LockModel[PurchaseRequest](tx, id, "Details")
}

func CreatePurchaseRequest(ctx context.Context, input *NewPurchaseRequest) (*PurchaseRequest, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var request PurchaseRequest
	err := runInTx(ctx, func(tx *gorm.DB) error {
		if _, err := loadVendor(tx, input.VendorId); err != nil {
			return err
		}
		details, err := buildPurchaseRequestDetails(tx, input.Details)
		if err != nil {
			return err
		}
		seq, number, err := nextTransactionNumber(tx, ModulePurchaseRequest)
		if err != nil {
			return err
		}
		request = PurchaseRequest{
			RequestNumber: number,
			SequenceNo:    seq,
			VendorId:      input.VendorId,
			Status:        PurchaseRequestStatusDraft,
			Notes:         input.Notes,
			CreatedBy:     utils.ActorFromContext(ctx),
			Details:       details,
		}
		return tx.Create(&request).Error
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "PurchaseRequest", "CreatePurchaseRequest", "create purchase request", input, err)
		}
		return nil, err
	}
	return &request, nil
}

// UpdatePurchaseRequest replaces the lines of a draft or submitted request that has
// received nothing yet.
func UpdatePurchaseRequest(ctx context.Context, id int, input *NewPurchaseRequest) (*PurchaseRequest, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var request *PurchaseRequest
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var err error
		request, err = lockPurchaseRequest(tx, id)
		if err != nil {
			return err
		}
		if request.Status != PurchaseRequestStatusDraft && request.Status != PurchaseRequestStatusSubmitted {
			return invalidState("purchase request", request.ID, string(request.Status), "update")
		}
		if _, err := loadVendor(tx, input.VendorId); err != nil {
			return err
		}
		details, err := buildPurchaseRequestDetails(tx, input.Details)
		if err != nil {
			return err
		}
		if err := tx.Where("purchase_request_id = ?", request.ID).Delete(&PurchaseRequestDetail{}).Error; err != nil {
			return err
		}
		for i := range details {
			details[i].PurchaseRequestId = request.ID
		}
		if err := tx.Create(&details).Error; err != nil {
			return err
		}
		if err := tx.Model(&PurchaseRequest{}).Where("id = ?", request.ID).Updates(map[string]interface{}{
			"vendor_id": input.VendorId,
			"notes":     input.Notes,
		}).Error; err != nil {
			return err
		}
		request.VendorId = input.VendorId
		request.Notes = input.Notes
		request.Details = details
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "PurchaseRequest", "UpdatePurchaseRequest", "update purchase request", input, err)
		}
		return nil, err
	}
	return request, nil
}

func transitionPurchaseRequest(ctx context.Context, id int, action string, to PurchaseRequestStatus, from []PurchaseRequestStatus, timestampColumn string) (*PurchaseRequest, error) {
	var request *PurchaseRequest
	err := runInTx(ctx, func(tx *gorm.DB) error {
		var err error
		request, err = lockPurchaseRequest(tx, id)
		if err != nil {
			return err
		}
		allowed := false
		for _, s := range from {
			if request.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return invalidState("purchase request", request.ID, string(request.Status), action)
		}
		if to == PurchaseRequestStatusCancelled && request.hasReceipts() {
			return invalidState("purchase request", request.ID, "partially received", action)
		}
		now := time.Now().UTC()
		if err := tx.Model(&PurchaseRequest{}).Where("id = ?", request.ID).Updates(map[string]interface{}{
			"status":        to,
			timestampColumn: now,
		}).Error; err != nil {
			return err
		}
		request.Status = to
		switch timestampColumn {
		case "submitted_at":
			request.SubmittedAt = &now
		case "closed_at":
			request.ClosedAt = &now
		case "cancelled_at":
			request.CancelledAt = &now
		}
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			config.LogError(config.GetLogger(), "PurchaseRequest", action, "change purchase request status", id, err)
		}
		return nil, err
	}
	return request, nil
}

func SubmitPurchaseRequest(ctx context.Context, id int) (*PurchaseRequest, error) {
	return transitionPurchaseRequest(ctx, id, "submit", PurchaseRequestStatusSubmitted,
		[]PurchaseRequestStatus{PurchaseRequestStatusDraft}, "submitted_at")
}

func CancelPurchaseRequest(ctx context.Context, id int) (*PurchaseRequest, error) {
	return transitionPurchaseRequest(ctx, id, "cancel", PurchaseRequestStatusCancelled,
		[]PurchaseRequestStatus{PurchaseRequestStatusDraft, PurchaseRequestStatusSubmitted}, "cancelled_at")
}

// ClosePurchaseRequest stops further receipts. Whatever is still outstanding is dropped.
func ClosePurchaseRequest(ctx context.Context, id int) (*PurchaseRequest, error) {
	return transitionPurchaseRequest(ctx, id, "close", PurchaseRequestStatusClosed,
		[]PurchaseRequestStatus{PurchaseRequestStatusPartiallyReceived, PurchaseRequestStatusReceived}, "closed_at")
}

func GetPurchaseRequest(ctx context.Context, id int) (*PurchaseRequest, error) {
	return utils.FetchModel[PurchaseRequest](ctx, id, "Details")
}

func ListPurchaseRequests(ctx context.Context, vendorId *int, status *PurchaseRequestStatus) ([]*PurchaseRequest, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	if vendorId != nil && *vendorId > 0 {
		dbCtx = dbCtx.Where("vendor_id = ?", *vendorId)
	}
	if status != nil {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	var results []*PurchaseRequest
	if err := dbCtx.Preload("Details").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
