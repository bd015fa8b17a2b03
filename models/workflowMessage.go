package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"gorm.io/gorm"
)

type WorkflowReferenceType string

const (
	WorkflowReferenceSalesOrder      WorkflowReferenceType = "SO"
	WorkflowReferenceSalesInvoice    WorkflowReferenceType = "IV"
	WorkflowReferencePayment         WorkflowReferenceType = "PAY"
	WorkflowReferenceProductionOrder WorkflowReferenceType = "PRD"
	WorkflowReferencePurchaseReceipt WorkflowReferenceType = "GRN"
	WorkflowReferenceStockAdjustment WorkflowReferenceType = "STK"
	WorkflowReferenceBatch           WorkflowReferenceType = "BAT"
)

type WorkflowAction string

const (
	WorkflowActionApproved        WorkflowAction = "approved"
	WorkflowActionCompleted       WorkflowAction = "completed"
	WorkflowActionCancelled       WorkflowAction = "cancelled"
	WorkflowActionDispatched      WorkflowAction = "dispatched"
	WorkflowActionPaymentRecorded WorkflowAction = "payment_recorded"
	WorkflowActionReceived        WorkflowAction = "received"
	WorkflowActionAdjusted        WorkflowAction = "adjusted"
	WorkflowActionStatusChanged   WorkflowAction = "status_changed"
)

// WorkflowMessageRecord is the transactional outbox. It is written inside the caller's
// transaction; the dispatcher publishes it after commit.
type WorkflowMessageRecord struct {
	ID                  int                   `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	TransactionDateTime time.Time             `gorm:"index;not null" json:"transaction_date_time"`
	ReferenceId         int                   `gorm:"index" json:"reference_id"`
	ReferenceType       WorkflowReferenceType `gorm:"size:10;not null" json:"reference_type"`
	Action              WorkflowAction        `gorm:"size:30;not null" json:"action"`
	Payload             []byte                `gorm:"type:blob" json:"payload"`
	PublishStatus       string                `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt         *time.Time            `gorm:"index" json:"published_at"`
	PubSubMessageId     *string               `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts     int                   `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt       *time.Time            `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt            *time.Time            `gorm:"index" json:"locked_at"`
	LockedBy            *string               `gorm:"size:100" json:"locked_by"`
	LastPublishError    *string               `gorm:"type:text" json:"last_publish_error"`
	IsProcessed         bool                  `gorm:"index;not null;default:false" json:"is_processed"`
	ProcessedAt         *time.Time            `gorm:"index" json:"processed_at"`
	LastProcessError    *string               `gorm:"type:text" json:"last_process_error"`
	CorrelationId       string                `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt           time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToPubSubMessage(record WorkflowMessageRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:                  record.ID,
		TransactionDateTime: record.TransactionDateTime,
		ReferenceId:         record.ReferenceId,
		ReferenceType:       string(record.ReferenceType),
		Action:              string(record.Action),
		Payload:             record.Payload,
		CorrelationId:       record.CorrelationId,
	}
}

// PublishWorkflowEvent writes an outbox row inside tx. Nothing is sent until the
// transaction commits and a dispatcher picks the row up.
func PublishWorkflowEvent(ctx context.Context, tx *gorm.DB, refId int, refType WorkflowReferenceType, action WorkflowAction, payload interface{}) error {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}
	record := WorkflowMessageRecord{
		TransactionDateTime: time.Now().UTC(),
		ReferenceId:         refId,
		ReferenceType:       refType,
		Action:              action,
		Payload:             data,
		PublishStatus:       OutboxPublishStatusPending,
		CorrelationId:       utils.CorrelationId(ctx),
	}
	return tx.WithContext(ctx).Create(&record).Error
}
