package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
)

// OutboxStatus is the operator view of one outbox record.
type OutboxStatus struct {
	RecordId         int                   `json:"record_id"`
	ReferenceType    WorkflowReferenceType `json:"reference_type"`
	ReferenceId      int                   `json:"reference_id"`
	Action           WorkflowAction        `json:"action"`
	PublishStatus    string                `json:"publish_status"`
	IsProcessed      bool                  `json:"is_processed"`
	PublishAttempts  int                   `json:"publish_attempts"`
	NextAttemptAt    *time.Time            `json:"next_attempt_at"`
	LastPublishError *string               `json:"last_publish_error"`
	LastProcessError *string               `json:"last_process_error"`
	CreatedAt        time.Time             `json:"created_at"`
	PublishedAt      *time.Time            `json:"published_at"`
	ProcessedAt      *time.Time            `json:"processed_at"`
}

func toOutboxStatus(r WorkflowMessageRecord) *OutboxStatus {
	return &OutboxStatus{
		RecordId:         r.ID,
		ReferenceType:    r.ReferenceType,
		ReferenceId:      r.ReferenceId,
		Action:           r.Action,
		PublishStatus:    r.PublishStatus,
		IsProcessed:      r.IsProcessed,
		PublishAttempts:  r.PublishAttempts,
		NextAttemptAt:    r.NextAttemptAt,
		LastPublishError: r.LastPublishError,
		LastProcessError: r.LastProcessError,
		CreatedAt:        r.CreatedAt,
		PublishedAt:      r.PublishedAt,
		ProcessedAt:      r.ProcessedAt,
	}
}

// ListOutboxStatus returns the outbox records of one document, oldest first.
func ListOutboxStatus(ctx context.Context, referenceType WorkflowReferenceType, referenceId int) ([]*OutboxStatus, error) {
	var records []WorkflowMessageRecord
	if err := config.GetDB().WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	results := make([]*OutboxStatus, 0, len(records))
	for _, r := range records {
		results = append(results, toOutboxStatus(r))
	}
	return results, nil
}

// ListDeadOutboxRecords returns records that gave up publishing.
func ListDeadOutboxRecords(ctx context.Context) ([]*OutboxStatus, error) {
	var records []WorkflowMessageRecord
	if err := config.GetDB().WithContext(ctx).
		Where("publish_status = ? AND is_processed = ?", OutboxPublishStatusDead, false).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	results := make([]*OutboxStatus, 0, len(records))
	for _, r := range records {
		results = append(results, toOutboxStatus(r))
	}
	return results, nil
}

// RequeueOutboxRecord puts an unprocessed record back to PENDING with a fresh attempt count.
func RequeueOutboxRecord(ctx context.Context, recordId int) (*OutboxStatus, error) {
	db := config.GetDB().WithContext(ctx)
	res := db.Model(&WorkflowMessageRecord{}).
		Where("id = ? AND is_processed = ?", recordId, false).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusPending,
			"publish_attempts":   0,
			"next_attempt_at":    nil,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
			"last_process_error": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	var record WorkflowMessageRecord
	if err := db.First(&record, recordId).Error; err != nil {
		if errIsNotFound(err) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return toOutboxStatus(record), nil
}
