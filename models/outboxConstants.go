package models

// Outbox publish statuses for WorkflowMessageRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// OutboxMaxPublishAttempts moves a record to DEAD after this many failed publishes.
const OutboxMaxPublishAttempts = 10
