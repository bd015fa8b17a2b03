package workflow

import (
	"context"
	"strconv"
	"time"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func handlerName(m config.PubSubMessage) string {
	return m.ReferenceType + "." + m.Action
}

// ProcessMessage applies one workflow message at most once. Both the Pub/Sub subscriber
// and the direct outbox processor deliver through here, so duplicates are expected.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		name := handlerName(m)
		messageId := strconv.Itoa(m.ID)

		skip, err := BeginIdempotency(tx, name, messageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		if err := ProcessWorkflow(tx, logger, m); err != nil {
			_ = MarkIdempotencyFailed(tx, name, messageId, err)
			return err
		}
		if err := MarkIdempotencySucceeded(tx, name, messageId); err != nil {
			return err
		}

		now := time.Now().UTC()
		return tx.Model(&models.WorkflowMessageRecord{}).
			Where("id = ?", m.ID).
			Updates(map[string]interface{}{
				"is_processed":       true,
				"processed_at":       &now,
				"last_process_error": nil,
			}).Error
	})
}

func ProcessWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	refType := models.WorkflowReferenceType(msg.ReferenceType)
	action := models.WorkflowAction(msg.Action)

	switch {
	case refType == models.WorkflowReferenceSalesOrder && action == models.WorkflowActionApproved:
		return ProcessSalesOrderApprovedWorkflow(tx, logger, msg)
	case refType == models.WorkflowReferenceProductionOrder && action == models.WorkflowActionCompleted,
		refType == models.WorkflowReferenceStockAdjustment && action == models.WorkflowActionAdjusted,
		refType == models.WorkflowReferencePurchaseReceipt && action == models.WorkflowActionReceived:
		return ProcessReorderLevelWorkflow(tx, logger, msg)
	case refType == models.WorkflowReferencePayment && action == models.WorkflowActionPaymentRecorded:
		return ProcessPaymentRecordedWorkflow(tx, logger, msg)
	case refType == models.WorkflowReferenceBatch && action == models.WorkflowActionStatusChanged:
		return ProcessBatchStatusWorkflow(tx, logger, msg)
	}
	return nil
}
