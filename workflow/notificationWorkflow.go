package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/models"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const referenceRawMaterial = "RM"

func notify(tx *gorm.DB, n *models.Notification) error {
	return models.CreateNotification(tx.Statement.Context, tx, n)
}

// ProcessSalesOrderApprovedWorkflow raises one stock shortage notification per short line.
func ProcessSalesOrderApprovedWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	var event models.SalesOrderApprovedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		config.LogError(logger, "NotificationWorkflow", "ProcessSalesOrderApprovedWorkflow", "decode payload", msg.ReferenceId, err)
		return err
	}
	for _, w := range event.Warnings {
		if err := notify(tx, &models.Notification{
			Kind:  models.NotificationKindStockShortage,
			Title: fmt.Sprintf("Stock shortage on %s", event.OrderNumber),
			Message: fmt.Sprintf("%s: ordered %s, available %s, short by %s",
				w.ProductName, w.Ordered.String(), w.Available.String(), w.Shortage.String()),
			ReferenceType: string(models.WorkflowReferenceSalesOrder),
			ReferenceId:   event.OrderId,
		}); err != nil {
			return err
		}
	}
	return nil
}

// touchedRawMaterials lists the raw materials whose stock a message changed.
func touchedRawMaterials(msg config.PubSubMessage) ([]int, error) {
	switch models.WorkflowReferenceType(msg.ReferenceType) {
	case models.WorkflowReferenceProductionOrder:
		var order models.ProductionOrder
		if err := json.Unmarshal(msg.Payload, &order); err != nil {
			return nil, err
		}
		ids := make([]int, 0, len(order.Materials))
		for _, m := range order.Materials {
			ids = append(ids, m.RawMaterialId)
		}
		return ids, nil
	case models.WorkflowReferencePurchaseReceipt:
		var event models.PurchaseReceivedEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return nil, err
		}
		return event.RawMaterialIds, nil
	case models.WorkflowReferenceStockAdjustment:
		return []int{msg.ReferenceId}, nil
	}
	return nil, nil
}

// ProcessReorderLevelWorkflow warns about raw materials at or below their reorder level.
// A material with an unread reorder notification is not notified again.
func ProcessReorderLevelWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	ids, err := touchedRawMaterials(msg)
	if err != nil {
		config.LogError(logger, "NotificationWorkflow", "ProcessReorderLevelWorkflow", "decode payload", msg.ReferenceId, err)
		return err
	}
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return nil
	}

	var materials []models.RawMaterial
	if err := tx.Where("id IN ?", ids).Order("id ASC").Find(&materials).Error; err != nil {
		return err
	}
	for _, m := range materials {
		if !m.ReorderLevel.IsPositive() || m.StockQty.GreaterThan(m.ReorderLevel) {
			continue
		}
		var open int64
		if err := tx.Model(&models.Notification{}).
			Where("kind = ? AND reference_type = ? AND reference_id = ? AND is_read = ?",
				models.NotificationKindReorderLevel, referenceRawMaterial, m.ID, false).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			continue
		}
		if err := notify(tx, &models.Notification{
			Kind:  models.NotificationKindReorderLevel,
			Title: fmt.Sprintf("%s is at reorder level", m.Name),
			Message: fmt.Sprintf("stock %s %s, reorder level %s %s",
				m.StockQty.String(), m.Unit, m.ReorderLevel.String(), m.Unit),
			ReferenceType: referenceRawMaterial,
			ReferenceId:   m.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func ProcessPaymentRecordedWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	var event models.PaymentRecordedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		config.LogError(logger, "NotificationWorkflow", "ProcessPaymentRecordedWorkflow", "decode payload", msg.ReferenceId, err)
		return err
	}
	if !event.Overpaid {
		return nil
	}
	return notify(tx, &models.Notification{
		Kind:  models.NotificationKindOverpayment,
		Title: fmt.Sprintf("Invoice %s is overpaid", event.InvoiceNumber),
		Message: fmt.Sprintf("paid %s against a total of %s, overpaid by %s",
			event.TotalPaid.String(), event.TotalAmount.String(), event.Overpayment.String()),
		ReferenceType: string(models.WorkflowReferenceSalesInvoice),
		ReferenceId:   event.InvoiceId,
	})
}

// ProcessBatchStatusWorkflow notifies when a batch is pulled from sale.
func ProcessBatchStatusWorkflow(tx *gorm.DB, logger *logrus.Logger, msg config.PubSubMessage) error {
	var batch models.Batch
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		config.LogError(logger, "NotificationWorkflow", "ProcessBatchStatusWorkflow", "decode payload", msg.ReferenceId, err)
		return err
	}
	if batch.Status != models.BatchStatusExpired && batch.Status != models.BatchStatusRecalled {
		return nil
	}
	message := fmt.Sprintf("%s remaining", batch.QuantityRemaining.String())
	if batch.StatusReason != "" {
		message += ": " + batch.StatusReason
	}
	return notify(tx, &models.Notification{
		Kind:          models.NotificationKindBatchStatus,
		Title:         fmt.Sprintf("Batch %s %s", batch.BatchNumber, batch.Status),
		Message:       message,
		ReferenceType: string(models.WorkflowReferenceBatch),
		ReferenceId:   batch.ID,
	})
}
