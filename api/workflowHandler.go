package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/models"
	"github.com/mmdatafocus/consumables_backend/workflow"
	"github.com/sirupsen/logrus"
)

// pushEnvelope is the body Pub/Sub push subscriptions POST.
type pushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// workflowPushHandler answers 204 to ack and 500 to have Pub/Sub redeliver. Malformed
// messages are acked so they do not loop.
func workflowPushHandler(c *gin.Context) {
	logger := config.GetLogger()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		config.LogError(logger, "api", "workflowPushHandler", "read body", nil, err)
		c.Status(http.StatusNoContent)
		return
	}
	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		config.LogError(logger, "api", "workflowPushHandler", "unmarshal body", string(body), err)
		c.Status(http.StatusNoContent)
		return
	}
	var m config.PubSubMessage
	if err := json.Unmarshal(envelope.Message.Data, &m); err != nil {
		config.LogError(logger, "api", "workflowPushHandler", "unmarshal pubsub message", string(envelope.Message.Data), err)
		c.Status(http.StatusNoContent)
		return
	}
	if m.ID <= 0 || m.ReferenceType == "" {
		config.LogWarn(logger, "api", "workflowPushHandler", "message without id or reference type dropped", m)
		c.Status(http.StatusNoContent)
		return
	}
	if m.CorrelationId == "" {
		m.CorrelationId = envelope.Message.ID
	}

	if err := workflow.HandleDelivery(c.Request.Context(), logger, m); err != nil {
		logger.WithFields(logrus.Fields{
			"field":          "workflowPushHandler",
			"reference_type": m.ReferenceType,
			"reference_id":   m.ReferenceId,
			"message_id":     envelope.Message.ID,
			"correlation_id": m.CorrelationId,
		}).Error("pubsub processing failed: " + err.Error())
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

func listNotifications(c *gin.Context) {
	notifications, err := models.ListNotifications(c.Request.Context(), queryBool(c, "unread"))
	if err != nil {
		writeError(c, err, "listNotifications", nil)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func markNotificationRead(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	n, err := models.MarkNotificationRead(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "markNotificationRead", id)
		return
	}
	c.JSON(http.StatusOK, n)
}

func getOutboxStatus(c *gin.Context) {
	refType := models.WorkflowReferenceType(c.Param("referenceType"))
	refId, ok := pathId(c, "referenceId")
	if !ok {
		return
	}
	statuses, err := models.ListOutboxStatus(c.Request.Context(), refType, refId)
	if err != nil {
		writeError(c, err, "getOutboxStatus", refId)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func listDeadOutbox(c *gin.Context) {
	statuses, err := models.ListDeadOutboxRecords(c.Request.Context())
	if err != nil {
		writeError(c, err, "listDeadOutbox", nil)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func requeueOutboxRecord(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	status, err := models.RequeueOutboxRecord(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "requeueOutboxRecord", id)
		return
	}
	c.JSON(http.StatusOK, status)
}
