package workflow

import (
	"context"
	"encoding/json"
	"os"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/consumables_backend/config"
	"github.com/mmdatafocus/consumables_backend/utils"
	"github.com/sirupsen/logrus"
)

// RunWorkflowSubscriber starts receiving workflow messages from PUBSUB_SUBSCRIPTION in the
// background. Failed messages are nacked so Pub/Sub redelivers them.
func RunWorkflowSubscriber(ctx context.Context) error {
	logger := config.GetLogger()
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(ctx, client, os.Getenv("PUBSUB_TOPIC"))
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(ctx, client, os.Getenv("PUBSUB_SUBSCRIPTION"), topic)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 10

	callback := func(ctx context.Context, msg *pubsub.Message) {
		m := config.PubSubMessage{}
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			// undecodable messages would loop forever
			config.LogError(logger, "Subscriber", "RunWorkflowSubscriber", "unmarshal pubsub message", string(msg.Data), err)
			msg.Ack()
			return
		}
		if err := HandleDelivery(ctx, logger, m); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "WorkflowSubscriber",
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.ID,
			}).Error("pubsub processing failed: " + err.Error())
			msg.Nack()
			return
		}
		msg.Ack()
	}

	go func() {
		if err := sub.Receive(ctx, callback); err != nil {
			config.LogError(logger, "Subscriber", "RunWorkflowSubscriber", "receive messages", nil, err)
		}
	}()
	return nil
}

// HandleDelivery runs a message received from the broker as the system user.
func HandleDelivery(ctx context.Context, logger *logrus.Logger, m config.PubSubMessage) error {
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "System")
	if m.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, m.CorrelationId)
	}
	return ProcessMessage(ctx, logger, m)
}
