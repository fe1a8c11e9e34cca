package servicebus

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/metrics"
)

// NewServiceBus authenticates against the namespace with the default Azure credential chain.
func NewServiceBus(namespace string) (*azservicebus.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// PostEventQueue sends post status events to a Service Bus queue.
type PostEventQueue struct {
	sender messageSender
}

func NewPostEventQueue(client *azservicebus.Client, queue string) (*PostEventQueue, error) {
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return nil, err
	}
	return &PostEventQueue{sender: sender}, nil
}

func newPostEventQueue(sender messageSender) *PostEventQueue {
	return &PostEventQueue{sender: sender}
}

func (q *PostEventQueue) PublishPostEvent(ctx context.Context, evt model.PostEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	contentType := "application/json"
	subject := evt.Type
	msg := &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]any{
			"post_id":  evt.PostID,
			"user_id":  evt.UserID,
			"platform": string(evt.Platform),
			"status":   string(evt.Status),
		},
	}
	if err := q.sender.SendMessage(ctx, msg, nil); err != nil {
		metrics.EventDropped("servicebus")
		logger.GetLogger().
			WithField("post_id", evt.PostID).
			WithField("error", err).
			Error("Error while sending message.")
		return err
	}
	return nil
}

func (q *PostEventQueue) Close(ctx context.Context) error {
	return q.sender.Close(ctx)
}
