package pubsub

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/metrics"
)

// NewPubSub opens a client for the given project.
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	return pubsub.NewClient(ctx, projectID)
}

// PostEventTopic publishes post status events to a Pub/Sub topic.
type PostEventTopic struct {
	topic *pubsub.Topic
}

// NewPostEventTopic resolves the topic, creating it if it doesn't exist.
func NewPostEventTopic(ctx context.Context, client *pubsub.Client, topicID string) (*PostEventTopic, error) {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", topicID).Info("Topic doesn't exist - creating it")
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, err
		}
	}
	return &PostEventTopic{topic: topic}, nil
}

func (p *PostEventTopic) PublishPostEvent(ctx context.Context, evt model.PostEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":     evt.Type,
			"post_id":  evt.PostID,
			"user_id":  evt.UserID,
			"platform": string(evt.Platform),
			"status":   string(evt.Status),
		},
	}
	serverID, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		metrics.EventDropped("pubsub")
		logger.GetLogger().
			WithField("post_id", evt.PostID).
			WithField("error", err).
			Warn("Post event not published")
		return err
	}
	logger.GetLogger().
		WithField("server_id", serverID).
		WithField("post_id", evt.PostID).
		Debug("Post event published")
	return nil
}

// Stop flushes pending messages.
func (p *PostEventTopic) Stop() {
	p.topic.Stop()
}
