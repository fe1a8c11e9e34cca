package servicebus_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
	"crosspost/infrastructure/servicebus"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error {
	args := m.Called(ctx, message, options)
	return args.Error(0)
}

func (m *MockSender) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestPublishPostEvent(t *testing.T) {
	sender := new(MockSender)
	var sent *azservicebus.Message
	sender.On("SendMessage", mock.Anything, mock.AnythingOfType("*azservicebus.Message"), (*azservicebus.SendMessageOptions)(nil)).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*azservicebus.Message) }).
		Return(nil)

	queue := servicebus.NewPostEventQueueWithSender(sender)
	err := queue.PublishPostEvent(context.Background(), model.PostEvent{
		Type:     "post_status",
		PostID:   "post-9",
		UserID:   "user-1",
		Platform: model.PlatformInstagram,
		Status:   model.PostStatusProcessing,
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)

	require.NotNil(t, sent)
	require.NotNil(t, sent.Subject)
	assert.Equal(t, "post_status", *sent.Subject)
	assert.Equal(t, "instagram", sent.ApplicationProperties["platform"])
	assert.Equal(t, "processing", sent.ApplicationProperties["status"])

	var got model.PostEvent
	require.NoError(t, json.Unmarshal(sent.Body, &got))
	assert.Equal(t, "post-9", got.PostID)
}

func TestPublishPostEventSendFailure(t *testing.T) {
	sender := new(MockSender)
	sender.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("amqp link detached"))

	queue := servicebus.NewPostEventQueueWithSender(sender)
	err := queue.PublishPostEvent(context.Background(), model.PostEvent{Type: "post_status", PostID: "post-9"})
	assert.EqualError(t, err, "amqp link detached")
}

func TestClose(t *testing.T) {
	sender := new(MockSender)
	sender.On("Close", mock.Anything).Return(nil)

	queue := servicebus.NewPostEventQueueWithSender(sender)
	assert.NoError(t, queue.Close(context.Background()))
	sender.AssertExpectations(t)
}
