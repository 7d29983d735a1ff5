package server

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dmchat/internal/chat"
	"dmchat/internal/database"
	"dmchat/internal/stats"
	"dmchat/internal/testutil"
	"dmchat/internal/types"
)

type noopPublisher struct{}

func (noopPublisher) Broadcast(types.Message) {}

func newTestChatService(t *testing.T, db database.ChatRepository) *chat.Service {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", "MessagesStored").Return().Once()
	su.On("Incr", "MessagesStored").Return().Maybe()

	return chat.NewService(testutil.TestLogger(t), db, noopPublisher{}, su)
}

func TestHandleSend(t *testing.T) {
	identity := types.Identity{Id: 1, Name: "alice", Email: "alice@example.com"}

	t.Run("acks a stored message", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("CreateMessage", 1, 2, "hi").Return(database.Message{
			Id: 7, SenderId: 1, ReceiverId: 2, Text: "hi",
		}, nil).Once()

		c := newTestClient(t, "conn-1", 1, 8)
		c.identity = identity
		c.chat = newTestChatService(t, mockRepo)

		c.handleSend(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3},
			Send:        &Send{ReceiverId: 2, Text: "hi"},
		})

		msg := recv(t, c, time.Second)
		assert.NotNil(t, msg, "expected an ack frame")
		assert.Equal(t, 3, msg.Id, "expected ack id to echo the request id")
		assert.Equal(t, http.StatusOK, msg.Response.ResponseCode, "expected OK response")
		assert.Equal(t, map[string]any{"message_id": 7}, msg.Response.Data, "expected stored id in ack")
	})

	t.Run("rejects empty text", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		c := newTestClient(t, "conn-1", 1, 8)
		c.identity = identity
		c.chat = newTestChatService(t, mockRepo)

		c.handleSend(&ClientMessage{
			BaseMessage: BaseMessage{Id: 4},
			Send:        &Send{ReceiverId: 2, Text: ""},
		})

		msg := recv(t, c, time.Second)
		assert.NotNil(t, msg, "expected an error frame")
		assert.Equal(t, http.StatusBadRequest, msg.Response.ResponseCode, "expected bad request response")
		mockRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reports storage failure", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("CreateMessage", 1, 2, "hi").
			Return(database.Message{}, errors.New("db unavailable")).Once()

		c := newTestClient(t, "conn-1", 1, 8)
		c.identity = identity
		c.chat = newTestChatService(t, mockRepo)

		c.handleSend(&ClientMessage{
			BaseMessage: BaseMessage{Id: 5},
			Send:        &Send{ReceiverId: 2, Text: "hi"},
		})

		msg := recv(t, c, time.Second)
		assert.NotNil(t, msg, "expected an error frame")
		assert.Equal(t, http.StatusInternalServerError, msg.Response.ResponseCode, "expected internal error response")
	})
}

func TestQueueMessage(t *testing.T) {
	c := newTestClient(t, "conn-1", 1, 1)

	assert.True(t, c.queueMessage(ErrInternalError(1)), "expected queue to accept message")
	assert.False(t, c.queueMessage(ErrInternalError(2)), "expected queue to reject message when full")
}

func TestStopClientIdempotent(t *testing.T) {
	c := newTestClient(t, "conn-1", 1, 1)

	c.stopClient()
	// second call must not panic on a closed channel
	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}
