package chat

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dmchat/internal/database"
	"dmchat/internal/stats"
	"dmchat/internal/testutil"
	"dmchat/internal/types"
)

// recordingPublisher captures broadcasts for assertions.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []types.Message
}

func (p *recordingPublisher) Broadcast(msg types.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func (p *recordingPublisher) broadcasts() []types.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Message{}, p.messages...)
}

func newTestService(t *testing.T, db database.ChatRepository, pub Publisher) *Service {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", "MessagesStored").Return().Once()
	su.On("Incr", "MessagesStored").Return().Maybe()

	return NewService(testutil.TestLogger(t), db, pub, su)
}

func TestSend(t *testing.T) {
	sender := types.Identity{Id: 1, Name: "alice", Email: "alice@example.com"}
	sentAt := time.Now().UTC()

	t.Run("stores then broadcasts", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("CreateMessage", 1, 2, "hi").Return(database.Message{
			Id:         10,
			SenderId:   1,
			ReceiverId: 2,
			Text:       "hi",
			SentAt:     sentAt,
		}, nil).Once()

		pub := &recordingPublisher{}
		svc := newTestService(t, mockRepo, pub)

		msg, err := svc.Send(sender, 2, "hi")
		assert.NoError(t, err, "expected no error sending message")
		assert.Equal(t, 10, msg.Id, "expected stored id to be returned")
		assert.Equal(t, 1, msg.SenderId, "expected sender id to come from identity")
		assert.Equal(t, 2, msg.ReceiverId, "expected receiver id to match")
		assert.Equal(t, "hi", msg.Text, "expected text to match")

		broadcasts := pub.broadcasts()
		assert.Len(t, broadcasts, 1, "expected exactly one broadcast")
		assert.Equal(t, msg, broadcasts[0], "expected stored record to be broadcast")
	})

	t.Run("rejects empty text", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		pub := &recordingPublisher{}
		svc := newTestService(t, mockRepo, pub)

		_, err := svc.Send(sender, 2, "   ")
		assert.ErrorIs(t, err, ErrEmptyText, "expected ErrEmptyText")
		assert.Empty(t, pub.broadcasts(), "expected no broadcast for rejected message")
		mockRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no broadcast when store fails", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("CreateMessage", 1, 2, "hi").
			Return(database.Message{}, errors.New("db unavailable")).Once()

		pub := &recordingPublisher{}
		svc := newTestService(t, mockRepo, pub)

		_, err := svc.Send(sender, 2, "hi")
		assert.Error(t, err, "expected error when store fails")
		assert.Empty(t, pub.broadcasts(), "expected no broadcast when append failed")
	})

	t.Run("self messaging allowed", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("CreateMessage", 1, 1, "note to self").Return(database.Message{
			Id:         11,
			SenderId:   1,
			ReceiverId: 1,
			Text:       "note to self",
			SentAt:     sentAt,
		}, nil).Once()

		pub := &recordingPublisher{}
		svc := newTestService(t, mockRepo, pub)

		msg, err := svc.Send(sender, 1, "note to self")
		assert.NoError(t, err, "expected no error for self message")
		assert.Equal(t, 1, msg.ReceiverId, "expected receiver to be the sender")
	})

	t.Run("concurrent sends produce distinct ids", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("CreateMessage", 1, 2, "first").Return(database.Message{
			Id: 1, SenderId: 1, ReceiverId: 2, Text: "first", SentAt: sentAt,
		}, nil).Once()
		mockRepo.On("CreateMessage", 1, 2, "second").Return(database.Message{
			Id: 2, SenderId: 1, ReceiverId: 2, Text: "second", SentAt: sentAt,
		}, nil).Once()

		pub := &recordingPublisher{}
		svc := newTestService(t, mockRepo, pub)

		var wg sync.WaitGroup
		ids := make(chan int, 2)
		for _, text := range []string{"first", "second"} {
			wg.Add(1)
			go func(text string) {
				defer wg.Done()
				msg, err := svc.Send(sender, 2, text)
				assert.NoError(t, err, "expected no error sending concurrently")
				ids <- msg.Id
			}(text)
		}
		wg.Wait()
		close(ids)

		seen := make(map[int]bool)
		for id := range ids {
			assert.False(t, seen[id], "expected message ids to be unique")
			seen[id] = true
		}
		assert.Len(t, pub.broadcasts(), 2, "expected both messages broadcast")
	})
}

func TestHistory(t *testing.T) {
	caller := types.Identity{Id: 2, Name: "bob", Email: "bob@example.com"}

	t.Run("forbidden for another participant", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		svc := newTestService(t, mockRepo, &recordingPublisher{})

		_, err := svc.History(caller, 3)
		assert.ErrorIs(t, err, ErrForbidden, "expected ErrForbidden")
		mockRepo.AssertNotCalled(t, "GetMessagesByParticipant", mock.Anything)
	})

	t.Run("not found when history is empty", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetMessagesByParticipant", 2).Return([]database.Message{}, nil).Once()

		svc := newTestService(t, mockRepo, &recordingPublisher{})

		_, err := svc.History(caller, 2)
		assert.ErrorIs(t, err, ErrNoMessages, "expected ErrNoMessages for empty history")
	})

	t.Run("returns full history oldest first", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		stored := []database.Message{
			{Id: 1, SenderId: 1, ReceiverId: 2, Text: "hi"},
			{Id: 2, SenderId: 2, ReceiverId: 1, Text: "hello"},
			{Id: 3, SenderId: 3, ReceiverId: 2, Text: "hey"},
		}
		mockRepo.On("GetMessagesByParticipant", 2).Return(stored, nil).Once()

		svc := newTestService(t, mockRepo, &recordingPublisher{})

		msgs, err := svc.History(caller, 2)
		assert.NoError(t, err, "expected no error fetching history")
		assert.Len(t, msgs, 3, "expected all messages across peers")
		for i, m := range msgs {
			assert.Equal(t, stored[i].Id, m.Id, "expected append order to be preserved")
			assert.Equal(t, stored[i].Text, m.Text, "expected text to match")
		}
	})

	t.Run("store error surfaces", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetMessagesByParticipant", 2).
			Return([]database.Message{}, errors.New("db unavailable")).Once()

		svc := newTestService(t, mockRepo, &recordingPublisher{})

		_, err := svc.History(caller, 2)
		assert.Error(t, err, "expected store error to surface")
		assert.NotErrorIs(t, err, ErrNoMessages, "expected a storage error, not a not-found signal")
	})
}
