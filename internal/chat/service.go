package chat

import (
	"fmt"
	"log"
	"strings"

	"github.com/samber/lo"

	"dmchat/internal/database"
	"dmchat/internal/stats"
	"dmchat/internal/types"
)

// Publisher delivers a stored message to all connected clients.
type Publisher interface {
	Broadcast(msg types.Message)
}

// Service owns the write and read paths for direct messages. Every message
// entry point, HTTP or websocket, goes through Send so that a broadcast can
// never precede a durable write.
type Service struct {
	log   *log.Logger
	db    database.ChatRepository
	pub   Publisher
	stats stats.StatsProvider
}

func NewService(logger *log.Logger, db database.ChatRepository, pub Publisher, su stats.StatsProvider) *Service {
	su.RegisterMetric("MessagesStored")

	return &Service{
		log:   logger,
		db:    db,
		pub:   pub,
		stats: su,
	}
}

// Send stores a message from the authenticated sender and broadcasts the
// stored record. The sender id is always taken from the verified identity,
// never from client input. The broadcast happens only after the write
// succeeds.
func (s *Service) Send(sender types.Identity, receiverId int, text string) (types.Message, error) {
	if strings.TrimSpace(text) == "" {
		return types.Message{}, ErrEmptyText
	}

	stored, err := s.db.CreateMessage(sender.Id, receiverId, text)
	if err != nil {
		return types.Message{}, fmt.Errorf("create message: %w", err)
	}
	s.stats.Incr("MessagesStored")

	msg := types.Message{
		Id:         stored.Id,
		SenderId:   stored.SenderId,
		ReceiverId: stored.ReceiverId,
		Text:       stored.Text,
		SentAt:     stored.SentAt,
	}

	s.pub.Broadcast(msg)

	return msg, nil
}

// History returns every message the participant has sent or received,
// oldest first. Callers may only request their own history; a mismatch is
// rejected outright rather than filtered.
func (s *Service) History(caller types.Identity, participantId int) ([]types.Message, error) {
	if caller.Id != participantId {
		return nil, ErrForbidden
	}

	stored, err := s.db.GetMessagesByParticipant(participantId)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}

	if len(stored) == 0 {
		return nil, ErrNoMessages
	}

	return lo.Map(stored, func(m database.Message, _ int) types.Message {
		return types.Message{
			Id:         m.Id,
			SenderId:   m.SenderId,
			ReceiverId: m.ReceiverId,
			Text:       m.Text,
			SentAt:     m.SentAt,
		}
	}), nil
}
