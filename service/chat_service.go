package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"ridebook/pkg/live"
	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/session"
)

const maxMessageLength = 2000

type ChatService interface {
	Get(ctx context.Context, sess session.Session, id string) (*models.Chat, error)
	GetByOrder(ctx context.Context, sess session.Session, orderID string) (*models.Chat, error)
	ListForUser(ctx context.Context, sess session.Session) ([]*models.Chat, error)
	Messages(ctx context.Context, sess session.Session, chatID string) ([]*models.Message, error)
	Send(ctx context.Context, sess session.Session, chatID, content string) (*models.Message, error)
}

type chatService struct {
	*deps
}

func NewChatService(d *deps) ChatService {
	return &chatService{deps: d}
}

func (s *chatService) Get(ctx context.Context, sess session.Session, id string) (*models.Chat, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	c, err := s.stg.Chat().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() && !c.HasParticipant(sess.UserID) {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *chatService) GetByOrder(ctx context.Context, sess session.Session, orderID string) (*models.Chat, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	c, err := s.stg.Chat().GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() && !c.HasParticipant(sess.UserID) {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *chatService) ListForUser(ctx context.Context, sess session.Session) ([]*models.Chat, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	return s.stg.Chat().ListForUser(ctx, sess.UserID)
}

func (s *chatService) Messages(ctx context.Context, sess session.Session, chatID string) ([]*models.Message, error) {
	if _, err := s.Get(ctx, sess, chatID); err != nil {
		return nil, err
	}
	return s.stg.Chat().Messages(ctx, chatID)
}

func (s *chatService) Send(ctx context.Context, sess session.Session, chatID, content string) (*models.Message, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("message content is required")
	}
	if len(content) > maxMessageLength {
		return nil, invalid("message is longer than %d bytes", maxMessageLength)
	}

	c, err := s.stg.Chat().Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(sess.UserID) {
		return nil, ErrForbidden
	}

	o, err := s.stg.Order().Get(ctx, c.OrderID)
	if err != nil {
		return nil, err
	}
	if !s.policy.ChatOpen(o, s.clock()) {
		return nil, ErrChatClosed
	}

	msg := &models.Message{
		ID:          uuid.NewString(),
		ChatID:      c.ID,
		OrderID:     c.OrderID,
		SenderID:    sess.UserID,
		SenderName:  sess.Name,
		RecipientID: c.Peer(sess.UserID),
		Content:     content,
		Type:        models.MessageText,
		Timestamp:   s.clock(),
	}
	saved, err := s.stg.Chat().AddMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, live.ChatTopic(c.ID), live.EventMessageNew, saved)
	return saved, nil
}

// system writes a lifecycle message into the order's chat. Failures are
// logged only.
func (s *chatService) system(ctx context.Context, o *models.Order, content string) {
	msg := &models.Message{
		ID:          uuid.NewString(),
		ChatID:      o.ChatID,
		OrderID:     o.ID,
		SenderID:    models.SystemSender,
		SenderName:  models.SystemSender,
		RecipientID: o.CustomerID,
		Content:     content,
		Type:        models.MessageSystem,
		Timestamp:   s.clock(),
	}
	saved, err := s.stg.Chat().AddMessage(ctx, msg)
	if err != nil {
		s.log.Error("failed to write system message", logger.String("order_id", o.ID), logger.Error(err))
		return
	}
	s.publish(ctx, live.ChatTopic(o.ChatID), live.EventMessageNew, saved)
}
