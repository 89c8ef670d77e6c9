package service

import (
	"context"
	"strings"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/session"
)

type UserService interface {
	// Seen records the caller on every authenticated request.
	Seen(ctx context.Context, sess session.Session) (*models.User, error)
	Me(ctx context.Context, sess session.Session) (*models.User, error)
	UpdateProfile(ctx context.Context, sess session.Session, name, email, phone, city string) (*models.User, error)
	// LinkPush registers the chat the caller receives pushes in. A nil
	// chatID unlinks.
	LinkPush(ctx context.Context, sess session.Session, chatID *int64) error
	ByPushChat(ctx context.Context, chatID int64) (*models.User, error)
}

type userService struct {
	*deps
}

func NewUserService(d *deps) UserService {
	return &userService{deps: d}
}

func (s *userService) Seen(ctx context.Context, sess session.Session) (*models.User, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	return s.stg.User().Ensure(ctx, &models.User{
		ID:   sess.UserID,
		Name: sess.Name,
		Role: sess.Role,
		City: sess.City,
	}, s.clock())
}

func (s *userService) Me(ctx context.Context, sess session.Session) (*models.User, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	return s.stg.User().GetByID(ctx, sess.UserID)
}

func (s *userService) UpdateProfile(ctx context.Context, sess session.Session, name, email, phone, city string) (*models.User, error) {
	u, err := s.Me(ctx, sess)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		u.Name = name
	}
	if email = strings.TrimSpace(email); email != "" {
		if !strings.Contains(email, "@") {
			return nil, invalid("invalid email %q", email)
		}
		u.Email = email
	}
	if phone = strings.TrimSpace(phone); phone != "" {
		u.Phone = &phone
	}
	if city = strings.TrimSpace(city); city != "" {
		u.City = city
	}
	return s.stg.User().UpdateProfile(ctx, u)
}

func (s *userService) LinkPush(ctx context.Context, sess session.Session, chatID *int64) error {
	if !sess.Valid() {
		return session.ErrUnauthenticated
	}
	if err := s.stg.User().SetPushChatID(ctx, sess.UserID, chatID); err != nil {
		return err
	}
	s.log.Info("push chat linked", logger.String("user_id", sess.UserID), logger.Bool("linked", chatID != nil))
	return nil
}

func (s *userService) ByPushChat(ctx context.Context, chatID int64) (*models.User, error) {
	return s.stg.User().GetByPushChatID(ctx, chatID)
}
