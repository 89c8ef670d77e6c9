package service

import (
	"context"
	"strings"
	"time"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/session"
)

// InactiveAfter marks users without activity for this long as inactive.
const InactiveAfter = 60 * 24 * time.Hour

type AdminService interface {
	Providers(ctx context.Context, sess session.Session, status models.ProviderStatus) ([]*models.Provider, error)
	SetProviderStatus(ctx context.Context, sess session.Session, userID string, status models.ProviderStatus) (*models.Provider, error)
	Users(ctx context.Context, sess session.Session) ([]*models.UserSummary, error)
	VerifyUser(ctx context.Context, sess session.Session, userID string) (*models.User, error)
	RejectUser(ctx context.Context, sess session.Session, userID, reason string) (*models.User, error)
	Reviews(ctx context.Context, sess session.Session) ([]*models.Order, error)
	// PointHistory lists ledger entries of one user, or of everyone when
	// userID is empty.
	PointHistory(ctx context.Context, sess session.Session, userID string) ([]*models.PointEntry, error)
}

type adminService struct {
	*deps
}

func NewAdminService(d *deps) AdminService {
	return &adminService{deps: d}
}

func requireAdmin(sess session.Session) error {
	if !sess.Valid() {
		return session.ErrUnauthenticated
	}
	if !sess.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (s *adminService) Providers(ctx context.Context, sess session.Session, status models.ProviderStatus) ([]*models.Provider, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return s.stg.Provider().List(ctx, status)
}

func (s *adminService) SetProviderStatus(ctx context.Context, sess session.Session, userID string, status models.ProviderStatus) (*models.Provider, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if !status.IsAdminSettable() {
		return nil, invalid("status %q cannot be set by an admin", status)
	}

	p, err := s.stg.Provider().SetStatus(ctx, userID, status, s.clock())
	if err != nil {
		return nil, err
	}
	s.log.Info("provider status changed",
		logger.String("user_id", userID),
		logger.String("status", string(status)),
		logger.String("admin_id", sess.UserID),
	)
	s.notify(ctx, userID, models.Notification{
		Title: "Provider application " + string(status),
		Body:  "Your provider profile is now " + string(status) + ".",
		Data:  map[string]string{"providerStatus": string(status)},
	})
	return p, nil
}

func (s *adminService) Users(ctx context.Context, sess session.Session) ([]*models.UserSummary, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	users, err := s.stg.User().List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	for _, u := range users {
		u.Inactive = inactive(u.LastActivity, now)
	}
	return users, nil
}

func inactive(last *time.Time, now time.Time) bool {
	return last == nil || now.Sub(*last) > InactiveAfter
}

func (s *adminService) VerifyUser(ctx context.Context, sess session.Session, userID string) (*models.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	u, err := s.stg.User().SetVerification(ctx, userID, models.VerificationVerified, "")
	if err != nil {
		return nil, err
	}
	s.log.Info("user verified", logger.String("user_id", userID), logger.String("admin_id", sess.UserID))
	return u, nil
}

func (s *adminService) RejectUser(ctx context.Context, sess session.Session, userID, reason string) (*models.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("rejection reason is required")
	}
	u, err := s.stg.User().SetVerification(ctx, userID, models.VerificationRejected, reason)
	if err != nil {
		return nil, err
	}
	s.log.Info("user rejected", logger.String("user_id", userID), logger.String("admin_id", sess.UserID))
	return u, nil
}

func (s *adminService) Reviews(ctx context.Context, sess session.Session) ([]*models.Order, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return s.stg.Order().ListReviewed(ctx)
}

func (s *adminService) PointHistory(ctx context.Context, sess session.Session, userID string) ([]*models.PointEntry, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return s.stg.Point().History(ctx, userID, "")
}
