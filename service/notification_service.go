package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/storage"
)

const notifyLockTTL = 24 * time.Hour

// NotificationService runs the push side effects handed to the task workers.
// Delivery problems are logged and never surface to the caller, so a task is
// not retried for an unreachable device.
type NotificationService interface {
	HandleNewRequest(ctx context.Context, orderID, providerID string) error
	HandleStatus(ctx context.Context, userID string, n models.Notification) error
}

type notificationService struct {
	*deps
}

func NewNotificationService(d *deps) NotificationService {
	return &notificationService{deps: d}
}

func NewRequestNotification(o *models.Order) models.Notification {
	return models.Notification{
		Title: "New Service Request",
		Body:  fmt.Sprintf("You have a new request for %s in %s.", o.Service, o.City),
		Data:  map[string]string{"requestId": o.ID},
	}
}

func (s *notificationService) HandleNewRequest(ctx context.Context, orderID, providerID string) error {
	log := s.log.With(logger.String("order_id", orderID), logger.String("provider_id", providerID))

	o, err := s.stg.Order().Get(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warning("order for push not found")
		return nil
	}
	if err != nil {
		return err
	}
	if o.Status != models.StatusWaitingAccept {
		log.Debug("order left the queue before push", logger.String("status", string(o.Status)))
		return nil
	}

	key := "notify:" + orderID + ":" + providerID
	if s.locker != nil {
		ok, err := s.locker.Acquire(ctx, key, notifyLockTTL)
		if err != nil {
			return err
		}
		if !ok {
			log.Debug("push already sent")
			return nil
		}
	}

	u, err := s.stg.User().GetByID(ctx, providerID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.releaseNotify(ctx, key)
		return err
	}
	if u == nil || u.PushChatID == nil {
		log.Info("provider has no push chat, skipping")
		return nil
	}

	if s.pusher == nil {
		log.Warning("no push transport configured")
		return nil
	}
	if err := s.pusher.Push(ctx, *u.PushChatID, NewRequestNotification(o)); err != nil {
		log.Error("failed to push new request", logger.Error(err))
		s.releaseNotify(ctx, key)
		return nil
	}

	if err := s.stg.Order().MarkNotified(ctx, orderID, providerID); err != nil {
		log.Error("failed to mark order notified", logger.Error(err))
	}
	log.Info("new request pushed")
	return nil
}

// releaseNotify drops the push guard so a later delivery can try again.
func (s *notificationService) releaseNotify(ctx context.Context, key string) {
	if s.locker == nil {
		return
	}
	if err := s.locker.Release(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warning("failed to release push guard", logger.String("key", key), logger.Error(err))
	}
}

func (s *notificationService) HandleStatus(ctx context.Context, userID string, n models.Notification) error {
	log := s.log.With(logger.String("user_id", userID), logger.String("title", n.Title))

	u, err := s.stg.User().GetByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warning("user for status push not found")
		return nil
	}
	if err != nil {
		return err
	}
	if u.PushChatID == nil || s.pusher == nil {
		log.Debug("no push chat, skipping status push")
		return nil
	}
	if err := s.pusher.Push(ctx, *u.PushChatID, n); err != nil {
		log.Error("failed to push status", logger.Error(err))
	}
	return nil
}
