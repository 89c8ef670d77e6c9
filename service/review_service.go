package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridebook/pkg/lifecycle"
	"ridebook/pkg/live"
	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/session"
	"ridebook/storage"
)

const (
	reviewLockTTL   = 30 * time.Second
	maxReviewLength = 1000
	pointsPerEvent  = 1
)

type ReviewInput struct {
	Type   models.ReviewType `json:"type"`
	Rating int               `json:"rating"`
	Review string            `json:"review"`
}

type ReviewService interface {
	Submit(ctx context.Context, sess session.Session, orderID string, in ReviewInput) (*models.Order, error)
}

type reviewService struct {
	*deps
}

func NewReviewService(d *deps) ReviewService {
	return &reviewService{deps: d}
}

func (in ReviewInput) validate() error {
	if in.Type != models.ReviewRecommend && in.Type != models.ReviewComplaint {
		return invalid("unknown review type %q", in.Type)
	}
	if in.Rating < 1 || in.Rating > 5 {
		return invalid("rating must be between 1 and 5")
	}
	if len(in.Review) > maxReviewLength {
		return invalid("review is longer than %d bytes", maxReviewLength)
	}
	return nil
}

func (s *reviewService) Submit(ctx context.Context, sess session.Session, orderID string, in ReviewInput) (*models.Order, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	in.Review = strings.TrimSpace(in.Review)
	if err := in.validate(); err != nil {
		return nil, err
	}

	o, err := s.stg.Order().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != sess.UserID {
		return nil, ErrForbidden
	}
	if _, err := lifecycle.Transition(o.Status, lifecycle.EventReview); err != nil {
		return nil, err
	}
	if o.UserReview != nil {
		return nil, ErrAlreadyReviewed
	}
	now := s.clock()
	if !s.policy.ReviewOpen(o, now) {
		return nil, ErrReviewWindowClosed
	}

	if s.locker != nil {
		key := "review:" + orderID
		ok, err := s.locker.Acquire(ctx, key, reviewLockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDuplicateSubmission
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key); err != nil {
				s.log.Warning("failed to release review lock", logger.String("order_id", orderID), logger.Error(err))
			}
		}()
	}

	review := models.Review{Type: in.Type, Rating: in.Rating, Review: in.Review, CreatedAt: now}
	grants, reputationFor := reviewGrants(o, review, now)

	updated, err := s.stg.Order().AttachReview(ctx, orderID, review, grants, reputationFor)
	if errors.Is(err, storage.ErrConflict) {
		return nil, ErrAlreadyReviewed
	}
	if err != nil {
		return nil, fmt.Errorf("attach review: %w", err)
	}

	s.log.Info("review submitted",
		logger.String("order_id", orderID),
		logger.String("type", string(review.Type)),
		logger.Int("grants", len(grants)),
	)
	s.publish(ctx, live.OrderTopic(orderID), live.EventOrderUpdated, updated)
	updated.Reviewable = false
	return updated, nil
}

// reviewGrants lists the ledger entries one review earns: a contribution
// point for the customer and, on a recommendation, a reputation point for
// the provider.
func reviewGrants(o *models.Order, r models.Review, at time.Time) ([]models.PointEntry, string) {
	grants := []models.PointEntry{{
		ID:          uuid.NewString(),
		UserID:      o.CustomerID,
		OrderID:     o.ID,
		Description: "Review submitted for request " + o.ID,
		PointType:   models.PointContribution,
		UserType:    models.PointUser,
		PointAmount: pointsPerEvent,
		CreatedAt:   at,
	}}
	if r.Type != models.ReviewRecommend || o.ProviderID == "" {
		return grants, ""
	}
	grants = append(grants, models.PointEntry{
		ID:          uuid.NewString(),
		UserID:      o.ProviderID,
		OrderID:     o.ID,
		Description: "Recommended by customer on request " + o.ID,
		PointType:   models.PointReputation,
		UserType:    models.PointProvider,
		PointAmount: pointsPerEvent,
		CreatedAt:   at,
	})
	return grants, o.ProviderID
}
