package service

import (
	"context"

	"ridebook/pkg/models"
	"ridebook/pkg/session"
)

type PointService interface {
	// History lists the caller's entries, newest first. An empty pointType
	// means every type.
	History(ctx context.Context, sess session.Session, pointType models.PointType) ([]*models.PointEntry, error)
	Total(ctx context.Context, sess session.Session, pointType models.PointType) (int, error)
}

type pointService struct {
	*deps
}

func NewPointService(d *deps) PointService {
	return &pointService{deps: d}
}

func (s *pointService) History(ctx context.Context, sess session.Session, pointType models.PointType) ([]*models.PointEntry, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	if pointType != "" && !pointType.IsValid() {
		return nil, invalid("unknown point type %q", pointType)
	}
	return s.stg.Point().History(ctx, sess.UserID, pointType)
}

func (s *pointService) Total(ctx context.Context, sess session.Session, pointType models.PointType) (int, error) {
	if !sess.Valid() {
		return 0, session.ErrUnauthenticated
	}
	if !pointType.IsValid() {
		return 0, invalid("unknown point type %q", pointType)
	}
	return s.stg.Point().Total(ctx, sess.UserID, pointType)
}
