package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"ridebook/pkg/models"
	"ridebook/pkg/session"
)

type TemplateService interface {
	Create(ctx context.Context, sess session.Session, name string, data json.RawMessage) (*models.CleanerTemplate, error)
	List(ctx context.Context, sess session.Session) ([]*models.CleanerTemplate, error)
	Update(ctx context.Context, sess session.Session, id, name string, data json.RawMessage) (*models.CleanerTemplate, error)
	Delete(ctx context.Context, sess session.Session, id string) error
}

type templateService struct {
	*deps
}

func NewTemplateService(d *deps) TemplateService {
	return &templateService{deps: d}
}

func templateInput(name string, data json.RawMessage) (string, json.RawMessage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, invalid("template name is required")
	}
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if !json.Valid(data) {
		return "", nil, invalid("template data is not valid JSON")
	}
	return name, data, nil
}

func (s *templateService) Create(ctx context.Context, sess session.Session, name string, data json.RawMessage) (*models.CleanerTemplate, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	name, data, err := templateInput(name, data)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	return s.stg.Template().Create(ctx, &models.CleanerTemplate{
		ID:        uuid.NewString(),
		UserID:    sess.UserID,
		Name:      name,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *templateService) List(ctx context.Context, sess session.Session) ([]*models.CleanerTemplate, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	return s.stg.Template().List(ctx, sess.UserID)
}

func (s *templateService) owned(ctx context.Context, sess session.Session, id string) (*models.CleanerTemplate, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	t, err := s.stg.Template().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != sess.UserID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *templateService) Update(ctx context.Context, sess session.Session, id, name string, data json.RawMessage) (*models.CleanerTemplate, error) {
	t, err := s.owned(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if t.Name, t.Data, err = templateInput(name, data); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.clock()
	return s.stg.Template().Update(ctx, t)
}

func (s *templateService) Delete(ctx context.Context, sess session.Session, id string) error {
	if _, err := s.owned(ctx, sess, id); err != nil {
		return err
	}
	return s.stg.Template().Delete(ctx, id, sess.UserID)
}
