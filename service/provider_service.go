package service

import (
	"context"
	"errors"
	"strings"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/session"
	"ridebook/storage"
)

type ProviderService interface {
	// Apply files the caller's provider application, or refiles it after a
	// rejection or withdrawal. Either way the profile goes back to pending.
	Apply(ctx context.Context, sess session.Session, app models.ProviderApplication) (*models.Provider, error)
	Withdraw(ctx context.Context, sess session.Session) (*models.Provider, error)
	Me(ctx context.Context, sess session.Session) (*models.Provider, error)
	Orders(ctx context.Context, sess session.Session, tab ProviderTab) ([]*models.Order, error)
	Incoming(ctx context.Context, sess session.Session) ([]*models.Order, error)
	// Search lists the approved providers a customer can book directly. An
	// empty city means the session's city.
	Search(ctx context.Context, sess session.Session, service models.ServiceType, city, region, property string) ([]*models.Provider, error)
}

type providerService struct {
	*deps
	orders OrderService
}

func NewProviderService(d *deps, orders OrderService) ProviderService {
	return &providerService{deps: d, orders: orders}
}

func (s *providerService) Apply(ctx context.Context, sess session.Session, app models.ProviderApplication) (*models.Provider, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	if sess.IsAdmin() {
		return nil, ErrForbidden
	}

	app.Name = strings.TrimSpace(app.Name)
	if app.Name == "" {
		app.Name = sess.Name
	}
	if app.Name == "" {
		return nil, invalid("name is required")
	}
	if !app.Service.IsValid() {
		return nil, invalid("unknown service %q", app.Service)
	}
	app.Location.City = strings.TrimSpace(app.Location.City)
	if app.Location.City == "" {
		return nil, invalid("city is required")
	}

	current, err := s.stg.Provider().Get(ctx, sess.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, err
	case current.Status == models.ProviderApproved || current.Status == models.ProviderPending:
		return nil, invalid("application is already %s", current.Status)
	}

	p, err := s.stg.Provider().Upsert(ctx, &models.Provider{
		UserID:         sess.UserID,
		Name:           app.Name,
		Service:        app.Service,
		Location:       app.Location,
		ClientTypes:    app.ClientTypes,
		Status:         models.ProviderPending,
		SubmissionTime: s.clock(),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("provider application filed",
		logger.String("user_id", p.UserID),
		logger.String("service", string(p.Service)),
		logger.String("city", p.Location.City),
	)
	return p, nil
}

func (s *providerService) Withdraw(ctx context.Context, sess session.Session) (*models.Provider, error) {
	if _, err := s.Me(ctx, sess); err != nil {
		return nil, err
	}
	p, err := s.stg.Provider().SetStatus(ctx, sess.UserID, models.ProviderWithdrawn, s.clock())
	if err != nil {
		return nil, err
	}
	s.log.Info("provider withdrew", logger.String("user_id", p.UserID))
	return p, nil
}

func (s *providerService) Me(ctx context.Context, sess session.Session) (*models.Provider, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	return s.stg.Provider().Get(ctx, sess.UserID)
}

func (s *providerService) Orders(ctx context.Context, sess session.Session, tab ProviderTab) ([]*models.Order, error) {
	return s.orders.ProviderOrders(ctx, sess, tab)
}

func (s *providerService) Incoming(ctx context.Context, sess session.Session) ([]*models.Order, error) {
	return s.orders.Incoming(ctx, sess)
}

func (s *providerService) Search(ctx context.Context, sess session.Session, service models.ServiceType, city, region, property string) ([]*models.Provider, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	if !service.IsValid() {
		return nil, invalid("unknown service %q", service)
	}
	city = strings.TrimSpace(city)
	if city == "" {
		city = sess.City
	}
	if city == "" {
		return nil, invalid("city is required")
	}

	found, err := s.stg.Provider().Search(ctx, storage.ProviderFilter{
		Service:  service,
		City:     city,
		Region:   strings.TrimSpace(region),
		Property: strings.TrimSpace(property),
	})
	if err != nil {
		return nil, err
	}
	// nobody books themselves
	out := found[:0]
	for _, p := range found {
		if p.UserID != sess.UserID {
			out = append(out, p)
		}
	}
	return out, nil
}
