package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridebook/pkg/lifecycle"
	"ridebook/pkg/live"
	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/orderid"
	"ridebook/pkg/session"
	"ridebook/storage"
)

const waitingMessage = "Driver has arrived and is waiting"

type ProviderTab string

const (
	TabAccepted   ProviderTab = "accepted"
	TabInProgress ProviderTab = "in-progress"
	TabHistory    ProviderTab = "history"
)

var tabStatuses = map[ProviderTab][]models.OrderStatus{
	TabAccepted:   {models.StatusAccepted, models.StatusWaiting},
	TabInProgress: {models.StatusInProgress},
	TabHistory:    {models.StatusCompleted, models.StatusCancelled},
}

type OrderService interface {
	// Create books an order straight into the provider queue.
	Create(ctx context.Context, sess session.Session, draft models.OrderDraft) (*models.Order, error)
	// SaveDraft stores a pending order to be confirmed later.
	SaveDraft(ctx context.Context, sess session.Session, draft models.OrderDraft) (*models.Order, error)
	Confirm(ctx context.Context, sess session.Session, id string) (*models.Order, error)
	Get(ctx context.Context, sess session.Session, id string) (*models.Order, error)
	ListMine(ctx context.Context, sess session.Session) ([]*models.Order, error)

	Accept(ctx context.Context, sess session.Session, id string) (*models.Order, error)
	Reject(ctx context.Context, sess session.Session, id string) (*models.Order, error)
	StartWaiting(ctx context.Context, sess session.Session, id string) (*models.Order, error)
	StartJourney(ctx context.Context, sess session.Session, id string) (*models.Order, error)
	End(ctx context.Context, sess session.Session, id string) (*models.Order, error)
	CancelByCustomer(ctx context.Context, sess session.Session, id, reason string) (*models.Order, error)
	CancelByProvider(ctx context.Context, sess session.Session, id, reason string) (*models.Order, error)

	Incoming(ctx context.Context, sess session.Session) ([]*models.Order, error)
	ProviderOrders(ctx context.Context, sess session.Session, tab ProviderTab) ([]*models.Order, error)
}

type orderService struct {
	*deps
	chat *chatService
}

func NewOrderService(d *deps, chat ChatService) OrderService {
	cs, _ := chat.(*chatService)
	return &orderService{deps: d, chat: cs}
}

func (s *orderService) Create(ctx context.Context, sess session.Session, draft models.OrderDraft) (*models.Order, error) {
	return s.create(ctx, sess, draft, models.StatusWaitingAccept)
}

func (s *orderService) SaveDraft(ctx context.Context, sess session.Session, draft models.OrderDraft) (*models.Order, error) {
	return s.create(ctx, sess, draft, models.StatusPending)
}

func (s *orderService) create(ctx context.Context, sess session.Session, draft models.OrderDraft, status models.OrderStatus) (*models.Order, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	if sess.IsAdmin() {
		return nil, ErrForbidden
	}
	if draft.City == "" {
		draft.City = sess.City
	}

	details, price, err := s.priceDraft(draft)
	if err != nil {
		return nil, err
	}

	var target *models.Provider
	if draft.ProviderID != "" {
		target, err = s.stg.Provider().Get(ctx, draft.ProviderID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, invalid("unknown provider %s", draft.ProviderID)
		}
		if err != nil {
			return nil, err
		}
		if !target.Serves(draft.Service, draft.City) || target.UserID == sess.UserID {
			return nil, invalid("provider %s does not serve %s in %s", draft.ProviderID, draft.Service, draft.City)
		}
	}

	if status.IsActive() {
		if err := s.ensureNoActive(ctx, sess.UserID); err != nil {
			return nil, err
		}
	}

	id, err := s.newID(ctx, draft.Service)
	if err != nil {
		return nil, err
	}

	order := newOrder(id, sess, draft, details, price, status, target)
	created, err := s.stg.Order().Create(ctx, order)
	if errors.Is(err, storage.ErrActiveOrder) {
		return nil, ErrActiveOrderExists
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		logger.String("id", created.ID),
		logger.String("status", string(created.Status)),
		logger.String("service", string(created.Service)),
		logger.String("city", created.City),
	)

	if created.Status == models.StatusWaitingAccept {
		s.dispatch(ctx, created)
	}
	return s.decorate(created), nil
}

// newOrder is the single constructor every creation flow goes through.
func newOrder(id string, sess session.Session, draft models.OrderDraft, details json.RawMessage, price models.PriceDetails, status models.OrderStatus, target *models.Provider) *models.Order {
	o := &models.Order{
		ID:           id,
		CustomerID:   sess.UserID,
		CustomerName: sess.Name,
		Service:      draft.Service,
		City:         draft.City,
		Region:       draft.Region,
		Details:      details,
		PriceDetails: price,
		Status:       status,
		RejectedBy:   []string{},
	}
	if target != nil {
		o.ProviderID = target.UserID
		o.ProviderName = target.Name
	}
	return o
}

func (s *orderService) priceDraft(draft models.OrderDraft) (json.RawMessage, models.PriceDetails, error) {
	if strings.TrimSpace(draft.City) == "" {
		return nil, models.PriceDetails{}, invalid("city is required")
	}

	var (
		details interface{}
		price   models.PriceDetails
		err     error
	)
	switch draft.Service {
	case models.ServiceChauffeur:
		c := draft.Chauffeur
		if c == nil || draft.Cleaning != nil {
			return nil, price, invalid("chauffeur details are required")
		}
		if strings.TrimSpace(c.Pickup) == "" || strings.TrimSpace(c.Dropoff) == "" {
			return nil, price, invalid("pickup and dropoff are required")
		}
		if c.PickupTime.IsZero() {
			c.PickupTime = s.clock()
		}
		price, err = s.calc.Chauffeur(*c)
		details = c
	case models.ServiceCleaning:
		c := draft.Cleaning
		if c == nil || draft.Chauffeur != nil {
			return nil, price, invalid("cleaning details are required")
		}
		if strings.TrimSpace(c.Address) == "" {
			return nil, price, invalid("address is required")
		}
		price, err = s.calc.Cleaning(*c)
		details = c
	default:
		return nil, price, invalid("unknown service %q", draft.Service)
	}
	if err != nil {
		return nil, price, invalid("%v", err)
	}

	raw, err := json.Marshal(details)
	if err != nil {
		return nil, price, err
	}
	return raw, price, nil
}

// newID keeps the two id schemes: chauffeur bookings get a readable
// sequential code, everything else a random key.
func (s *orderService) newID(ctx context.Context, service models.ServiceType) (string, error) {
	if service == models.ServiceChauffeur {
		return s.stg.Order().NextCode(ctx)
	}
	return orderid.Key(), nil
}

func (s *orderService) ensureNoActive(ctx context.Context, customerID string) error {
	active, err := s.stg.Order().HasActive(ctx, customerID)
	if err != nil {
		return err
	}
	if active {
		return ErrActiveOrderExists
	}
	return nil
}

// dispatch runs the side effects of an order entering the queue. Failures
// are logged and never undo the order.
func (s *orderService) dispatch(ctx context.Context, o *models.Order) {
	providers, err := s.stg.Order().FanOut(ctx, o)
	if err != nil {
		s.log.Error("order fan-out failed", logger.String("id", o.ID), logger.Error(err))
	}
	if s.queue != nil {
		for _, pid := range providers {
			if err := s.queue.EnqueueNewRequest(ctx, o.ID, pid); err != nil {
				s.log.Error("failed to enqueue new request push",
					logger.String("id", o.ID), logger.String("provider_id", pid), logger.Error(err))
			}
		}
	}
	s.log.Debug("order dispatched", logger.String("id", o.ID), logger.Int("providers", len(providers)))

	s.publish(ctx, live.IncomingTopic(o.Service, o.City), live.EventOrderCreated, o)
	s.publish(ctx, live.OrderTopic(o.ID), live.EventOrderUpdated, o)
}

func (s *orderService) Confirm(ctx context.Context, sess session.Session, id string) (*models.Order, error) {
	o, err := s.stg.Order().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != sess.UserID {
		return nil, ErrForbidden
	}
	patch, err := s.policy.Apply(o, lifecycle.EventConfirm, s.clock(), "")
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoActive(ctx, o.CustomerID); err != nil {
		return nil, err
	}

	var chat *models.Chat
	if o.ProviderID != "" {
		chat = newChat(o, o.ProviderID, o.ProviderName, s.clock())
	}

	updated, err := s.stg.Order().Confirm(ctx, id, patch, chat)
	if errors.Is(err, storage.ErrActiveOrder) {
		return nil, ErrActiveOrderExists
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("order confirmed", logger.String("id", id))
	s.dispatch(ctx, updated)
	return s.decorate(updated), nil
}

func newChat(o *models.Order, providerID, providerName string, at time.Time) *models.Chat {
	return &models.Chat{
		ID:           uuid.NewString(),
		OrderID:      o.ID,
		UserID:       o.CustomerID,
		ProviderID:   providerID,
		UserName:     o.CustomerName,
		ProviderName: providerName,
		Participants: []string{o.CustomerID, providerID},
		CreatedAt:    at,
	}
}

func (s *orderService) Get(ctx context.Context, sess session.Session, id string) (*models.Order, error) {
	o, err := s.stg.Order().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(ctx, sess, o) {
		return nil, ErrForbidden
	}
	return s.decorate(o), nil
}

// canView allows the two parties, admins, and providers the order is
// currently offered to.
func (s *orderService) canView(ctx context.Context, sess session.Session, o *models.Order) bool {
	if sess.IsAdmin() || o.IsParticipant(sess.UserID) {
		return true
	}
	if o.Status != models.StatusWaitingAccept || o.HasRejected(sess.UserID) {
		return false
	}
	p, err := s.stg.Provider().Get(ctx, sess.UserID)
	if err != nil {
		return false
	}
	return p.Serves(o.Service, o.City)
}

func (s *orderService) ListMine(ctx context.Context, sess session.Session) ([]*models.Order, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	orders, err := s.stg.Order().ListByCustomer(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return s.decorateAll(orders), nil
}

func (s *orderService) decorate(o *models.Order) *models.Order {
	o.Reviewable = s.policy.Reviewable(o, s.clock())
	return o
}

func (s *orderService) decorateAll(orders []*models.Order) []*models.Order {
	for _, o := range orders {
		s.decorate(o)
	}
	return orders
}

// servingProvider loads the caller's provider profile and checks it may
// work o.
func (s *orderService) servingProvider(ctx context.Context, sess session.Session, o *models.Order) (*models.Provider, error) {
	p, err := s.approvedProvider(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !p.Serves(o.Service, o.City) || o.CustomerID == sess.UserID {
		return nil, ErrForbidden
	}
	// Reserved for someone else. Once taken it is a lost race instead.
	reserved := o.Status == models.StatusPending || o.Status == models.StatusWaitingAccept
	if reserved && o.ProviderID != "" && o.ProviderID != sess.UserID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *orderService) approvedProvider(ctx context.Context, sess session.Session) (*models.Provider, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	p, err := s.stg.Provider().Get(ctx, sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProviderApproved {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *orderService) Accept(ctx context.Context, sess session.Session, id string) (*models.Order, error) {
	o, err := s.stg.Order().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.servingProvider(ctx, sess, o)
	if err != nil {
		return nil, err
	}
	if o.Status != models.StatusPending && o.ProviderID != "" && o.Status != models.StatusWaitingAccept {
		return nil, storage.ErrConflict
	}
	patch, err := s.policy.Apply(o, lifecycle.EventAccept, s.clock(), "")
	if err != nil {
		return nil, err
	}

	chat := newChat(o, p.UserID, p.Name, s.clock())
	updated, err := s.stg.Order().Accept(ctx, id, patch, storage.Assignment{ProviderID: p.UserID, ProviderName: p.Name}, chat)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			s.log.Info("accept lost race", logger.String("id", id), logger.String("provider_id", p.UserID))
		}
		return nil, err
	}

	s.log.Info("order accepted", logger.String("id", id), logger.String("provider_id", p.UserID))
	s.publish(ctx, live.OrderTopic(id), live.EventOrderUpdated, updated)
	s.publish(ctx, live.IncomingTopic(updated.Service, updated.City), live.EventOrderUpdated, updated)
	s.notify(ctx, updated.CustomerID, models.Notification{
		Title: "Request accepted",
		Body:  fmt.Sprintf("%s accepted your request %s.", p.Name, id),
		Data:  map[string]string{"requestId": id, "status": string(updated.Status)},
	})
	return s.decorate(updated), nil
}

func (s *orderService) Reject(ctx context.Context, sess session.Session, id string) (*models.Order, error) {
	o, err := s.stg.Order().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.servingProvider(ctx, sess, o); err != nil {
		return nil, err
	}
	if _, err := lifecycle.Transition(o.Status, lifecycle.EventReject); err != nil {
		return nil, err
	}

	updated, err := s.stg.Order().Reject(ctx, id, sess.UserID)
	if err != nil {
		return nil, err
	}
	s.log.Info("order rejected", logger.String("id", id), logger.String("provider_id", sess.UserID))
	if o.ProviderID == sess.UserID {
		// released from its reservation: offer it to everyone else
		s.dispatch(ctx, updated)
	}
	return s.decorate(updated), nil
}

// runTrip applies a provider trip event on an order assigned to the caller.
func (s *orderService) runTrip(ctx context.Context, sess session.Session, id string, ev lifecycle.Event, reason string) (*models.Order, error) {
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	o, err := s.stg.Order().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.ProviderID == "" || o.ProviderID != sess.UserID {
		return nil, ErrForbidden
	}
	// A reserved order still waiting for acceptance is not the provider's yet.
	if o.Status == models.StatusWaitingAccept || o.Status == models.StatusPending {
		return nil, fmt.Errorf("%w: %s on %q", lifecycle.ErrIllegalTransition, ev, o.Status)
	}
	return s.apply(ctx, o, ev, reason)
}

func (s *orderService) apply(ctx context.Context, o *models.Order, ev lifecycle.Event, reason string) (*models.Order, error) {
	patch, err := s.policy.Apply(o, ev, s.clock(), reason)
	if errors.Is(err, lifecycle.ErrReasonRequired) {
		return nil, invalid("%v", err)
	}
	if errors.Is(err, lifecycle.ErrAlreadyWaiting) {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrIllegalTransition, err)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.stg.Order().Transition(ctx, o.ID, patch)
	if err != nil {
		return nil, err
	}

	s.log.Info("order transitioned",
		logger.String("id", o.ID),
		logger.String("event", string(ev)),
		logger.String("from", string(patch.Expected)),
		logger.String("to", string(patch.Status)),
	)
	s.publish(ctx, live.OrderTopic(o.ID), live.EventOrderUpdated, updated)
	return s.decorate(updated), nil
}

func (s *orderService) StartWaiting(ctx context.Context, sess session.Session, id string) (*models.Order, error) {
	updated, err := s.runTrip(ctx, sess, id, lifecycle.EventStartWaiting, "")
	if err != nil {
		return nil, err
	}
	if updated.ChatID != "" && s.chat != nil {
		s.chat.system(ctx, updated, waitingMessage)
	}
	s.notify(ctx, updated.CustomerID, models.Notification{
		Title: "Your provider has arrived",
		Body:  fmt.Sprintf("%s is waiting for you.", updated.ProviderName),
		Data:  map[string]string{"requestId": id, "status": string(updated.Status)},
	})
	return updated, nil
}

func (s *orderService) StartJourney(ctx context.Context, sess session.Session, id string) (*models.Order, error) {
	return s.runTrip(ctx, sess, id, lifecycle.EventStartJourney, "")
}

func (s *orderService) End(ctx context.Context, sess session.Session, id string) (*models.Order, error) {
	updated, err := s.runTrip(ctx, sess, id, lifecycle.EventEnd, "")
	if err != nil {
		return nil, err
	}
	s.notify(ctx, updated.CustomerID, models.Notification{
		Title: "Request completed",
		Body:  fmt.Sprintf("Request %s is complete. You can leave a review within 24 hours.", id),
		Data:  map[string]string{"requestId": id, "status": string(updated.Status)},
	})
	return updated, nil
}

func (s *orderService) CancelByProvider(ctx context.Context, sess session.Session, id, reason string) (*models.Order, error) {
	updated, err := s.runTrip(ctx, sess, id, lifecycle.EventProviderCancel, reason)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, updated.CustomerID, models.Notification{
		Title: "Request cancelled",
		Body:  fmt.Sprintf("%s cancelled request %s.", updated.ProviderName, id),
		Data:  map[string]string{"requestId": id, "status": string(updated.Status)},
	})
	return updated, nil
}

func (s *orderService) CancelByCustomer(ctx context.Context, sess session.Session, id, reason string) (*models.Order, error) {
	o, err := s.stg.Order().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != sess.UserID {
		return nil, ErrForbidden
	}

	updated, err := s.apply(ctx, o, lifecycle.EventCustomerCancel, reason)
	if err != nil {
		return nil, err
	}
	if o.Status == models.StatusWaitingAccept {
		s.publish(ctx, live.IncomingTopic(updated.Service, updated.City), live.EventOrderUpdated, updated)
	}
	if updated.ProviderID != "" {
		s.notify(ctx, updated.ProviderID, models.Notification{
			Title: "Request cancelled",
			Body:  fmt.Sprintf("%s cancelled request %s.", updated.CustomerName, id),
			Data:  map[string]string{"requestId": id, "status": string(updated.Status)},
		})
	}
	return updated, nil
}

func (s *orderService) Incoming(ctx context.Context, sess session.Session) ([]*models.Order, error) {
	p, err := s.approvedProvider(ctx, sess)
	if err != nil {
		return nil, err
	}
	orders, err := s.stg.Order().ListIncoming(ctx, p.UserID, p.Service, p.Location.City)
	if err != nil {
		return nil, err
	}
	return s.decorateAll(orders), nil
}

func (s *orderService) ProviderOrders(ctx context.Context, sess session.Session, tab ProviderTab) ([]*models.Order, error) {
	statuses, ok := tabStatuses[tab]
	if !ok {
		return nil, invalid("unknown tab %q", tab)
	}
	if !sess.Valid() {
		return nil, session.ErrUnauthenticated
	}
	if _, err := s.stg.Provider().Get(ctx, sess.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	orders, err := s.stg.Order().ListByProvider(ctx, sess.UserID, statuses)
	if err != nil {
		return nil, err
	}
	return s.decorateAll(orders), nil
}
