package service

import (
	"context"
	"testing"
	"time"

	"ridebook/config"
	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/pricing"
	"ridebook/pkg/session"
)

const city = "Kuala Lumpur"

type harness struct {
	stg    *memStore
	locker *memLocker
	queue  *memQueue
	pusher *memPusher
	pub    *memPublisher
	clock  *testClock
	svc    IServiceManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		stg:    newMemStore(),
		locker: newMemLocker(),
		queue:  &memQueue{},
		pusher: &memPusher{},
		pub:    &memPublisher{},
		clock:  &testClock{now: time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)},
	}
	h.svc = New(h.stg, logger.NewNop(), Options{
		Pricing:   pricing.New(config.DefaultPricing(), time.UTC),
		Locker:    h.locker,
		Publisher: h.pub,
		Queue:     h.queue,
		Pusher:    h.pusher,
		Now:       h.clock.Now,
	})
	return h
}

func (h *harness) customer(t *testing.T, id string) session.Session {
	t.Helper()
	sess := session.Session{UserID: id, Name: "Customer " + id, Role: models.RoleCustomer, City: city}
	if _, err := h.svc.User().Seen(context.Background(), sess); err != nil {
		t.Fatalf("seen %s: %v", id, err)
	}
	return sess
}

func (h *harness) admin(t *testing.T) session.Session {
	t.Helper()
	sess := session.Session{UserID: "admin", Name: "Admin", Role: models.RoleAdmin, City: city}
	if _, err := h.svc.User().Seen(context.Background(), sess); err != nil {
		t.Fatalf("seen admin: %v", err)
	}
	return sess
}

// provider registers an approved provider serving service in city.
func (h *harness) provider(t *testing.T, id string, service models.ServiceType) session.Session {
	t.Helper()
	return h.providerIn(t, id, service, city, models.ProviderApproved)
}

func (h *harness) providerIn(t *testing.T, id string, service models.ServiceType, in string, status models.ProviderStatus) session.Session {
	t.Helper()
	ctx := context.Background()
	sess := session.Session{UserID: id, Name: "Provider " + id, Role: models.RoleProvider, City: in}
	if _, err := h.svc.User().Seen(ctx, sess); err != nil {
		t.Fatalf("seen %s: %v", id, err)
	}
	if _, err := h.svc.Provider().Apply(ctx, sess, models.ProviderApplication{
		Service:  service,
		Location: models.ProviderLocation{City: in},
	}); err != nil {
		t.Fatalf("apply %s: %v", id, err)
	}
	if status != models.ProviderPending {
		if _, err := h.svc.Admin().SetProviderStatus(ctx, h.admin(t), id, status); err != nil {
			t.Fatalf("set status %s: %v", id, err)
		}
	}
	return sess
}

func chauffeurDraft(km float64) models.OrderDraft {
	return models.OrderDraft{
		Service:   models.ServiceChauffeur,
		City:      city,
		Chauffeur: &models.ChauffeurDetails{Pickup: "KLCC", Dropoff: "KLIA", DistanceKm: km},
	}
}

func cleaningDraft(hours, photos int) models.OrderDraft {
	d := &models.CleaningDetails{Address: "12 Jalan Ampang", Hours: hours}
	for i := 0; i < photos; i++ {
		d.Photos = append(d.Photos, "photo.jpg")
	}
	return models.OrderDraft{Service: models.ServiceCleaning, City: city, Cleaning: d}
}

// completedOrder runs a chauffeur order from creation to completion.
func (h *harness) completedOrder(t *testing.T, customer, provider session.Session) *models.Order {
	t.Helper()
	ctx := context.Background()
	o, err := h.svc.Order().Create(ctx, customer, chauffeurDraft(5))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.svc.Order().Accept(ctx, provider, o.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := h.svc.Order().StartJourney(ctx, provider, o.ID); err != nil {
		t.Fatalf("start journey: %v", err)
	}
	h.clock.Advance(20 * time.Minute)
	done, err := h.svc.Order().End(ctx, provider, o.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	return done
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
