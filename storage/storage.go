package storage

import (
	"context"
	"errors"
	"time"

	"ridebook/pkg/lifecycle"
	"ridebook/pkg/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the row exists but was not in the expected state,
	// typically because a concurrent writer moved it first.
	ErrConflict = errors.New("conflict")
	// ErrActiveOrder is returned when a customer already holds an active order.
	ErrActiveOrder = errors.New("customer already has an active order")
)

type IStorage interface {
	User() IUserStorage
	Provider() IProviderStorage
	Order() IOrderStorage
	Chat() IChatStorage
	Point() IPointStorage
	Template() ITemplateStorage
	Close()
}

type IUserStorage interface {
	// Ensure creates the user on first sight and otherwise refreshes name,
	// role and last activity.
	Ensure(ctx context.Context, user *models.User, at time.Time) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPushChatID(ctx context.Context, chatID int64) (*models.User, error)
	SetPushChatID(ctx context.Context, id string, chatID *int64) error
	SetVerification(ctx context.Context, id string, status models.VerificationStatus, reason string) (*models.User, error)
	List(ctx context.Context) ([]*models.UserSummary, error)
}

// ProviderFilter narrows a provider search. Empty Region or Property match
// any value.
type ProviderFilter struct {
	Service  models.ServiceType
	City     string
	Region   string
	Property string
}

type IProviderStorage interface {
	Upsert(ctx context.Context, p *models.Provider) (*models.Provider, error)
	Get(ctx context.Context, userID string) (*models.Provider, error)
	List(ctx context.Context, status models.ProviderStatus) ([]*models.Provider, error)
	// Search lists approved providers matching f, best reputation first.
	Search(ctx context.Context, f ProviderFilter) ([]*models.Provider, error)
	SetStatus(ctx context.Context, userID string, status models.ProviderStatus, at time.Time) (*models.Provider, error)
}

// Assignment names the provider taking an order.
type Assignment struct {
	ProviderID   string
	ProviderName string
}

type IOrderStorage interface {
	NextCode(ctx context.Context) (string, error)
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*models.Order, error)
	ListByProvider(ctx context.Context, providerID string, statuses []models.OrderStatus) ([]*models.Order, error)
	ListIncoming(ctx context.Context, providerID string, service models.ServiceType, city string) ([]*models.Order, error)
	ListReviewed(ctx context.Context) ([]*models.Order, error)
	HasActive(ctx context.Context, customerID string) (bool, error)

	// Transition writes patch only if the order is still in patch.Expected.
	Transition(ctx context.Context, id string, patch lifecycle.Patch) (*models.Order, error)
	// Confirm applies patch and, when chat is non-nil, opens the order's chat
	// in the same transaction.
	Confirm(ctx context.Context, id string, patch lifecycle.Patch, chat *models.Chat) (*models.Order, error)
	// Accept assigns the provider and opens the chat unless the order already
	// has one. Fails with ErrConflict if the order left patch.Expected or is
	// reserved for another provider.
	Accept(ctx context.Context, id string, patch lifecycle.Patch, a Assignment, chat *models.Chat) (*models.Order, error)
	// Reject adds providerID to the order's rejection list. Rejecting twice
	// is a no-op.
	Reject(ctx context.Context, id, providerID string) (*models.Order, error)
	// AttachReview embeds the review, appends grants to the ledger and bumps
	// reputationFor's counter (if set) atomically. Fails with ErrConflict if
	// the order is not completed or already reviewed.
	AttachReview(ctx context.Context, id string, review models.Review, grants []models.PointEntry, reputationFor string) (*models.Order, error)

	FanOut(ctx context.Context, order *models.Order) ([]string, error)
	MarkNotified(ctx context.Context, orderID, providerID string) error
}

type IChatStorage interface {
	Get(ctx context.Context, id string) (*models.Chat, error)
	GetByOrder(ctx context.Context, orderID string) (*models.Chat, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Chat, error)
	AddMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	Messages(ctx context.Context, chatID string) ([]*models.Message, error)
}

type IPointStorage interface {
	Add(ctx context.Context, entry *models.PointEntry) error
	History(ctx context.Context, userID string, pointType models.PointType) ([]*models.PointEntry, error)
	Total(ctx context.Context, userID string, pointType models.PointType) (int, error)
}

type ITemplateStorage interface {
	Create(ctx context.Context, t *models.CleanerTemplate) (*models.CleanerTemplate, error)
	Get(ctx context.Context, id string) (*models.CleanerTemplate, error)
	List(ctx context.Context, userID string) ([]*models.CleanerTemplate, error)
	Update(ctx context.Context, t *models.CleanerTemplate) (*models.CleanerTemplate, error)
	Delete(ctx context.Context, id, userID string) error
}

// ILocker is a short-lived distributed lock used as a duplicate-submit guard.
type ILocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
