package models

import (
	"encoding/json"
	"time"
)

type ServiceType string

const (
	ServiceChauffeur ServiceType = "chauffeur"
	ServiceCleaning  ServiceType = "cleaning"
)

func (s ServiceType) IsValid() bool {
	return s == ServiceChauffeur || s == ServiceCleaning
}

type OrderStatus string

const (
	StatusPending       OrderStatus = "pending"
	StatusWaitingAccept OrderStatus = "waiting accept"
	StatusAccepted      OrderStatus = "accepted"
	StatusWaiting       OrderStatus = "waiting"
	StatusInProgress    OrderStatus = "in-progress"
	StatusCompleted     OrderStatus = "completed"
	StatusCancelled     OrderStatus = "cancelled"
)

// ActiveStatuses block a customer from opening another order.
var ActiveStatuses = []OrderStatus{StatusWaitingAccept, StatusAccepted, StatusWaiting, StatusInProgress}

func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusWaitingAccept, StatusAccepted, StatusWaiting,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Party string

const (
	PartyCustomer Party = "customer"
	PartyProvider Party = "provider"
)

type Order struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	ProviderID   string          `json:"providerId,omitempty"`
	ProviderName string          `json:"providerName,omitempty"`
	Service      ServiceType     `json:"service"`
	City         string          `json:"city"`
	Region       string          `json:"region,omitempty"`
	Details      json.RawMessage `json:"details"`
	PriceDetails PriceDetails    `json:"priceDetails"`
	Status       OrderStatus     `json:"status"`
	ChatID       string          `json:"chatId,omitempty"`
	RejectedBy   []string        `json:"rejectedBy"`

	CreatedAt        time.Time  `json:"createdAt"`
	WaitingStartTime *time.Time `json:"waitingStartTime"`
	StartTime        *time.Time `json:"startTime"`
	EndTime          *time.Time `json:"endTime"`
	CancelledAt      *time.Time `json:"cancelledAt"`

	WaitingDuration int64 `json:"waitingDuration"`
	JourneyDuration int64 `json:"journeyDuration"`

	CancellationReason string  `json:"cancellationReason,omitempty"`
	CancellationFee    float64 `json:"cancellationFee"`
	CancelledBy        Party   `json:"cancelledBy,omitempty"`

	UserReview       *Review `json:"userReview"`
	NotificationSent bool    `json:"notificationSent"`

	// Reviewable is computed on read and never stored.
	Reviewable bool `json:"reviewable"`
}

func (o *Order) HasRejected(providerID string) bool {
	for _, id := range o.RejectedBy {
		if id == providerID {
			return true
		}
	}
	return false
}

// IsParticipant reports whether userID is the customer or the assigned provider.
func (o *Order) IsParticipant(userID string) bool {
	return userID != "" && (o.CustomerID == userID || o.ProviderID == userID)
}

// PriceDetails is the fare breakdown fixed at creation. Chauffeur orders
// fill the fare fields, cleaning orders the cost fields. Total is always set.
type PriceDetails struct {
	BaseFare     float64 `json:"baseFare,omitempty"`
	DistanceInKm float64 `json:"distanceInKm,omitempty"`
	DistanceFare float64 `json:"distanceFare,omitempty"`
	TotalFare    float64 `json:"totalFare,omitempty"`

	Hours               int     `json:"hours,omitempty"`
	GeneralCleaningCost float64 `json:"generalCleaningCost,omitempty"`
	DirtyCleanCost      float64 `json:"dirtyCleanCost,omitempty"`
	TotalCost           float64 `json:"totalCost,omitempty"`

	Total float64 `json:"total"`
}

type ChauffeurDetails struct {
	Pickup     string    `json:"pickup"`
	Dropoff    string    `json:"dropoff"`
	DistanceKm float64   `json:"distanceKm"`
	PickupTime time.Time `json:"pickupTime"`
}

type CleaningDetails struct {
	Address string   `json:"address"`
	Hours   int      `json:"hours"`
	Photos  []string `json:"photos"`
	Notes   string   `json:"notes,omitempty"`
}

// OrderDraft is what a customer submits. Exactly one of Chauffeur and
// Cleaning is set, matching Service.
type OrderDraft struct {
	Service    ServiceType       `json:"service"`
	City       string            `json:"city"`
	Region     string            `json:"region"`
	ProviderID string            `json:"providerId,omitempty"`
	Chauffeur  *ChauffeurDetails `json:"chauffeur,omitempty"`
	Cleaning   *CleaningDetails  `json:"cleaning,omitempty"`
}

type ReviewType string

const (
	ReviewRecommend ReviewType = "recommend"
	ReviewComplaint ReviewType = "complaint"
)

type Review struct {
	Type      ReviewType `json:"type"`
	Rating    int        `json:"rating"`
	Review    string     `json:"review"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ProviderOrder struct {
	OrderID          string    `json:"orderId"`
	ProviderID       string    `json:"providerId"`
	NotificationSent bool      `json:"notificationSent"`
	CreatedAt        time.Time `json:"createdAt"`
}
