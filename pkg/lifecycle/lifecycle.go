// Package lifecycle holds the order state machine. Every status change an
// order goes through is validated here before storage applies it with a
// conditional write on the expected status.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"ridebook/pkg/models"
)

type Event string

const (
	EventConfirm        Event = "confirm"
	EventAccept         Event = "accept"
	EventReject         Event = "reject"
	EventStartWaiting   Event = "start_waiting"
	EventStartJourney   Event = "start_journey"
	EventEnd            Event = "end"
	EventCustomerCancel Event = "customer_cancel"
	EventProviderCancel Event = "provider_cancel"
	EventReview         Event = "review"
)

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrReasonRequired    = errors.New("cancellation reason is required")
	ErrAlreadyWaiting    = errors.New("waiting already started")
)

var transitions = map[models.OrderStatus]map[Event]models.OrderStatus{
	models.StatusPending: {
		EventConfirm:        models.StatusWaitingAccept,
		EventCustomerCancel: models.StatusCancelled,
	},
	models.StatusWaitingAccept: {
		EventAccept:         models.StatusAccepted,
		EventReject:         models.StatusWaitingAccept,
		EventCustomerCancel: models.StatusCancelled,
	},
	models.StatusAccepted: {
		EventStartWaiting:   models.StatusWaiting,
		EventStartJourney:   models.StatusInProgress,
		EventCustomerCancel: models.StatusCancelled,
		EventProviderCancel: models.StatusCancelled,
	},
	models.StatusWaiting: {
		EventStartJourney:   models.StatusInProgress,
		EventCustomerCancel: models.StatusCancelled,
		EventProviderCancel: models.StatusCancelled,
	},
	models.StatusInProgress: {
		EventEnd:            models.StatusCompleted,
		EventProviderCancel: models.StatusCancelled,
	},
	models.StatusCompleted: {
		EventReview: models.StatusCompleted,
	},
	models.StatusCancelled: {},
}

// Transition returns the status an order in from moves to on ev.
func Transition(from models.OrderStatus, ev Event) (models.OrderStatus, error) {
	next, ok := transitions[from][ev]
	if !ok {
		return "", fmt.Errorf("%w: %s on %q", ErrIllegalTransition, ev, from)
	}
	return next, nil
}

// Allowed lists the events legal in status s.
func Allowed(s models.OrderStatus) []Event {
	events := make([]Event, 0, len(transitions[s]))
	for _, ev := range eventOrder {
		if _, ok := transitions[s][ev]; ok {
			events = append(events, ev)
		}
	}
	return events
}

var eventOrder = []Event{
	EventConfirm, EventAccept, EventReject, EventStartWaiting, EventStartJourney,
	EventEnd, EventCustomerCancel, EventProviderCancel, EventReview,
}

// Actor is the party allowed to fire ev.
func (ev Event) Actor() models.Party {
	switch ev {
	case EventAccept, EventReject, EventStartWaiting, EventStartJourney, EventEnd, EventProviderCancel:
		return models.PartyProvider
	}
	return models.PartyCustomer
}

// Patch is the field change a transition writes. Expected is the status the
// order must still be in for the write to apply.
type Patch struct {
	Expected models.OrderStatus
	Status   models.OrderStatus

	WaitingStartTime *time.Time
	StartTime        *time.Time
	EndTime          *time.Time
	CancelledAt      *time.Time

	WaitingDuration *int64
	JourneyDuration *int64

	CancellationReason string
	CancellationFee    *float64
	CancelledBy        models.Party
}

// ApplyTo copies the patch onto o, mirroring what storage persists.
func (p Patch) ApplyTo(o *models.Order) {
	o.Status = p.Status
	if p.WaitingStartTime != nil {
		o.WaitingStartTime = p.WaitingStartTime
	}
	if p.StartTime != nil {
		o.StartTime = p.StartTime
	}
	if p.EndTime != nil {
		o.EndTime = p.EndTime
	}
	if p.CancelledAt != nil {
		o.CancelledAt = p.CancelledAt
	}
	if p.WaitingDuration != nil {
		o.WaitingDuration = *p.WaitingDuration
	}
	if p.JourneyDuration != nil {
		o.JourneyDuration = *p.JourneyDuration
	}
	if p.CancellationReason != "" {
		o.CancellationReason = p.CancellationReason
	}
	if p.CancellationFee != nil {
		o.CancellationFee = *p.CancellationFee
	}
	if p.CancelledBy != "" {
		o.CancelledBy = p.CancelledBy
	}
}
