package lifecycle

import (
	"strings"
	"time"

	"ridebook/pkg/models"
)

const (
	DefaultCancellationFee = 20
	DefaultReviewWindow    = 24 * time.Hour
	DefaultChatWindow      = 24 * time.Hour
)

// Policy carries the tunable parts of the lifecycle.
type Policy struct {
	CancellationFee float64
	ReviewWindow    time.Duration
	ChatWindow      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		CancellationFee: DefaultCancellationFee,
		ReviewWindow:    DefaultReviewWindow,
		ChatWindow:      DefaultChatWindow,
	}
}

// Apply validates ev against o and computes the patch to persist. o is not
// modified.
func (p Policy) Apply(o *models.Order, ev Event, at time.Time, reason string) (Patch, error) {
	next, err := Transition(o.Status, ev)
	if err != nil {
		return Patch{}, err
	}

	patch := Patch{Expected: o.Status, Status: next}
	at = at.UTC()

	switch ev {
	case EventStartWaiting:
		if o.WaitingStartTime != nil {
			return Patch{}, ErrAlreadyWaiting
		}
		patch.WaitingStartTime = &at

	case EventStartJourney:
		patch.StartTime = &at
		var waited int64
		if o.WaitingStartTime != nil {
			waited = seconds(*o.WaitingStartTime, at)
		}
		patch.WaitingDuration = &waited

	case EventEnd:
		patch.EndTime = &at
		var journey int64
		if o.StartTime != nil {
			journey = seconds(*o.StartTime, at)
		}
		patch.JourneyDuration = &journey

	case EventCustomerCancel:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return Patch{}, ErrReasonRequired
		}
		fee := p.CancellationFeeFor(o)
		patch.CancelledAt = &at
		patch.CancellationReason = reason
		patch.CancellationFee = &fee
		patch.CancelledBy = models.PartyCustomer

	case EventProviderCancel:
		patch.CancelledAt = &at
		patch.CancellationReason = strings.TrimSpace(reason)
		patch.CancelledBy = models.PartyProvider
	}

	return patch, nil
}

// CancellationFeeFor is the flat fee once a waiting or journey timer has
// started, zero otherwise.
func (p Policy) CancellationFeeFor(o *models.Order) float64 {
	if o.WaitingStartTime != nil || o.StartTime != nil {
		return p.CancellationFee
	}
	return 0
}

// ReviewOpen reports whether now is inside the review window after the end
// of a completed order. It ignores whether a review already exists.
func (p Policy) ReviewOpen(o *models.Order, now time.Time) bool {
	if o.Status != models.StatusCompleted || o.EndTime == nil {
		return false
	}
	return !now.After(o.EndTime.Add(p.ReviewWindow))
}

// Reviewable is ReviewOpen for an order that carries no review yet.
func (p Policy) Reviewable(o *models.Order, now time.Time) bool {
	return o.UserReview == nil && p.ReviewOpen(o, now)
}

// ChatOpen is false once the chat window after the order end has passed.
func (p Policy) ChatOpen(o *models.Order, now time.Time) bool {
	if o.EndTime == nil {
		return true
	}
	return !now.After(o.EndTime.Add(p.ChatWindow))
}

func seconds(from, to time.Time) int64 {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
