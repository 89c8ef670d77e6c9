package service

import (
	"context"
	"errors"
	"testing"

	"ridebook/pkg/models"
)

func TestHandleNewRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.provider(t, "p1", models.ServiceChauffeur)
	h.provider(t, "p2", models.ServiceChauffeur)
	chatID := int64(4242)
	if err := h.svc.User().LinkPush(ctx, p, &chatID); err != nil {
		t.Fatal(err)
	}

	o, err := h.svc.Order().Create(ctx, h.customer(t, "c1"), chauffeurDraft(3))
	if err != nil {
		t.Fatal(err)
	}

	for _, task := range h.queue.newRequests {
		if err := h.svc.Notification().HandleNewRequest(ctx, task[0], task[1]); err != nil {
			t.Fatalf("%v: %v", task, err)
		}
	}
	// redelivery
	if err := h.svc.Notification().HandleNewRequest(ctx, o.ID, "p1"); err != nil {
		t.Fatal(err)
	}

	if len(h.pusher.sent) != 1 {
		t.Fatalf("pushes = %+v, want exactly one", h.pusher.sent)
	}
	got := h.pusher.sent[0]
	if got.chatID != chatID || got.n.Title != "New Service Request" ||
		got.n.Body != "You have a new request for chauffeur in Kuala Lumpur." || got.n.Data["requestId"] != o.ID {
		t.Errorf("push = %+v", got)
	}
	if !h.stg.fanout[o.ID]["p1"] || h.stg.fanout[o.ID]["p2"] {
		t.Errorf("fan-out flags = %v", h.stg.fanout[o.ID])
	}
	stored, _ := h.stg.Order().Get(ctx, o.ID)
	if !stored.NotificationSent {
		t.Error("order not marked notified")
	}
}

func TestHandleNewRequestSwallowsPushFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.provider(t, "p1", models.ServiceChauffeur)
	chatID := int64(7)
	h.svc.User().LinkPush(ctx, p, &chatID)
	h.pusher.err = errors.New("bot blocked by user")

	o, err := h.svc.Order().Create(ctx, h.customer(t, "c1"), chauffeurDraft(3))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.svc.Notification().HandleNewRequest(ctx, o.ID, "p1"); err != nil {
		t.Fatalf("push failure surfaced: %v", err)
	}
	if h.stg.fanout[o.ID]["p1"] {
		t.Error("failed push marked as sent")
	}
}

func TestHandleNewRequestSkipsTakenOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.provider(t, "p1", models.ServiceChauffeur)
	chatID := int64(7)
	h.svc.User().LinkPush(ctx, p, &chatID)

	o, err := h.svc.Order().Create(ctx, h.customer(t, "c1"), chauffeurDraft(3))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Order().Accept(ctx, p, o.ID); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.Notification().HandleNewRequest(ctx, o.ID, "p1"); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.Notification().HandleNewRequest(ctx, "missing", "p1"); err != nil {
		t.Fatal(err)
	}
	if len(h.pusher.sent) != 0 {
		t.Errorf("pushes = %+v", h.pusher.sent)
	}
}

func TestHandleStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cust := h.customer(t, "c1")
	h.customer(t, "c2")
	chatID := int64(99)
	if err := h.svc.User().LinkPush(ctx, cust, &chatID); err != nil {
		t.Fatal(err)
	}

	n := models.Notification{Title: "Request accepted", Body: "x"}
	for _, id := range []string{"c1", "c2", "ghost"} {
		if err := h.svc.Notification().HandleStatus(ctx, id, n); err != nil {
			t.Errorf("%s: %v", id, err)
		}
	}
	if len(h.pusher.sent) != 1 || h.pusher.sent[0].chatID != 99 {
		t.Errorf("pushes = %+v", h.pusher.sent)
	}
}

func TestFailedPushCanBeRetried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.provider(t, "p1", models.ServiceCleaning)
	chatID := int64(11)
	h.svc.User().LinkPush(ctx, p, &chatID)

	o, err := h.svc.Order().Create(ctx, h.customer(t, "c1"), cleaningDraft(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	h.pusher.err = errors.New("timeout")
	h.svc.Notification().HandleNewRequest(ctx, o.ID, "p1")

	h.pusher.err = nil
	h.svc.Notification().HandleNewRequest(ctx, o.ID, "p1")
	if len(h.pusher.sent) != 1 {
		t.Errorf("pushes = %d, want 1", len(h.pusher.sent))
	}
}

func TestUserLookupFailureReleasesPushGuard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.provider(t, "p1", models.ServiceChauffeur)
	chatID := int64(9)
	if err := h.svc.User().LinkPush(ctx, p, &chatID); err != nil {
		t.Fatal(err)
	}
	o, err := h.svc.Order().Create(ctx, h.customer(t, "c1"), chauffeurDraft(3))
	if err != nil {
		t.Fatal(err)
	}

	dbDown := errors.New("connection refused")
	h.stg.userErr = dbDown
	if err := h.svc.Notification().HandleNewRequest(ctx, o.ID, "p1"); !errors.Is(err, dbDown) {
		t.Fatalf("lookup failure: err = %v", err)
	}
	if h.locker.held["notify:"+o.ID+":p1"] {
		t.Fatal("push guard still held after a failed lookup")
	}

	h.stg.userErr = nil
	if err := h.svc.Notification().HandleNewRequest(ctx, o.ID, "p1"); err != nil {
		t.Fatal(err)
	}
	if len(h.pusher.sent) != 1 || h.pusher.sent[0].chatID != chatID {
		t.Fatalf("pushes after recovery = %+v", h.pusher.sent)
	}
}
