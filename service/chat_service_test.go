package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ridebook/pkg/live"
	"ridebook/pkg/models"
)

func TestSendMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cust := h.customer(t, "c1")
	p := h.provider(t, "p1", models.ServiceCleaning)

	o, err := h.svc.Order().Create(ctx, cust, cleaningDraft(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	o, err = h.svc.Order().Accept(ctx, p, o.ID)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := h.svc.Chat().Send(ctx, cust, o.ChatID, "  gate code is 1234 ")
	if err != nil {
		t.Fatal(err)
	}
	if msg.RecipientID != "p1" || msg.SenderID != "c1" || msg.Content != "gate code is 1234" || msg.Type != models.MessageText {
		t.Errorf("message = %+v", msg)
	}
	h.clock.Advance(time.Second)
	if _, err := h.svc.Chat().Send(ctx, p, o.ChatID, "on my way"); err != nil {
		t.Fatal(err)
	}

	msgs, err := h.svc.Chat().Messages(ctx, p, o.ChatID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "gate code is 1234" || msgs[1].RecipientID != "c1" {
		t.Errorf("messages = %+v", msgs)
	}

	chat, err := h.svc.Chat().Get(ctx, cust, o.ChatID)
	if err != nil {
		t.Fatal(err)
	}
	if chat.LastMessage != "on my way" || chat.LastMessageTime == nil {
		t.Errorf("chat preview = %+v", chat)
	}
	if !contains(h.pub.topics(), live.ChatTopic(o.ChatID)) {
		t.Errorf("no chat event published: %v", h.pub.topics())
	}

	chats, err := h.svc.Chat().ListForUser(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 1 {
		t.Errorf("provider chats = %d", len(chats))
	}
}

func TestSendRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cust := h.customer(t, "c1")
	p := h.provider(t, "p1", models.ServiceChauffeur)
	o := h.completedOrder(t, cust, p)

	if _, err := h.svc.Chat().Send(ctx, cust, o.ChatID, "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank message: err = %v", err)
	}
	if _, err := h.svc.Chat().Send(ctx, cust, o.ChatID, strings.Repeat("x", maxMessageLength+1)); !errors.Is(err, ErrValidation) {
		t.Errorf("long message: err = %v", err)
	}
	if _, err := h.svc.Chat().Send(ctx, h.customer(t, "c2"), o.ChatID, "hi"); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger: err = %v", err)
	}
	if _, err := h.svc.Chat().Messages(ctx, h.customer(t, "c3"), o.ChatID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger read: err = %v", err)
	}
	if _, err := h.svc.Chat().Messages(ctx, h.admin(t), o.ChatID); err != nil {
		t.Errorf("admin read: %v", err)
	}

	h.clock.Advance(23 * time.Hour)
	if _, err := h.svc.Chat().Send(ctx, cust, o.ChatID, "thanks!"); err != nil {
		t.Errorf("inside window: %v", err)
	}
	h.clock.Advance(2 * time.Hour)
	if _, err := h.svc.Chat().Send(ctx, cust, o.ChatID, "one more thing"); !errors.Is(err, ErrChatClosed) {
		t.Errorf("after window: err = %v", err)
	}
}
