package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"ridebook/pkg/lifecycle"
	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/session"
	"ridebook/service"
	"ridebook/storage"
)

// ErrOffline is returned by Push when the bot runs without a token.
var ErrOffline = errors.New("telegram bot is offline")

const (
	btnIncoming = "📦 Incoming requests"
	btnMyOrders = "📋 My orders"
)

// Callback uniques. Each button carries the order id as its data.
const (
	actAccept = "accept"
	actReject = "reject"
	actWait   = "wait"
	actStart  = "start"
	actEnd    = "end"
)

// Bot is the Telegram push transport. Providers also work their orders
// from it: the buttons run the same service calls as the HTTP API.
type Bot struct {
	Bot     *tele.Bot
	Log     logger.ILogger
	Svc     service.IServiceManager
	offline bool
}

// New builds the bot. Without a token it stays offline: handlers are
// registered but nothing is polled or sent.
func New(token string, log logger.ILogger) (*Bot, error) {
	pref := tele.Settings{
		Token:   token,
		Poller:  &tele.LongPoller{Timeout: 10 * time.Second},
		Offline: token == "",
		OnError: func(err error, c tele.Context) {
			log.Error("telegram handler failed", logger.Error(err))
		},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}
	return &Bot{Bot: b, Log: log, offline: token == ""}, nil
}

// Attach wires the services and registers the handlers. The services need
// the bot as their pusher, so this runs after both exist.
func (b *Bot) Attach(svc service.IServiceManager) {
	b.Svc = svc
	b.registerHandlers()
}

func (b *Bot) Start() {
	if b.offline {
		b.Log.Warning("telegram token not set, bot is offline")
		return
	}
	b.Log.Info("🤖 Bot started")
	b.Bot.Start()
}

func (b *Bot) Stop() {
	if b.offline {
		return
	}
	b.Bot.Stop()
}

func (b *Bot) registerHandlers() {
	b.Bot.Handle("/start", b.handleStart)
	b.Bot.Handle("/stop", b.handleStop)
	b.Bot.Handle(btnIncoming, b.handleIncoming)
	b.Bot.Handle(btnMyOrders, b.handleMyOrders)

	for _, act := range []string{actAccept, actReject, actWait, actStart, actEnd} {
		b.Bot.Handle(&tele.Btn{Unique: act}, b.handleAction(act))
	}
}

// Push implements service.Pusher.
func (b *Bot) Push(ctx context.Context, chatID int64, n models.Notification) error {
	if b.offline {
		return ErrOffline
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := []interface{}{tele.ModeHTML}
	if id := n.Data["requestId"]; id != "" && isNewRequest(n) {
		opts = append(opts, requestMarkup(id))
	}
	_, err := b.Bot.Send(tele.ChatID(chatID), renderNotification(n), opts...)
	return err
}

// isNewRequest tells a fresh request offer from a status update: status
// updates always carry the order status.
func isNewRequest(n models.Notification) bool {
	_, ok := n.Data["status"]
	return !ok
}

func renderNotification(n models.Notification) string {
	text := "<b>" + html.EscapeString(n.Title) + "</b>"
	if n.Body != "" {
		text += "\n" + html.EscapeString(n.Body)
	}
	return text
}

func requestMarkup(orderID string) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data("✅ Accept", actAccept, orderID),
		menu.Data("❌ Reject", actReject, orderID),
	))
	return menu
}

// tripMarkup offers the next trip step for an order the provider holds.
func tripMarkup(o *models.Order) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	var btns []tele.Btn
	for _, ev := range lifecycle.Allowed(o.Status) {
		switch ev {
		case lifecycle.EventStartWaiting:
			btns = append(btns, menu.Data("⏳ Arrived", actWait, o.ID))
		case lifecycle.EventStartJourney:
			btns = append(btns, menu.Data("▶ Start", actStart, o.ID))
		case lifecycle.EventEnd:
			btns = append(btns, menu.Data("🏁 Finish", actEnd, o.ID))
		}
	}
	if len(btns) == 0 {
		return nil
	}
	menu.Inline(menu.Row(btns...))
	return menu
}

func describe(o *models.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 <b>%s</b> · %s\n", html.EscapeString(o.ID), html.EscapeString(string(o.Service)))
	fmt.Fprintf(&sb, "📍 %s\n", html.EscapeString(o.City))
	fmt.Fprintf(&sb, "💰 %.2f\n", o.PriceDetails.Total)
	fmt.Fprintf(&sb, "📊 %s", html.EscapeString(string(o.Status)))
	return sb.String()
}

// actionError turns a service error into the short text shown on the
// callback alert.
func actionError(err error) string {
	switch {
	case errors.Is(err, storage.ErrConflict):
		return "This request was already taken."
	case errors.Is(err, storage.ErrNotFound):
		return "Request not found."
	case errors.Is(err, service.ErrForbidden):
		return "You cannot act on this request."
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return "This step is no longer possible."
	case errors.Is(err, session.ErrUnauthenticated):
		return "Link this chat to your account first."
	}
	return "Something went wrong, try again."
}
