package bot

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/session"
	"ridebook/service"
	"ridebook/storage"
)

// sessionFor resolves the account linked to the chat.
func (b *Bot) sessionFor(ctx context.Context, c tele.Context) (session.Session, error) {
	u, err := b.Svc.User().ByPushChat(ctx, c.Chat().ID)
	if errors.Is(err, storage.ErrNotFound) {
		return session.Session{}, session.ErrUnauthenticated
	}
	if err != nil {
		return session.Session{}, err
	}
	return sessionOf(u), nil
}

func sessionOf(u *models.User) session.Session {
	return session.Session{UserID: u.ID, Name: u.Name, Role: u.Role, City: u.City}
}

func (b *Bot) handleStart(c tele.Context) error {
	sess, err := b.sessionFor(context.Background(), c)
	if err != nil {
		return c.Send(fmt.Sprintf(
			"👋 Welcome!\n\nYour chat id is <code>%d</code>. Add it under notifications in the app to receive requests here.",
			c.Chat().ID), tele.ModeHTML)
	}

	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(menu.Row(menu.Text(btnIncoming)), menu.Row(menu.Text(btnMyOrders)))
	return c.Send(fmt.Sprintf("👋 Hi %s, this chat receives your notifications.", sess.Name), menu)
}

func (b *Bot) handleStop(c tele.Context) error {
	ctx := context.Background()
	sess, err := b.sessionFor(ctx, c)
	if err != nil {
		return c.Send("This chat is not linked.")
	}
	if err := b.Svc.User().LinkPush(ctx, sess, nil); err != nil {
		b.Log.Error("failed to unlink chat", logger.String("user_id", sess.UserID), logger.Error(err))
		return c.Send("Could not unlink, try again.")
	}
	return c.Send("🔕 Notifications stopped.", tele.RemoveKeyboard)
}

func (b *Bot) handleIncoming(c tele.Context) error {
	ctx := context.Background()
	sess, err := b.sessionFor(ctx, c)
	if err != nil {
		return c.Send(actionError(err))
	}
	orders, err := b.Svc.Provider().Incoming(ctx, sess)
	if err != nil {
		return c.Send(actionError(err))
	}
	if len(orders) == 0 {
		return c.Send("📭 No open requests right now.")
	}
	for _, o := range orders {
		if err := c.Send(describe(o), requestMarkup(o.ID), tele.ModeHTML); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleMyOrders(c tele.Context) error {
	ctx := context.Background()
	sess, err := b.sessionFor(ctx, c)
	if err != nil {
		return c.Send(actionError(err))
	}

	var orders []*models.Order
	for _, tab := range []service.ProviderTab{service.TabAccepted, service.TabInProgress} {
		list, err := b.Svc.Provider().Orders(ctx, sess, tab)
		if err != nil {
			return c.Send(actionError(err))
		}
		orders = append(orders, list...)
	}
	if len(orders) == 0 {
		return c.Send("You have no orders in progress.")
	}
	for _, o := range orders {
		opts := []interface{}{tele.ModeHTML}
		if m := tripMarkup(o); m != nil {
			opts = append(opts, m)
		}
		if err := c.Send(describe(o), opts...); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleAction(act string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := context.Background()
		orderID := c.Callback().Data

		sess, err := b.sessionFor(ctx, c)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: actionError(err), ShowAlert: true})
		}

		o, err := b.run(ctx, act, sess, orderID)
		if err != nil {
			b.Log.Info("telegram action refused",
				logger.String("action", act), logger.String("order_id", orderID), logger.Error(err))
			return c.Respond(&tele.CallbackResponse{Text: actionError(err), ShowAlert: true})
		}

		opts := []interface{}{tele.ModeHTML}
		if m := tripMarkup(o); m != nil && act != actReject {
			opts = append(opts, m)
		}
		if act == actReject {
			_ = c.Edit("❌ Rejected "+o.ID, tele.ModeHTML)
		} else {
			_ = c.Edit(describe(o), opts...)
		}
		return c.Respond()
	}
}

func (b *Bot) run(ctx context.Context, act string, sess session.Session, orderID string) (*models.Order, error) {
	orders := b.Svc.Order()
	switch act {
	case actAccept:
		return orders.Accept(ctx, sess, orderID)
	case actReject:
		return orders.Reject(ctx, sess, orderID)
	case actWait:
		return orders.StartWaiting(ctx, sess, orderID)
	case actStart:
		return orders.StartJourney(ctx, sess, orderID)
	case actEnd:
		return orders.End(ctx, sess, orderID)
	}
	return nil, fmt.Errorf("unknown action %q", act)
}
