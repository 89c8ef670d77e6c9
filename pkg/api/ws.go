package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/session"
	"ridebook/service"
	"ridebook/storage"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// websocket streams hub events of one topic to the client. The
// subscription is closed when either side hangs up or the hub shuts down.
func (s *Server) websocket(c *gin.Context) {
	ctx := c.Request.Context()
	sess := sessionOf(c)
	topic := c.Query("topic")

	if err := s.authorizeTopic(ctx, sess, topic); err != nil {
		s.abort(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warning("websocket upgrade failed", logger.Error(err))
		return
	}
	defer ws.Close()

	sub := s.hub.Subscribe(topic)
	defer sub.Close()

	log := s.log.With(logger.String("topic", topic), logger.String("user_id", sess.UserID))
	log.Debug("websocket subscribed")

	// Client messages are discarded; reading keeps pongs and close frames
	// flowing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case evt, ok := <-sub.C():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := ws.WriteJSON(evt); err != nil {
				log.Debug("websocket write failed", logger.Error(err))
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			log.Debug("websocket closed by client")
			return
		}
	}
}

// authorizeTopic lets participants follow an order or chat, and approved
// providers follow the incoming queue they serve. Admins may follow anything.
func (s *Server) authorizeTopic(ctx context.Context, sess session.Session, topic string) error {
	kind, rest, ok := strings.Cut(topic, ":")
	if !ok || rest == "" {
		return invalidTopic(topic)
	}

	switch kind {
	case "order":
		_, err := s.svc.Order().Get(ctx, sess, rest)
		return err
	case "chat":
		_, err := s.svc.Chat().Get(ctx, sess, rest)
		return err
	case "incoming":
		svcType, city, ok := strings.Cut(rest, ":")
		if !ok || !models.ServiceType(svcType).IsValid() || city == "" {
			return invalidTopic(topic)
		}
		if sess.IsAdmin() {
			return nil
		}
		p, err := s.svc.Provider().Me(ctx, sess)
		if errors.Is(err, storage.ErrNotFound) {
			return service.ErrForbidden
		}
		if err != nil {
			return err
		}
		if !p.Serves(models.ServiceType(svcType), city) {
			return service.ErrForbidden
		}
		return nil
	}
	return invalidTopic(topic)
}

func invalidTopic(topic string) error {
	return fmt.Errorf("%w: invalid topic %q", service.ErrValidation, topic)
}
