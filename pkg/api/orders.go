package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebook/pkg/models"
	"ridebook/pkg/session"
	"ridebook/service"
)

// Method expressions on service.OrderService, bound to the manager's order
// service per request.
type (
	orderFunc  func(svc service.OrderService, ctx context.Context, sess session.Session, id string) (*models.Order, error)
	cancelFunc func(svc service.OrderService, ctx context.Context, sess session.Session, id, reason string) (*models.Order, error)
)

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) createOrder(c *gin.Context) {
	var draft models.OrderDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		s.badRequest(c, err)
		return
	}
	o, err := s.svc.Order().Create(c.Request.Context(), sessionOf(c), draft)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) saveDraft(c *gin.Context) {
	var draft models.OrderDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		s.badRequest(c, err)
		return
	}
	o, err := s.svc.Order().SaveDraft(c.Request.Context(), sessionOf(c), draft)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) myOrders(c *gin.Context) {
	orders, err := s.svc.Order().ListMine(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) getOrder(c *gin.Context) {
	o, err := s.svc.Order().Get(c.Request.Context(), sessionOf(c), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) orderChat(c *gin.Context) {
	chat, err := s.svc.Chat().GetByOrder(c.Request.Context(), sessionOf(c), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// orderAction serves the body-less lifecycle steps.
func (s *Server) orderAction(fn orderFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := fn(s.svc.Order(), c.Request.Context(), sessionOf(c), c.Param("id"))
		if err != nil {
			s.abort(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func (s *Server) cancelOrder(fn cancelFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
		o, err := fn(s.svc.Order(), c.Request.Context(), sessionOf(c), c.Param("id"), req.Reason)
		if err != nil {
			s.abort(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func (s *Server) reviewOrder(c *gin.Context) {
	var in service.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, err)
		return
	}
	o, err := s.svc.Review().Submit(c.Request.Context(), sessionOf(c), c.Param("id"), in)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
