package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebook/pkg/models"
	"ridebook/service"
)

func (s *Server) providerMe(c *gin.Context) {
	p, err := s.svc.Provider().Me(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) incoming(c *gin.Context) {
	orders, err := s.svc.Provider().Incoming(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) providerOrders(c *gin.Context) {
	tab := service.ProviderTab(c.DefaultQuery("tab", string(service.TabAccepted)))
	orders, err := s.svc.Provider().Orders(c.Request.Context(), sessionOf(c), tab)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) applyProvider(c *gin.Context) {
	var app models.ProviderApplication
	if err := c.ShouldBindJSON(&app); err != nil {
		s.badRequest(c, err)
		return
	}
	p, err := s.svc.Provider().Apply(c.Request.Context(), sessionOf(c), app)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) withdrawProvider(c *gin.Context) {
	p, err := s.svc.Provider().Withdraw(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) searchProviders(c *gin.Context) {
	list, err := s.svc.Provider().Search(c.Request.Context(), sessionOf(c),
		models.ServiceType(c.Query("service")), c.Query("city"), c.Query("region"), c.Query("property"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
