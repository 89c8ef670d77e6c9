package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebook/pkg/models"
)

type providerStatusRequest struct {
	Status models.ProviderStatus `json:"status"`
}

type rejectUserRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) adminProviders(c *gin.Context) {
	list, err := s.svc.Admin().Providers(c.Request.Context(), sessionOf(c), models.ProviderStatus(c.Query("status")))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) adminProviderStatus(c *gin.Context) {
	var req providerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	p, err := s.svc.Admin().SetProviderStatus(c.Request.Context(), sessionOf(c), c.Param("id"), req.Status)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) adminUsers(c *gin.Context) {
	list, err := s.svc.Admin().Users(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) adminVerifyUser(c *gin.Context) {
	u, err := s.svc.Admin().VerifyUser(c.Request.Context(), sessionOf(c), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) adminRejectUser(c *gin.Context) {
	var req rejectUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	u, err := s.svc.Admin().RejectUser(c.Request.Context(), sessionOf(c), c.Param("id"), req.Reason)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) adminReviews(c *gin.Context) {
	list, err := s.svc.Admin().Reviews(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) adminPoints(c *gin.Context) {
	list, err := s.svc.Admin().PointHistory(c.Request.Context(), sessionOf(c), c.Query("user"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
