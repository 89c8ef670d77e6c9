package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebook/pkg/models"
)

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	City  string `json:"city"`
}

type pushRequest struct {
	// ChatID is the Telegram chat shown by the bot's /start. Null unlinks.
	ChatID *int64 `json:"chatId"`
}

type templateRequest struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) me(c *gin.Context) {
	u, err := s.svc.User().Me(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) updateMe(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	u, err := s.svc.User().UpdateProfile(c.Request.Context(), sessionOf(c), req.Name, req.Email, req.Phone, req.City)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) linkPush(c *gin.Context) {
	var req pushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := s.svc.User().LinkPush(c.Request.Context(), sessionOf(c), req.ChatID); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) pointHistory(c *gin.Context) {
	entries, err := s.svc.Point().History(c.Request.Context(), sessionOf(c), models.PointType(c.Query("type")))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) pointTotal(c *gin.Context) {
	pointType := models.PointType(c.Query("type"))
	total, err := s.svc.Point().Total(c.Request.Context(), sessionOf(c), pointType)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": pointType, "total": total})
}

func (s *Server) listTemplates(c *gin.Context) {
	list, err := s.svc.Template().List(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	t, err := s.svc.Template().Create(c.Request.Context(), sessionOf(c), req.Name, req.Data)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) updateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	t, err := s.svc.Template().Update(c.Request.Context(), sessionOf(c), c.Param("id"), req.Name, req.Data)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTemplate(c *gin.Context) {
	if err := s.svc.Template().Delete(c.Request.Context(), sessionOf(c), c.Param("id")); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
