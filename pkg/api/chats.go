package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type messageRequest struct {
	Content string `json:"content"`
}

func (s *Server) listChats(c *gin.Context) {
	chats, err := s.svc.Chat().ListForUser(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (s *Server) listMessages(c *gin.Context) {
	msgs, err := s.svc.Chat().Messages(c.Request.Context(), sessionOf(c), c.Param("id"))
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	msg, err := s.svc.Chat().Send(c.Request.Context(), sessionOf(c), c.Param("id"), req.Content)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
