package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebook/pkg/lifecycle"
	"ridebook/pkg/logger"
	"ridebook/pkg/session"
	"ridebook/service"
	"ridebook/storage"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict),
		errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, service.ErrActiveOrderExists),
		errors.Is(err, service.ErrDuplicateSubmission),
		errors.Is(err, service.ErrAlreadyReviewed):
		return http.StatusConflict
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrReviewWindowClosed),
		errors.Is(err, service.ErrChatClosed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// abort writes err as a JSON error. Unknown errors are logged and hidden.
func (s *Server) abort(c *gin.Context, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.log.Error("request failed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Error(err),
		)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
}
