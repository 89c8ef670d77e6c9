package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"ridebook/pkg/session"
)

const sessionKey = "session"

// authenticate resolves the bearer token into a session. The X-City header
// overrides the city carried by the token.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			// Browsers cannot set headers on a websocket handshake.
			token = c.Query("access_token")
		}
		sess, err := s.sessions.Parse(token)
		if err != nil {
			s.abort(c, err)
			return
		}
		if city := strings.TrimSpace(c.GetHeader("X-City")); city != "" {
			sess.City = city
		}

		ctx := session.WithSession(c.Request.Context(), sess)
		if _, err := s.svc.User().Seen(ctx, sess); err != nil {
			s.abort(c, err)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func sessionOf(c *gin.Context) session.Session {
	sess, _ := c.MustGet(sessionKey).(session.Session)
	return sess
}
