// Package api serves the HTTP and websocket surface over the services.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridebook/pkg/live"
	"ridebook/pkg/logger"
	"ridebook/pkg/session"
	"ridebook/service"
)

type Server struct {
	svc      service.IServiceManager
	sessions *session.Manager
	hub      *live.Hub
	log      logger.ILogger
	http     *http.Server
}

func New(svc service.IServiceManager, sessions *session.Manager, hub *live.Hub, log logger.ILogger) *Server {
	return &Server{svc: svc, sessions: sessions, hub: hub, log: log}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(s.authenticate())
	{
		api.GET("/me", s.me)
		api.PUT("/me", s.updateMe)
		api.PUT("/me/push", s.linkPush)

		orders := api.Group("/orders")
		orders.POST("", s.createOrder)
		orders.POST("/drafts", s.saveDraft)
		orders.GET("", s.myOrders)
		orders.GET("/:id", s.getOrder)
		orders.GET("/:id/chat", s.orderChat)
		orders.POST("/:id/confirm", s.orderAction(service.OrderService.Confirm))
		orders.POST("/:id/cancel", s.cancelOrder(service.OrderService.CancelByCustomer))
		orders.POST("/:id/review", s.reviewOrder)
		orders.POST("/:id/accept", s.orderAction(service.OrderService.Accept))
		orders.POST("/:id/reject", s.orderAction(service.OrderService.Reject))
		orders.POST("/:id/wait", s.orderAction(service.OrderService.StartWaiting))
		orders.POST("/:id/start", s.orderAction(service.OrderService.StartJourney))
		orders.POST("/:id/end", s.orderAction(service.OrderService.End))
		orders.POST("/:id/provider-cancel", s.cancelOrder(service.OrderService.CancelByProvider))

		api.GET("/providers", s.searchProviders)

		provider := api.Group("/provider")
		provider.GET("/me", s.providerMe)
		provider.GET("/incoming", s.incoming)
		provider.GET("/orders", s.providerOrders)
		provider.POST("/apply", s.applyProvider)
		provider.POST("/withdraw", s.withdrawProvider)

		api.GET("/chats", s.listChats)
		api.GET("/chats/:id/messages", s.listMessages)
		api.POST("/chats/:id/messages", s.sendMessage)

		api.GET("/points", s.pointHistory)
		api.GET("/points/total", s.pointTotal)

		api.GET("/templates", s.listTemplates)
		api.POST("/templates", s.createTemplate)
		api.PUT("/templates/:id", s.updateTemplate)
		api.DELETE("/templates/:id", s.deleteTemplate)

		admin := api.Group("/admin")
		admin.GET("/providers", s.adminProviders)
		admin.PUT("/providers/:id/status", s.adminProviderStatus)
		admin.GET("/users", s.adminUsers)
		admin.POST("/users/:id/verify", s.adminVerifyUser)
		admin.POST("/users/:id/reject", s.adminRejectUser)
		admin.GET("/reviews", s.adminReviews)
		admin.GET("/points", s.adminPoints)

		api.GET("/ws", s.websocket)
	}
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	s.http = &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("🌐 HTTP server listening", logger.String("addr", addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown; closing
	// the hub ends their pumps.
	s.hub.Close()
	return s.http.Shutdown(shutdownCtx)
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-City")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
