package tasks

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
)

// Handler runs the work behind each task type.
type Handler interface {
	HandleNewRequest(ctx context.Context, orderID, providerID string) error
	HandleStatus(ctx context.Context, userID string, n models.Notification) error
}

func NewServeMux(h Handler, log logger.ILogger) *asynq.ServeMux {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TypeNewRequest, func(ctx context.Context, t *asynq.Task) error {
		var p NewRequestPayload
		if err := decode(t, &p); err != nil {
			log.Error("bad task payload", logger.String("type", t.Type()), logger.Error(err))
			return err
		}
		return h.HandleNewRequest(ctx, p.OrderID, p.ProviderID)
	})

	mux.HandleFunc(TypeStatus, func(ctx context.Context, t *asynq.Task) error {
		var p StatusPayload
		if err := decode(t, &p); err != nil {
			log.Error("bad task payload", logger.String("type", t.Type()), logger.Error(err))
			return err
		}
		return h.HandleStatus(ctx, p.UserID, p.Notification)
	})

	return mux
}

// Server is the asynq worker for the notifications queue.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log logger.ILogger
}

func NewServer(opt asynq.RedisConnOpt, concurrency int, h Handler, log logger.ILogger) *Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueNotifications: 1},
		Logger:      asynqLogger{log: log},
	})
	return &Server{srv: srv, mux: NewServeMux(h, log), log: log}
}

// Start runs the workers in the background.
func (s *Server) Start() error {
	if err := s.srv.Start(s.mux); err != nil {
		s.log.Error("failed to start task server", logger.Error(err))
		return err
	}
	s.log.Info("task server started", logger.String("queue", QueueNotifications))
	return nil
}

func (s *Server) Shutdown() {
	s.srv.Shutdown()
	s.log.Info("task server stopped")
}

// exit is swapped in tests.
var exit = os.Exit

// asynqLogger routes asynq's own logging into ours.
type asynqLogger struct {
	log logger.ILogger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warning(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }

// Fatal follows the asynq.Logger contract and ends the process.
func (l asynqLogger) Fatal(args ...interface{}) {
	l.log.Error(fmt.Sprint(args...))
	exit(1)
}
