package service

import (
	"context"
	"time"

	"ridebook/pkg/lifecycle"
	"ridebook/pkg/live"
	"ridebook/pkg/logger"
	"ridebook/pkg/models"
	"ridebook/pkg/pricing"
	"ridebook/storage"
)

type IServiceManager interface {
	User() UserService
	Order() OrderService
	Review() ReviewService
	Chat() ChatService
	Point() PointService
	Provider() ProviderService
	Admin() AdminService
	Template() TemplateService
	Notification() NotificationService
}

// TaskQueue hands push work to the background workers.
type TaskQueue interface {
	EnqueueNewRequest(ctx context.Context, orderID, providerID string) error
	EnqueueStatus(ctx context.Context, userID string, n models.Notification) error
}

// Pusher delivers a notification to a registered push chat.
type Pusher interface {
	Push(ctx context.Context, chatID int64, n models.Notification) error
}

type Options struct {
	Pricing   *pricing.Calculator
	Policy    lifecycle.Policy
	Locker    storage.ILocker
	Publisher live.Publisher
	Queue     TaskQueue
	Pusher    Pusher
	Now       func() time.Time
}

type service struct {
	userService         UserService
	orderService        OrderService
	reviewService       ReviewService
	chatService         ChatService
	pointService        PointService
	providerService     ProviderService
	adminService        AdminService
	templateService     TemplateService
	notificationService NotificationService
}

func New(stg storage.IStorage, log logger.ILogger, opts Options) IServiceManager {
	d := newDeps(stg, log, opts)

	chat := NewChatService(d)
	orders := NewOrderService(d, chat)
	return &service{
		userService:         NewUserService(d),
		orderService:        orders,
		reviewService:       NewReviewService(d),
		chatService:         chat,
		pointService:        NewPointService(d),
		providerService:     NewProviderService(d, orders),
		adminService:        NewAdminService(d),
		templateService:     NewTemplateService(d),
		notificationService: NewNotificationService(d),
	}
}

func (s *service) User() UserService                 { return s.userService }
func (s *service) Order() OrderService               { return s.orderService }
func (s *service) Review() ReviewService             { return s.reviewService }
func (s *service) Chat() ChatService                 { return s.chatService }
func (s *service) Point() PointService               { return s.pointService }
func (s *service) Provider() ProviderService         { return s.providerService }
func (s *service) Admin() AdminService               { return s.adminService }
func (s *service) Template() TemplateService         { return s.templateService }
func (s *service) Notification() NotificationService { return s.notificationService }

// deps is shared by every service.
type deps struct {
	stg    storage.IStorage
	log    logger.ILogger
	calc   *pricing.Calculator
	policy lifecycle.Policy
	locker storage.ILocker
	pub    live.Publisher
	queue  TaskQueue
	pusher Pusher
	now    func() time.Time
}

func newDeps(stg storage.IStorage, log logger.ILogger, opts Options) *deps {
	d := &deps{
		stg:    stg,
		log:    log,
		calc:   opts.Pricing,
		policy: opts.Policy,
		locker: opts.Locker,
		pub:    opts.Publisher,
		queue:  opts.Queue,
		pusher: opts.Pusher,
		now:    opts.Now,
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.policy == (lifecycle.Policy{}) {
		d.policy = lifecycle.DefaultPolicy()
	}
	return d
}

func (d *deps) clock() time.Time {
	return d.now().UTC()
}

// publish is best effort: a lost live event never fails the operation.
func (d *deps) publish(ctx context.Context, topic, typ string, data interface{}) {
	if d.pub == nil {
		return
	}
	evt := live.Event{Topic: topic, Type: typ, Data: data, At: d.clock()}
	if err := d.pub.Publish(ctx, evt); err != nil {
		d.log.Warning("failed to publish live event", logger.String("topic", topic), logger.Error(err))
	}
}

func (d *deps) notify(ctx context.Context, userID string, n models.Notification) {
	if d.queue == nil || userID == "" {
		return
	}
	if err := d.queue.EnqueueStatus(ctx, userID, n); err != nil {
		d.log.Warning("failed to enqueue status notification", logger.String("user_id", userID), logger.Error(err))
	}
}
