package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridebook/pkg/lifecycle"
	"ridebook/pkg/live"
	"ridebook/pkg/models"
	"ridebook/pkg/orderid"
	"ridebook/storage"
)

// memStore is an in-memory storage.IStorage that mirrors the conditional
// writes of the Postgres repos.
type memStore struct {
	mu        sync.Mutex
	seq       int64
	users     map[string]*models.User
	providers map[string]*models.Provider
	orders    map[string]*models.Order
	chats     map[string]*models.Chat
	messages  []*models.Message
	points    []*models.PointEntry
	templates map[string]*models.CleanerTemplate
	fanout    map[string]map[string]bool

	// userErr, when set, fails every user lookup by id.
	userErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]*models.User{},
		providers: map[string]*models.Provider{},
		orders:    map[string]*models.Order{},
		chats:     map[string]*models.Chat{},
		templates: map[string]*models.CleanerTemplate{},
		fanout:    map[string]map[string]bool{},
	}
}

func (m *memStore) User() storage.IUserStorage         { return memUsers{m} }
func (m *memStore) Provider() storage.IProviderStorage { return memProviders{m} }
func (m *memStore) Order() storage.IOrderStorage       { return memOrders{m} }
func (m *memStore) Chat() storage.IChatStorage         { return memChats{m} }
func (m *memStore) Point() storage.IPointStorage       { return memPoints{m} }
func (m *memStore) Template() storage.ITemplateStorage { return memTemplates{m} }
func (m *memStore) Close()                             {}

func copyOrder(o *models.Order) *models.Order {
	c := *o
	c.RejectedBy = append([]string{}, o.RejectedBy...)
	return &c
}

// users

type memUsers struct{ *memStore }

func (r memUsers) Ensure(_ context.Context, u *models.User, at time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[u.ID]
	if !ok {
		cur = &models.User{ID: u.ID, City: u.City, CreatedAt: at, VerificationStatus: models.VerificationUnverified}
		r.users[u.ID] = cur
	}
	if u.Name != "" {
		cur.Name = u.Name
	}
	cur.Role = u.Role
	cur.LastActivity = &at
	c := *cur
	return &c, nil
}

func (r memUsers) UpdateProfile(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[u.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cur.Name, cur.Email, cur.Phone, cur.City = u.Name, u.Email, u.Phone, u.City
	c := *cur
	return &c, nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userErr != nil {
		return nil, r.userErr
	}
	cur, ok := r.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *cur
	return &c, nil
}

func (r memUsers) GetByPushChatID(_ context.Context, chatID int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PushChatID != nil && *u.PushChatID == chatID {
			c := *u
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r memUsers) SetPushChatID(_ context.Context, id string, chatID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	if chatID != nil {
		for _, u := range r.users {
			if u.ID != id && u.PushChatID != nil && *u.PushChatID == *chatID {
				return storage.ErrConflict
			}
		}
	}
	cur.PushChatID = chatID
	return nil
}

func (r memUsers) SetVerification(_ context.Context, id string, status models.VerificationStatus, reason string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cur.VerificationStatus = status
	cur.IsVerified = status == models.VerificationVerified
	cur.RejectionReason = reason
	c := *cur
	return &c, nil
}

func (r memUsers) List(_ context.Context) ([]*models.UserSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.UserSummary
	for _, u := range r.users {
		s := &models.UserSummary{User: *u}
		for _, o := range r.orders {
			if o.CustomerID == u.ID {
				s.RequestCount++
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// providers

type memProviders struct{ *memStore }

func (r memProviders) Upsert(_ context.Context, p *models.Provider) (*models.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *p
	if cur, ok := r.providers[p.UserID]; ok {
		c.ReputationPoints = cur.ReputationPoints
	}
	c.ApprovalTime = nil
	r.providers[p.UserID] = &c
	out := c
	return &out, nil
}

func (r memProviders) Get(_ context.Context, userID string) (*models.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r memProviders) List(_ context.Context, status models.ProviderStatus) ([]*models.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Provider
	for _, p := range r.providers {
		if status == "" || p.Status == status {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r memProviders) Search(_ context.Context, f storage.ProviderFilter) ([]*models.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Provider
	for _, p := range r.providers {
		if p.Status != models.ProviderApproved || p.Service != f.Service || p.Location.City != f.City {
			continue
		}
		if f.Region != "" && p.Location.Region != f.Region {
			continue
		}
		if f.Property != "" && !contains(p.Location.Properties, f.Property) {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReputationPoints != out[j].ReputationPoints {
			return out[i].ReputationPoints > out[j].ReputationPoints
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r memProviders) SetStatus(_ context.Context, userID string, status models.ProviderStatus, at time.Time) (*models.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	p.Status = status
	if status == models.ProviderApproved {
		p.ApprovalTime = &at
	}
	c := *p
	return &c, nil
}

// orders

type memOrders struct{ *memStore }

func (r memOrders) NextCode(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return orderid.Code(r.seq), nil
}

func (r memOrders) hasActiveLocked(customerID, except string) bool {
	for _, o := range r.orders {
		if o.CustomerID == customerID && o.ID != except && o.Status.IsActive() {
			return true
		}
	}
	return false
}

func (r memOrders) Create(_ context.Context, o *models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return nil, storage.ErrConflict
	}
	if o.Status.IsActive() && r.hasActiveLocked(o.CustomerID, "") {
		return nil, storage.ErrActiveOrder
	}
	c := copyOrder(o)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	r.orders[o.ID] = c
	return copyOrder(c), nil
}

func (r memOrders) Get(_ context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyOrder(o), nil
}

func (r memOrders) filter(keep func(o *models.Order) bool) []*models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Order
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memOrders) ListByCustomer(_ context.Context, customerID string) ([]*models.Order, error) {
	return r.filter(func(o *models.Order) bool { return o.CustomerID == customerID }), nil
}

func (r memOrders) ListByProvider(_ context.Context, providerID string, statuses []models.OrderStatus) ([]*models.Order, error) {
	return r.filter(func(o *models.Order) bool {
		if o.ProviderID != providerID {
			return false
		}
		for _, s := range statuses {
			if o.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (r memOrders) ListIncoming(_ context.Context, providerID string, service models.ServiceType, city string) ([]*models.Order, error) {
	return r.filter(func(o *models.Order) bool {
		return o.Status == models.StatusWaitingAccept && o.Service == service && o.City == city &&
			!o.HasRejected(providerID) && o.CustomerID != providerID &&
			(o.ProviderID == "" || o.ProviderID == providerID)
	}), nil
}

func (r memOrders) ListReviewed(_ context.Context) ([]*models.Order, error) {
	return r.filter(func(o *models.Order) bool { return o.UserReview != nil }), nil
}

func (r memOrders) HasActive(_ context.Context, customerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasActiveLocked(customerID, ""), nil
}

func (r memOrders) casLocked(id string, expected models.OrderStatus) (*models.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if o.Status != expected {
		return nil, storage.ErrConflict
	}
	return o, nil
}

func (r memOrders) Transition(_ context.Context, id string, patch lifecycle.Patch) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, err := r.casLocked(id, patch.Expected)
	if err != nil {
		return nil, err
	}
	patch.ApplyTo(o)
	return copyOrder(o), nil
}

func (r memOrders) addChatLocked(o *models.Order, chat *models.Chat) {
	if chat == nil || o.ChatID != "" {
		return
	}
	c := *chat
	r.chats[c.ID] = &c
	o.ChatID = c.ID
}

func (r memOrders) Confirm(_ context.Context, id string, patch lifecycle.Patch, chat *models.Chat) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, err := r.casLocked(id, patch.Expected)
	if err != nil {
		return nil, err
	}
	if patch.Status.IsActive() && r.hasActiveLocked(o.CustomerID, id) {
		return nil, storage.ErrActiveOrder
	}
	patch.ApplyTo(o)
	r.addChatLocked(o, chat)
	return copyOrder(o), nil
}

func (r memOrders) Accept(_ context.Context, id string, patch lifecycle.Patch, a storage.Assignment, chat *models.Chat) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, err := r.casLocked(id, patch.Expected)
	if err != nil {
		return nil, err
	}
	if (o.ProviderID != "" && o.ProviderID != a.ProviderID) || o.HasRejected(a.ProviderID) {
		return nil, storage.ErrConflict
	}
	patch.ApplyTo(o)
	o.ProviderID, o.ProviderName = a.ProviderID, a.ProviderName
	r.addChatLocked(o, chat)
	return copyOrder(o), nil
}

func (r memOrders) Reject(_ context.Context, id, providerID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if o.Status != models.StatusWaitingAccept || (o.ProviderID != "" && o.ProviderID != providerID) {
		return nil, storage.ErrConflict
	}
	if !o.HasRejected(providerID) {
		o.RejectedBy = append(o.RejectedBy, providerID)
	}
	if o.ProviderID == providerID {
		o.ProviderID, o.ProviderName = "", ""
		delete(r.chats, o.ChatID)
		o.ChatID = ""
	}
	return copyOrder(o), nil
}

func (r memOrders) AttachReview(_ context.Context, id string, review models.Review, grants []models.PointEntry, reputationFor string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if o.Status != models.StatusCompleted || o.UserReview != nil {
		return nil, storage.ErrConflict
	}
	rv := review
	o.UserReview = &rv
	for i := range grants {
		g := grants[i]
		r.points = append(r.points, &g)
	}
	if p, ok := r.providers[reputationFor]; ok {
		p.ReputationPoints++
	}
	return copyOrder(o), nil
}

func (r memOrders) FanOut(_ context.Context, o *models.Order) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fanout[o.ID] == nil {
		r.fanout[o.ID] = map[string]bool{}
	}
	var ids []string
	for _, p := range r.providers {
		if !p.Serves(o.Service, o.City) || p.UserID == o.CustomerID {
			continue
		}
		if o.ProviderID != "" && p.UserID != o.ProviderID {
			continue
		}
		if _, seen := r.fanout[o.ID][p.UserID]; seen {
			continue
		}
		r.fanout[o.ID][p.UserID] = false
		ids = append(ids, p.UserID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r memOrders) MarkNotified(_ context.Context, orderID, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := r.fanout[orderID][providerID]; ok {
		r.fanout[orderID][providerID] = true
	}
	o.NotificationSent = true
	return nil
}

// chats

type memChats struct{ *memStore }

func (r memChats) Get(_ context.Context, id string) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (r memChats) GetByOrder(_ context.Context, orderID string) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chats {
		if c.OrderID == orderID {
			out := *c
			return &out, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r memChats) ListForUser(_ context.Context, userID string) ([]*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Chat
	for _, c := range r.chats {
		if c.UserID == userID || c.ProviderID == userID {
			cc := *c
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (r memChats) AddMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[msg.ChatID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m := *msg
	r.messages = append(r.messages, &m)
	c.LastMessage = m.Content
	ts := m.Timestamp
	c.LastMessageTime = &ts
	return &m, nil
}

func (r memChats) Messages(_ context.Context, chatID string) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.messages {
		if m.ChatID == chatID {
			mm := *m
			out = append(out, &mm)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// points

type memPoints struct{ *memStore }

func (r memPoints) Add(_ context.Context, e *models.PointEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *e
	r.points = append(r.points, &c)
	return nil
}

func (r memPoints) History(_ context.Context, userID string, pointType models.PointType) ([]*models.PointEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PointEntry
	for i := len(r.points) - 1; i >= 0; i-- {
		e := r.points[i]
		if (userID == "" || e.UserID == userID) && (pointType == "" || e.PointType == pointType) {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memPoints) Total(ctx context.Context, userID string, pointType models.PointType) (int, error) {
	entries, _ := r.History(ctx, userID, pointType)
	total := 0
	for _, e := range entries {
		total += e.PointAmount
	}
	return total, nil
}

// templates

type memTemplates struct{ *memStore }

func (r memTemplates) Create(_ context.Context, t *models.CleanerTemplate) (*models.CleanerTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	r.templates[t.ID] = &c
	out := c
	return &out, nil
}

func (r memTemplates) Get(_ context.Context, id string) (*models.CleanerTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (r memTemplates) List(_ context.Context, userID string) ([]*models.CleanerTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CleanerTemplate
	for _, t := range r.templates {
		if t.UserID == userID {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memTemplates) Update(_ context.Context, t *models.CleanerTemplate) (*models.CleanerTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.templates[t.ID]
	if !ok || cur.UserID != t.UserID {
		return nil, storage.ErrNotFound
	}
	cur.Name, cur.Data, cur.UpdatedAt = t.Name, t.Data, t.UpdatedAt
	c := *cur
	return &c, nil
}

func (r memTemplates) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.templates[id]
	if !ok || cur.UserID != userID {
		return storage.ErrNotFound
	}
	delete(r.templates, id)
	return nil
}

// infrastructure fakes

type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker { return &memLocker{held: map[string]bool{}} }

func (l *memLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type statusTask struct {
	userID string
	n      models.Notification
}

type memQueue struct {
	mu          sync.Mutex
	newRequests [][2]string
	statuses    []statusTask
}

func (q *memQueue) EnqueueNewRequest(_ context.Context, orderID, providerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.newRequests = append(q.newRequests, [2]string{orderID, providerID})
	return nil
}

func (q *memQueue) EnqueueStatus(_ context.Context, userID string, n models.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses = append(q.statuses, statusTask{userID: userID, n: n})
	return nil
}

type pushed struct {
	chatID int64
	n      models.Notification
}

type memPusher struct {
	mu   sync.Mutex
	sent []pushed
	err  error
}

func (p *memPusher) Push(_ context.Context, chatID int64, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, pushed{chatID: chatID, n: n})
	return nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []live.Event
}

func (p *memPublisher) Publish(_ context.Context, evt live.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *memPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Topic)
	}
	return out
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
