package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshmart/order-core/internal/core/domain"
	"github.com/freshmart/order-core/internal/port"
)

// mockOrderRepo keeps orders and products in memory. aggregateCalls counts
// how many aggregate queries the service issued; the aggregate tests assert
// one call per read regardless of row count.
type mockOrderRepo struct {
	mu             sync.Mutex
	products       map[int64]domain.Product
	orders         map[int64]*domain.Order
	nextID         int64
	createErr      error
	aggregateCalls int
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]*domain.Order),
	}
}

func (m *mockOrderRepo) addProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *mockOrderRepo) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockOrderRepo) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.orders {
		n += len(o.Items)
	}
	return n
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	order.ID = m.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		order.Items[i].ID = int64(i + 1)
	}
	stored := *order
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &stored
	return nil
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *mockOrderRepo) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, nil
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockOrderRepo) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockOrderRepo) SumCompletedOrderTotals(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregateCalls++
	sum := decimal.Zero
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusCompleted {
			sum = sum.Add(o.TotalAmount)
		}
	}
	return sum, nil
}

func (m *mockOrderRepo) CountOrdersByStatus(ctx context.Context, status domain.OrderStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregateCalls++
	var n int64
	for _, o := range m.orders {
		if o.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *mockOrderRepo) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregateCalls++
	stats := domain.DashboardStats{TotalRevenue: decimal.Zero}
	for _, o := range m.orders {
		stats.TotalOrders++
		switch o.Status {
		case domain.OrderStatusPending:
			stats.PendingOrders++
		case domain.OrderStatusCompleted:
			stats.CompletedOrders++
			stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		}
	}
	for _, p := range m.products {
		stats.TotalProducts++
		if p.Available {
			stats.ActiveProducts++
		}
	}
	return &stats, nil
}

type mockStatsCache struct {
	mu            sync.Mutex
	stats         *domain.DashboardStats
	invalidations int
	getErr        error
	setErr        error
}

func (m *mockStatsCache) GetStats(ctx context.Context) (*domain.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.stats, nil
}

func (m *mockStatsCache) SetStats(ctx context.Context, stats *domain.DashboardStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.stats = stats
	return nil
}

func (m *mockStatsCache) InvalidateStats(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = nil
	m.invalidations++
	return nil
}

// mockDeviceRepo enforces token uniqueness under a mutex the same way the
// store's unique constraint does, so concurrent registration tests exercise
// the real lost-insert path. findMisses makes FindTokenByValue report
// "absent" that many times regardless of contents, to force the race
// deterministically in single-goroutine tests.
type mockDeviceRepo struct {
	mu         sync.Mutex
	byToken    map[string]*domain.DeviceToken
	nextID     int64
	findMisses int
	removeErr  error
}

func newMockDeviceRepo() *mockDeviceRepo {
	return &mockDeviceRepo{byToken: make(map[string]*domain.DeviceToken)}
}

func (m *mockDeviceRepo) addToken(token, deviceID string, isAdmin bool) *domain.DeviceToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &domain.DeviceToken{ID: m.nextID, Token: token, DeviceID: deviceID, IsAdmin: isAdmin}
	m.byToken[token] = t
	return t
}

func (m *mockDeviceRepo) tokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byToken)
}

func (m *mockDeviceRepo) FindTokenByValue(ctx context.Context, token string) (*domain.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findMisses > 0 {
		m.findMisses--
		return nil, nil
	}
	t, ok := m.byToken[token]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *mockDeviceRepo) InsertToken(ctx context.Context, t *domain.DeviceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byToken[t.Token]; exists {
		return fmt.Errorf("insert token: %w", port.ErrDuplicateToken)
	}
	m.nextID++
	t.ID = m.nextID
	cp := *t
	m.byToken[t.Token] = &cp
	return nil
}

func (m *mockDeviceRepo) UpdateToken(ctx context.Context, id int64, deviceID string, isAdmin bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byToken {
		if t.ID == id {
			t.DeviceID = deviceID
			t.IsAdmin = isAdmin
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDeviceRepo) ListTokens(ctx context.Context, audience domain.Audience) ([]domain.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeviceToken
	for _, t := range m.byToken {
		if audience == domain.AudienceAdmins && !t.IsAdmin {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockDeviceRepo) RemoveToken(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	for token, t := range m.byToken {
		if t.ID == id {
			delete(m.byToken, token)
			return nil
		}
	}
	return nil
}

type recordedDispatch struct {
	sent       int
	failed     int
	recipients []domain.NotificationRecipient
}

type mockNotificationRepo struct {
	mu            sync.Mutex
	nextID        int64
	notifications map[int64]*domain.Notification
	dispatches    map[int64]recordedDispatch
	clicked       map[string]bool
	finalizeFails int
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{
		notifications: make(map[int64]*domain.Notification),
		dispatches:    make(map[int64]recordedDispatch),
		clicked:       make(map[string]bool),
	}
}

func (m *mockNotificationRepo) CreateNotification(ctx context.Context, title, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.notifications[m.nextID] = &domain.Notification{
		ID:        m.nextID,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
	return m.nextID, nil
}

func (m *mockNotificationRepo) FinalizeDispatch(ctx context.Context, id int64, sent, failed int, recipients []domain.NotificationRecipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalizeFails > 0 {
		m.finalizeFails--
		return fmt.Errorf("simulated store failure")
	}
	n, ok := m.notifications[id]
	if !ok {
		return fmt.Errorf("no notification %d", id)
	}
	n.SentCount = sent
	n.FailedCount = failed
	d := m.dispatches[id]
	d.sent = sent
	d.failed = failed
	if recipients != nil {
		d.recipients = append([]domain.NotificationRecipient(nil), recipients...)
	}
	m.dispatches[id] = d
	return nil
}

func (m *mockNotificationRepo) GetNotification(ctx context.Context, id int64) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (m *mockNotificationRepo) MarkClicked(ctx context.Context, notificationID int64, deviceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%d:%s", notificationID, deviceID)
	found := false
	for _, r := range m.dispatches[notificationID].recipients {
		if r.DeviceID == deviceID {
			found = true
			break
		}
	}
	if !found || m.clicked[key] {
		return false, nil
	}
	m.clicked[key] = true
	return true, nil
}

// mockGateway records every send per token and fails the tokens listed in
// failWith. onSend, when set, runs before each send completes.
type mockGateway struct {
	mu        sync.Mutex
	available bool
	failWith  map[string]error
	sends     map[string]int
	onSend    func(token string)
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		available: true,
		failWith:  make(map[string]error),
		sends:     make(map[string]int),
	}
}

func (g *mockGateway) Available() bool { return g.available }

func (g *mockGateway) Send(ctx context.Context, token string, msg port.PushMessage) error {
	g.mu.Lock()
	g.sends[token]++
	cb := g.onSend
	err := g.failWith[token]
	g.mu.Unlock()
	if cb != nil {
		cb(token)
	}
	return err
}

func (g *mockGateway) totalSends() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.sends {
		n += c
	}
	return n
}
