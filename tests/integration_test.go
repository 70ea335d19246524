package tests

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/freshmart/order-core/internal/adapter/storage"
	"github.com/freshmart/order-core/internal/core/domain"
	"github.com/freshmart/order-core/internal/core/service"
	"github.com/freshmart/order-core/internal/port"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	cache   *storage.RedisAdapter
	db      *storage.MySQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/freshmart?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema failed: %v", err)
	}

	return &testEnv{
		redis: rdb,
		mysql: db,
		cache: storage.NewRedisAdapter(rdb, time.Minute),
		db:    adapter,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func (e *testEnv) seedProduct(t *testing.T, name, price string) int64 {
	res, err := e.mysql.Exec(`
		INSERT INTO products (name, description, price, unit, available)
		VALUES (?, '', ?, 'kg', TRUE)`, name, price)
	if err != nil {
		t.Fatalf("seed product failed: %v", err)
	}
	id, _ := res.LastInsertId()
	t.Cleanup(func() {
		e.mysql.Exec(`DELETE FROM products WHERE id = ?`, id)
	})
	return id
}

func TestOrderFlow_CreateAndAggregate(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()
	logger := zap.NewNop()

	riceID := env.seedProduct(t, "it-rice", "19.99")
	eggID := env.seedProduct(t, "it-eggs", "0.10")

	orders := service.NewOrderService(env.db, env.cache, logger, 1000, decimal.RequireFromString("10000000"))
	stats := service.NewStatsService(env.db, env.cache, logger)

	before, err := stats.SumCompletedOrderTotals(ctx)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}

	order, err := orders.CreateOrder(ctx, domain.CreateOrderRequest{
		CustomerName:  "it-customer",
		CustomerPhone: "0800000001",
		Lines: []domain.OrderLine{
			{ProductID: riceID, Quantity: 3},
			{ProductID: eggID, Quantity: 7},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	t.Cleanup(func() {
		env.mysql.Exec(`DELETE FROM orders WHERE id = ?`, order.ID)
	})

	want := decimal.RequireFromString("60.67")
	if !order.TotalAmount.Equal(want) {
		t.Errorf("expected total %s, got %s", want, order.TotalAmount)
	}

	if _, err := orders.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCompleted); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	after, err := stats.SumCompletedOrderTotals(ctx)
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if !after.Sub(before).Equal(want) {
		t.Errorf("expected revenue delta %s, got %s", want, after.Sub(before))
	}

	dash, err := stats.DashboardStats(ctx)
	if err != nil {
		t.Fatalf("DashboardStats failed: %v", err)
	}
	if dash.CompletedOrders < 1 {
		t.Errorf("expected at least one completed order, got %d", dash.CompletedOrders)
	}
}

func TestOrderFlow_ValidationLeavesNoRows(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	productID := env.seedProduct(t, "it-milk", "25.00")
	orders := service.NewOrderService(env.db, env.cache, zap.NewNop(), 1000, decimal.RequireFromString("10000000"))

	var before int
	env.mysql.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&before)

	_, err := orders.CreateOrder(ctx, domain.CreateOrderRequest{
		CustomerName:  "it-customer",
		CustomerPhone: "0800000002",
		Lines: []domain.OrderLine{
			{ProductID: productID, Quantity: 2},
			{ProductID: productID, Quantity: 5000},
		},
	})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	var after int
	env.mysql.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&after)
	if after != before {
		t.Errorf("rejected order left rows behind: %d -> %d", before, after)
	}
}

func TestRegisterToken_ConcurrentSameToken(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	devices := service.NewDeviceService(env.db, zap.NewNop())
	token := "it-race-" + uuid.NewString()
	t.Cleanup(func() {
		env.mysql.Exec(`DELETE FROM device_tokens WHERE token = ?`, token)
	})

	const workers = 30
	var wg sync.WaitGroup
	var successes atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := devices.RegisterToken(ctx, token, uuid.NewString(), n%2 == 0)
			if err == nil {
				successes.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := successes.Load(); got != workers {
		t.Errorf("expected all %d registrations to succeed, got %d", workers, got)
	}

	var rows int
	env.mysql.QueryRow(`SELECT COUNT(*) FROM device_tokens WHERE token = ?`, token).Scan(&rows)
	if rows != 1 {
		t.Errorf("expected exactly one row for the token, got %d", rows)
	}

	// At least one registration claimed admin, so the surviving row keeps it.
	var isAdmin bool
	env.mysql.QueryRow(`SELECT is_admin FROM device_tokens WHERE token = ?`, token).Scan(&isAdmin)
	if !isAdmin {
		t.Error("expected the admin flag to stick")
	}
}

type stubGateway struct {
	mu       sync.Mutex
	sends    []string
	failWith map[string]error
}

func (g *stubGateway) Available() bool { return true }

func (g *stubGateway) Send(_ context.Context, token string, _ port.PushMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends = append(g.sends, token)
	if err, ok := g.failWith[token]; ok {
		return err
	}
	return nil
}

func TestDispatch_EndToEnd(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()
	logger := zap.NewNop()

	devices := service.NewDeviceService(env.db, logger)

	suffix := uuid.NewString()
	good, stale := "it-good-"+suffix, "it-stale-"+suffix
	for _, tok := range []string{good, stale} {
		if _, err := devices.RegisterToken(ctx, tok, "dev-"+tok, true); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}
	t.Cleanup(func() {
		env.mysql.Exec(`DELETE FROM device_tokens WHERE token IN (?, ?)`, good, stale)
	})

	gateway := &stubGateway{failWith: map[string]error{stale: port.ErrTokenInvalid}}
	notifs := service.NewNotificationService(env.db, env.db, gateway, logger, 4)

	result, err := notifs.Dispatch(ctx, "it-title", "it-message", domain.AudienceAdmins)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	t.Cleanup(func() {
		env.mysql.Exec(`DELETE FROM notifications WHERE id = ?`, result.ID)
	})

	if result.SentCount < 1 || result.FailedCount < 1 {
		t.Fatalf("expected mixed outcome, got %+v", result)
	}

	stored, err := notifs.GetNotification(ctx, result.ID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if stored.SentCount != result.SentCount || stored.FailedCount != result.FailedCount {
		t.Errorf("persisted tallies %d/%d do not match result %d/%d",
			stored.SentCount, stored.FailedCount, result.SentCount, result.FailedCount)
	}

	// The invalid token is pruned after the outcome is recorded.
	var staleRows int
	env.mysql.QueryRow(`SELECT COUNT(*) FROM device_tokens WHERE token = ?`, stale).Scan(&staleRows)
	if staleRows != 0 {
		t.Error("stale token was not pruned")
	}

	clicked, err := notifs.TrackClick(ctx, result.ID, "dev-"+good)
	if err != nil {
		t.Fatalf("TrackClick failed: %v", err)
	}
	if !clicked {
		t.Error("expected first click to register")
	}
	clicked, err = notifs.TrackClick(ctx, result.ID, "dev-"+good)
	if err != nil {
		t.Fatalf("TrackClick failed: %v", err)
	}
	if clicked {
		t.Error("expected repeated click to be a no-op")
	}
}
