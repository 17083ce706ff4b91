package integration_test

import (
	"context"
	"database/sql"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"watervend/internal/eventing"
	ordersapp "watervend/internal/orders/application"
	orders "watervend/internal/orders/domain"
	orderspg "watervend/internal/orders/infrastructure/postgres"
	"watervend/internal/payment"
	"watervend/internal/receipts"
	tankapp "watervend/internal/tank/application"
	tank "watervend/internal/tank/domain"
	tankpg "watervend/internal/tank/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type staticProvider struct {
	status string
}

func (p *staticProvider) CreateSession(_ context.Context, req payment.SessionRequest) (string, error) {
	return "session-" + req.OrderID, nil
}

func (p *staticProvider) FetchStatus(_ context.Context, orderID string) (payment.OrderStatus, error) {
	return payment.OrderStatus{OrderID: orderID, Status: p.status}, nil
}

func TestPurchaseClosedLoop_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	applyMigrations(t, db)

	ctx := context.Background()
	_, _ = db.ExecContext(ctx, "DELETE FROM receipts")
	_, _ = db.ExecContext(ctx, "DELETE FROM orders")
	_, _ = db.ExecContext(ctx, "DELETE FROM tank_state")

	quiet := log.New(io.Discard, "", 0)

	ledger := tank.NewLedger()
	stateRepo := tankpg.NewStateRepository(db)
	tankService, err := tankapp.NewService(ledger, stateRepo, quiet)
	if err != nil {
		t.Fatalf("tank service: %v", err)
	}
	if err := tankService.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	provider := &staticProvider{status: payment.StatusActive}
	orderService, err := ordersapp.NewService(
		orderspg.NewOrderRepository(db), tankService,
		receipts.NewRepository(db), eventing.NewInMemoryBus(),
		systemClock{}, "INR", quiet)
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	cfg := payment.Config{PollInterval: time.Minute, PendingTimeout: 15 * time.Minute, BatchSize: 50, WorkerCount: 2}
	reconciler, err := payment.NewReconciler(orderService, provider, "http://localhost:3567", cfg, systemClock{}, quiet)
	if err != nil {
		t.Fatalf("reconciler: %v", err)
	}

	order, err := orderService.Create(ctx, ordersapp.CreateRequest{
		Liters:      50,
		Amount:      150,
		CustomerRef: "9876543210",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := reconciler.StartSession(ctx, order); err != nil {
		t.Fatalf("start session: %v", err)
	}

	var stored string
	if err := db.QueryRowContext(ctx, "SELECT state FROM orders WHERE order_id = $1", order.OrderID).Scan(&stored); err != nil {
		t.Fatalf("query order: %v", err)
	}
	if stored != orders.StatePending {
		t.Fatalf("stored state = %q", stored)
	}

	provider.status = payment.StatusPaid
	settled, err := reconciler.Confirm(ctx, order.OrderID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if settled.State != orders.StateSettled {
		t.Fatalf("settled state = %q", settled.State)
	}

	// Duplicate confirmation must not touch the ledger again.
	if _, err := reconciler.Confirm(ctx, order.OrderID); err != nil {
		t.Fatalf("duplicate confirm: %v", err)
	}

	if err := db.QueryRowContext(ctx, "SELECT state FROM orders WHERE order_id = $1", order.OrderID).Scan(&stored); err != nil {
		t.Fatalf("re-query order: %v", err)
	}
	if stored != orders.StateSettled {
		t.Fatalf("stored state after confirm = %q", stored)
	}

	var receiptCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM receipts WHERE order_id = $1", order.OrderID).Scan(&receiptCount); err != nil {
		t.Fatalf("count receipts: %v", err)
	}
	if receiptCount != 1 {
		t.Fatalf("receipts = %d", receiptCount)
	}

	var remaining float64
	if err := db.QueryRowContext(ctx, "SELECT remaining_liters FROM tank_state WHERE id = 1").Scan(&remaining); err != nil {
		t.Fatalf("query tank state: %v", err)
	}
	if remaining != 450 {
		t.Fatalf("persisted remaining = %v", remaining)
	}
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	pattern := filepath.Join("..", "..", "..", "migrations", "*.sql")
	files, err := filepath.Glob(pattern)
	if err != nil || len(files) == 0 {
		t.Fatalf("no migration files at %s", pattern)
	}
	for _, file := range files {
		schema, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		if _, err := db.Exec(string(schema)); err != nil {
			t.Fatalf("apply %s: %v", file, err)
		}
	}
}
