package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"watervend/internal/audit"
	"watervend/internal/eventing"
	"watervend/internal/notify"
	"watervend/internal/observability/metrics"
	ordersapp "watervend/internal/orders/application"
	orderspg "watervend/internal/orders/infrastructure/postgres"
	ordershttp "watervend/internal/orders/interfaces/http"
	"watervend/internal/payment"
	"watervend/internal/payment/cashfree"
	"watervend/internal/receipts"
	tankapp "watervend/internal/tank/application"
	tank "watervend/internal/tank/domain"
	tankpg "watervend/internal/tank/infrastructure/postgres"
	tankhttp "watervend/internal/tank/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	ledger := tank.NewLedger()
	tankService, err := tankapp.NewService(ledger, tankpg.NewStateRepository(db), logger)
	if err != nil {
		logger.Fatalf("tank service error: %v", err)
	}
	if err := tankService.Bootstrap(context.Background()); err != nil {
		logger.Fatalf("tank bootstrap error: %v", err)
	}
	tankHandler, err := tankhttp.NewHandler(tankService, auditRepo)
	if err != nil {
		logger.Fatalf("tank handler error: %v", err)
	}

	bus := eventing.NewInMemoryBus()
	receiptLog := receipts.NewRepository(db)
	orderService, err := ordersapp.NewService(
		orderspg.NewOrderRepository(db), tankService, receiptLog, bus,
		systemClock{}, cfg.Currency, logger)
	if err != nil {
		logger.Fatalf("order service error: %v", err)
	}

	if cfg.NotifyWebhookURL != "" {
		notify.Bind(bus, notify.NewWebhookNotifier(cfg.NotifyWebhookURL), logger)
	}
	bus.Subscribe(eventing.EventTypeOf[ordersapp.OrderSettled](), func(ctx context.Context, event any) error {
		settled, ok := event.(ordersapp.OrderSettled)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("order settled: id=%s liters=%.2f remaining=%.2f", settled.OrderID, settled.Liters, settled.RemainingAfter)
		return nil
	})
	bus.Subscribe(eventing.EventTypeOf[ordersapp.OrderFailed](), func(ctx context.Context, event any) error {
		failed, ok := event.(ordersapp.OrderFailed)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("order %s: id=%s liters=%.2f", failed.State, failed.OrderID, failed.Liters)
		return nil
	})

	provider, err := cashfree.NewClient(cfg.CashfreeBaseURL, cfg.CashfreeClientID, cfg.CashfreeSecret)
	if err != nil {
		logger.Fatalf("cashfree client error: %v", err)
	}
	reconcilerCfg, err := payment.LoadConfig()
	if err != nil {
		logger.Fatalf("reconciler config error: %v", err)
	}
	reconciler, err := payment.NewReconciler(orderService, provider, cfg.PublicBaseURL, reconcilerCfg, systemClock{}, logger)
	if err != nil {
		logger.Fatalf("reconciler error: %v", err)
	}
	worker, err := payment.NewWorker(reconciler)
	if err != nil {
		logger.Fatalf("reconciler worker error: %v", err)
	}
	go worker.Run(context.Background())

	orderHandler, err := ordershttp.NewHandler(orderService, reconciler, tankService, auditRepo)
	if err != nil {
		logger.Fatalf("order handler error: %v", err)
	}
	receiptHandler, err := receipts.NewHandler(receiptLog, logger)
	if err != nil {
		logger.Fatalf("receipt handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/tank", tankHandler)
	mux.Handle("/tank/request", tankHandler)
	mux.Handle("/create-order", orderHandler)
	mux.Handle("/payment-success", orderHandler)
	mux.Handle("/payment-webhook", orderHandler)
	mux.Handle("/check-payment-status/", orderHandler)
	mux.Handle("/receipts", receiptHandler)
	mux.Handle("/receipts/", receiptHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL      string
	HTTPAddr         string
	Currency         string
	PublicBaseURL    string
	CashfreeBaseURL  string
	CashfreeClientID string
	CashfreeSecret   string
	NotifyWebhookURL string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":3567"),
		Currency:         getenvDefault("CURRENCY", "INR"),
		PublicBaseURL:    getenvDefault("PUBLIC_BASE_URL", "http://localhost:3567"),
		CashfreeBaseURL:  getenvDefault("CASHFREE_BASE_URL", cashfree.SandboxBaseURL),
		CashfreeClientID: getenvDefault("CASHFREE_CLIENT_ID", ""),
		CashfreeSecret:   getenvDefault("CASHFREE_CLIENT_SECRET", ""),
		NotifyWebhookURL: getenvDefault("NOTIFY_WEBHOOK_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.CashfreeClientID == "" || cfg.CashfreeSecret == "" {
		log.Fatal("CASHFREE_CLIENT_ID and CASHFREE_CLIENT_SECRET are required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
