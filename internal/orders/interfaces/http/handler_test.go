package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"watervend/internal/eventing"
	ordersapp "watervend/internal/orders/application"
	orders "watervend/internal/orders/domain"
	"watervend/internal/orders/infrastructure/memory"
	"watervend/internal/payment"
	"watervend/internal/receipts"
	tank "watervend/internal/tank/domain"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type ledgerAdapter struct {
	ledger *tank.Ledger
}

func (a ledgerAdapter) Reserve(_ context.Context, liters float64) (tank.Reservation, error) {
	return a.ledger.Reserve(liters)
}

func (a ledgerAdapter) Settle(_ context.Context, handleID string) (tank.Snapshot, error) {
	return a.ledger.Settle(handleID)
}

func (a ledgerAdapter) Release(_ context.Context, handleID string) (tank.Snapshot, error) {
	return a.ledger.Release(handleID)
}

type stubProvider struct {
	status    string
	createErr error
}

func (p *stubProvider) CreateSession(_ context.Context, req payment.SessionRequest) (string, error) {
	if p.createErr != nil {
		return "", p.createErr
	}
	return "session-" + req.OrderID, nil
}

func (p *stubProvider) FetchStatus(_ context.Context, orderID string) (payment.OrderStatus, error) {
	return payment.OrderStatus{OrderID: orderID, Status: p.status}, nil
}

func newFixture(t *testing.T) (*Handler, *tank.Ledger, *stubProvider) {
	t.Helper()
	ledger := tank.NewLedger()
	orderService, err := ordersapp.NewService(memory.NewOrderRepository(), ledgerAdapter{ledger}, receipts.NewMemoryLog(), eventing.NewInMemoryBus(), systemClock{}, "INR", nil)
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	provider := &stubProvider{status: payment.StatusActive}
	cfg := payment.Config{PollInterval: time.Minute, PendingTimeout: 15 * time.Minute, BatchSize: 50, WorkerCount: 2}
	reconciler, err := payment.NewReconciler(orderService, provider, "http://localhost:3567", cfg, systemClock{}, nil)
	if err != nil {
		t.Fatalf("reconciler: %v", err)
	}
	handler, err := NewHandler(orderService, reconciler, ledger, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return handler, ledger, provider
}

func createOrder(t *testing.T, handler *Handler) (string, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/create-order", strings.NewReader(`{"amount":100,"mobile":"9876543210","liters":50}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("create-order status = %d body = %s", resp.Code, resp.Body.String())
	}
	body := map[string]any{}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	orderID, _ := body["order_id"].(string)
	if orderID == "" {
		t.Fatalf("no order_id in %v", body)
	}
	return orderID, body
}

func TestCreateOrderReservesAndOpensSession(t *testing.T) {
	handler, ledger, _ := newFixture(t)

	orderID, body := createOrder(t, handler)
	if !strings.HasPrefix(orderID, "order_") {
		t.Fatalf("order id = %q", orderID)
	}
	if body["payment_session_id"] != "session-"+orderID {
		t.Fatalf("session = %v", body["payment_session_id"])
	}
	if body["remaining"] != float64(450) {
		t.Fatalf("remaining = %v", body["remaining"])
	}
	if snap := ledger.Snapshot(); snap.HeldLiters != 50 {
		t.Fatalf("held = %v", snap.HeldLiters)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	handler, ledger, _ := newFixture(t)

	cases := []string{
		`{"mobile":"9876543210","liters":50}`,
		`{"amount":100,"liters":50}`,
		`{"amount":100,"mobile":"9876543210"}`,
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/create-order", strings.NewReader(body))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, resp.Code)
		}
	}
	if snap := ledger.Snapshot(); snap.HeldLiters != 0 {
		t.Fatalf("validation failure took a hold: %v", snap.HeldLiters)
	}
}

func TestCreateOrderInsufficientWater(t *testing.T) {
	handler, ledger, _ := newFixture(t)
	remaining := 10.0
	if _, err := ledger.Update(nil, nil, &remaining); err != nil {
		t.Fatalf("update: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/create-order", strings.NewReader(`{"amount":100,"mobile":"9876543210","liters":50}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.Code)
	}
	body := map[string]any{}
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["error"] != "INSUFFICIENT_WATER" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestCreateOrderProviderDown(t *testing.T) {
	handler, _, provider := newFixture(t)
	provider.createErr = errors.New("gateway down")

	req := httptest.NewRequest(http.MethodPost, "/create-order", strings.NewReader(`{"amount":100,"mobile":"9876543210","liters":50}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.Code)
	}
	body := map[string]any{}
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["error"] != "ORDER_CREATION_FAILED" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestPaymentSuccessSettlesAndRedirects(t *testing.T) {
	handler, ledger, provider := newFixture(t)
	orderID, _ := createOrder(t, handler)
	provider.status = payment.StatusPaid

	req := httptest.NewRequest(http.MethodGet, "/payment-success?order_id="+orderID+"&liters=50", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusSeeOther {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
	if location := resp.Header().Get("Location"); location != "/receipts/"+orderID+"/bill.pdf" {
		t.Fatalf("location = %q", location)
	}
	if snap := ledger.Snapshot(); snap.RemainingLiters != 450 || snap.HeldLiters != 0 {
		t.Fatalf("remaining=%v held=%v", snap.RemainingLiters, snap.HeldLiters)
	}
}

func TestPaymentSuccessPendingShowsMessage(t *testing.T) {
	handler, _, _ := newFixture(t)
	orderID, _ := createOrder(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/payment-success?order_id="+orderID, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "pending") {
		t.Fatalf("body = %s", resp.Body.String())
	}
}

func TestWebhookAndCallbackAreIdempotent(t *testing.T) {
	handler, ledger, provider := newFixture(t)
	orderID, _ := createOrder(t, handler)
	provider.status = payment.StatusPaid

	webhook := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payment-webhook", strings.NewReader(`{"data":{"order":{"order_id":"`+orderID+`"}}}`))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp
	}

	if resp := webhook(); resp.Code != http.StatusOK {
		t.Fatalf("first webhook status = %d", resp.Code)
	}
	// Duplicate webhook plus return-URL callback for the same order.
	if resp := webhook(); resp.Code != http.StatusOK {
		t.Fatalf("second webhook status = %d", resp.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/payment-success?order_id="+orderID, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusSeeOther {
		t.Fatalf("callback status = %d", resp.Code)
	}

	if snap := ledger.Snapshot(); snap.RemainingLiters != 450 || snap.HeldLiters != 0 {
		t.Fatalf("ledger mutated more than once: remaining=%v held=%v", snap.RemainingLiters, snap.HeldLiters)
	}
}

func TestStatusPoll(t *testing.T) {
	handler, _, provider := newFixture(t)
	orderID, _ := createOrder(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/check-payment-status/"+orderID, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	body := map[string]any{}
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["state"] != orders.StatePending {
		t.Fatalf("state = %v", body["state"])
	}

	provider.status = payment.StatusTerminated
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/check-payment-status/"+orderID, nil))
	body = map[string]any{}
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["state"] != orders.StateFailed {
		t.Fatalf("state = %v", body["state"])
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/check-payment-status/order_unknown", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unknown order status = %d", resp.Code)
	}
}
