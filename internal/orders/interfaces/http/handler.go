package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"watervend/internal/audit"
	ordersapp "watervend/internal/orders/application"
	orders "watervend/internal/orders/domain"
	"watervend/internal/payment"
	tank "watervend/internal/tank/domain"
)

// TankReader reports the remaining water for order responses.
type TankReader interface {
	Snapshot() tank.Snapshot
}

// Handler serves the purchase endpoints: order creation, the provider
// return-URL callback, the provider webhook and the status poll.
type Handler struct {
	orders      *ordersapp.Service
	reconciler  *payment.Reconciler
	tank        TankReader
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(orderService *ordersapp.Service, reconciler *payment.Reconciler, tankReader TankReader, auditLogger audit.Logger) (*Handler, error) {
	if orderService == nil {
		return nil, errors.New("orders handler: nil service")
	}
	if reconciler == nil {
		return nil, errors.New("orders handler: nil reconciler")
	}
	if tankReader == nil {
		return nil, errors.New("orders handler: nil tank reader")
	}
	return &Handler{orders: orderService, reconciler: reconciler, tank: tankReader, auditLogger: auditLogger}, nil
}

// ServeHTTP dispatches on path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/create-order":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCreateOrder(w, r)
	case r.URL.Path == "/payment-success":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handlePaymentSuccess(w, r)
	case r.URL.Path == "/payment-webhook":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleWebhook(w, r)
	case strings.HasPrefix(r.URL.Path, "/check-payment-status/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStatusPoll(w, r)
	default:
		http.NotFound(w, r)
	}
}

type createOrderRequest struct {
	Amount *float64 `json:"amount"`
	Mobile string   `json:"mobile"`
	Liters *float64 `json:"liters"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "read body error")
		return
	}
	defer r.Body.Close()

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid json")
		return
	}
	if req.Amount == nil || req.Mobile == "" || req.Liters == nil {
		respondError(w, http.StatusBadRequest, "AMOUNT_MOBILE_LITERS_REQUIRED", "amount, mobile, and liters are required")
		return
	}

	order, err := h.orders.Create(r.Context(), ordersapp.CreateRequest{
		Liters:      *req.Liters,
		Amount:      *req.Amount,
		CustomerRef: req.Mobile,
	})
	if err != nil {
		respondOrderError(w, err)
		return
	}

	token, err := h.reconciler.StartSession(r.Context(), order)
	if err != nil {
		// The order stays pending; the expiry worker returns its hold if
		// the client never retries.
		respondError(w, http.StatusInternalServerError, "ORDER_CREATION_FAILED", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"payment_session_id": token,
		"order_id":           order.OrderID,
		"remaining":          h.tank.Snapshot().RemainingLiters,
	})
	h.logAudit(r, "order.create", order)
}

func (h *Handler) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "order_id is required")
		return
	}

	order, err := h.reconciler.Confirm(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, payment.ErrRetryable) {
			fmt.Fprint(w, "Payment pending, retry shortly")
			return
		}
		respondOrderError(w, err)
		return
	}
	if order.State != orders.StateSettled {
		fmt.Fprint(w, "Payment failed or expired")
		return
	}

	h.logAudit(r, "order.settle", order)
	http.Redirect(w, r, "/receipts/"+order.OrderID+"/bill.pdf", http.StatusSeeOther)
}

type webhookPayload struct {
	OrderID string `json:"order_id"`
	Data    struct {
		Order struct {
			OrderID string `json:"order_id"`
		} `json:"order"`
	} `json:"data"`
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payloadBody webhookPayload
	if err := json.Unmarshal(body, &payloadBody); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	orderID := payloadBody.OrderID
	if orderID == "" {
		orderID = payloadBody.Data.Order.OrderID
	}
	if orderID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// The webhook only names the order; the provider is re-queried for the
	// authoritative status so forged or stale deliveries cannot settle.
	order, err := h.reconciler.Confirm(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, payment.ErrRetryable) {
			// Ask the provider to redeliver.
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if errors.Is(err, orders.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"order_id": order.OrderID,
		"state":    order.State,
	})
}

func (h *Handler) handleStatusPoll(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimPrefix(r.URL.Path, "/check-payment-status/")
	if orderID == "" || strings.Contains(orderID, "/") {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "order id is required")
		return
	}

	order, err := h.reconciler.Confirm(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, payment.ErrRetryable) {
			respondJSON(w, http.StatusOK, map[string]string{
				"order_id": orderID,
				"state":    orders.StatePending,
			})
			return
		}
		respondOrderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"order_id":    order.OrderID,
		"state":       order.State,
		"liters":      order.RequestedLiters,
		"amount":      order.Amount,
		"resolved_at": order.ResolvedAt,
	})
}

func (h *Handler) logAudit(r *http.Request, action string, order *orders.Order) {
	if h.auditLogger == nil || order == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"liters":       order.RequestedLiters,
		"amount":       order.Amount,
		"customer_ref": order.CustomerRef,
	})
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Action:       action,
		ResourceType: "order",
		ResourceID:   order.OrderID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondOrderError(w http.ResponseWriter, err error) {
	var insufficient *tank.InsufficientError
	switch {
	case errors.As(err, &insufficient):
		respondError(w, http.StatusBadRequest, "INSUFFICIENT_WATER", fmt.Sprintf("only %gL available", insufficient.Available))
	case errors.Is(err, orders.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "order not found")
	case errors.Is(err, tank.ErrInvalidLiters), errors.Is(err, orders.ErrInvalidOrder):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, payment.ErrProviderUnavailable):
		respondError(w, http.StatusInternalServerError, "ORDER_CREATION_FAILED", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
