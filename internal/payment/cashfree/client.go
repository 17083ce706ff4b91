package cashfree

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"watervend/internal/payment"
)

const (
	// SandboxBaseURL is the Cashfree PG sandbox endpoint.
	SandboxBaseURL = "https://sandbox.cashfree.com/pg"

	apiVersion = "2023-08-01"

	defaultCustomerName  = "Water User"
	defaultCustomerEmail = "test@example.com"
)

// Client is a minimal Cashfree PG REST client implementing payment.Provider.
type Client struct {
	baseURL  string
	clientID string
	secret   string
	client   *http.Client
}

// NewClient constructs a client.
func NewClient(baseURL, clientID, secret string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("cashfree: empty base url")
	}
	if clientID == "" || secret == "" {
		return nil, errors.New("cashfree: missing credentials")
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   secret,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type customerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

type orderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
}

type createOrderRequest struct {
	OrderID         string          `json:"order_id"`
	OrderAmount     float64         `json:"order_amount"`
	OrderCurrency   string          `json:"order_currency"`
	CustomerDetails customerDetails `json:"customer_details"`
	OrderMeta       orderMeta       `json:"order_meta"`
}

type orderResponse struct {
	OrderID          string          `json:"order_id"`
	OrderStatus      string          `json:"order_status"`
	OrderAmount      float64         `json:"order_amount"`
	OrderCurrency    string          `json:"order_currency"`
	PaymentSessionID string          `json:"payment_session_id"`
	CustomerDetails  customerDetails `json:"customer_details"`
}

// CreateSession opens a payment session for an order and returns the
// session token the client hands to the checkout UI.
func (c *Client) CreateSession(ctx context.Context, req payment.SessionRequest) (string, error) {
	if req.OrderID == "" {
		return "", errors.New("cashfree: empty order id")
	}
	body := createOrderRequest{
		OrderID:       req.OrderID,
		OrderAmount:   req.Amount,
		OrderCurrency: req.Currency,
		CustomerDetails: customerDetails{
			CustomerID:    req.CustomerRef,
			CustomerName:  defaultCustomerName,
			CustomerEmail: defaultCustomerEmail,
			CustomerPhone: req.CustomerRef,
		},
		OrderMeta: orderMeta{ReturnURL: req.ReturnURL},
	}
	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/orders", body, &resp); err != nil {
		return "", err
	}
	if resp.PaymentSessionID == "" {
		return "", errors.New("cashfree: response missing payment_session_id")
	}
	return resp.PaymentSessionID, nil
}

// FetchStatus returns the authoritative order status.
func (c *Client) FetchStatus(ctx context.Context, orderID string) (payment.OrderStatus, error) {
	if orderID == "" {
		return payment.OrderStatus{}, errors.New("cashfree: empty order id")
	}
	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodGet, "/orders/"+orderID, nil, &resp); err != nil {
		return payment.OrderStatus{}, err
	}
	return payment.OrderStatus{
		OrderID:     resp.OrderID,
		Status:      resp.OrderStatus,
		Amount:      resp.OrderAmount,
		Currency:    resp.OrderCurrency,
		CustomerRef: resp.CustomerDetails.CustomerID,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-version", apiVersion)
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-client-secret", c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cashfree: %s %s: status %d: %s", method, path, resp.StatusCode, truncate(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func truncate(data []byte) string {
	const max = 256
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
