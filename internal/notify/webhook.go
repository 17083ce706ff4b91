package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier posts order notifications to an operator webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts one message to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatMessage(msg)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("webhook notifier: non-2xx")
	}
	return nil
}

func formatMessage(msg Message) string {
	var b strings.Builder
	b.WriteString("[Water Vending]\n")
	if msg.OrderID != "" {
		fmt.Fprintf(&b, "Order: %s\n", msg.OrderID)
	}
	if msg.State != "" {
		fmt.Fprintf(&b, "State: %s\n", msg.State)
	}
	if msg.Liters > 0 {
		fmt.Fprintf(&b, "Liters: %.2f\n", msg.Liters)
	}
	if msg.Amount > 0 {
		fmt.Fprintf(&b, "Amount: %.2f %s\n", msg.Amount, msg.Currency)
	}
	if msg.CustomerRef != "" {
		fmt.Fprintf(&b, "Customer: %s\n", msg.CustomerRef)
	}
	fmt.Fprintf(&b, "Tank Remaining: %.2fL\n", msg.RemainingAfter)
	return strings.TrimSpace(b.String())
}
