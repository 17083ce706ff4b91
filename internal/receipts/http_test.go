package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func seededLog(t *testing.T) *MemoryLog {
	t.Helper()
	memLog := NewMemoryLog()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, orderID := range []string{"order_a", "order_b"} {
		err := memLog.Append(context.Background(), Receipt{
			ReceiptID:      NewID(),
			OrderID:        orderID,
			Amount:         150,
			Currency:       "INR",
			Liters:         50,
			CustomerRef:    "9876543210",
			SettledAt:      base.Add(time.Duration(i) * time.Minute),
			RemainingAfter: 450 - float64(i)*50,
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return memLog
}

func TestListReceipts(t *testing.T) {
	handler, err := NewHandler(seededLog(t), nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/receipts", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var body struct {
		Receipts []Receipt `json:"receipts"`
		Count    int       `json:"count"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 2 || len(body.Receipts) != 2 {
		t.Fatalf("count = %d, receipts = %d", body.Count, len(body.Receipts))
	}
	if body.Receipts[0].OrderID != "order_a" {
		t.Fatalf("receipts not ordered by settlement time: %v", body.Receipts[0].OrderID)
	}
}

func TestListReceiptsEmpty(t *testing.T) {
	handler, err := NewHandler(NewMemoryLog(), nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/receipts", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"receipts":[]`)) {
		t.Fatalf("body = %s", resp.Body.String())
	}
}

func TestExportXLSX(t *testing.T) {
	handler, err := NewHandler(seededLog(t), nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/receipts/export.xlsx", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", got)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("PK")) {
		t.Fatalf("body does not look like a zip archive")
	}
}

func TestBillPDF(t *testing.T) {
	handler, err := NewHandler(seededLog(t), nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/receipts/order_a/bill.pdf", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("body does not look like a pdf")
	}
}

func TestBillPDFUnknownOrder(t *testing.T) {
	handler, err := NewHandler(seededLog(t), nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/receipts/order_missing/bill.pdf", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d", resp.Code)
	}
}
