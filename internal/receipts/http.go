package receipts

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
)

// Handler serves the receipt history and its export formats.
type Handler struct {
	log    Log
	logger *log.Logger
}

func NewHandler(receiptLog Log, logger *log.Logger) (*Handler, error) {
	if receiptLog == nil {
		return nil, errors.New("receipts: handler requires a log")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{log: receiptLog, logger: logger}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/receipts")
	rest = strings.TrimPrefix(rest, "/")
	switch {
	case rest == "":
		h.handleList(w, r)
	case rest == "export.xlsx":
		h.handleExportXLSX(w, r)
	case strings.HasSuffix(rest, "/bill.pdf"):
		h.handleBillPDF(w, r, strings.TrimSuffix(rest, "/bill.pdf"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.log.List(r.Context())
	if err != nil {
		h.logger.Printf("receipts: list error: %v", err)
		http.Error(w, "list receipts error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []Receipt{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"receipts": list,
		"count":    len(list),
	})
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	list, err := h.log.List(r.Context())
	if err != nil {
		h.logger.Printf("receipts: list error: %v", err)
		http.Error(w, "list receipts error", http.StatusInternalServerError)
		return
	}
	data, err := BuildReceiptsXLSX(list)
	if err != nil {
		h.logger.Printf("receipts: export xlsx error: %v", err)
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="receipts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleBillPDF(w http.ResponseWriter, r *http.Request, orderID string) {
	if orderID == "" || strings.Contains(orderID, "/") {
		http.NotFound(w, r)
		return
	}
	receipt, err := h.log.GetByOrderID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Printf("receipts: get error: %v", err)
		http.Error(w, "get receipt error", http.StatusInternalServerError)
		return
	}
	data, err := BuildBillPDF(receipt)
	if err != nil {
		h.logger.Printf("receipts: export pdf error: %v", err)
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
