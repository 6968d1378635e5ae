package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tapstand/kiosk/internal/core/domain"
	"github.com/tapstand/kiosk/internal/core/service"
)

const defaultListLimit = 50

type HTTPHandler struct {
	orders    *service.OrderService
	inventory *service.InventoryService
	dispenser *service.Dispenser
	logger    *slog.Logger
}

func NewHTTPHandler(orders *service.OrderService, inventory *service.InventoryService, dispenser *service.Dispenser, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{orders: orders, inventory: inventory, dispenser: dispenser, logger: logger}
}

// Routes mounts the kiosk and admin API.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/beverages", h.ListBeverages)
		r.Post("/orders", h.CreateOrder)
		r.Post("/orders/{id}/process", h.ProcessOrder)
		r.Get("/orders/{id}/status", h.OrderStatus)
		r.Get("/hardware/status", h.HardwareStatus)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/orders", h.ListOrders)
			r.Get("/alerts", h.StockAlerts)
			r.Get("/inventory/report", h.InventoryReport)
			r.Post("/inventory/{id}/replenish", h.Replenish)
			r.Post("/inventory/{id}/adjust", h.AdjustStock)
			r.Get("/inventory-logs", h.InventoryLogs)
			r.Get("/logs", h.SystemLogs)
		})
	})

	return r
}

type beverageResponse struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	PricePerLiter           string    `json:"pricePerLiter"`
	VolumeOptions           []float64 `json:"volumeOptions"`
	TotalCapacity           float64   `json:"totalCapacity"`
	CurrentStock            float64   `json:"currentStock"`
	RequiresAgeVerification bool      `json:"requiresAgeVerification"`
}

type createOrderRequest struct {
	Items                 []service.OrderItemRequest `json:"items"`
	Language              string                     `json:"language"`
	AgeVerificationMethod string                     `json:"ageVerificationMethod"`
	PaymentMethod         string                     `json:"paymentMethod"`
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type replenishRequest struct {
	Amount float64 `json:"amount"`
	Notes  string  `json:"notes"`
}

type adjustRequest struct {
	NewStock float64 `json:"newStock"`
	Reason   string  `json:"reason"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) ListBeverages(w http.ResponseWriter, r *http.Request) {
	beverages, err := h.inventory.ActiveBeverages(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]beverageResponse, 0, len(beverages))
	for _, b := range beverages {
		out = append(out, beverageResponse{
			ID:                      b.ID,
			Name:                    b.Name,
			PricePerLiter:           b.PricePerLiter.String(),
			VolumeOptions:           b.VolumeOptions,
			TotalCapacity:           b.TotalCapacity,
			CurrentStock:            b.CurrentStock,
			RequiresAgeVerification: b.RequiresAgeVerification,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	orderID, err := h.orders.CreateOrder(r.Context(), req.Items, req.Language, req.AgeVerificationMethod, req.PaymentMethod)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{OrderID: orderID})
}

func (h *HTTPHandler) ProcessOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	if err := h.orders.ProcessOrder(r.Context(), orderID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: string(domain.OrderStatusCompleted)})
}

func (h *HTTPHandler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.orders.OrderStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: string(status)})
}

func (h *HTTPHandler) HardwareStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dispenser.Status())
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), limitParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) StockAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.inventory.StockAlerts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *HTTPHandler) InventoryReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.inventory.Report(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *HTTPHandler) Replenish(w http.ResponseWriter, r *http.Request) {
	var req replenishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.inventory.Replenish(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Notes); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.inventory.AdjustStock(r.Context(), chi.URLParam(r, "id"), req.NewStock, req.Reason); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) InventoryLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.inventory.InventoryLogs(r.Context(), r.URL.Query().Get("beverage_id"), limitParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *HTTPHandler) SystemLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.inventory.SystemLogs(r.Context(), limitParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInsufficientStock):
		status = http.StatusConflict
	case errors.Is(err, service.ErrOutOfRange),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrVolumeNotAllowed):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrAgeVerification):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrPaymentDeclined):
		status = http.StatusPaymentRequired
	case errors.Is(err, service.ErrOrderNumberConflict):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func limitParam(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
