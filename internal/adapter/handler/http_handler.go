// Package handler is the thin request layer. It decodes primitives, calls
// the core services, and maps typed errors to status codes; no business
// rules live here.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/freshmart/order-core/internal/core/domain"
	"github.com/freshmart/order-core/internal/core/service"
)

type HTTPHandler struct {
	orders        *service.OrderService
	devices       *service.DeviceService
	notifications *service.NotificationService
	stats         *service.StatsService
	logger        *zap.Logger
}

func NewHTTPHandler(orders *service.OrderService, devices *service.DeviceService, notifications *service.NotificationService, stats *service.StatsService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		orders:        orders,
		devices:       devices,
		notifications: notifications,
		stats:         stats,
		logger:        logger,
	}
}

func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.CreateOrder)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Patch("/orders/{id}/status", h.UpdateOrderStatus)

		r.Get("/device-id", h.DeviceID)
		r.Post("/device/register-token", h.RegisterToken)
		r.Post("/device/unsubscribe", h.Unsubscribe)

		r.Post("/notifications/send", h.SendNotification)
		r.Post("/notifications/track-click", h.TrackClick)

		r.Get("/admin/dashboard-stats", h.DashboardStats)
	})
	return r
}

type orderLineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type createOrderRequest struct {
	CustomerName    string             `json:"customer_name"`
	CustomerPhone   string             `json:"customer_phone"`
	DeliveryAddress string             `json:"delivery_address"`
	DeviceID        string             `json:"device_id"`
	PaymentProofRef string             `json:"payment_proof_ref"`
	Items           []orderLineRequest `json:"items"`
}

type orderItemResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
}

type orderResponse struct {
	ID          int64               `json:"id"`
	TotalAmount string              `json:"total_amount"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	Items       []orderItemResponse `json:"items"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		TotalAmount: o.TotalAmount.StringFixed(2),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.ProductPrice.StringFixed(2),
			Quantity:    item.Quantity,
			Subtotal:    item.Subtotal.StringFixed(2),
		})
	}
	return resp
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]domain.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.orders.CreateOrder(r.Context(), domain.CreateOrderRequest{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		DeviceID:        req.DeviceID,
		PaymentProofRef: req.PaymentProofRef,
		Lines:           lines,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	// Alerting the admins rides on its own context: a dispatch failure or
	// an unavailable gateway must never fail an already-committed order.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		body := fmt.Sprintf("New order #%d from %s - %s", order.ID, order.CustomerName, order.TotalAmount.StringFixed(2))
		if _, err := h.notifications.Dispatch(ctx, "New Order", body, domain.AudienceAdmins); err != nil {
			h.logger.Error("admin dispatch failed", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	f := domain.OrderFilter{
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
	}
	if day := r.URL.Query().Get("date"); day != "" {
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		f.Day = t
	}
	f.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	f.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.orders.ListOrders(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) DeviceID(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		deviceID = h.devices.ProvisionDeviceID()
	}
	writeJSON(w, http.StatusOK, map[string]string{"device_id": deviceID})
}

func (h *HTTPHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		DeviceID string `json:"device_id"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.devices.RegisterToken(r.Context(), req.Token, req.DeviceID, req.IsAdmin)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        t.ID,
		"device_id": t.DeviceID,
		"is_admin":  t.IsAdmin,
	})
}

func (h *HTTPHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	removed, err := h.devices.Unsubscribe(r.Context(), req.Token)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *HTTPHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Message  string `json:"message"`
		Audience string `json:"audience"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	audience := domain.Audience(req.Audience)
	if audience == "" {
		audience = domain.AudienceAll
	}

	result, err := h.notifications.Dispatch(r.Context(), req.Title, req.Message, audience)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":           result.ID,
		"sent_count":   result.SentCount,
		"failed_count": result.FailedCount,
		"skipped":      result.Skipped,
	})
}

func (h *HTTPHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NotificationID int64  `json:"notification_id"`
		DeviceID       string `json:"device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tracked, err := h.notifications.TrackClick(r.Context(), req.NotificationID, req.DeviceID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"tracked": tracked})
}

func (h *HTTPHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.DashboardStats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Error())
		return
	}
	if errors.Is(err, service.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
