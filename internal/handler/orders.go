package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/washwise/internal/model"
	"github.com/mmeshcher/washwise/internal/pricing"
	"github.com/mmeshcher/washwise/internal/report"
)

const qrURLPrefix = "/qr_codes/"

func qrURL(name string) string {
	return qrURLPrefix + name
}

type orderItemResponse struct {
	ID                   string   `json:"id"`
	ServiceName          string   `json:"service_name"`
	Quantity             int      `json:"quantity"`
	Cost                 float64  `json:"cost"`
	Covered              bool     `json:"covered"`
	Status               string   `json:"status"`
	PossibleNextStatuses []string `json:"possible_next_statuses"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	OwnerID         string              `json:"owner_id"`
	CreatedAt       string              `json:"created_at"`
	TotalCost       float64             `json:"total_cost"`
	PaymentStatus   string              `json:"payment_status"`
	IsCoveredByPlan bool                `json:"is_covered_by_plan"`
	QRCodeURL       *string             `json:"qr_code_url"`
	Items           []orderItemResponse `json:"items"`
}

func (h *Handler) toItemResponse(it model.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:                   it.ID,
		ServiceName:          it.ServiceID,
		Quantity:             it.Quantity,
		Cost:                 it.Cost.InexactFloat64(),
		Covered:              it.Covered,
		Status:               it.Status,
		PossibleNextStatuses: h.service.NextStatuses(it),
	}
}

func (h *Handler) toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		OwnerID:         o.UserID,
		CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339),
		TotalCost:       o.TotalCost.InexactFloat64(),
		PaymentStatus:   string(o.PaymentStatus),
		IsCoveredByPlan: o.FullyPlanCovered,
		Items:           make([]orderItemResponse, 0, len(o.Items)),
	}
	if o.QRReference != "" {
		u := qrURL(o.QRReference)
		resp.QRCodeURL = &u
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, h.toItemResponse(it))
	}
	return resp
}

func (h *Handler) writeOrders(w http.ResponseWriter, orders []model.Order) {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, h.toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type orderLineRequest struct {
	ServiceName string `json:"service_name"`
	Quantity    int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerUsername string             `json:"customer_username"`
	Services         []orderLineRequest `json:"services"`
}

// CreateOrder создаёт заказ для клиента. Заголовок Idempotency-Key
// защищает от повторного создания при повторе запроса.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req createOrderRequest
	if !decodeJSON(r, &req) {
		badRequest(w)
		return
	}

	lines := make([]pricing.Line, 0, len(req.Services))
	for _, l := range req.Services {
		lines = append(lines, pricing.Line{ServiceID: l.ServiceName, Quantity: l.Quantity})
	}

	order, created, err := h.service.CreateOrder(r.Context(), actor, req.CustomerUsername, r.Header.Get("Idempotency-Key"), lines)
	if err != nil {
		h.writeError(w, "create order", err, zap.String("customer", req.CustomerUsername))
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, h.toOrderResponse(order))
}

// ListOrders возвращает заказы текущего пользователя или все заказы для сотрудника.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), actor)
	if err != nil {
		h.writeError(w, "list orders", err, zap.String("userID", actor.ID))
		return
	}

	h.writeOrders(w, orders)
}

// GetOrderByQR возвращает заказ по идентификатору из QR-кода.
func (h *Handler) GetOrderByQR(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "get order", err, zap.String("orderID", orderID))
		return
	}

	writeJSON(w, http.StatusOK, h.toOrderResponse(order))
}

// PayOrder отмечает заказ текущего пользователя оплаченным.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	orderID := chi.URLParam(r, "orderID")
	order, err := h.service.PayOrder(r.Context(), actor, orderID)
	if err != nil {
		h.writeError(w, "pay order", err, zap.String("orderID", orderID))
		return
	}

	writeJSON(w, http.StatusOK, h.toOrderResponse(order))
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateItemStatus переводит позицию заказа в новый статус.
func (h *Handler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req statusUpdateRequest
	if !decodeJSON(r, &req) || req.Status == "" {
		badRequest(w)
		return
	}

	itemID := chi.URLParam(r, "itemID")
	item, err := h.service.AdvanceItemStatus(r.Context(), actor, itemID, req.Status)
	if err != nil {
		h.writeError(w, "update item status", err, zap.String("itemID", itemID))
		return
	}

	writeJSON(w, http.StatusOK, h.toItemResponse(*item))
}

// ActiveOrders возвращает незавершённые заказы клиента.
func (h *Handler) ActiveOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	userID := chi.URLParam(r, "userID")
	orders, err := h.service.ActiveOrders(r.Context(), actor, userID)
	if err != nil {
		h.writeError(w, "active orders", err, zap.String("userID", userID))
		return
	}

	h.writeOrders(w, orders)
}

// ExportOrders отдаёт все заказы файлом XLSX.
func (h *Handler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	data, err := h.service.ExportOrders(r.Context(), actor)
	if err != nil {
		h.writeError(w, "export orders", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.OrdersFileName(time.Now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
