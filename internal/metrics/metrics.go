// Package metrics содержит счётчики Prometheus сервиса WashWise.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics хранит счётчики и собственный реестр.
type Metrics struct {
	registry      *prometheus.Registry
	orders        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New регистрирует счётчики в новом реестре.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "washwise_orders_created_total",
			Help: "Orders created, by plan coverage.",
		}, []string{"coverage"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "washwise_item_transitions_total",
			Help: "Applied item status transitions, by service.",
		}, []string{"service"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "washwise_notifications_total",
			Help: "Email notification attempts, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.orders,
		m.transitions,
		m.notifications,
	)
	return m
}

// OrderCreated учитывает созданный заказ.
func (m *Metrics) OrderCreated(fullyCovered bool) {
	if m == nil {
		return
	}
	coverage := "partial"
	if fullyCovered {
		coverage = "full"
	}
	m.orders.WithLabelValues(coverage).Inc()
}

// ItemTransition учитывает смену статуса позиции.
func (m *Metrics) ItemTransition(serviceID string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(serviceID).Inc()
}

// Notification учитывает попытку отправки письма.
func (m *Metrics) Notification(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "sent"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
