// Package model содержит доменные сущности сервиса WashWise.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role определяет роль пользователя в системе.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleServiceman Role = "serviceman"
)

// Valid сообщает, является ли роль допустимой.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleServiceman
}

// MembershipPlan описывает тарифный план подписки.
type MembershipPlan string

const (
	PlanNone     MembershipPlan = "none"
	PlanStandard MembershipPlan = "standard"
	PlanPremium  MembershipPlan = "premium"
)

// Valid сообщает, является ли план допустимым.
func (p MembershipPlan) Valid() bool {
	switch p {
	case PlanNone, PlanStandard, PlanPremium:
		return true
	}
	return false
}

// PaymentStatus описывает статус оплаты заказа.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Usage хранит количество использований подписки по каждой услуге.
type Usage map[string]int

// Clone возвращает независимую копию счётчиков.
func (u Usage) Clone() Usage {
	out := make(Usage, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// User представляет зарегистрированного пользователя.
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     []byte
	Role             Role
	MembershipPlan   MembershipPlan
	MembershipExpiry *time.Time
	MonthlyUsage     Usage
	QRReference      string
	ResetToken       string
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
}

// Order описывает заказ клиента вместе с позициями.
type Order struct {
	ID               string
	UserID           string
	CreatedAt        time.Time
	TotalCost        decimal.Decimal
	PaymentStatus    PaymentStatus
	FullyPlanCovered bool
	QRReference      string
	IdempotencyKey   string
	Items            []OrderItem
}

// OrderItem описывает одну услугу в составе заказа.
type OrderItem struct {
	ID        string
	OrderID   string
	ServiceID string
	Quantity  int
	UnitPrice decimal.Decimal
	// Cost содержит фактически начисленную стоимость позиции, ноль при покрытии подпиской.
	Cost    decimal.Decimal
	Covered bool
	Status  string
}
