// Package pricing рассчитывает стоимость заказа с учётом подписки клиента.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/washwise/internal/catalog"
	"github.com/mmeshcher/washwise/internal/model"
	"github.com/mmeshcher/washwise/internal/subscription"
)

const (
	MinQuantity = 1
	MaxQuantity = 20
)

var (
	// ErrInvalidService возвращается для услуги, отсутствующей в справочнике.
	ErrInvalidService = errors.New("invalid service")
	// ErrInvalidQuantity возвращается для количества вне диапазона [1, 20].
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrNoLines возвращается для заказа без позиций.
	ErrNoLines = errors.New("order has no services")
)

// Line описывает запрошенную услугу и её количество.
type Line struct {
	ServiceID string
	Quantity  int
}

// Engine строит позиции заказа и итоговую стоимость.
type Engine struct {
	catalog *catalog.Catalog
	policy  *subscription.Policy
	now     func() time.Time
}

// NewEngine создаёт движок расчёта стоимости.
func NewEngine(c *catalog.Catalog, p *subscription.Policy) *Engine {
	return &Engine{
		catalog: c,
		policy:  p,
		now:     time.Now,
	}
}

// WithClock подменяет источник времени.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Validate проверяет позиции заказа, не изменяя состояния.
func (e *Engine) Validate(lines []Line) error {
	if len(lines) == 0 {
		return ErrNoLines
	}
	for _, l := range lines {
		if _, ok := e.catalog.Get(l.ServiceID); !ok {
			return fmt.Errorf("%w: %s", ErrInvalidService, l.ServiceID)
		}
		if l.Quantity < MinQuantity || l.Quantity > MaxQuantity {
			return fmt.Errorf("%w: %d", ErrInvalidQuantity, l.Quantity)
		}
	}
	return nil
}

// Price формирует заказ владельца owner. Позиции обрабатываются в порядке
// передачи: первые получают приоритет на оставшийся лимит подписки.
// Счётчики owner.MonthlyUsage обновляются только при успешном расчёте.
func (e *Engine) Price(owner *model.User, lines []Line) (*model.Order, error) {
	if err := e.Validate(lines); err != nil {
		return nil, err
	}

	now := e.now()
	usage := owner.MonthlyUsage.Clone()

	order := &model.Order{
		UserID:           owner.ID,
		TotalCost:        decimal.Zero,
		FullyPlanCovered: true,
		Items:            make([]model.OrderItem, 0, len(lines)),
	}

	for _, l := range lines {
		entry, _ := e.catalog.Get(l.ServiceID)

		cost := entry.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		decision := e.policy.Evaluate(owner, l.ServiceID, usage, now)
		if decision.Covered {
			cost = decimal.Zero
			e.policy.Apply(usage, l.ServiceID)
		} else {
			order.FullyPlanCovered = false
		}

		order.TotalCost = order.TotalCost.Add(cost)
		order.Items = append(order.Items, model.OrderItem{
			ServiceID: l.ServiceID,
			Quantity:  l.Quantity,
			UnitPrice: entry.UnitPrice,
			Cost:      cost,
			Covered:   decision.Covered,
			Status:    entry.InitialStatus(),
		})
	}

	order.PaymentStatus = model.PaymentUnpaid
	if order.TotalCost.IsZero() {
		order.PaymentStatus = model.PaymentPaid
	}

	owner.MonthlyUsage = usage
	return order, nil
}
