// Package subscription реализует правила покрытия позиций заказа подпиской.
package subscription

import (
	"time"

	"github.com/mmeshcher/washwise/internal/model"
)

const (
	// DefaultMonthlyCap задаёт лимит покрытых использований на одну услугу.
	DefaultMonthlyCap = 4
	// PlanDuration задаёт срок действия купленного плана.
	PlanDuration = 365 * 24 * time.Hour
)

// Reason поясняет результат оценки покрытия.
type Reason string

const (
	ReasonCovered     Reason = "covered"
	ReasonInactive    Reason = "inactive"
	ReasonCapReached  Reason = "cap_reached"
	ReasonNotEligible Reason = "not_eligible"
)

// Decision описывает результат оценки одной позиции.
type Decision struct {
	Covered bool
	Reason  Reason
}

// Policy хранит параметры покрытия: лимит и список услуг тарифа standard.
type Policy struct {
	monthlyCap       int
	standardServices map[string]struct{}
}

// NewPolicy создаёт политику с указанным лимитом и списком услуг standard-плана.
func NewPolicy(monthlyCap int, standardServices ...string) *Policy {
	p := &Policy{
		monthlyCap:       monthlyCap,
		standardServices: make(map[string]struct{}, len(standardServices)),
	}
	for _, s := range standardServices {
		p.standardServices[s] = struct{}{}
	}
	return p
}

// DefaultPolicy возвращает политику по умолчанию.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultMonthlyCap, "wash_and_fold", "wash_and_iron")
}

// MonthlyCap возвращает лимит использований на услугу.
func (p *Policy) MonthlyCap() int {
	return p.monthlyCap
}

// IsActive сообщает, действует ли подписка пользователя в момент now.
func (p *Policy) IsActive(u *model.User, now time.Time) bool {
	if u.MembershipPlan == "" || u.MembershipPlan == model.PlanNone {
		return false
	}
	if u.MembershipExpiry == nil {
		return false
	}
	return u.MembershipExpiry.UTC().After(now.UTC())
}

// Evaluate решает, покрывается ли услуга serviceID при текущих счётчиках usage.
func (p *Policy) Evaluate(u *model.User, serviceID string, usage model.Usage, now time.Time) Decision {
	if !p.IsActive(u, now) {
		return Decision{Reason: ReasonInactive}
	}
	if usage[serviceID] >= p.monthlyCap {
		return Decision{Reason: ReasonCapReached}
	}
	if !p.eligible(u.MembershipPlan, serviceID) {
		return Decision{Reason: ReasonNotEligible}
	}
	return Decision{Covered: true, Reason: ReasonCovered}
}

func (p *Policy) eligible(plan model.MembershipPlan, serviceID string) bool {
	switch plan {
	case model.PlanPremium:
		return true
	case model.PlanStandard:
		_, ok := p.standardServices[serviceID]
		return ok
	}
	return false
}

// Apply фиксирует одно покрытое использование услуги.
func (p *Policy) Apply(usage model.Usage, serviceID string) {
	usage[serviceID]++
}

// Purchase назначает пользователю план: продлевает срок и обнуляет счётчики.
func (p *Policy) Purchase(u *model.User, plan model.MembershipPlan, now time.Time) {
	u.MembershipPlan = plan
	u.MonthlyUsage = model.Usage{}
	if plan == model.PlanNone {
		u.MembershipExpiry = nil
		return
	}
	expiry := now.UTC().Add(PlanDuration)
	u.MembershipExpiry = &expiry
}
