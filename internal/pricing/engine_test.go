package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/washwise/internal/catalog"
	"github.com/mmeshcher/washwise/internal/model"
	"github.com/mmeshcher/washwise/internal/subscription"
)

var now = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(catalog.Default(), subscription.DefaultPolicy()).
		WithClock(func() time.Time { return now })
}

func subscriber(plan model.MembershipPlan, usage model.Usage) *model.User {
	expiry := now.AddDate(1, 0, 0)
	return &model.User{
		ID:               "owner",
		MembershipPlan:   plan,
		MembershipExpiry: &expiry,
		MonthlyUsage:     usage,
	}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestPrice_PremiumFullyCovered(t *testing.T) {
	owner := subscriber(model.PlanPremium, model.Usage{})

	order, err := newTestEngine().Price(owner, []Line{{ServiceID: "wash_and_fold", Quantity: 2}})
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].Cost.IsZero())
	assert.True(t, order.Items[0].Covered)
	assert.True(t, order.TotalCost.IsZero())
	assert.True(t, order.FullyPlanCovered)
	assert.Equal(t, model.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, model.Usage{"wash_and_fold": 1}, owner.MonthlyUsage)
	assert.Equal(t, "owner", order.UserID)
}

func TestPrice_StandardNotAllowListed(t *testing.T) {
	owner := subscriber(model.PlanStandard, model.Usage{})

	order, err := newTestEngine().Price(owner, []Line{{ServiceID: "dry_cleaning", Quantity: 1}})
	require.NoError(t, err)

	assert.True(t, order.Items[0].Cost.Equal(dec(50)))
	assert.False(t, order.FullyPlanCovered)
	assert.Equal(t, model.PaymentUnpaid, order.PaymentStatus)
	assert.Empty(t, owner.MonthlyUsage)
}

func TestPrice_StandardIgnoresUsageForNonAllowListed(t *testing.T) {
	for used := 0; used <= 5; used++ {
		owner := subscriber(model.PlanStandard, model.Usage{"steam_iron": used})

		order, err := newTestEngine().Price(owner, []Line{{ServiceID: "steam_iron", Quantity: 3}})
		require.NoError(t, err)
		assert.True(t, order.Items[0].Cost.Equal(dec(45)), "usage %d", used)
	}
}

func TestPrice_NoPlanChargesEverything(t *testing.T) {
	owner := &model.User{ID: "owner", MembershipPlan: model.PlanNone}

	for _, e := range catalog.Default().Entries() {
		order, err := newTestEngine().Price(owner, []Line{{ServiceID: e.ID, Quantity: 1}})
		require.NoError(t, err)
		assert.False(t, order.FullyPlanCovered, e.ID)
		assert.True(t, order.TotalCost.Equal(e.UnitPrice), e.ID)
		assert.Equal(t, model.PaymentUnpaid, order.PaymentStatus, e.ID)
	}
}

func TestPrice_GreedyCoverageInSubmittedOrder(t *testing.T) {
	owner := subscriber(model.PlanPremium, model.Usage{"wash_and_fold": 3})

	order, err := newTestEngine().Price(owner, []Line{
		{ServiceID: "wash_and_fold", Quantity: 1},
		{ServiceID: "wash_and_fold", Quantity: 5},
		{ServiceID: "dry_cleaning", Quantity: 1},
	})
	require.NoError(t, err)

	assert.True(t, order.Items[0].Covered)
	assert.False(t, order.Items[1].Covered)
	assert.True(t, order.Items[1].Cost.Equal(dec(50)))
	assert.True(t, order.Items[2].Covered)
	assert.True(t, order.TotalCost.Equal(dec(50)))
	assert.False(t, order.FullyPlanCovered)
	assert.Equal(t, model.Usage{"wash_and_fold": 4, "dry_cleaning": 1}, owner.MonthlyUsage)
}

func TestPrice_FifthUseCharged(t *testing.T) {
	owner := subscriber(model.PlanPremium, model.Usage{})
	engine := newTestEngine()

	for i := 1; i <= 5; i++ {
		order, err := engine.Price(owner, []Line{{ServiceID: "wash_and_iron", Quantity: 1}})
		require.NoError(t, err)
		if i <= 4 {
			assert.True(t, order.Items[0].Covered, "use #%d", i)
		} else {
			assert.False(t, order.Items[0].Covered, "use #%d", i)
			assert.True(t, order.TotalCost.Equal(dec(25)))
		}
	}
	assert.Equal(t, 4, owner.MonthlyUsage["wash_and_iron"])
}

func TestPrice_InitialStatus(t *testing.T) {
	owner := &model.User{ID: "owner"}

	order, err := newTestEngine().Price(owner, []Line{
		{ServiceID: "premium_wash", Quantity: 1},
		{ServiceID: "steam_iron", Quantity: 2},
	})
	require.NoError(t, err)

	for _, it := range order.Items {
		assert.Equal(t, "pending", it.Status)
	}
	assert.True(t, order.Items[1].UnitPrice.Equal(dec(15)))
}

func TestPrice_ValidationAbortsWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		err   error
	}{
		{"unknown service", []Line{{ServiceID: "wash_and_fold", Quantity: 1}, {ServiceID: "ironing_board", Quantity: 1}}, ErrInvalidService},
		{"zero quantity", []Line{{ServiceID: "wash_and_fold", Quantity: 1}, {ServiceID: "wash_and_fold", Quantity: 0}}, ErrInvalidQuantity},
		{"too many", []Line{{ServiceID: "wash_and_fold", Quantity: 21}}, ErrInvalidQuantity},
		{"empty", nil, ErrNoLines},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner := subscriber(model.PlanPremium, model.Usage{})

			order, err := newTestEngine().Price(owner, tt.lines)
			assert.ErrorIs(t, err, tt.err)
			assert.Nil(t, order)
			assert.Empty(t, owner.MonthlyUsage)
		})
	}
}

func TestPrice_QuantityBounds(t *testing.T) {
	owner := &model.User{ID: "owner"}

	for _, q := range []int{MinQuantity, MaxQuantity} {
		order, err := newTestEngine().Price(owner, []Line{{ServiceID: "wash_and_fold", Quantity: q}})
		require.NoError(t, err)
		assert.True(t, order.TotalCost.Equal(dec(int64(10*q))))
	}
}

func TestPrice_ExpiredSubscription(t *testing.T) {
	expired := now.Add(-time.Second)
	owner := &model.User{ID: "owner", MembershipPlan: model.PlanPremium, MembershipExpiry: &expired}

	order, err := newTestEngine().Price(owner, []Line{{ServiceID: "wash_and_fold", Quantity: 1}})
	require.NoError(t, err)
	assert.False(t, order.Items[0].Covered)
	assert.Equal(t, model.PaymentUnpaid, order.PaymentStatus)
}
