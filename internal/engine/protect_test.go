package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slguard/internal/models"
)

func trailFor(orderID string, qty int, entry float64) TrailState {
	tr := NewTrail("NIFTY", Leg{Side: models.OrderSideBuy, Quantity: qty, Price: entry}, params, t0)
	tr.OrderID = orderID
	return tr
}

func liveStop(id string, qty int, trigger float64) models.Order {
	return models.Order{
		ID:           id,
		Symbol:       "NIFTY",
		Exchange:     "NFO",
		Side:         models.OrderSideSell,
		Type:         models.OrderTypeStop,
		Status:       models.OrderStatusTriggerPending,
		Kind:         models.OrderKindProtective,
		Quantity:     qty,
		TriggerPrice: trigger,
	}
}

func TestPlanProtectionPlacesUncovered(t *testing.T) {
	legs := []Leg{
		{Side: models.OrderSideBuy, Quantity: 50, Price: 100},
		{Side: models.OrderSideBuy, Quantity: 25, Price: 105},
	}

	plan := PlanProtection(legs, []TrailState{trailFor("sl-1", 50, 100)}, nil)

	assert.Empty(t, plan.Adopt)
	assert.Equal(t, []Leg{legs[1]}, plan.Place)
}

func TestPlanProtectionIdempotent(t *testing.T) {
	legs := []Leg{{Side: models.OrderSideBuy, Quantity: 50, Price: 100}}
	trails := []TrailState{trailFor("sl-1", 50, 100)}
	live := []models.Order{liveStop("sl-1", 50, 90)}

	for i := 0; i < 3; i++ {
		assert.True(t, PlanProtection(legs, trails, live).Empty())
	}
}

func TestPlanProtectionIdenticalLegsNeedOneTrailEach(t *testing.T) {
	legs := []Leg{
		{Side: models.OrderSideBuy, Quantity: 50, Price: 100},
		{Side: models.OrderSideBuy, Quantity: 50, Price: 100},
	}

	plan := PlanProtection(legs, []TrailState{trailFor("sl-1", 50, 100)}, nil)

	require.Len(t, plan.Place, 1)
	assert.Equal(t, 50, plan.Place[0].Quantity)
}

func TestPlanProtectionAdoptsOrphanStop(t *testing.T) {
	legs := []Leg{{Side: models.OrderSideBuy, Quantity: 50, Price: 100}}
	live := []models.Order{
		liveStop("sl-wrong-qty", 10, 90),
		liveStop("sl-orphan", 50, 100),
	}

	plan := PlanProtection(legs, nil, live)

	require.Len(t, plan.Adopt, 1)
	assert.Equal(t, "sl-orphan", plan.Adopt[0].Order.ID)
	assert.Empty(t, plan.Place)
}

func TestPlanProtectionIgnoresTrackedAndManualOrders(t *testing.T) {
	legs := []Leg{
		{Side: models.OrderSideBuy, Quantity: 50, Price: 100},
		{Side: models.OrderSideBuy, Quantity: 50, Price: 101},
	}
	manual := liveStop("manual", 50, 95)
	manual.Kind = models.OrderKindManual
	live := []models.Order{liveStop("sl-1", 50, 90), manual}

	plan := PlanProtection(legs, []TrailState{trailFor("sl-1", 50, 100)}, live)

	assert.Empty(t, plan.Adopt)
	assert.Equal(t, []Leg{legs[1]}, plan.Place)
}
