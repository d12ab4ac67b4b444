package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slguard/internal/models"
)

var params = TrailParams{StopBuffer: 10, LimitBuffer: 2, TickSize: 0.05}

func longTrail() TrailState {
	return NewTrail("NIFTY26OCT25000CE", Leg{Side: models.OrderSideBuy, Quantity: 100, Price: 500}, params, t0)
}

func TestRoundToTick(t *testing.T) {
	assert.Equal(t, 489.95, RoundToTick(489.97, 0.05))
	assert.Equal(t, 490.0, RoundToTick(489.98, 0.05))
	assert.Equal(t, 101.25, RoundToTick(101.26, 0.25))
	assert.Equal(t, 12.345, RoundToTick(12.345, 0))
}

func TestNewTrailInitialStop(t *testing.T) {
	tr := longTrail()

	assert.Equal(t, 490.0, tr.InitialStop)
	assert.Equal(t, 10.0, tr.InitialRisk)
	assert.Equal(t, 1, tr.TrailStepCount)
	assert.False(t, tr.TrailingActive)
	assert.Equal(t, 490.0, tr.CurrentTrigger())
	assert.Equal(t, 488.0, tr.LimitFor(tr.CurrentTrigger()))
	assert.Equal(t, models.OrderSideSell, tr.StopSide())
}

func TestTrailLongStaircase(t *testing.T) {
	tr := longTrail()

	d := tr.Advance(510, 2)
	assert.Equal(t, TrailDecision{}, d)

	d = tr.Advance(520, 2)
	assert.True(t, d.Activated)
	assert.False(t, d.Modify())
	assert.Equal(t, 1, tr.TrailStepCount)

	steps := []struct {
		price   float64
		step    int
		trigger float64
		limit   float64
	}{
		{530, 2, 500, 498},
		{540, 3, 510, 508},
		{550, 4, 520, 518},
		{560, 5, 530, 528},
	}
	for _, s := range steps {
		d = tr.Advance(s.price, 2)
		require.True(t, d.Stepped, "price %v", s.price)
		assert.Equal(t, s.step, d.Step)
		assert.Equal(t, s.trigger, d.Trigger)
		assert.Equal(t, s.limit, d.Limit)
	}

	// pullback below the next threshold holds the stop
	d = tr.Advance(545, 2)
	assert.False(t, d.Modify())
	assert.Equal(t, 530.0, tr.CurrentTrigger())
}

func TestTrailShortStaircase(t *testing.T) {
	tr := NewTrail("BANKNIFTY", Leg{Side: models.OrderSideSell, Quantity: 30, Price: 500}, params, t0)

	assert.Equal(t, 510.0, tr.CurrentTrigger())
	assert.Equal(t, 512.0, tr.LimitFor(tr.CurrentTrigger()))
	assert.Equal(t, models.OrderSideBuy, tr.StopSide())

	assert.False(t, tr.Advance(485, 2).Activated)
	assert.True(t, tr.Advance(480, 2).Activated)

	d := tr.Advance(470, 2)
	require.True(t, d.Stepped)
	assert.Equal(t, 500.0, d.Trigger)
	assert.Equal(t, 502.0, d.Limit)

	d = tr.Advance(460, 2)
	require.True(t, d.Stepped)
	assert.Equal(t, 490.0, d.Trigger)
}

func TestTrailActivationBoundary(t *testing.T) {
	tr := longTrail()
	assert.False(t, tr.Advance(519.95, 2).Activated)
	assert.True(t, tr.Advance(520, 2).Activated)

	short := NewTrail("X", Leg{Side: models.OrderSideSell, Quantity: 1, Price: 500}, params, t0)
	assert.True(t, short.Advance(480, 2).Activated)
}

func TestTrailOneStepPerTick(t *testing.T) {
	tr := longTrail()
	tr.Advance(520, 2)

	d := tr.Advance(900, 2)

	assert.True(t, d.Stepped)
	assert.Equal(t, 2, d.Step)
	assert.Equal(t, 500.0, d.Trigger)
}

func TestTrailNeverLoosens(t *testing.T) {
	tr := longTrail()
	prices := []float64{505, 520, 512, 530, 495, 541, 540, 470, 560, 300, 575}

	last := tr.CurrentTrigger()
	for _, p := range prices {
		d := tr.Advance(p, 2)
		if d.Modify() {
			assert.GreaterOrEqual(t, d.Trigger, last, "price %v", p)
			assert.LessOrEqual(t, d.Trigger, p-tr.StopBuffer, "price %v", p)
			last = d.Trigger
		}
	}
	assert.Greater(t, last, 490.0)
}

func TestTrailResync(t *testing.T) {
	tr := longTrail()
	tr.Advance(520, 2)
	tr.Advance(530, 2)
	tr.NeedsResync = true

	d := tr.Advance(515, 2)

	assert.True(t, d.Resync)
	assert.False(t, d.Stepped)
	assert.Equal(t, 2, d.Step)
	assert.Equal(t, 500.0, d.Trigger)
	assert.False(t, tr.NeedsResync)
	assert.False(t, tr.Advance(515, 2).Modify())
}

func TestTrailInferStep(t *testing.T) {
	tr := longTrail()
	assert.Equal(t, 1, tr.InferStep(490))
	assert.Equal(t, 1, tr.InferStep(470))
	assert.Equal(t, 3, tr.InferStep(510))
	assert.Equal(t, 3, tr.InferStep(517))

	short := NewTrail("X", Leg{Side: models.OrderSideSell, Quantity: 1, Price: 500}, params, t0)
	assert.Equal(t, 2, short.InferStep(500))
}
