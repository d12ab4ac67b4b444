package engine

import (
	"math"
	"time"

	"slguard/internal/models"
)

// TrailKey identifies one protected leg. A symbol can carry several legs,
// each with its own stop order, and the same trading symbol can exist on
// more than one exchange.
type TrailKey struct {
	Exchange string
	Symbol   string
	OrderID  string
}

// TrailState is the trailing state of one protective stop. Buffers and tick
// size are captured when the stop is placed so the ladder of a leg never
// shifts under a config reload.
type TrailState struct {
	Symbol   string           `json:"symbol" yaml:"symbol"`
	Exchange string           `json:"exchange" yaml:"exchange"`
	Product  string           `json:"product" yaml:"product"`
	OrderID  string           `json:"order_id" yaml:"order_id"`
	Side     models.OrderSide `json:"side" yaml:"side"`
	Quantity int              `json:"quantity" yaml:"quantity"`

	EntryPrice  float64 `json:"entry_price" yaml:"entry_price"`
	InitialStop float64 `json:"initial_stop" yaml:"initial_stop"`
	InitialRisk float64 `json:"initial_risk" yaml:"initial_risk"`
	StopBuffer  float64 `json:"stop_buffer" yaml:"stop_buffer"`
	LimitBuffer float64 `json:"limit_buffer" yaml:"limit_buffer"`
	TickSize    float64 `json:"tick_size" yaml:"tick_size"`

	TrailingActive bool    `json:"trailing_active" yaml:"trailing_active"`
	TrailStepCount int     `json:"trail_step_count" yaml:"trail_step_count"`
	LastTrailPrice float64 `json:"last_trail_price" yaml:"last_trail_price"`
	// NeedsResync is set when the broker-side trigger lags the ladder; the
	// next tick re-sends the current trigger.
	NeedsResync bool      `json:"needs_resync" yaml:"needs_resync"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// TrailParams are the protection settings a new trail is built from.
type TrailParams struct {
	StopBuffer  float64
	LimitBuffer float64
	TickSize    float64
}

// NewTrail builds the dormant trail for a leg. Side is the side of the
// position, not of the stop order.
func NewTrail(symbol string, leg Leg, p TrailParams, now time.Time) TrailState {
	t := TrailState{
		Symbol:         symbol,
		Side:           leg.Side,
		Quantity:       leg.Quantity,
		EntryPrice:     leg.Price,
		StopBuffer:     p.StopBuffer,
		LimitBuffer:    p.LimitBuffer,
		TickSize:       p.TickSize,
		TrailStepCount: 1,
		CreatedAt:      now,
	}
	t.InitialStop = RoundToTick(leg.Price-t.dir()*p.StopBuffer, p.TickSize)
	t.InitialRisk = math.Abs(leg.Price - t.InitialStop)
	return t
}

func (t *TrailState) Key() TrailKey {
	return TrailKey{Exchange: t.Exchange, Symbol: t.Symbol, OrderID: t.OrderID}
}

func (t *TrailState) Long() bool {
	return t.Side == models.OrderSideBuy
}

func (t *TrailState) dir() float64 {
	if t.Long() {
		return 1
	}
	return -1
}

// StopSide is the side of the protective order closing this leg.
func (t *TrailState) StopSide() models.OrderSide {
	return models.OppositeSide(t.Side)
}

// StopTrigger is the trigger of the given step. Step 1 is the initial stop;
// every further step moves it one initial risk in the favourable direction.
func (t *TrailState) StopTrigger(step int) float64 {
	if step < 1 {
		step = 1
	}
	return RoundToTick(t.InitialStop+t.dir()*float64(step-1)*t.InitialRisk, t.TickSize)
}

func (t *TrailState) CurrentTrigger() float64 {
	return t.StopTrigger(t.TrailStepCount)
}

// LimitFor returns the limit price paired with a trigger, one limit buffer
// beyond it so the stop still fills through a fast move.
func (t *TrailState) LimitFor(trigger float64) float64 {
	return RoundToTick(trigger-t.dir()*t.LimitBuffer, t.TickSize)
}

// ActivationPrice is the first price at which trailing arms.
func (t *TrailState) ActivationPrice(multiplier float64) float64 {
	return t.EntryPrice + t.dir()*multiplier*t.InitialRisk
}

// NextThreshold is the price that advances the stop by one more step.
func (t *TrailState) NextThreshold() float64 {
	return t.CurrentTrigger() + t.dir()*(t.StopBuffer+t.InitialRisk)
}

// reached reports whether price is at or beyond level in the favourable
// direction.
func (t *TrailState) reached(price, level float64) bool {
	if t.Long() {
		return price >= level-priceEpsilon
	}
	return price <= level+priceEpsilon
}

// behind reports whether a broker trigger is less protective than want.
func (t *TrailState) behind(trigger, want float64) bool {
	if t.Long() {
		return trigger < want-priceEpsilon
	}
	return trigger > want+priceEpsilon
}

type TrailDecision struct {
	Activated bool
	Stepped   bool
	Resync    bool
	Step      int
	Trigger   float64
	Limit     float64
}

// Modify reports whether the decision carries a trigger to send.
func (d TrailDecision) Modify() bool {
	return d.Stepped || d.Resync
}

// Advance feeds one price into the trail. The tick that arms trailing does
// not move the stop; afterwards at most one step is taken per tick. A
// pending resync is folded into the decision so the broker catches up with
// the current step.
func (t *TrailState) Advance(price, multiplier float64) TrailDecision {
	var d TrailDecision
	switch {
	case !t.TrailingActive:
		if t.reached(price, t.ActivationPrice(multiplier)) {
			t.TrailingActive = true
			t.LastTrailPrice = price
			d.Activated = true
		}
	case t.reached(price, t.NextThreshold()):
		t.TrailStepCount++
		t.LastTrailPrice = price
		t.NeedsResync = false
		d.Stepped = true
	}

	if !d.Stepped && t.NeedsResync {
		t.NeedsResync = false
		d.Resync = true
	}
	if d.Modify() {
		d.Step = t.TrailStepCount
		d.Trigger = t.CurrentTrigger()
		d.Limit = t.LimitFor(d.Trigger)
	}
	return d
}

// InferStep recovers the ladder position of an adopted stop from its live
// trigger. Off-grid triggers fall back to the step below so adoption never
// tightens a stop.
func (t *TrailState) InferStep(trigger float64) int {
	if t.InitialRisk <= 0 {
		return 1
	}
	step := int(math.Floor(t.dir()*(trigger-t.InitialStop)/t.InitialRisk+1e-6)) + 1
	if step < 1 {
		return 1
	}
	return step
}
