package engine

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"slguard/internal/journal"
	"slguard/internal/models"
)

// Adoption pairs an uncovered leg with a live protective order that no
// trail tracks, typically one placed before a restart.
type Adoption struct {
	Leg   Leg
	Order models.Order
}

type Plan struct {
	Adopt []Adoption
	Place []Leg
}

func (p Plan) Empty() bool {
	return len(p.Adopt) == 0 && len(p.Place) == 0
}

// PlanProtection decides which legs of one symbol still need a stop. A leg is
// covered by a trail with the same quantity and entry price; each trail
// covers at most one leg. Uncovered legs first try to adopt an untracked
// live stop of the same quantity on the closing side, the rest get a new
// order.
func PlanProtection(legs []Leg, trails []TrailState, live []models.Order) Plan {
	var plan Plan

	tracked := make(map[string]bool, len(trails))
	for _, tr := range trails {
		tracked[tr.OrderID] = true
	}

	used := make(map[string]bool, len(trails))
	var uncovered []Leg
	for _, leg := range legs {
		covered := false
		for _, tr := range trails {
			if used[tr.OrderID] {
				continue
			}
			if tr.Quantity == leg.Quantity && samePrice(tr.EntryPrice, leg.Price) {
				used[tr.OrderID] = true
				covered = true
				break
			}
		}
		if !covered {
			uncovered = append(uncovered, leg)
		}
	}

	orphans := make([]models.Order, 0, len(live))
	for _, o := range live {
		if o.IsLiveProtective() && !tracked[o.ID] {
			orphans = append(orphans, o)
		}
	}
	sort.SliceStable(orphans, func(i, j int) bool {
		return orphans[i].Timestamp.Before(orphans[j].Timestamp)
	})

	taken := make(map[string]bool, len(orphans))
	for _, leg := range uncovered {
		adopted := false
		for _, o := range orphans {
			if taken[o.ID] || o.Quantity != leg.Quantity || o.Side != models.OppositeSide(leg.Side) {
				continue
			}
			taken[o.ID] = true
			plan.Adopt = append(plan.Adopt, Adoption{Leg: leg, Order: o})
			adopted = true
			break
		}
		if !adopted {
			plan.Place = append(plan.Place, leg)
		}
	}
	return plan
}

func (e *Engine) trailParams() TrailParams {
	return TrailParams{
		StopBuffer:  e.cfg.Protection.StopBuffer,
		LimitBuffer: e.cfg.Protection.LimitBuffer,
		TickSize:    e.cfg.Protection.TickSize,
	}
}

// protectPosition reconstructs the open legs of pos and places or adopts a
// stop for every leg that has none. A position the day's fills cannot fully
// explain is left alone rather than partly protected.
func (e *Engine) protectPosition(ctx context.Context, pos models.Position, orders []models.Order) {
	inst := e.instrumentOf(pos.Exchange, pos.Symbol)
	var fills []models.Fill
	var live []models.Order
	for _, o := range orders {
		if f, ok := models.FillFromOrder(o); ok {
			fills = append(fills, f)
		}
		if o.IsLiveProtective() {
			live = append(live, o)
		}
	}

	legs := ReconstructLegs(fills, pos.Quantity)
	if sum := legsQuantity(legs); sum != absInt(pos.Quantity) {
		e.metrics.Protections.WithLabelValues("skipped").Inc()
		e.symbolEntry(inst.exchange, inst.symbol).WithFields(logrus.Fields{
			"qty":      pos.Quantity,
			"legs_qty": sum,
		}).Warn("Day's fills do not explain the net position, symbol left unprotected.")
		return
	}

	plan := PlanProtection(legs, e.trailsFor(inst), live)
	if plan.Empty() {
		return
	}
	for _, a := range plan.Adopt {
		e.adoptProtection(ctx, inst, pos, a)
	}
	for _, leg := range plan.Place {
		e.placeProtection(ctx, inst, pos, leg)
	}
}

func (e *Engine) newTrail(inst instrumentKey, pos models.Position, leg Leg) TrailState {
	tr := NewTrail(inst.symbol, leg, e.trailParams(), e.clock.Now())
	tr.Exchange = inst.exchange
	tr.Product = pos.Product
	return tr
}

func (e *Engine) placeProtection(ctx context.Context, inst instrumentKey, pos models.Position, leg Leg) {
	tr := e.newTrail(inst, pos, leg)
	trigger := tr.CurrentTrigger()
	limit := tr.LimitFor(trigger)

	fields := logrus.Fields{
		"side":    tr.StopSide(),
		"qty":     leg.Quantity,
		"entry":   leg.Price,
		"trigger": trigger,
		"limit":   limit,
	}

	orderID, err := e.client.PlaceOrder(ctx, models.OrderRequest{
		Exchange:     inst.exchange,
		Symbol:       inst.symbol,
		Side:         tr.StopSide(),
		Type:         models.OrderTypeStop,
		Product:      pos.Product,
		Quantity:     leg.Quantity,
		Price:        limit,
		TriggerPrice: trigger,
		Kind:         models.OrderKindProtective,
	})
	if err != nil {
		e.metrics.Protections.WithLabelValues("failed").Inc()
		withBrokerError(e.symbolEntry(inst.exchange, inst.symbol), err).WithFields(fields).Error("Failed to place protective stop.")
		return
	}
	tr.OrderID = orderID

	// The breaker may have fired while the order was in flight; its cancel
	// sweep cannot have seen this order.
	e.mu.Lock()
	if e.breached {
		e.mu.Unlock()
		e.cancelLateStop(ctx, &tr)
		return
	}
	e.trails[tr.Key()] = &tr
	e.mu.Unlock()

	e.metrics.Protections.WithLabelValues("placed").Inc()
	e.trailEntry(&tr).WithFields(fields).Info("Protective stop placed.")
	e.record(ctx, journal.Event{
		Kind:    journal.KindProtectionPlaced,
		Symbol:  inst.symbol,
		OrderID: orderID,
		Qty:     leg.Quantity,
		Entry:   leg.Price,
		Trigger: trigger,
		Limit:   limit,
		Step:    1,
	})
}

func (e *Engine) cancelLateStop(ctx context.Context, tr *TrailState) {
	entry := e.trailEntry(tr)
	if err := e.client.CancelOrder(context.WithoutCancel(ctx), tr.OrderID); err != nil {
		withBrokerError(entry, err).Error("Failed to cancel stop placed during breach.")
		return
	}
	entry.Warn("Stop placed during breach cancelled.")
}

func (e *Engine) adoptProtection(ctx context.Context, inst instrumentKey, pos models.Position, a Adoption) {
	tr := e.newTrail(inst, pos, a.Leg)
	tr.OrderID = a.Order.ID
	tr.TrailStepCount = tr.InferStep(a.Order.TriggerPrice)
	tr.TrailingActive = tr.TrailStepCount > 1

	e.mu.Lock()
	if e.breached {
		e.mu.Unlock()
		return
	}
	e.trails[tr.Key()] = &tr
	e.mu.Unlock()

	e.metrics.Protections.WithLabelValues("adopted").Inc()
	e.trailEntry(&tr).WithField("trigger", a.Order.TriggerPrice).Info("Adopted existing protective stop.")
	e.record(ctx, journal.Event{
		Kind:    journal.KindProtectionAdopted,
		Symbol:  inst.symbol,
		OrderID: a.Order.ID,
		Qty:     a.Leg.Quantity,
		Entry:   a.Leg.Price,
		Trigger: a.Order.TriggerPrice,
		Limit:   a.Order.Price,
		Step:    tr.TrailStepCount,
	})
}
