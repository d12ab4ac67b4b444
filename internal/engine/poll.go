package engine

import (
	"context"
	"sort"

	"slguard/internal/journal"
	"slguard/internal/models"
)

// pollOnce is one protection cycle: snapshot orders and positions, drop
// trails that no longer protect anything, protect uncovered legs, flag
// stops whose broker trigger lags the ladder and refresh the feed.
func (e *Engine) pollOnce(ctx context.Context) {
	if e.Breached() {
		return
	}
	if !e.hours.IsOpen(e.clock.Now()) {
		e.logEntry().Debug("Market closed, skipping protection cycle.")
		return
	}

	orders, err := e.client.ListOrders(ctx)
	if err != nil {
		e.metrics.PollErrors.Inc()
		e.brokerErrorEntry(err).Warn("Failed to list orders, skipping cycle.")
		return
	}
	positions, err := e.client.ListPositions(ctx)
	if err != nil {
		e.metrics.PollErrors.Inc()
		e.brokerErrorEntry(err).Warn("Failed to list positions, skipping cycle.")
		return
	}

	e.pruneTrails(ctx, orders, positions)

	byInstrument := make(map[instrumentKey][]models.Order)
	for _, o := range orders {
		k := e.instrumentOf(o.Exchange, o.Symbol)
		byInstrument[k] = append(byInstrument[k], o)
	}
	for _, pos := range positions {
		if pos.Quantity == 0 {
			continue
		}
		k := e.instrumentOf(pos.Exchange, pos.Symbol)
		e.resolver.Remember(models.Instrument{
			Token:    pos.InstrumentToken,
			Exchange: k.exchange,
			Symbol:   k.symbol,
		})
		if e.Breached() {
			return
		}
		e.protectPosition(ctx, pos, byInstrument[k])
	}

	e.reconcileTriggers(orders)
	e.syncFeed(ctx)

	e.mu.Lock()
	e.metrics.ActiveTrails.Set(float64(len(e.trails)))
	e.mu.Unlock()
}

type removal struct {
	trail  TrailState
	reason string
	warn   bool
}

// pruneTrails drops trails of flat symbols and trails whose stop is no
// longer live at the broker.
func (e *Engine) pruneTrails(ctx context.Context, orders []models.Order, positions []models.Position) {
	open := make(map[instrumentKey]bool)
	for _, p := range positions {
		if p.Quantity != 0 {
			open[e.instrumentOf(p.Exchange, p.Symbol)] = true
		}
	}
	byID := make(map[string]models.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	var removed []removal
	e.mu.Lock()
	for key, tr := range e.trails {
		var r *removal
		o, found := byID[tr.OrderID]
		switch {
		case !open[key.instrument()]:
			r = &removal{reason: "position closed"}
		case !found:
			r = &removal{reason: "protective order missing", warn: true}
		case o.Status.Terminal():
			r = &removal{reason: "protective order " + string(o.Status), warn: o.Status != models.OrderStatusComplete}
		}
		if r != nil {
			r.trail = *tr
			removed = append(removed, *r)
			delete(e.trails, key)
		}
	}
	e.mu.Unlock()

	sort.Slice(removed, func(i, j int) bool { return removed[i].trail.OrderID < removed[j].trail.OrderID })
	for _, r := range removed {
		entry := e.trailEntry(&r.trail).WithField("reason", r.reason)
		if r.warn {
			entry.Warn("Trail removed.")
		} else {
			entry.Info("Trail removed.")
		}
		e.record(ctx, journal.Event{
			Kind:    journal.KindTrailRemoved,
			Symbol:  r.trail.Symbol,
			OrderID: r.trail.OrderID,
			Qty:     r.trail.Quantity,
			Entry:   r.trail.EntryPrice,
			Step:    r.trail.TrailStepCount,
			Detail:  r.reason,
		})
	}
}

// reconcileTriggers flags trails whose live broker trigger is less
// protective than their current step, e.g. after a failed modify. The tick
// path re-sends the trigger so every modify stays on one goroutine.
func (e *Engine) reconcileTriggers(orders []models.Order) {
	byID := make(map[string]models.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tr := range e.trails {
		o, ok := byID[tr.OrderID]
		if !ok || !o.IsLiveProtective() || tr.NeedsResync {
			continue
		}
		want := tr.CurrentTrigger()
		if tr.behind(o.TriggerPrice, want) {
			tr.NeedsResync = true
			e.trailEntry(tr).WithFields(map[string]interface{}{
				"broker_trigger": o.TriggerPrice,
				"want_trigger":   want,
			}).Warn("Broker stop lags the trail, resync scheduled.")
		}
	}
}
