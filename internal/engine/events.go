package engine

import (
	"context"
	"sort"

	"slguard/internal/config"
	"slguard/internal/exchange"
	"slguard/internal/journal"
	"slguard/internal/models"
)

func (e *Engine) handleEvents(ctx context.Context, events <-chan exchange.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				e.logEntry().Warn("Tick stream closed.")
				return
			}
			switch event.Type {
			case exchange.EventTypeTicks:
				e.handleTicks(ctx, event.Ticks)
			case exchange.EventTypeReconnect:
				e.logEntry().Info("Tick stream reconnected.")
			}
		}
	}
}

type trailUpdate struct {
	trail    TrailState
	decision TrailDecision
	price    float64
}

// handleTicks advances every trail of the ticked symbols. Decisions are made
// under the lock, broker modifies are sent after it is released.
func (e *Engine) handleTicks(ctx context.Context, ticks []models.Tick) {
	if !e.tradingAllowed() {
		return
	}
	mult := e.cfg.Protection.TrailStartMultiplier

	var updates []trailUpdate
	e.mu.Lock()
	for _, tick := range ticks {
		inst, ok := e.resolver.Instrument(tick.Token)
		if !ok {
			continue
		}
		for _, tr := range e.sortedTrailsLocked(e.instrumentOf(inst.Exchange, inst.Symbol)) {
			d := tr.Advance(tick.LastPrice, mult)
			if d.Activated || d.Modify() {
				updates = append(updates, trailUpdate{trail: *tr, decision: d, price: tick.LastPrice})
			}
		}
	}
	e.mu.Unlock()

	for _, u := range updates {
		e.applyTrailUpdate(ctx, u)
	}

	if e.cfg.Risk.BreakerMode == config.BreakerModeTick {
		e.maybeEvaluateBreaker(ctx)
	}
}

func (e *Engine) sortedTrailsLocked(inst instrumentKey) []*TrailState {
	var out []*TrailState
	for key, tr := range e.trails {
		if key.instrument() == inst {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

func (e *Engine) applyTrailUpdate(ctx context.Context, u trailUpdate) {
	tr := &u.trail
	d := u.decision

	if d.Activated {
		e.trailEntry(tr).WithFields(map[string]interface{}{
			"price":      u.price,
			"activation": tr.ActivationPrice(e.cfg.Protection.TrailStartMultiplier),
		}).Info("Trailing activated.")
		e.record(ctx, journal.Event{
			Kind:    journal.KindTrailActivated,
			Symbol:  tr.Symbol,
			OrderID: tr.OrderID,
			Qty:     tr.Quantity,
			Entry:   tr.EntryPrice,
			Step:    tr.TrailStepCount,
			Price:   u.price,
		})
	}
	if !d.Modify() {
		return
	}

	fields := map[string]interface{}{
		"price":   u.price,
		"trigger": d.Trigger,
		"limit":   d.Limit,
		"resync":  d.Resync,
	}
	err := e.client.ModifyOrder(ctx, tr.OrderID, models.ModifyRequest{
		Type:         models.OrderTypeStop,
		Price:        d.Limit,
		TriggerPrice: d.Trigger,
	})
	if err != nil {
		e.metrics.TrailSteps.WithLabelValues("failed").Inc()
		withBrokerError(e.trailEntry(tr), err).WithFields(fields).WithField("next_step", d.Step).Error("Failed to trail stop.")
		return
	}

	e.metrics.TrailSteps.WithLabelValues("ok").Inc()
	e.trailEntry(tr).WithFields(fields).Info("Stop trailed.")
	e.record(ctx, journal.Event{
		Kind:    journal.KindTrailStepped,
		Symbol:  tr.Symbol,
		OrderID: tr.OrderID,
		Qty:     tr.Quantity,
		Entry:   tr.EntryPrice,
		Trigger: d.Trigger,
		Limit:   d.Limit,
		Step:    d.Step,
		Price:   u.price,
	})
}
