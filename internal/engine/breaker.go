package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"slguard/internal/journal"
	"slguard/internal/models"
)

// BreachTriggered reports whether total PnL crossed a daily limit. A
// maxProfit of zero disables the profit side.
func BreachTriggered(total, maxLoss, maxProfit float64) bool {
	if total <= maxLoss {
		return true
	}
	return maxProfit > 0 && total >= maxProfit
}

func (e *Engine) runBreaker(ctx context.Context) {
	t := e.clock.NewTicker(e.cfg.Risk.BreakerInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			e.evaluateBreaker(ctx)
		}
	}
}

// maybeEvaluateBreaker runs an evaluation off the tick path, at most once per
// breaker interval and never two at a time.
func (e *Engine) maybeEvaluateBreaker(ctx context.Context) {
	now := e.clock.Now()
	e.mu.Lock()
	if e.breached || e.evaluating || now.Sub(e.lastBreaker) < e.cfg.Risk.BreakerInterval {
		e.mu.Unlock()
		return
	}
	e.evaluating = true
	e.lastBreaker = now
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			e.evaluating = false
			e.mu.Unlock()
		}()
		e.evaluateBreaker(ctx)
	}()
}

// evaluateBreaker sums the day's PnL across positions and fires the breach
// once a limit is crossed.
func (e *Engine) evaluateBreaker(ctx context.Context) {
	if !e.tradingAllowed() {
		return
	}
	positions, err := e.client.ListPositions(ctx)
	if err != nil {
		e.metrics.PollErrors.Inc()
		e.brokerErrorEntry(err).Warn("Failed to list positions for PnL check.")
		return
	}
	total := 0.0
	for _, p := range positions {
		total += p.PnL
	}
	e.metrics.TotalPnL.Set(total)

	if !BreachTriggered(total, e.cfg.Risk.MaxDailyLoss, e.cfg.Risk.MaxDailyProfit) {
		e.logEntry().WithField("pnl", total).Debug("PnL within limits.")
		return
	}

	e.mu.Lock()
	if e.breached {
		e.mu.Unlock()
		return
	}
	e.breached = true
	e.mu.Unlock()

	e.breach(ctx, total, positions)
}

// breach cancels every live protective stop, flattens every open position,
// waits the cooldown, logs the session out and persists the halt. Broker
// calls run detached from ctx so a shutdown signal cannot abort a flatten
// half way.
func (e *Engine) breach(ctx context.Context, total float64, positions []models.Position) {
	bctx := context.WithoutCancel(ctx)
	e.metrics.BreakerTripped.Set(1)
	e.logEntry().WithFields(map[string]interface{}{
		"pnl":        total,
		"max_loss":   e.cfg.Risk.MaxDailyLoss,
		"max_profit": e.cfg.Risk.MaxDailyProfit,
	}).Error("Daily PnL limit breached, squaring off.")
	e.record(bctx, journal.Event{Kind: journal.KindBreach, PnL: total})

	e.cancelProtectiveStops(bctx)
	e.squareOff(bctx, positions)

	e.mu.Lock()
	e.trails = make(map[TrailKey]*TrailState)
	e.mu.Unlock()
	e.metrics.ActiveTrails.Set(0)

	e.logEntry().WithField("cooldown", e.cfg.Risk.SquareOffCooldown).Info("Waiting for square-off orders to settle.")
	select {
	case <-e.clock.After(e.cfg.Risk.SquareOffCooldown):
	case <-ctx.Done():
		e.logEntry().Warn("Shutdown during square-off cooldown, halting now.")
	}

	if err := e.client.Logout(bctx); err != nil {
		e.brokerErrorEntry(err).Error("Failed to invalidate session.")
	} else {
		e.logEntry().Info("Session invalidated.")
	}

	if err := e.halt.Halt(); err != nil {
		e.logEntry().WithError(err).Error("Failed to persist halt flag, staying up in breached state.")
		return
	}
	e.record(bctx, journal.Event{Kind: journal.KindHalted, PnL: total})
	e.logEntry().Warn("Trading halted for the day.")
	close(e.halted)
}

func (e *Engine) cancelProtectiveStops(ctx context.Context) {
	orders, err := e.client.ListOrders(ctx)
	if err != nil {
		e.brokerErrorEntry(err).Error("Failed to list orders, protective stops left in place.")
		return
	}
	for _, o := range orders {
		if !o.IsLiveProtective() {
			continue
		}
		entry := e.orderEntry(o.Exchange, o.Symbol, o.ID)
		if err := e.client.CancelOrder(ctx, o.ID); err != nil {
			withBrokerError(entry, err).Warn("Failed to cancel protective stop.")
			continue
		}
		entry.Info("Protective stop cancelled.")
	}
}

func (e *Engine) squareOff(ctx context.Context, positions []models.Position) {
	for _, p := range positions {
		if p.Quantity == 0 {
			continue
		}
		side := models.OrderSideSell
		if p.Quantity < 0 {
			side = models.OrderSideBuy
		}
		qty := absInt(p.Quantity)
		entry := e.symbolEntry(p.Exchange, p.Symbol).WithFields(logrus.Fields{
			"side": side,
			"qty":  qty,
		})
		orderID, err := e.client.PlaceOrder(ctx, models.OrderRequest{
			Exchange: p.Exchange,
			Symbol:   p.Symbol,
			Side:     side,
			Type:     models.OrderTypeMarket,
			Product:  p.Product,
			Quantity: qty,
			Kind:     models.OrderKindSquareOff,
		})
		if err != nil {
			e.metrics.SquareOffs.WithLabelValues("failed").Inc()
			withBrokerError(entry, err).Error("Failed to square off position.")
			continue
		}
		e.metrics.SquareOffs.WithLabelValues("ok").Inc()
		entry.WithField("order_id", orderID).Info("Square-off order placed.")
		e.record(ctx, journal.Event{
			Kind:    journal.KindSquareOff,
			Symbol:  p.Symbol,
			OrderID: orderID,
			Qty:     qty,
			PnL:     p.PnL,
		})
	}
}
