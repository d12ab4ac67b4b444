package engine

import (
	"context"
	"sort"

	"slguard/internal/exchange"
)

// TokensToSubscribe returns the tokens of interest not yet on the feed,
// sorted and without duplicates.
func TokensToSubscribe(interest []uint32, subscribed map[uint32]bool) []uint32 {
	seen := make(map[uint32]bool, len(interest))
	var out []uint32
	for _, tok := range interest {
		if subscribed[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// syncFeed subscribes every symbol with a trail that is not yet on the feed.
// Subscriptions are never dropped during a session.
func (e *Engine) syncFeed(ctx context.Context) {
	if e.Breached() {
		return
	}

	e.mu.Lock()
	insts := make(map[instrumentKey]bool)
	for key := range e.trails {
		insts[key.instrument()] = true
	}
	e.mu.Unlock()
	if len(insts) == 0 {
		return
	}

	interest := make([]uint32, 0, len(insts))
	for inst := range insts {
		tok, err := e.resolver.Token(ctx, inst.exchange, inst.symbol)
		if err != nil {
			e.symbolEntry(inst.exchange, inst.symbol).WithError(err).Warn("Cannot resolve instrument token, symbol not subscribed.")
			continue
		}
		interest = append(interest, tok)
	}

	e.mu.Lock()
	delta := TokensToSubscribe(interest, e.subscribed)
	e.mu.Unlock()
	if len(delta) == 0 {
		return
	}

	if err := e.stream.Subscribe(ctx, delta); err != nil {
		e.logEntry().WithError(err).WithField("tokens", delta).Warn("Failed to subscribe tokens.")
		return
	}
	if err := e.stream.SetMode(ctx, exchange.TickModeLTP, delta); err != nil {
		e.logEntry().WithError(err).WithField("tokens", delta).Warn("Failed to set tick mode.")
		return
	}

	e.mu.Lock()
	for _, tok := range delta {
		e.subscribed[tok] = true
	}
	total := len(e.subscribed)
	e.mu.Unlock()

	e.metrics.SubscribedTokens.Set(float64(total))
	e.logEntry().WithFields(map[string]interface{}{
		"tokens": delta,
		"total":  total,
	}).Info("Subscribed to live prices.")
}
