package ticker

import (
	"context"
	"errors"

	"slguard/internal/exchange"
)

var errNotConnected = errors.New("ticker: not connected")

func (w *Client) Subscribe(ctx context.Context, tokens []uint32) error {
	if len(tokens) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writeLocked(command{A: "subscribe", V: tokens}); err != nil {
		return err
	}
	for _, t := range tokens {
		if _, ok := w.tokens[t]; !ok {
			w.tokens[t] = exchange.TickModeQuote
		}
	}
	return nil
}

func (w *Client) SetMode(ctx context.Context, mode exchange.TickMode, tokens []uint32) error {
	if len(tokens) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writeLocked(command{A: "mode", V: []any{string(mode), tokens}}); err != nil {
		return err
	}
	for _, t := range tokens {
		w.tokens[t] = mode
	}
	return nil
}

func (w *Client) writeLocked(cmd command) error {
	if w.conn == nil {
		return errNotConnected
	}
	return w.conn.WriteJSON(cmd)
}

// resubscribeLocked replays every subscription after a reconnect, grouped by
// mode.
func (w *Client) resubscribeLocked() error {
	if len(w.tokens) == 0 {
		return nil
	}
	all := make([]uint32, 0, len(w.tokens))
	byMode := map[exchange.TickMode][]uint32{}
	for t, mode := range w.tokens {
		all = append(all, t)
		byMode[mode] = append(byMode[mode], t)
	}
	if err := w.writeLocked(command{A: "subscribe", V: all}); err != nil {
		return err
	}
	for mode, tokens := range byMode {
		if err := w.writeLocked(command{A: "mode", V: []any{string(mode), tokens}}); err != nil {
			return err
		}
	}
	return nil
}
