// Package instruments maps trading symbols to feed tokens.
package instruments

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"slguard/internal/models"
)

var ErrUnknownSymbol = errors.New("instruments: unknown symbol")

type Source interface {
	ListInstruments(ctx context.Context, exchange string) ([]models.Instrument, error)
}

type key struct {
	exchange string
	symbol   string
}

// Resolver caches symbol to token lookups. The index only grows during a
// process lifetime; a fresh process rebuilds it.
type Resolver struct {
	src Source

	mu       sync.RWMutex
	bySymbol map[key]models.Instrument
	byToken  map[uint32]models.Instrument
	loaded   map[string]bool
}

func NewResolver(src Source) *Resolver {
	return &Resolver{
		src:      src,
		bySymbol: map[key]models.Instrument{},
		byToken:  map[uint32]models.Instrument{},
		loaded:   map[string]bool{},
	}
}

// Token returns the feed token for symbol on exchange, downloading the
// exchange's instrument list on the first miss.
func (r *Resolver) Token(ctx context.Context, exchange, symbol string) (uint32, error) {
	inst, err := r.Lookup(ctx, exchange, symbol)
	if err != nil {
		return 0, err
	}
	return inst.Token, nil
}

func (r *Resolver) Lookup(ctx context.Context, exchange, symbol string) (models.Instrument, error) {
	k := key{exchange: exchange, symbol: symbol}

	r.mu.RLock()
	inst, ok := r.bySymbol[k]
	loaded := r.loaded[exchange]
	r.mu.RUnlock()
	if ok {
		return inst, nil
	}
	if loaded {
		return models.Instrument{}, fmt.Errorf("%w: %s:%s", ErrUnknownSymbol, exchange, symbol)
	}

	list, err := r.src.ListInstruments(ctx, exchange)
	if err != nil {
		return models.Instrument{}, fmt.Errorf("load instruments %s: %w", exchange, err)
	}

	r.mu.Lock()
	for _, item := range list {
		if item.Exchange == "" {
			item.Exchange = exchange
		}
		r.bySymbol[key{exchange: item.Exchange, symbol: item.Symbol}] = item
		r.byToken[item.Token] = item
	}
	r.loaded[exchange] = true
	inst, ok = r.bySymbol[k]
	r.mu.Unlock()

	if !ok {
		return models.Instrument{}, fmt.Errorf("%w: %s:%s", ErrUnknownSymbol, exchange, symbol)
	}
	return inst, nil
}

// Remember records a token learned elsewhere, e.g. from a position snapshot.
func (r *Resolver) Remember(inst models.Instrument) {
	if inst.Token == 0 || inst.Symbol == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{exchange: inst.Exchange, symbol: inst.Symbol}
	if _, ok := r.bySymbol[k]; ok {
		return
	}
	r.bySymbol[k] = inst
	r.byToken[inst.Token] = inst
}

// Instrument is the reverse lookup used to route ticks.
func (r *Resolver) Instrument(token uint32) (models.Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.byToken[token]
	return inst, ok
}
