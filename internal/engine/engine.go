// Package engine protects open positions: it reconstructs entry legs from
// the day's fills, keeps one stop-loss per leg, trails those stops as price
// moves in favour and trips a daily PnL breaker that flattens the account.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"slguard/internal/clock"
	"slguard/internal/config"
	"slguard/internal/exchange"
	"slguard/internal/halt"
	"slguard/internal/instruments"
	"slguard/internal/journal"
	"slguard/internal/logger"
	"slguard/internal/metrics"
)

// ErrHalted is returned by Start when trading is halted for the day, either
// because the halt flag was already set or because the breaker fired.
var ErrHalted = errors.New("trading halted")

type Deps struct {
	Client   exchange.Client
	Stream   exchange.TickStream
	Halt     halt.Store
	Journal  journal.Journal
	Metrics  *metrics.Metrics
	Clock    clock.Clock
	Resolver *instruments.Resolver
	RunID    string
}

type Engine struct {
	cfg      *config.Config
	client   exchange.Client
	stream   exchange.TickStream
	resolver *instruments.Resolver
	halt     halt.Store
	journal  journal.Journal
	metrics  *metrics.Metrics
	clock    clock.Clock
	hours    clock.MarketHours
	log      *logger.Logger
	runID    string

	mu          sync.Mutex
	trails      map[TrailKey]*TrailState
	subscribed  map[uint32]bool
	breached    bool
	lastBreaker time.Time
	evaluating  bool

	halted chan struct{}
	wg     sync.WaitGroup
}

func New(cfg *config.Config, deps Deps, log *logger.Logger) (*Engine, error) {
	if deps.Client == nil || deps.Stream == nil || deps.Halt == nil {
		return nil, errors.New("engine: client, stream and halt store are required")
	}
	hours, err := cfg.Market.Hours()
	if err != nil {
		return nil, fmt.Errorf("market hours: %w", err)
	}
	e := &Engine{
		cfg:        cfg,
		client:     deps.Client,
		stream:     deps.Stream,
		resolver:   deps.Resolver,
		halt:       deps.Halt,
		journal:    deps.Journal,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		hours:      hours,
		log:        log,
		runID:      deps.RunID,
		trails:     make(map[TrailKey]*TrailState),
		subscribed: make(map[uint32]bool),
		halted:     make(chan struct{}),
	}
	if e.resolver == nil {
		e.resolver = instruments.NewResolver(deps.Client)
	}
	if e.journal == nil {
		e.journal = journal.Nop{}
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	if e.clock == nil {
		e.clock = clock.NewReal()
	}
	if e.log == nil {
		e.log = logger.Discard()
	}
	return e, nil
}

// Start runs the engine until ctx is cancelled or the breaker halts trading.
// It returns ErrHalted without touching the broker when the halt flag is
// already set.
func (e *Engine) Start(ctx context.Context) error {
	halted, err := e.halt.Halted()
	if err != nil {
		return fmt.Errorf("check halt flag: %w", err)
	}
	if halted {
		e.logEntry().Warn("Halt flag is set, trading stays disabled for the day.")
		return ErrHalted
	}

	if err := e.stream.Connect(ctx); err != nil {
		return fmt.Errorf("connect tick stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.logEntry().WithFields(map[string]interface{}{
		"run_id":       e.runID,
		"breaker_mode": e.cfg.Risk.BreakerMode,
		"max_loss":     e.cfg.Risk.MaxDailyLoss,
		"max_profit":   e.cfg.Risk.MaxDailyProfit,
	}).Info("Engine started.")

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.handleEvents(ctx, e.stream.Events())
	}()
	go func() {
		defer e.wg.Done()
		e.runPolling(ctx)
	}()
	if e.cfg.Risk.BreakerMode == config.BreakerModeInterval {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runBreaker(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		err = nil
	case <-e.halted:
		err = ErrHalted
	}
	cancel()
	if cerr := e.stream.Close(); cerr != nil {
		e.logEntry().WithError(cerr).Warn("Failed to close tick stream.")
	}
	e.wg.Wait()
	e.logEntry().Info("Engine stopped.")
	return err
}

func (e *Engine) runPolling(ctx context.Context) {
	poll := e.clock.NewTicker(e.cfg.Runtime.PollInterval)
	defer poll.Stop()
	feed := e.clock.NewTicker(e.cfg.Runtime.FeedSyncInterval)
	defer feed.Stop()

	e.pollCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.Chan():
			e.pollCycle(ctx)
		case <-feed.Chan():
			e.syncFeed(ctx)
		}
	}
}

// pollCycle runs a protection cycle. In tick mode it also gives the breaker
// a chance to run, so an account without subscribed symbols is still
// checked.
func (e *Engine) pollCycle(ctx context.Context) {
	e.pollOnce(ctx)
	if e.cfg.Risk.BreakerMode == config.BreakerModeTick {
		e.maybeEvaluateBreaker(ctx)
	}
}

// instrumentKey names a tradable instrument; the same trading symbol can be
// listed on several exchanges.
type instrumentKey struct {
	exchange string
	symbol   string
}

func (e *Engine) instrumentOf(exch, symbol string) instrumentKey {
	if exch == "" {
		exch = e.cfg.Exchange.InstrumentExchange
	}
	return instrumentKey{exchange: exch, symbol: symbol}
}

func (k TrailKey) instrument() instrumentKey {
	return instrumentKey{exchange: k.Exchange, symbol: k.Symbol}
}

func (e *Engine) tradingAllowed() bool {
	if e.Breached() {
		return false
	}
	return e.hours.IsOpen(e.clock.Now())
}

// Breached reports whether the breaker has fired in this process.
func (e *Engine) Breached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.breached
}

// Trails returns a copy of every tracked trail ordered by symbol, exchange
// and order id.
func (e *Engine) Trails() []TrailState {
	e.mu.Lock()
	out := make([]TrailState, 0, len(e.trails))
	for _, tr := range e.trails {
		out = append(out, *tr)
	}
	e.mu.Unlock()
	sortTrails(out)
	return out
}

func (e *Engine) trailsFor(inst instrumentKey) []TrailState {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []TrailState
	for key, tr := range e.trails {
		if key.instrument() == inst {
			out = append(out, *tr)
		}
	}
	sortTrails(out)
	return out
}

// Subscribed returns the tokens currently on the feed.
func (e *Engine) Subscribed() []uint32 {
	e.mu.Lock()
	out := make([]uint32, 0, len(e.subscribed))
	for tok := range e.subscribed {
		out = append(out, tok)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortTrails(trails []TrailState) {
	sort.Slice(trails, func(i, j int) bool {
		if trails[i].Symbol != trails[j].Symbol {
			return trails[i].Symbol < trails[j].Symbol
		}
		if trails[i].Exchange != trails[j].Exchange {
			return trails[i].Exchange < trails[j].Exchange
		}
		return trails[i].OrderID < trails[j].OrderID
	})
}

func (e *Engine) record(ctx context.Context, ev journal.Event) {
	ev.RunID = e.runID
	if ev.Time.IsZero() {
		ev.Time = e.clock.Now()
	}
	if err := e.journal.Record(context.WithoutCancel(ctx), ev); err != nil {
		e.logEntry().WithError(err).WithField("kind", ev.Kind).Warn("Failed to journal event.")
	}
}
