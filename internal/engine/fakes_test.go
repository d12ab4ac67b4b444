package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"slguard/internal/config"
	"slguard/internal/exchange"
	"slguard/internal/logger"
	"slguard/internal/models"
)

type modifyCall struct {
	OrderID string
	Req     models.ModifyRequest
}

type fakeBroker struct {
	mu          sync.Mutex
	orders      []models.Order
	positions   []models.Position
	instruments []models.Instrument
	placed      []models.OrderRequest
	modified    []modifyCall
	cancelled   []string
	logouts     int
	seq         int

	orderCalls    int
	positionCalls int

	placeErr  map[string]error
	modifyErr error

	// When placeGate is set, protective placements announce themselves on
	// placeStarted and wait for the gate before reaching the book.
	placeGate    chan struct{}
	placeStarted chan struct{}
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{placeErr: map[string]error{}}
}

func (b *fakeBroker) ListOrders(context.Context) ([]models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderCalls++
	return append([]models.Order(nil), b.orders...), nil
}

func (b *fakeBroker) ListPositions(context.Context) ([]models.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positionCalls++
	return append([]models.Position(nil), b.positions...), nil
}

func (b *fakeBroker) ListInstruments(_ context.Context, exch string) ([]models.Instrument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Instrument
	for _, inst := range b.instruments {
		if inst.Exchange == exch {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (b *fakeBroker) PlaceOrder(_ context.Context, req models.OrderRequest) (string, error) {
	b.mu.Lock()
	gate := b.placeGate
	b.mu.Unlock()
	if gate != nil && req.Kind == models.OrderKindProtective {
		b.placeStarted <- struct{}{}
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.placeErr[req.Symbol]; err != nil {
		return "", err
	}
	b.seq++
	b.placed = append(b.placed, req)

	id := fmt.Sprintf("mk-%d", b.seq)
	status := models.OrderStatusComplete
	if req.Type == models.OrderTypeStop {
		id = fmt.Sprintf("sl-%d", b.seq)
		status = models.OrderStatusTriggerPending
	}
	b.orders = append(b.orders, models.Order{
		ID:           id,
		Symbol:       req.Symbol,
		Exchange:     req.Exchange,
		Side:         req.Side,
		Type:         req.Type,
		Product:      req.Product,
		Status:       status,
		Kind:         req.Kind,
		Tag:          req.Kind.Tag(),
		Quantity:     req.Quantity,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
		Timestamp:    t0.Add(time.Hour),
	})
	return id, nil
}

func (b *fakeBroker) ModifyOrder(_ context.Context, orderID string, req models.ModifyRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modified = append(b.modified, modifyCall{OrderID: orderID, Req: req})
	if b.modifyErr != nil {
		return b.modifyErr
	}
	for i := range b.orders {
		if b.orders[i].ID == orderID {
			b.orders[i].TriggerPrice = req.TriggerPrice
			b.orders[i].Price = req.Price
			return nil
		}
	}
	return errors.New("order not found")
}

func (b *fakeBroker) CancelOrder(_ context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled = append(b.cancelled, orderID)
	b.setStatusLocked(orderID, models.OrderStatusCancelled)
	return nil
}

func (b *fakeBroker) Logout(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logouts++
	return nil
}

func (b *fakeBroker) setStatusLocked(orderID string, status models.OrderStatus) {
	for i := range b.orders {
		if b.orders[i].ID == orderID {
			b.orders[i].Status = status
		}
	}
}

func (b *fakeBroker) setStatus(orderID string, status models.OrderStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStatusLocked(orderID, status)
}

func (b *fakeBroker) addOrders(orders ...models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = append(b.orders, orders...)
}

func (b *fakeBroker) setPositions(positions ...models.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = positions
}

func (b *fakeBroker) order(id string) models.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.ID == id {
			return o
		}
	}
	return models.Order{}
}

func (b *fakeBroker) placedRequests() []models.OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.OrderRequest(nil), b.placed...)
}

func (b *fakeBroker) modifyCalls() []modifyCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]modifyCall(nil), b.modified...)
}

type fakeStream struct {
	mu         sync.Mutex
	events     chan exchange.Event
	subscribes [][]uint32
	modes      []exchange.TickMode
	connected  bool
	closed     bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan exchange.Event, 16)}
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *fakeStream) Subscribe(_ context.Context, tokens []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribes = append(s.subscribes, append([]uint32(nil), tokens...))
	return nil
}

func (s *fakeStream) SetMode(_ context.Context, mode exchange.TickMode, _ []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes = append(s.modes, mode)
	return nil
}

func (s *fakeStream) Events() <-chan exchange.Event { return s.events }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) subscribeCalls() [][]uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]uint32(nil), s.subscribes...)
}

type fakeHalt struct {
	mu     sync.Mutex
	halted bool
}

func (h *fakeHalt) Halted() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.halted, nil
}

func (h *fakeHalt) Halt() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.halted = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Exchange: config.ExchangeConfig{InstrumentExchange: "NFO"},
		Protection: config.ProtectionConfig{
			StopBuffer:           10,
			LimitBuffer:          2,
			TickSize:             0.05,
			TrailStartMultiplier: 2,
		},
		Risk: config.RiskConfig{
			MaxDailyLoss:      -5000,
			BreakerMode:       config.BreakerModeTick,
			BreakerInterval:   10 * time.Second,
			SquareOffCooldown: time.Minute,
			HaltFile:          "HALT_TRADING.txt",
		},
		Market: config.MarketConfig{Open: "09:15", Close: "15:30", UTCOffset: "+05:30"},
		Runtime: config.RuntimeConfig{
			PollInterval:     10 * time.Second,
			FeedSyncInterval: 2 * time.Second,
		},
	}
}

type harness struct {
	engine *Engine
	broker *fakeBroker
	stream *fakeStream
	halt   *fakeHalt
	clock  *clockwork.FakeClock
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		broker: newFakeBroker(),
		stream: newFakeStream(),
		halt:   &fakeHalt{},
		clock:  clockwork.NewFakeClockAt(t0),
	}
	e, err := New(cfg, Deps{
		Client: h.broker,
		Stream: h.stream,
		Halt:   h.halt,
		Clock:  h.clock,
		RunID:  "test-run",
	}, logger.Discard())
	require.NoError(t, err)
	h.engine = e
	return h
}

// blockUntil waits until exactly n timers and tickers are waiting on the
// fake clock.
func (h *harness) blockUntil(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, n), "waiting for %d clock waiters", n)
}

func entryOrder(id, symbol string, side models.OrderSide, qty int, price float64, minute int) models.Order {
	return models.Order{
		ID:             id,
		Symbol:         symbol,
		Exchange:       "NFO",
		Side:           side,
		Type:           models.OrderTypeMarket,
		Product:        "MIS",
		Status:         models.OrderStatusComplete,
		Kind:           models.OrderKindManual,
		Quantity:       qty,
		FilledQuantity: qty,
		AveragePrice:   price,
		Timestamp:      t0.Add(time.Duration(minute) * time.Minute),
	}
}

func position(symbol string, qty int, pnl float64, token uint32) models.Position {
	return models.Position{
		Symbol:          symbol,
		Exchange:        "NFO",
		Product:         "MIS",
		Quantity:        qty,
		PnL:             pnl,
		InstrumentToken: token,
	}
}

func ticks(token uint32, prices ...float64) []models.Tick {
	out := make([]models.Tick, 0, len(prices))
	for _, p := range prices {
		out = append(out, models.Tick{Token: token, LastPrice: p})
	}
	return out
}
