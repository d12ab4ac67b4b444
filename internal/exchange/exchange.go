package exchange

import (
	"context"
	"errors"
	"net"

	"slguard/internal/models"
)

type EventType string

const (
	EventTypeTicks     EventType = "Ticks"
	EventTypeReconnect EventType = "Reconnect"
)

type Event struct {
	Type  EventType
	Ticks []models.Tick
}

type TickMode string

const (
	TickModeLTP   TickMode = "ltp"
	TickModeQuote TickMode = "quote"
	TickModeFull  TickMode = "full"
)

// Client is the request/response half of the broker.
type Client interface {
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListPositions(ctx context.Context) ([]models.Position, error)
	ListInstruments(ctx context.Context, exchange string) ([]models.Instrument, error)
	PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error)
	ModifyOrder(ctx context.Context, orderID string, req models.ModifyRequest) error
	CancelOrder(ctx context.Context, orderID string) error
	Logout(ctx context.Context) error
}

// TickStream is the push half: a live last-traded-price feed keyed by
// instrument token.
type TickStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, tokens []uint32) error
	SetMode(ctx context.Context, mode TickMode, tokens []uint32) error
	Events() <-chan Event
	Close() error
}

// IsTransient reports whether a broker error is expected to clear on its own,
// such as a network failure or a rate limit.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
