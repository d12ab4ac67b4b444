// Package journal keeps an audit trail of every protective decision so a
// session can be reconstructed after the fact.
package journal

import (
	"context"
	"time"
)

type Kind string

const (
	KindProtectionPlaced  Kind = "protection_placed"
	KindProtectionAdopted Kind = "protection_adopted"
	KindTrailActivated    Kind = "trail_activated"
	KindTrailStepped      Kind = "trail_stepped"
	KindTrailRemoved      Kind = "trail_removed"
	KindBreach            Kind = "breach"
	KindSquareOff         Kind = "square_off"
	KindHalted            Kind = "halted"
)

type Event struct {
	ID      string
	RunID   string
	Time    time.Time
	Kind    Kind
	Symbol  string
	OrderID string
	Qty     int
	Entry   float64
	Trigger float64
	Limit   float64
	Step    int
	Price   float64
	PnL     float64
	Detail  string
}

type Journal interface {
	Record(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }
