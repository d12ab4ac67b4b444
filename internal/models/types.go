package models

import (
	"strings"
	"time"
)

type OrderSide string
type OrderType string
type OrderStatus string
type OrderKind string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"

	OrderTypeMarket  OrderType = "MARKET"
	OrderTypeLimit   OrderType = "LIMIT"
	OrderTypeStop    OrderType = "SL"
	OrderTypeStopMkt OrderType = "SL-M"

	OrderStatusOpen           OrderStatus = "OPEN"
	OrderStatusTriggerPending OrderStatus = "TRIGGER PENDING"
	OrderStatusComplete       OrderStatus = "COMPLETE"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusRejected       OrderStatus = "REJECTED"

	// OrderKind is the provenance of an order. Only protective and square-off
	// orders are owned by this process; everything else is treated as manual.
	OrderKindManual     OrderKind = "MANUAL"
	OrderKindProtective OrderKind = "PROTECTIVE"
	OrderKindSquareOff  OrderKind = "SQUARE_OFF"
)

const (
	tagProtective = "auto-sl"
	tagSquareOff  = "squareoff"
)

// Tag returns the broker-side tag that marks orders of this kind.
func (k OrderKind) Tag() string {
	switch k {
	case OrderKindProtective:
		return tagProtective
	case OrderKindSquareOff:
		return tagSquareOff
	default:
		return ""
	}
}

// KindFromTag maps a broker order tag back to its provenance.
func KindFromTag(tag string) OrderKind {
	switch strings.TrimSpace(tag) {
	case tagProtective:
		return OrderKindProtective
	case tagSquareOff:
		return OrderKindSquareOff
	default:
		return OrderKindManual
	}
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusComplete || s == OrderStatusCancelled || s == OrderStatusRejected
}

type Order struct {
	ID             string      `json:"id"`
	Symbol         string      `json:"symbol"`
	Exchange       string      `json:"exchange"`
	Side           OrderSide   `json:"side"`
	Type           OrderType   `json:"type"`
	Product        string      `json:"product"`
	Status         OrderStatus `json:"status"`
	Kind           OrderKind   `json:"kind"`
	Tag            string      `json:"tag"`
	Quantity       int         `json:"quantity"`
	FilledQuantity int         `json:"filled_quantity"`
	AveragePrice   float64     `json:"average_price"`
	Price          float64     `json:"price"`
	TriggerPrice   float64     `json:"trigger_price"`
	Timestamp      time.Time   `json:"timestamp"`
}

// IsLiveProtective reports whether the order is a system stop still waiting
// for its trigger.
func (o Order) IsLiveProtective() bool {
	return o.Kind == OrderKindProtective && o.Status == OrderStatusTriggerPending
}

type Fill struct {
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// FillFromOrder converts a completed order into a fill. The second return is
// false for orders that have not completed.
func FillFromOrder(o Order) (Fill, bool) {
	if o.Status != OrderStatusComplete {
		return Fill{}, false
	}
	qty := o.FilledQuantity
	if qty == 0 {
		qty = o.Quantity
	}
	if qty <= 0 {
		return Fill{}, false
	}
	return Fill{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Quantity:  qty,
		Price:     o.AveragePrice,
		Timestamp: o.Timestamp,
	}, true
}

type Position struct {
	Symbol          string  `json:"symbol"`
	Exchange        string  `json:"exchange"`
	Product         string  `json:"product"`
	Quantity        int     `json:"quantity"`
	AveragePrice    float64 `json:"average_price"`
	LastPrice       float64 `json:"last_price"`
	PnL             float64 `json:"pnl"`
	InstrumentToken uint32  `json:"instrument_token"`
}

type Instrument struct {
	Token    uint32  `json:"token"`
	Exchange string  `json:"exchange"`
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	TickSize float64 `json:"tick_size"`
	LotSize  int     `json:"lot_size"`
}

type Tick struct {
	Token     uint32    `json:"token"`
	LastPrice float64   `json:"last_price"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderRequest struct {
	Exchange     string
	Symbol       string
	Side         OrderSide
	Type         OrderType
	Product      string
	Quantity     int
	Price        float64
	TriggerPrice float64
	Kind         OrderKind
}

type ModifyRequest struct {
	Type         OrderType
	Price        float64
	TriggerPrice float64
}

func OppositeSide(side OrderSide) OrderSide {
	if side == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}
