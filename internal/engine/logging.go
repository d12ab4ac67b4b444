package engine

import (
	"slguard/internal/exchange"

	"github.com/sirupsen/logrus"
)

func (e *Engine) logEntry() *logrus.Entry {
	return e.log.WithComponent("engine")
}

func (e *Engine) symbolEntry(exch, symbol string) *logrus.Entry {
	return e.log.WithSymbol(symbol).WithFields(logrus.Fields{
		"component": "engine",
		"exchange":  exch,
	})
}

func (e *Engine) orderEntry(exch, symbol, orderID string) *logrus.Entry {
	return e.log.WithOrderID(orderID).WithFields(logrus.Fields{
		"component": "engine",
		"exchange":  exch,
		"symbol":    symbol,
	})
}

func (e *Engine) trailEntry(tr *TrailState) *logrus.Entry {
	return e.orderEntry(tr.Exchange, tr.Symbol, tr.OrderID).WithFields(logrus.Fields{
		"qty":   tr.Quantity,
		"entry": tr.EntryPrice,
		"step":  tr.TrailStepCount,
	})
}

// withBrokerError tags err with whether it is expected to clear by the next
// cycle.
func withBrokerError(entry *logrus.Entry, err error) *logrus.Entry {
	return entry.WithError(err).WithField("transient", exchange.IsTransient(err))
}

func (e *Engine) brokerErrorEntry(err error) *logrus.Entry {
	return withBrokerError(e.logEntry(), err)
}
