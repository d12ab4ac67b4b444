// Package metrics exposes Prometheus collectors for the protection engine.
//
//   - slguard_protections_total{result}   placed|adopted|failed|skipped protective orders
//   - slguard_trail_steps_total{result}   trail modifications ok|failed
//   - slguard_active_trails               trail states currently tracked
//   - slguard_subscribed_tokens           tokens on the live feed
//   - slguard_total_pnl                   last aggregate PnL seen by the breaker
//   - slguard_breaker_tripped             1 once the daily breaker fired
//   - slguard_square_offs_total{result}   flatten orders ok|failed
//   - slguard_poll_errors_total           failed order/position snapshots
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Protections      *prometheus.CounterVec
	TrailSteps       *prometheus.CounterVec
	ActiveTrails     prometheus.Gauge
	SubscribedTokens prometheus.Gauge
	TotalPnL         prometheus.Gauge
	BreakerTripped   prometheus.Gauge
	SquareOffs       *prometheus.CounterVec
	PollErrors       prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Protections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slguard_protections_total",
			Help: "Protective stop orders by result.",
		}, []string{"result"}),
		TrailSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slguard_trail_steps_total",
			Help: "Trailing stop modifications by result.",
		}, []string{"result"}),
		ActiveTrails: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slguard_active_trails",
			Help: "Trail states currently tracked.",
		}),
		SubscribedTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slguard_subscribed_tokens",
			Help: "Instrument tokens subscribed on the tick stream.",
		}),
		TotalPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slguard_total_pnl",
			Help: "Aggregate PnL last evaluated by the breaker.",
		}),
		BreakerTripped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slguard_breaker_tripped",
			Help: "1 once the daily PnL breaker has fired.",
		}),
		SquareOffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slguard_square_offs_total",
			Help: "Flatten orders submitted by the breaker, by result.",
		}, []string{"result"}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slguard_poll_errors_total",
			Help: "Order/position snapshots that failed.",
		}),
	}
	m.registry.MustRegister(
		m.Protections, m.TrailSteps, m.ActiveTrails, m.SubscribedTokens,
		m.TotalPnL, m.BreakerTripped, m.SquareOffs, m.PollErrors,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
