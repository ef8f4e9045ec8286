// README: Prometheus counters for lifecycle transitions, route estimates and driver suggestions.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector methods are safe on a nil receiver so services can run without metrics.
type Collector struct {
	transitions *prometheus.CounterVec
	routes      *prometheus.CounterVec
	suggestions *prometheus.CounterVec
}

func New(reg prometheus.Registerer) (*Collector, error) {
	transitions, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "delivery_transitions_total",
		Help: "Delivery lifecycle transitions by outcome.",
	}, []string{"transition", "result"})
	if err != nil {
		return nil, err
	}
	routes, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "route_estimates_total",
		Help: "Route estimates by source (google_maps or fallback).",
	}, []string{"source"})
	if err != nil {
		return nil, err
	}
	suggestions, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "driver_suggestions_total",
		Help: "Bookings by driver suggestion outcome.",
	}, []string{"outcome"})
	if err != nil {
		return nil, err
	}
	return &Collector{transitions: transitions, routes: routes, suggestions: suggestions}, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	cv := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(cv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return cv, nil
}

func (c *Collector) Transition(name, result string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(name, result).Inc()
}

func (c *Collector) RouteEstimated(source string) {
	if c == nil {
		return
	}
	c.routes.WithLabelValues(source).Inc()
}

func (c *Collector) Suggestion(found bool) {
	if c == nil {
		return
	}
	outcome := "none"
	if found {
		outcome = "suggested"
	}
	c.suggestions.WithLabelValues(outcome).Inc()
}
