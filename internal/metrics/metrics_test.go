package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.Transition("accept", "ok")
	c.Transition("accept", "ok")
	c.Transition("accept", "already_assigned")
	c.RouteEstimated("fallback")
	c.Suggestion(true)
	c.Suggestion(false)

	expected := `
# HELP delivery_transitions_total Delivery lifecycle transitions by outcome.
# TYPE delivery_transitions_total counter
delivery_transitions_total{result="already_assigned",transition="accept"} 1
delivery_transitions_total{result="ok",transition="accept"} 2
`
	require.NoError(t, testutil.CollectAndCompare(c.transitions, strings.NewReader(expected)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.routes.WithLabelValues("fallback")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.suggestions.WithLabelValues("none")))
}

func TestNew_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	first.RouteEstimated("google_maps")
	second.RouteEstimated("google_maps")
	require.Equal(t, 2.0, testutil.ToFloat64(first.routes.WithLabelValues("google_maps")))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.Transition("start", "ok")
	c.RouteEstimated("fallback")
	c.Suggestion(true)
}
