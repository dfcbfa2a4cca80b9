package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	m := New()

	m.FeedFetches.WithLabelValues(StatusSuccess).Inc()
	m.FeedFetches.WithLabelValues(StatusError).Add(2)
	m.FeedEvents.Set(12)
	m.CrossRefRuns.WithLabelValues("json").Inc()
	m.CrossRefMatch.Observe(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedFetches.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedFetches.WithLabelValues(StatusError)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.FeedEvents))

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["coursecal_feed_fetches_total"])
	assert.True(t, names["coursecal_crossref_matched_events"])
	assert.True(t, names["go_goroutines"])
}

func TestNewIsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.FeedEvents.Set(5)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FeedEvents))
}
