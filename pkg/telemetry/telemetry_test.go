package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmitterSendsSummaryThenDetailed(t *testing.T) {
	var got []Event
	emitter := NewEmitter(nil, SinkFunc(func(e Event) { got = append(got, e) }))

	emitter.Emit(EventQuotesRequested, map[string]any{"token_from": "ETH"})

	require.Len(t, got, 2)
	require.Equal(t, Event{Name: EventQuotesRequested, Category: CategorySwaps}, got[0])
	require.Equal(t, EventQuotesRequested, got[1].Name)
	require.True(t, got[1].ExcludeMetricsID)
	require.Equal(t, "ETH", got[1].Properties["token_from"])
}

func TestEmitterSurvivesPanickingSink(t *testing.T) {
	var delivered int
	emitter := NewEmitter(zap.NewNop(),
		SinkFunc(func(Event) { panic("boom") }),
		SinkFunc(func(Event) { delivered++ }),
	)

	require.NotPanics(t, func() { emitter.Emit(EventSwapStarted, nil) })
	require.Equal(t, 2, delivered)
}

func TestPrometheusSinkCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	emitter := NewEmitter(nil, sink)
	emitter.Emit(EventQuotesReceived, map[string]any{"available_quotes": 3})
	emitter.Emit(EventQuotesReceived, nil)

	require.Equal(t, float64(2), testutil.ToFloat64(sink.Counter(EventQuotesReceived, false)))
	require.Equal(t, float64(2), testutil.ToFloat64(sink.Counter(EventQuotesReceived, true)))

	_, err = NewPrometheusSink(reg)
	require.Error(t, err, "registering twice must fail")
}

func TestLogSinkWritesProperties(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	NewEmitter(nil, sink).Emit(EventNoQuotesAvailable, map[string]any{"slippage": 2.0})

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, EventNoQuotesAvailable, entries[0].Message)
	require.NotContains(t, entries[0].ContextMap(), "properties")
	require.Contains(t, entries[1].ContextMap(), "properties")
}
