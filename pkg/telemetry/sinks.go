package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// LogSink writes events to a zap logger at info level
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("telemetry")}
}

func (s *LogSink) Emit(event Event) {
	fields := []zap.Field{
		zap.String("category", event.Category),
		zap.Bool("exclude_metrics_id", event.ExcludeMetricsID),
	}
	if len(event.Properties) > 0 {
		fields = append(fields, zap.Any("properties", event.Properties))
	}
	s.logger.Info(event.Name, fields...)
}

// swaps_telemetry_events_total
//
// counter of emitted swaps telemetry events
//
// Has the following labels:
// * event - the event name
// * detailed - whether the record carried properties
const eventsTotalMetricName = "swaps_telemetry_events_total"

// PrometheusSink counts events per name
type PrometheusSink struct {
	events *prometheus.CounterVec
}

// NewPrometheusSink registers the events counter with reg
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: eventsTotalMetricName,
			Help: "Total number of swaps telemetry events emitted",
		},
		[]string{"event", "detailed"},
	)
	if err := reg.Register(events); err != nil {
		return nil, err
	}
	return &PrometheusSink{events: events}, nil
}

func (s *PrometheusSink) Emit(event Event) {
	s.events.WithLabelValues(event.Name, strconv.FormatBool(event.ExcludeMetricsID)).Inc()
}

// Counter exposes the underlying counter for a label pair
func (s *PrometheusSink) Counter(name string, detailed bool) prometheus.Counter {
	return s.events.WithLabelValues(name, strconv.FormatBool(detailed))
}
