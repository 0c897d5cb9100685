package telemetry

import (
	"go.uber.org/zap"
)

// CategorySwaps is the category of every swaps event
const CategorySwaps = "swaps"

const (
	EventQuotesRequested   = "Quotes Requested"
	EventNoQuotesAvailable = "No Quotes Available"
	EventQuotesReceived    = "Quotes Received"
	EventSwapStarted       = "Swap Started"
)

// Event is one telemetry record. The summary record of a pair carries only
// the name and category; the detailed record adds Properties and sets
// ExcludeMetricsID so it is not joined to the user's metrics id.
type Event struct {
	Name             string
	Category         string
	Properties       map[string]any
	ExcludeMetricsID bool
}

// Sink receives telemetry events. Implementations must not block.
type Sink interface {
	Emit(event Event)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(Event)

func (f SinkFunc) Emit(event Event) { f(event) }

// Emitter fans events out to its sinks. A misbehaving sink never fails the caller.
type Emitter struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewEmitter creates an emitter over the given sinks
func NewEmitter(logger *zap.Logger, sinks ...Sink) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{sinks: sinks, logger: logger}
}

// Emit dispatches the summary record followed by the detailed record
func (e *Emitter) Emit(name string, properties map[string]any) {
	e.dispatch(Event{Name: name, Category: CategorySwaps})
	e.dispatch(Event{
		Name:             name,
		Category:         CategorySwaps,
		Properties:       properties,
		ExcludeMetricsID: true,
	})
}

func (e *Emitter) dispatch(event Event) {
	for _, sink := range e.sinks {
		e.safeEmit(sink, event)
	}
}

func (e *Emitter) safeEmit(sink Sink, event Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("telemetry sink panicked", zap.String("event", event.Name), zap.Any("panic", r))
		}
	}()
	sink.Emit(event)
}
