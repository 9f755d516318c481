package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Risbinrh/OMR-Service/internal/logger"
)

// EvaluationEvent describes one step in a sheet evaluation's lifecycle.
type EvaluationEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id"`
	ImageURL       string                 `json:"image_url,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time,omitempty"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType classifies evaluation lifecycle events.
type EventType string

const (
	EvaluationStarted   EventType = "evaluation_started"
	EvaluationCompleted EventType = "evaluation_completed"
	EvaluationFailed    EventType = "evaluation_failed"
	SheetFetched        EventType = "sheet_fetched"
	SheetFetchFailed    EventType = "sheet_fetch_failed"
	FallbackTriggered   EventType = "fallback_triggered"
)

// Observer consumes evaluation events.
type Observer interface {
	OnEvent(ctx context.Context, event EvaluationEvent)
	Name() string
}

// Subject publishes evaluation events to subscribed observers.
type Subject interface {
	Subscribe(observer Observer)
	Notify(ctx context.Context, event EvaluationEvent)
}

// EventSubject is the default Subject. Notification is synchronous and
// in subscription order; observers must not block.
type EventSubject struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewEventSubject() *EventSubject {
	return &EventSubject{}
}

func (s *EventSubject) Subscribe(observer Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

func (s *EventSubject) Notify(ctx context.Context, event EvaluationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.observers {
		o.OnEvent(ctx, event)
	}
}

// LoggingObserver writes every event to the structured log.
type LoggingObserver struct{}

func NewLoggingObserver() *LoggingObserver {
	return &LoggingObserver{}
}

func (o *LoggingObserver) OnEvent(_ context.Context, event EvaluationEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"request_id": event.RequestID,
	}
	if event.ImageURL != "" {
		fields["image_url"] = event.ImageURL
	}
	if event.ProcessingTime > 0 {
		fields["processing_time_ms"] = event.ProcessingTime.Milliseconds()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := logger.WithFields(fields)
	switch event.EventType {
	case EvaluationFailed, SheetFetchFailed:
		entry.Error(string(event.EventType))
	case SheetFetched:
		entry.Debug(string(event.EventType))
	case FallbackTriggered:
		entry.Warn(string(event.EventType))
	default:
		entry.Info(string(event.EventType))
	}
}

func (o *LoggingObserver) Name() string {
	return "logging_observer"
}

// MetricsObserver keeps running counters over evaluations.
type MetricsObserver struct {
	mu             sync.RWMutex
	total          int64
	succeeded      int64
	failed         int64
	degraded       int64
	processingTime time.Duration
}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func (o *MetricsObserver) OnEvent(_ context.Context, event EvaluationEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch event.EventType {
	case EvaluationCompleted:
		o.total++
		o.succeeded++
		o.processingTime += event.ProcessingTime
	case EvaluationFailed:
		o.total++
		o.failed++
		o.processingTime += event.ProcessingTime
	case FallbackTriggered:
		o.degraded++
	}
}

func (o *MetricsObserver) Name() string {
	return "metrics_observer"
}

// Snapshot returns the counters accumulated so far.
func (o *MetricsObserver) Snapshot() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := time.Duration(0)
	if o.total > 0 {
		avg = o.processingTime / time.Duration(o.total)
	}
	return map[string]interface{}{
		"total_evaluations":      o.total,
		"successful_evaluations": o.succeeded,
		"failed_evaluations":     o.failed,
		"degraded_evaluations":   o.degraded,
		"avg_processing_time_ms": avg.Milliseconds(),
	}
}
