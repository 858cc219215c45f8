package diagnostics

import (
	"log/slog"
	"sync"
)

// Lifecycle event names recorded for general (level 1) messages.
const (
	EventCreated   = "created"
	EventDestroyed = "destroyed"
)

// Sink receives message lifecycle events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Record(eventName, messageID, sourceName, messageType string)
}

// SlogSink records lifecycle events through a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink backed by the given logger. A nil logger falls
// back to slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Record logs the lifecycle event at info level.
func (s *SlogSink) Record(eventName, messageID, sourceName, messageType string) {
	s.logger.Info("message lifecycle",
		"event", eventName,
		"messageId", messageID,
		"source", sourceName,
		"messageType", messageType,
	)
}

// NopSink discards all lifecycle events.
type NopSink struct{}

// Record does nothing.
func (NopSink) Record(eventName, messageID, sourceName, messageType string) {}

var (
	defaultMu   sync.RWMutex
	defaultSink Sink = NewSlogSink(nil)
)

// Default returns the process-wide lifecycle sink.
func Default() Sink {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultSink
}

// SetDefault replaces the process-wide lifecycle sink. A nil sink is ignored.
func SetDefault(s Sink) {
	if s == nil {
		return
	}
	defaultMu.Lock()
	defaultSink = s
	defaultMu.Unlock()
}
