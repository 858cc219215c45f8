package contracts

import (
	"sync"
	"sync/atomic"

	"github.com/scopehal/halbus/diagnostics"
)

// Message levels. Most messages are level 1; high-rate traffic that only a
// couple of modules care about (camera frames, pointer input) uses the other
// levels so uninterested modules can skip it quickly. Only LevelGeneral
// messages record lifecycle events.
const (
	LevelGeneral = 1
	LevelFrame   = 2
	LevelInput   = 3
)

// Message is the unit of communication between modules. Recipients append
// errors and responses while the dispatcher tracks how many of them are
// still processing; when the last one releases the message it is finalized.
type Message struct {
	Envelope

	data      any
	sync      bool
	level     int
	finalizer func()
	sink      diagnostics.Sink

	mu        sync.Mutex
	errors    []MessageError
	responses []MessageResponse

	pending atomic.Int32
}

// MessageOption configures a Message at construction.
type MessageOption func(*Message)

// WithData sets the message payload. Recipients must treat it as read-only.
func WithData(data any) MessageOption {
	return func(m *Message) {
		m.data = data
	}
}

// WithSynchronous marks the message as a queue barrier: the dispatcher must
// finalize it, and everything queued ahead of it, before admitting any
// message queued after it.
func WithSynchronous(synchronous bool) MessageOption {
	return func(m *Message) {
		m.sync = synchronous
	}
}

// WithLevel sets the message level.
func WithLevel(level int) MessageOption {
	return func(m *Message) {
		m.level = level
	}
}

// WithFinalizer sets the completion callback invoked, without arguments,
// when the message is finalized.
func WithFinalizer(finalizer func()) MessageOption {
	return func(m *Message) {
		m.finalizer = finalizer
	}
}

// WithSink overrides the lifecycle sink for this message. Defaults to the
// process-wide sink from the diagnostics package.
func WithSink(sink diagnostics.Sink) MessageOption {
	return func(m *Message) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// NewMessage creates a message of the given type from the given source.
// Defaults: no payload, asynchronous, LevelGeneral, no completion callback.
func NewMessage(messageType string, source Module, options ...MessageOption) *Message {
	m := &Message{
		Envelope: NewEnvelope(messageType, source),
		level:    LevelGeneral,
		sink:     diagnostics.Default(),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.level == LevelGeneral {
		m.sink.Record(diagnostics.EventCreated, m.GetID(), m.GetSourceName(), m.GetType())
	}

	return m
}

// NewSyncMessage creates a barrier message: type "sync", synchronous, no
// payload. Its sole purpose is to hold the queue until everything ahead of
// it has finalized. Use sparingly.
func NewSyncMessage(source Module) *Message {
	return NewMessage(TypeSync, source, WithSynchronous(true))
}

// GetData returns the message payload.
func (m *Message) GetData() any {
	return m.data
}

// GetSynchronous reports whether the message is a queue barrier.
func (m *Message) GetSynchronous() bool {
	return m.sync
}

// GetLevel returns the message level.
func (m *Message) GetLevel() int {
	return m.level
}

// AddError records a recipient's problem with the message.
func (m *Message) AddError(err MessageError) {
	m.mu.Lock()
	m.errors = append(m.errors, err)
	m.mu.Unlock()
}

// AddResponse records a recipient's answer to the message.
func (m *Message) AddResponse(resp MessageResponse) {
	m.mu.Lock()
	m.responses = append(m.responses, resp)
	m.mu.Unlock()
}

// HasErrors reports whether any recipient recorded an error.
func (m *Message) HasErrors() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors) > 0
}

// HasResponses reports whether any recipient recorded a response.
func (m *Message) HasResponses() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.responses) > 0
}

// Errors returns a copy of the recorded errors in append order.
func (m *Message) Errors() []MessageError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MessageError, len(m.errors))
	copy(out, m.errors)
	return out
}

// Responses returns a copy of the recorded responses in append order.
func (m *Message) Responses() []MessageResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MessageResponse, len(m.responses))
	copy(out, m.responses)
	return out
}

// Retain increments the pending count. The dispatcher calls it once per
// recipient before delivery begins.
func (m *Message) Retain() {
	m.pending.Add(1)
}

// Release decrements the pending count and reports whether this release
// dropped it to zero. The decrement and the zero check are a single atomic
// step, so among concurrent releasers exactly one observes true; that caller
// must then invoke Finalize.
func (m *Message) Release() bool {
	return m.pending.Add(-1) == 0
}

// PendingCount returns the number of recipients still processing.
func (m *Message) PendingCount() int {
	return int(m.pending.Load())
}

// Finalize completes the message: a LevelGeneral message records a destroyed
// lifecycle event, then the completion callback, if any, is invoked and
// released. Finalize must be called exactly once, after the pending count
// has reached zero; preventing a second call is the caller's responsibility.
func (m *Message) Finalize() {
	if m.level == LevelGeneral {
		m.sink.Record(diagnostics.EventDestroyed, m.GetID(), m.GetSourceName(), m.GetType())
	}

	if m.finalizer != nil {
		finalizer := m.finalizer
		m.finalizer = nil
		finalizer()
	}
}
