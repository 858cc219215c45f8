package contracts

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scopehal/halbus/diagnostics"
)

type testModule struct {
	name string
}

func (m *testModule) Name() string {
	return m.name
}

// recordingSink captures lifecycle events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	event       string
	messageID   string
	source      string
	messageType string
}

func (s *recordingSink) Record(eventName, messageID, sourceName, messageType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{eventName, messageID, sourceName, messageType})
}

func (s *recordingSink) recorded() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedEvent, len(s.events))
	copy(out, s.events)
	return out
}

func TestNewMessage(t *testing.T) {
	source := &testModule{name: "camera"}

	t.Run("applies defaults", func(t *testing.T) {
		msg := NewMessage(TypeStart, source, WithSink(diagnostics.NopSink{}))

		assert.Equal(t, TypeStart, msg.GetType())
		assert.Equal(t, source, msg.GetSource())
		assert.Equal(t, "camera", msg.GetSourceName())
		assert.Nil(t, msg.GetData())
		assert.False(t, msg.GetSynchronous())
		assert.Equal(t, LevelGeneral, msg.GetLevel())
		assert.NotEmpty(t, msg.GetID())
		assert.Zero(t, msg.PendingCount())
		assert.False(t, msg.HasErrors())
		assert.False(t, msg.HasResponses())
	})

	t.Run("applies options", func(t *testing.T) {
		data := map[string]any{"path": "/cfg.xml"}
		msg := NewMessage(TypeNewParametersFile, source,
			WithData(data),
			WithSynchronous(true),
			WithLevel(LevelFrame),
			WithSink(diagnostics.NopSink{}),
		)

		assert.Equal(t, data, msg.GetData())
		assert.True(t, msg.GetSynchronous())
		assert.Equal(t, LevelFrame, msg.GetLevel())
	})

	t.Run("generates unique identities", func(t *testing.T) {
		a := NewMessage(TypeStart, source, WithSink(diagnostics.NopSink{}))
		b := NewMessage(TypeStart, source, WithSink(diagnostics.NopSink{}))

		assert.NotEqual(t, a.GetID(), b.GetID())
	})

	t.Run("records a created event for general messages", func(t *testing.T) {
		sink := &recordingSink{}
		msg := NewMessage(TypeStart, source, WithSink(sink))

		events := sink.recorded()
		assert.Len(t, events, 1)
		assert.Equal(t, diagnostics.EventCreated, events[0].event)
		assert.Equal(t, msg.GetID(), events[0].messageID)
		assert.Equal(t, "camera", events[0].source)
		assert.Equal(t, TypeStart, events[0].messageType)
	})

	t.Run("records nothing for other levels", func(t *testing.T) {
		sink := &recordingSink{}
		NewMessage(TypeStart, source, WithLevel(LevelFrame), WithSink(sink))

		assert.Empty(t, sink.recorded())
	})
}

func TestEnvelope(t *testing.T) {
	t.Run("source name is empty without a source", func(t *testing.T) {
		env := NewEnvelope(TypeStart, nil)

		assert.Nil(t, env.GetSource())
		assert.Equal(t, "", env.GetSourceName())
	})
}

func TestMessageCollectors(t *testing.T) {
	source := &testModule{name: "stage"}

	newQuiet := func() *Message {
		return NewMessage(TypeStart, source, WithSink(diagnostics.NopSink{}))
	}

	t.Run("appends errors in order", func(t *testing.T) {
		msg := newQuiet()
		msg.AddError(MessageError{Source: "a", Message: "first"})
		msg.AddError(MessageError{Source: "b", Message: "second"})

		assert.True(t, msg.HasErrors())
		errs := msg.Errors()
		assert.Len(t, errs, 2)
		assert.Equal(t, "a", errs[0].Source)
		assert.Equal(t, "b", errs[1].Source)
	})

	t.Run("appends responses in order", func(t *testing.T) {
		msg := newQuiet()
		msg.AddResponse(MessageResponse{Source: "a", Data: 1})
		msg.AddResponse(MessageResponse{Source: "b", Data: 2})

		assert.True(t, msg.HasResponses())
		resps := msg.Responses()
		assert.Len(t, resps, 2)
		assert.Equal(t, 1, resps[0].Data)
		assert.Equal(t, 2, resps[1].Data)
	})

	t.Run("accessors return copies", func(t *testing.T) {
		msg := newQuiet()
		msg.AddResponse(MessageResponse{Source: "a", Data: 1})

		resps := msg.Responses()
		resps[0] = MessageResponse{Source: "mutated"}

		assert.Equal(t, "a", msg.Responses()[0].Source)
	})

	t.Run("concurrent appends lose nothing", func(t *testing.T) {
		msg := newQuiet()
		const n = 50

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				msg.AddResponse(MessageResponse{Source: "worker", Data: nil})
				msg.AddError(MessageError{Source: "worker", Message: "busy"})
			}()
		}
		wg.Wait()

		assert.Len(t, msg.Responses(), n)
		assert.Len(t, msg.Errors(), n)
	})
}

func TestRetainRelease(t *testing.T) {
	source := &testModule{name: "focus"}

	t.Run("only the last release reports zero", func(t *testing.T) {
		msg := NewMessage(TypeStart, source, WithSink(diagnostics.NopSink{}))

		msg.Retain()
		msg.Retain()
		msg.Retain()
		assert.Equal(t, 3, msg.PendingCount())

		assert.False(t, msg.Release())
		assert.False(t, msg.Release())
		assert.True(t, msg.Release())
		assert.Zero(t, msg.PendingCount())
	})

	t.Run("exactly one concurrent release observes zero", func(t *testing.T) {
		msg := NewMessage(TypeStart, source, WithSink(diagnostics.NopSink{}))
		const n = 64

		for i := 0; i < n; i++ {
			msg.Retain()
		}

		zero := make(chan struct{}, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if msg.Release() {
					zero <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(zero)

		count := 0
		for range zero {
			count++
		}
		assert.Equal(t, 1, count)
	})
}

func TestFinalize(t *testing.T) {
	source := &testModule{name: "display"}

	t.Run("records a destroyed event and fires the callback", func(t *testing.T) {
		sink := &recordingSink{}
		calls := 0
		msg := NewMessage(TypeStart, source,
			WithSink(sink),
			WithFinalizer(func() { calls++ }),
		)

		msg.Finalize()

		assert.Equal(t, 1, calls)
		events := sink.recorded()
		assert.Len(t, events, 2)
		assert.Equal(t, diagnostics.EventCreated, events[0].event)
		assert.Equal(t, diagnostics.EventDestroyed, events[1].event)
		assert.Equal(t, msg.GetID(), events[1].messageID)
	})

	t.Run("works without a callback", func(t *testing.T) {
		msg := NewMessage(TypeStart, source, WithSink(diagnostics.NopSink{}))

		assert.NotPanics(t, func() { msg.Finalize() })
	})

	t.Run("records no destroyed event for other levels", func(t *testing.T) {
		sink := &recordingSink{}
		msg := NewMessage(TypeStart, source, WithLevel(LevelInput), WithSink(sink))

		msg.Finalize()

		assert.Empty(t, sink.recorded())
	})
}

func TestNewSyncMessage(t *testing.T) {
	source := &testModule{name: "core"}

	msg := NewSyncMessage(source)

	assert.Equal(t, TypeSync, msg.GetType())
	assert.True(t, msg.GetSynchronous())
	assert.Nil(t, msg.GetData())
	assert.Equal(t, LevelGeneral, msg.GetLevel())
}

func TestMessageError(t *testing.T) {
	t.Run("is fatal with a wrapped error", func(t *testing.T) {
		cause := errors.New("shutter stuck")
		err := MessageError{Source: "shutter", Message: "cannot open", Err: cause}

		assert.True(t, err.IsFatal())
		assert.Equal(t, "shutter: cannot open: shutter stuck", err.Error())
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("is advisory without one", func(t *testing.T) {
		err := MessageError{Source: "shutter", Message: "already open"}

		assert.False(t, err.IsFatal())
		assert.Equal(t, "shutter: already open", err.Error())
		assert.Nil(t, err.Unwrap())
	})
}
