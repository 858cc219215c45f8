package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scopehal/halbus/contracts"
)

// Recipient is a module that receives dispatched messages. HandleMessage is
// invoked once per message; a returned error is recorded on the message as a
// fatal MessageError on the recipient's behalf.
type Recipient interface {
	contracts.Module
	HandleMessage(ctx context.Context, msg *contracts.Message) error
}

type recipientFunc struct {
	name string
	fn   func(ctx context.Context, msg *contracts.Message) error
}

func (r recipientFunc) Name() string { return r.name }

func (r recipientFunc) HandleMessage(ctx context.Context, msg *contracts.Message) error {
	return r.fn(ctx, msg)
}

// RecipientFunc adapts a function to the Recipient interface.
func RecipientFunc(name string, fn func(ctx context.Context, msg *contracts.Message) error) Recipient {
	return recipientFunc{name: name, fn: fn}
}

// MiddlewareFunc wraps message delivery to a recipient.
type MiddlewareFunc func(ctx context.Context, msg *contracts.Message, next Recipient) error

// Dispatcher owns the delivery sequence. Messages are admitted in send
// order by a single pump goroutine; recipients process each message on
// their own goroutines.
type Dispatcher struct {
	mu         sync.Mutex
	recipients []Recipient
	started    bool
	stopped    bool

	queue      chan *contracts.Message
	queueDepth int
	registry   *TypeRegistry
	logger     *slog.Logger
	middleware []MiddlewareFunc

	// inflight counts dispatched but not yet finalized messages. Add and
	// Wait are confined to the pump goroutine.
	inflight sync.WaitGroup

	// senders counts Send calls that passed the running check but have not
	// yet enqueued. Stop waits for them before releasing the pump to its
	// final drain, so nothing can slip into the queue after the drain's
	// empty poll.
	senders sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	wg     sync.WaitGroup
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithQueueDepth sets the send queue capacity.
func WithQueueDepth(depth int) DispatcherOption {
	return func(d *Dispatcher) {
		if depth > 0 {
			d.queueDepth = depth
		}
	}
}

// WithTypeRegistry sets the registry used to validate message types at send
// time. Defaults to the global registry.
func WithTypeRegistry(registry *TypeRegistry) DispatcherOption {
	return func(d *Dispatcher) {
		if registry != nil {
			d.registry = registry
		}
	}
}

// WithMiddleware adds middleware around every recipient delivery.
func WithMiddleware(middleware ...MiddlewareFunc) DispatcherOption {
	return func(d *Dispatcher) {
		d.middleware = append(d.middleware, middleware...)
	}
}

// NewDispatcher creates a dispatcher. It does not deliver anything until
// Start is called.
func NewDispatcher(options ...DispatcherOption) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		queueDepth: 64,
		registry:   DefaultTypeRegistry(),
		logger:     slog.Default(),
		ctx:        ctx,
		cancel:     cancel,
		quit:       make(chan struct{}),
	}

	for _, opt := range options {
		opt(d)
	}

	d.queue = make(chan *contracts.Message, d.queueDepth)
	return d
}

// RegisterRecipient appends a recipient to the delivery list. Messages are
// offered to recipients in registration order.
func (d *Dispatcher) RegisterRecipient(r Recipient) error {
	if r == nil {
		return fmt.Errorf("recipient cannot be nil")
	}

	d.mu.Lock()
	d.recipients = append(d.recipients, r)
	d.mu.Unlock()

	d.logger.Info("registered recipient", "recipient", r.Name())
	return nil
}

// Start begins the delivery pump.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrDispatcherNotRunning
	}
	if d.started {
		return fmt.Errorf("dispatcher already started")
	}
	d.started = true

	d.wg.Add(1)
	go d.run()
	return nil
}

// Stop drains the queue, waits for every in-flight message to finalize, and
// shuts the pump down. The context bounds how long to wait.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return ErrDispatcherNotRunning
	}
	d.stopped = true
	d.mu.Unlock()

	d.senders.Wait()
	close(d.quit)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}

// Send queues a message for delivery. The message type must be registered.
func (d *Dispatcher) Send(msg *contracts.Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if !d.registry.IsRegistered(msg.GetType()) {
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.GetType())
	}

	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return ErrDispatcherNotRunning
	}
	d.senders.Add(1)
	d.mu.Unlock()
	defer d.senders.Done()

	select {
	case d.queue <- msg:
		return nil
	case <-d.quit:
		return ErrDispatcherNotRunning
	}
}

// run is the pump goroutine: it admits one queued message at a time and
// honors the synchronous barrier.
func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.queue:
			d.deliver(msg)
		case <-d.quit:
			for {
				select {
				case msg := <-d.queue:
					d.deliver(msg)
				default:
					d.inflight.Wait()
					return
				}
			}
		}
	}
}

// deliver fans one message out to every recipient. Only the pump goroutine
// calls it, which is what makes the inflight accounting and the barrier
// waits safe.
func (d *Dispatcher) deliver(msg *contracts.Message) {
	if msg.GetSynchronous() {
		// Barrier: everything admitted before this message must finalize
		// before it is delivered.
		d.inflight.Wait()
	}

	d.mu.Lock()
	recipients := make([]Recipient, len(d.recipients))
	copy(recipients, d.recipients)
	d.mu.Unlock()

	d.inflight.Add(1)

	if len(recipients) == 0 {
		d.finalize(msg)
		return
	}

	// Account for every recipient before any delivery begins, so an early
	// finisher cannot drop the count to zero prematurely.
	for range recipients {
		msg.Retain()
	}

	for _, r := range recipients {
		recipient := d.buildMiddlewareChain(r)
		go func(r Recipient) {
			if err := recipient.HandleMessage(d.ctx, msg); err != nil {
				msg.AddError(contracts.MessageError{
					Source:  r.Name(),
					Message: fmt.Sprintf("failed to handle %q", msg.GetType()),
					Err:     err,
				})
			}
			if msg.Release() {
				d.finalize(msg)
			}
		}(r)
	}

	d.logger.Debug("message dispatched",
		"messageType", msg.GetType(),
		"messageId", msg.GetID(),
		"recipientCount", len(recipients),
	)

	if msg.GetSynchronous() {
		// The barrier also holds back everything queued after it.
		d.inflight.Wait()
	}
}

// finalize completes a message and surfaces its outcome. Exactly one caller
// reaches it per message: either the releaser that observed the pending
// count hit zero, or the pump itself when there were no recipients.
func (d *Dispatcher) finalize(msg *contracts.Message) {
	msg.Finalize()

	for _, e := range msg.Errors() {
		if e.IsFatal() {
			d.logger.Error("recipient failed",
				"messageType", msg.GetType(),
				"messageId", msg.GetID(),
				"source", e.Source,
				"error", e.Err,
			)
		} else {
			d.logger.Warn("recipient warning",
				"messageType", msg.GetType(),
				"messageId", msg.GetID(),
				"source", e.Source,
				"message", e.Message,
			)
		}
	}

	d.inflight.Done()
}

// buildMiddlewareChain wraps a recipient in the middleware, outermost first.
func (d *Dispatcher) buildMiddlewareChain(r Recipient) Recipient {
	if len(d.middleware) == 0 {
		return r
	}

	result := r
	for i := len(d.middleware) - 1; i >= 0; i-- {
		middleware := d.middleware[i]
		next := result
		result = RecipientFunc(r.Name(), func(ctx context.Context, msg *contracts.Message) error {
			return middleware(ctx, msg, next)
		})
	}

	return result
}
