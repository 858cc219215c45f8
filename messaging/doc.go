// Package messaging provides the delivery machinery around the contracts
// envelope: the process-wide message type registry and the queue dispatcher.
//
// The dispatcher owns a single delivery sequence. For every message it
// retains the envelope once per registered recipient, delivers to each
// recipient on its own goroutine, and releases as each one finishes; the
// release that drops the pending count to zero finalizes the message. A
// synchronous message acts as a barrier: the dispatcher drains everything
// queued ahead of it, delivers it, and waits for it to finalize before
// admitting the next message.
//
// Example usage:
//
//	dispatcher := messaging.NewDispatcher()
//	dispatcher.RegisterRecipient(cameraModule)
//	dispatcher.RegisterRecipient(stageModule)
//	if err := dispatcher.Start(); err != nil {
//		return err
//	}
//	defer dispatcher.Stop(context.Background())
//
//	err := dispatcher.Send(contracts.NewMessage(contracts.TypeStart, coreModule))
//
// Message type names are validated at send time against the registry, which
// is seeded with the built-in set and grown by modules at initialization:
//
//	if err := messaging.Register("stage moved"); err != nil {
//		return err
//	}
package messaging
