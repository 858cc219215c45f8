// Package contracts defines the message envelope passed between the modules
// of an instrument-control application.
//
// A Message carries a registered type tag, a reference to the module that
// sent it, an optional payload, and two append-only collectors that
// recipients fill in while the message is in flight: errors and responses.
// The dispatcher retains the message once per intended recipient and releases
// it as each recipient finishes; the release that drops the pending count to
// zero triggers Finalize, which fires the sender's completion callback
// exactly once.
//
// Recipients must treat the payload as read-only. The only mutations a
// recipient may perform are AddError and AddResponse, both of which are safe
// under concurrent use. A recipient must not retain the message beyond its
// own processing step: the completion callback may run on another goroutine
// the moment the last recipient finishes.
//
// Example flow:
//
//	msg := contracts.NewMessage(contracts.TypeNewParametersFile, module,
//		contracts.WithData(map[string]any{"path": "/cfg.xml"}),
//		contracts.WithFinalizer(func() {
//			// inspect msg.Responses() / msg.Errors() here
//		}),
//	)
//	dispatcher.Send(msg)
package contracts
