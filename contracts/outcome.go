package contracts

import (
	"fmt"
)

// MessageError is a recipient's report that it had a problem with a message.
// A non-nil Err marks the failure as fatal to the recipient: the dispatcher
// must surface it to the sender after finalization. A nil Err is advisory
// and is only logged.
type MessageError struct {
	// Source names the recipient module that recorded the error.
	Source string

	// Message describes the problem.
	Message string

	// Err is the recipient's underlying failure, if fatal.
	Err error
}

// Error implements the error interface.
func (e MessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

// Unwrap returns the recipient's underlying failure, if any.
func (e MessageError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether the recipient could not proceed. Advisory errors
// return false.
func (e MessageError) IsFatal() bool {
	return e.Err != nil
}

// MessageResponse is a recipient's answer to a message, read by the sender
// after finalization. Immutable after construction.
type MessageResponse struct {
	// Source names the recipient module that responded.
	Source string

	// Data is the response payload.
	Data any
}
