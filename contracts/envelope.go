package contracts

import (
	"github.com/google/uuid"
)

// Message type names known at startup. Modules register additional types
// through the messaging package.
const (
	TypeAddToUI           = "add to ui"
	TypeCloseEvent        = "close event"
	TypeConfigure1        = "configure1"
	TypeConfigure2        = "configure2"
	TypeCurrentParameters = "current parameters"
	TypeModule            = "module"
	TypeNewDirectory      = "new directory"
	TypeNewParametersFile = "new parameters file"
	TypeNewShuttersFile   = "new shutters file"
	TypeStart             = "start"
	TypeSync              = "sync"
)

// Module is the interface every message source must satisfy. The envelope
// borrows the reference; it never manages the module's lifetime.
type Module interface {
	// Name returns the module's stable human-readable name.
	Name() string
}

// Envelope provides the fields common to all messages: a generated identity,
// a type tag, and the originating module.
type Envelope struct {
	id      string
	msgType string
	source  Module
}

// NewEnvelope creates an envelope with a generated identity.
func NewEnvelope(messageType string, source Module) Envelope {
	return Envelope{
		id:      uuid.New().String(),
		msgType: messageType,
		source:  source,
	}
}

// GetID returns the generated message identity.
func (e Envelope) GetID() string {
	return e.id
}

// GetType returns the message type tag.
func (e Envelope) GetType() string {
	return e.msgType
}

// GetSource returns the originating module.
func (e Envelope) GetSource() Module {
	return e.source
}

// GetSourceName returns the originating module's name, or the empty string
// if the source is unset.
func (e Envelope) GetSourceName() string {
	if e.source == nil {
		return ""
	}
	return e.source.Name()
}
