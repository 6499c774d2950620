package auproc

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectorCount is returned when a node gets too few connectors.
	ErrConnectorCount = errors.New("not enough connectors")
	// ErrConnectorType is returned when connector capability doesn't
	// match, e.g. MIDI connector given where audio is expected.
	ErrConnectorType = errors.New("wrong connector type")
	// ErrConnectorDirection is returned when connector cannot be read
	// or written as required.
	ErrConnectorDirection = errors.New("wrong connector direction")
	// ErrEngineMismatch is returned when connector belongs to other engine.
	ErrEngineMismatch = errors.New("connector belongs to other engine")
	// ErrNoChannel is returned when a node requires a message channel end
	// but nil was given.
	ErrNoChannel = errors.New("message channel is required")
)

// ConnectorError is returned if a node cannot be constructed or registered
// because of a connector misconfiguration.
type ConnectorError struct {
	Index     int
	Type      Type
	Direction Direction
	Err       error
}

func (e *ConnectorError) Error() string {
	switch {
	case errors.Is(e.Err, ErrConnectorType) && e.Direction == In:
		return fmt.Sprintf("connector %d: expected %v IN connector", e.Index, e.Type)
	case errors.Is(e.Err, ErrConnectorType) && e.Direction == Out:
		return fmt.Sprintf("connector %d: expected %v OUT connector", e.Index, e.Type)
	case errors.Is(e.Err, ErrConnectorDirection) && e.Direction == In:
		return fmt.Sprintf("connector %d: given connector is not readable", e.Index)
	case errors.Is(e.Err, ErrConnectorDirection) && e.Direction == Out:
		return fmt.Sprintf("connector %d: given connector is not writable", e.Index)
	}
	return fmt.Sprintf("connector %d: %v", e.Index, e.Err)
}

// Unwrap returns the cause.
func (e *ConnectorError) Unwrap() error {
	return e.Err
}
