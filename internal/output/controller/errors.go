package controller

import (
	"errors"
	"fmt"
)

// Domain errors for the controller package.
var (
	// ErrNotConnected is returned when an operation requires a connected device.
	ErrNotConnected = errors.New("controller: not connected")

	// ErrOutputCount is returned when an output array has the wrong length.
	ErrOutputCount = errors.New("controller: wrong number of outputs")

	// ErrDisabled is returned by backends that have permanently disabled themselves.
	ErrDisabled = errors.New("controller: disabled")

	// ErrFinished is returned when a finished controller is used again.
	ErrFinished = errors.New("controller: finished")
)

// Kind classifies a controller error so callers can choose a recovery policy.
type Kind int

// Error kinds.
const (
	// KindUnknown is used for errors that carry no classification.
	KindUnknown Kind = iota

	// KindConfiguration covers invalid or missing settings. The controller
	// stays unconnected.
	KindConfiguration

	// KindConnection covers port-not-found, open failures and exhausted
	// handshakes. The controller stays disconnected.
	KindConnection

	// KindProtocol covers wrong or missing acknowledgements and short replies.
	// The current update is abandoned; the controller stays connected.
	KindProtocol

	// KindTransient covers send failures that are counted and retried on the
	// next tick.
	KindTransient

	// KindIPC covers failures talking to an out-of-process proxy after the
	// respawn-and-retry attempt.
	KindIPC
)

var kindNames = [...]string{"unknown", "configuration", "connection", "protocol", "transient", "ipc"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is a classified controller error.
type Error struct {
	Kind   Kind
	Device string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Device != "" && e.Op != "":
		return fmt.Sprintf("%s: %s: %v", e.Device, e.Op, e.Err)
	case e.Device != "":
		return fmt.Sprintf("%s: %v", e.Device, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprint(e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error.
func NewError(kind Kind, device, op string, err error) *Error {
	return &Error{Kind: kind, Device: device, Op: op, Err: err}
}

// Errorf creates a classified error from a format string.
func Errorf(kind Kind, device, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Device: device, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Classify returns err as an *Error. An existing classification is kept and
// only missing device or op fields are filled in.
func Classify(kind Kind, device, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Device != "" && e.Op != "" {
			return err
		}
		out := *e
		if out.Device == "" {
			out.Device = device
		}
		if out.Op == "" {
			out.Op = op
		}
		return &out
	}
	return NewError(kind, device, op, err)
}
