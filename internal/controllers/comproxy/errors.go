package comproxy

import "errors"

// Domain errors for the COM-port proxy.
var (
	// ErrUnknownCommand is returned for unrecognised request lines.
	ErrUnknownCommand = errors.New("comproxy: unknown command")

	// ErrBadPayload is returned when a WRITE payload is not valid base64.
	ErrBadPayload = errors.New("comproxy: invalid payload")

	// ErrPortNotOpen is returned by the server when the serial port is closed.
	ErrPortNotOpen = errors.New("comproxy: serial port not open")

	// ErrRemote wraps an "ERROR <text>" reply from the server.
	ErrRemote = errors.New("comproxy: server error")

	// ErrUnexpectedReply is returned when a reply does not match the request.
	ErrUnexpectedReply = errors.New("comproxy: unexpected reply")

	// ErrServerStopped is returned when serving on a stopped server.
	ErrServerStopped = errors.New("comproxy: server stopped")

	// ErrLineTooLong is returned when a serial line exceeds maxLineLength.
	ErrLineTooLong = errors.New("comproxy: line too long")
)
