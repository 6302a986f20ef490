package motion

import "errors"

// Domain errors for the motion service client.
var (
	// ErrNotConnected is returned when an operation requires a connection
	// but the client is closed.
	ErrNotConnected = errors.New("motion: not connected")

	// ErrConnectionFailed is returned when the connection to the service fails.
	ErrConnectionFailed = errors.New("motion: connection to service failed")

	// ErrWriteFailed is returned when a message cannot be sent to the service.
	ErrWriteFailed = errors.New("motion: write failed")

	// ErrReadFailed is returned when reading from the service fails for a
	// reason other than a timeout or a closed stream.
	ErrReadFailed = errors.New("motion: read failed")

	// ErrTimeout is returned when no message arrives before the deadline.
	ErrTimeout = errors.New("motion: operation timed out")

	// ErrStreamClosed is returned when the service closes the connection.
	ErrStreamClosed = errors.New("motion: stream closed by service")

	// ErrProtocolDesync is returned when a message length is larger than the
	// configured maximum. The connection is closed because the framing can no
	// longer be trusted.
	ErrProtocolDesync = errors.New("motion: protocol desync")

	// ErrInvalidFrame is returned when a binary frame cannot be decoded.
	ErrInvalidFrame = errors.New("motion: invalid frame")

	// ErrNoNodes is returned when an XML node list contains no usable entries.
	ErrNoNodes = errors.New("motion: no nodes in XML list")

	// ErrUnknownChannel is returned when a request names a channel group
	// this package does not know.
	ErrUnknownChannel = errors.New("motion: unknown channel group")
)
