package influxdb

import "errors"

var (
	// ErrConnectionFailed is returned by Connect when the server does not
	// answer the ping.
	ErrConnectionFailed = errors.New("influxdb: server unreachable")

	// ErrWritesFailed is returned by Close when batches were rejected during
	// the capture. Each failure was also passed to the SetOnError callback.
	ErrWritesFailed = errors.New("influxdb: channel batches rejected")
)
