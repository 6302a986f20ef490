package export

import "errors"

// Pipeline errors. Each aborts the stream.
var (
	// ErrRequestFailed is returned when the channel request cannot be sent.
	ErrRequestFailed = errors.New("failed to send channel list request to Configurable service")

	// ErrNoStream is returned when no data arrives after the request.
	ErrNoStream = errors.New("no active data stream available, giving up")

	// ErrNameMap is returned when the node list cannot be parsed for the header.
	ErrNameMap = errors.New("failed to parse XML name map")

	// ErrStreamInterrupted is returned when a frame read fails mid-stream.
	ErrStreamInterrupted = errors.New("data stream interrupted or timed out")

	// ErrDeviceMissing is returned when a frame device has no header name.
	ErrDeviceMissing = errors.New("device missing from name map, unable to print header")

	// ErrChannelCount is returned when a device has an unexpected channel count
	// while printing the header.
	ErrChannelCount = errors.New("unexpected channel count, unable to print header")

	// ErrUnknownFormat is returned when a frame carries no channels or cannot
	// be decoded.
	ErrUnknownFormat = errors.New("unknown data format in stream")

	// ErrSinkFailed is returned when a frame sink rejects a frame.
	ErrSinkFailed = errors.New("frame sink failed")
)
