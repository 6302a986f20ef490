package mqtt

import "errors"

var (
	// ErrNotConnected is returned by Publish while the broker link is down.
	// Frames published then are lost; the stream itself is not retried.
	ErrNotConnected = errors.New("mqtt: broker link down")

	// ErrConnectionFailed is returned by Connect when the broker refuses or
	// does not answer.
	ErrConnectionFailed = errors.New("mqtt: broker unreachable")

	// ErrPublishFailed is returned when a frame or status message cannot be
	// encoded or is not acknowledged in time.
	ErrPublishFailed = errors.New("mqtt: frame not published")

	// ErrInvalidQoS is returned for a QoS outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
