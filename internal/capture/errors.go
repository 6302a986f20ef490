package capture

import "errors"

var (
	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("capture session not found")

	// ErrInvalidStatus is returned when finishing a session with an unknown status.
	ErrInvalidStatus = errors.New("invalid capture session status")

	// ErrSessionFinished is returned when a session is finished twice.
	ErrSessionFinished = errors.New("capture session already finished")
)
