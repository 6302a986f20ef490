package capture

import "time"

// Session status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Session is one capture run.
type Session struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Address is the motion service host:port.
	Address string `json:"address"`

	// Output is the CSV destination: a file path, or "-" for stdout.
	Output string `json:"output"`

	Frames  int    `json:"frames"`
	Devices int    `json:"devices"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`

	// DeviceNames maps device keys to node names. Only filled by GetByID.
	DeviceNames map[uint32]string `json:"device_names,omitempty"`
}

// Result is the final state of a session passed to Finish.
type Result struct {
	Frames  int
	Devices int
	Status  string
	Error   string
}
