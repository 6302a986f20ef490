package capture

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/nerrad567/motioncsv/internal/export"
)

// Recorder is an export.FrameSink that logs one capture session.
type Recorder struct {
	repo    Repository
	session Session

	mu       sync.Mutex
	frames   int
	devices  int
	saved    map[uint32]string
	finished bool
}

// Ensure Recorder implements export.FrameSink.
var _ export.FrameSink = (*Recorder)(nil)

// NewRecorder creates the session row and returns a Recorder for it.
//
// Parameters:
//   - ctx: Context for the insert
//   - repo: Session storage
//   - address: Motion service host:port
//   - output: CSV destination, "-" for stdout
//
// Returns:
//   - *Recorder: Recorder for a running session
//   - error: If the session cannot be created
func NewRecorder(ctx context.Context, repo Repository, address, output string) (*Recorder, error) {
	r := &Recorder{
		repo: repo,
		session: Session{
			Address: address,
			Output:  output,
		},
	}
	if err := repo.Create(ctx, &r.session); err != nil {
		return nil, err
	}
	return r, nil
}

// ID returns the session ID.
func (r *Recorder) ID() string {
	return r.session.ID
}

// WriteFrame counts the frame and stores node names the first time they
// are seen or whenever they change.
func (r *Recorder) WriteFrame(ctx context.Context, f export.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = f.Seq
	r.devices = len(f.Data)

	if len(f.Names) == 0 || maps.Equal(r.saved, f.Names) {
		return nil
	}
	if err := r.repo.SaveDevices(ctx, r.session.ID, f.Names); err != nil {
		return fmt.Errorf("recording device names: %w", err)
	}
	r.saved = maps.Clone(f.Names)
	return nil
}

// Finish finalises the session from the error returned by export.Stream:
// nil is completed, a cancellation is cancelled, anything else is failed.
// Calling Finish more than once has no further effect.
func (r *Recorder) Finish(ctx context.Context, streamErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return nil
	}

	result := Result{
		Frames:  r.frames,
		Devices: r.devices,
		Status:  StatusCompleted,
	}
	switch {
	case streamErr == nil:
	case export.IsCancellation(streamErr):
		result.Status = StatusCancelled
	default:
		result.Status = StatusFailed
		result.Error = streamErr.Error()
	}

	if err := r.repo.Finish(ctx, r.session.ID, result); err != nil {
		return fmt.Errorf("finishing capture session %s: %w", r.session.ID, err)
	}
	r.finished = true
	return nil
}
