package capture

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/motioncsv/internal/export"
	"github.com/nerrad567/motioncsv/internal/motion"
)

func frame(seq int, names motion.NameMap, keys ...uint32) export.Frame {
	data := make(motion.Frame, len(keys))
	for i, k := range keys {
		data[i] = motion.Element{Key: k, Channels: make([]float32, 8)}
	}
	return export.Frame{Seq: seq, Data: data, Names: names}
}

// countingRepo wraps a repository and counts SaveDevices calls.
type countingRepo struct {
	Repository
	saves int
}

func (c *countingRepo) SaveDevices(ctx context.Context, id string, names map[uint32]string) error {
	c.saves++
	return c.Repository.SaveDevices(ctx, id, names)
}

func TestRecorder_Completed(t *testing.T) {
	repo := &countingRepo{Repository: setupTestRepo(t)}
	ctx := context.Background()

	rec, err := NewRecorder(ctx, repo, "127.0.0.1:32076", "take.csv")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	names := motion.NameMap{1: "Hips", 2: "Chest"}
	for seq := 1; seq <= 5; seq++ {
		if err := rec.WriteFrame(ctx, frame(seq, names, 1, 2)); err != nil {
			t.Fatalf("WriteFrame(%d) error = %v", seq, err)
		}
	}
	if repo.saves != 1 {
		t.Errorf("SaveDevices calls = %d, want 1 for unchanged names", repo.saves)
	}

	if err := rec.Finish(ctx, nil); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	// Second Finish is a no-op
	if err := rec.Finish(ctx, errors.New("late")); err != nil {
		t.Errorf("second Finish() error = %v", err)
	}

	got, err := repo.GetByID(ctx, rec.ID())
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusCompleted || got.Frames != 5 || got.Devices != 2 {
		t.Errorf("session = %+v, want completed with 5 frames and 2 devices", got)
	}
	if got.DeviceNames[2] != "Chest" {
		t.Errorf("DeviceNames = %v", got.DeviceNames)
	}
}

func TestRecorder_NamesChange(t *testing.T) {
	repo := &countingRepo{Repository: setupTestRepo(t)}
	ctx := context.Background()

	rec, err := NewRecorder(ctx, repo, "127.0.0.1:32076", "-")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	steps := []motion.NameMap{
		nil,
		{1: "Hips"},
		{1: "Hips"},
		{1: "Hips", 2: "Chest"},
	}
	for i, names := range steps {
		if err := rec.WriteFrame(ctx, frame(i+1, names, 1)); err != nil {
			t.Fatalf("WriteFrame(%d) error = %v", i+1, err)
		}
	}

	if repo.saves != 2 {
		t.Errorf("SaveDevices calls = %d, want 2", repo.saves)
	}
}

func TestRecorder_FinishStatus(t *testing.T) {
	tests := []struct {
		name       string
		streamErr  error
		wantStatus string
		wantError  string
	}{
		{"completed", nil, StatusCompleted, ""},
		{"cancelled", context.Canceled, StatusCancelled, ""},
		{"wrapped cancel", fmt.Errorf("stream: %w", context.Canceled), StatusCancelled, ""},
		{"failed", export.ErrStreamInterrupted, StatusFailed, export.ErrStreamInterrupted.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestRepo(t)
			ctx := context.Background()

			rec, err := NewRecorder(ctx, repo, "127.0.0.1:32076", "-")
			if err != nil {
				t.Fatalf("NewRecorder() error = %v", err)
			}
			if err := rec.Finish(ctx, tt.streamErr); err != nil {
				t.Fatalf("Finish() error = %v", err)
			}

			got, err := repo.GetByID(ctx, rec.ID())
			if err != nil {
				t.Fatalf("GetByID() error = %v", err)
			}
			if got.Status != tt.wantStatus || got.Error != tt.wantError {
				t.Errorf("status = %q, error = %q; want %q, %q", got.Status, got.Error, tt.wantStatus, tt.wantError)
			}
		})
	}
}

func TestRecorder_StreamSink(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rec, err := NewRecorder(ctx, repo, "127.0.0.1:32076", "-")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	var sink export.FrameSink = rec
	if err := sink.WriteFrame(ctx, frame(1, motion.NameMap{4: "Head"}, 4)); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if err := rec.Finish(ctx, nil); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := repo.GetByID(ctx, rec.ID())
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Frames != 1 || got.DeviceNames[4] != "Head" {
		t.Errorf("session = %+v", got)
	}
}
