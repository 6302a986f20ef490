package capture

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/motioncsv/internal/infrastructure/database"
	_ "github.com/nerrad567/motioncsv/migrations"
)

// setupTestRepo opens a temporary session log with the real schema applied.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "sessions.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreateAndGetByID(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s := &Session{Address: "127.0.0.1:32076", Output: "take1.csv"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := uuid.Parse(s.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", s.ID, err)
	}
	if s.Status != StatusRunning {
		t.Errorf("Status = %q, want running", s.Status)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Address != s.Address || got.Output != s.Output || got.Status != StatusRunning {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.StartedAt.Equal(s.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, s.StartedAt)
	}
	if got.FinishedAt != nil {
		t.Errorf("FinishedAt = %v, want nil for running session", got.FinishedAt)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetByID() error = %v, want ErrSessionNotFound", err)
	}
}

func TestFinish(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s := &Session{Address: "127.0.0.1:32076", Output: "-"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Finish(ctx, s.ID, Result{Frames: 120, Devices: 3, Status: StatusFailed, Error: "stream interrupted"})
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Frames != 120 || got.Devices != 3 || got.Status != StatusFailed || got.Error != "stream interrupted" {
		t.Errorf("finished session = %+v", got)
	}
	if got.FinishedAt == nil || got.FinishedAt.Before(got.StartedAt) {
		t.Errorf("FinishedAt = %v, want after StartedAt %v", got.FinishedAt, got.StartedAt)
	}

	err = repo.Finish(ctx, s.ID, Result{Status: StatusCompleted})
	if !errors.Is(err, ErrSessionFinished) {
		t.Errorf("second Finish() error = %v, want ErrSessionFinished", err)
	}
}

func TestFinish_Errors(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		status  string
		wantErr error
	}{
		{"running is not final", "x", StatusRunning, ErrInvalidStatus},
		{"unknown status", "x", "paused", ErrInvalidStatus},
		{"unknown session", "missing", StatusCompleted, ErrSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Finish(ctx, tt.id, Result{Status: tt.status})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Finish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveDevices(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s := &Session{Address: "127.0.0.1:32076", Output: "-"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.SaveDevices(ctx, s.ID, map[uint32]string{1: "Hips", 2: "Chest"}); err != nil {
		t.Fatalf("SaveDevices() error = %v", err)
	}
	// A renamed node replaces the stored name.
	if err := repo.SaveDevices(ctx, s.ID, map[uint32]string{2: "Spine", 3: "Head"}); err != nil {
		t.Fatalf("second SaveDevices() error = %v", err)
	}

	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	want := map[uint32]string{1: "Hips", 2: "Spine", 3: "Head"}
	if len(got.DeviceNames) != len(want) {
		t.Fatalf("DeviceNames = %v, want %v", got.DeviceNames, want)
	}
	for k, v := range want {
		if got.DeviceNames[k] != v {
			t.Errorf("DeviceNames[%d] = %q, want %q", k, got.DeviceNames[k], v)
		}
	}
}

func TestSaveDevices_UnknownSession(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.SaveDevices(context.Background(), "missing", map[uint32]string{1: "Hips"})
	if err == nil {
		t.Error("SaveDevices() for unknown session should violate the foreign key")
	}
}

func TestList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	for i, out := range []string{"a.csv", "b.csv", "c.csv"} {
		s := &Session{Address: "127.0.0.1:32076", Output: out, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create(%s) error = %v", out, err)
		}
	}

	sessions, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("List() returned %d sessions, want 3", len(sessions))
	}
	if sessions[0].Output != "c.csv" || sessions[2].Output != "a.csv" {
		t.Errorf("List() order = %s, %s, %s; want most recent first",
			sessions[0].Output, sessions[1].Output, sessions[2].Output)
	}

	limited, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d sessions", len(limited))
	}
}
