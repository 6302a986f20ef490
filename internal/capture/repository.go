package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// defaultListLimit and maxListLimit bound List.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// timeFormat has a fixed width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Repository defines the interface for session log operations.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	Finish(ctx context.Context, id string, result Result) error
	SaveDevices(ctx context.Context, id string, names map[uint32]string) error
	GetByID(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context, limit int) ([]Session, error)
}

// SQLiteRepository stores sessions in the capture_sessions and
// session_devices tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new session repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a running session. The ID and StartedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	s.Status = StatusRunning

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO capture_sessions (id, started_at, address, output, status)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt.UTC().Format(timeFormat), s.Address, s.Output, s.Status,
	)
	if err != nil {
		return fmt.Errorf("inserting capture session: %w", err)
	}
	return nil
}

// Finish records the final counts and status of a running session.
//
// Returns:
//   - error: ErrInvalidStatus for an unknown or running status,
//     ErrSessionNotFound for an unknown ID, ErrSessionFinished if the
//     session was already finished
func (r *SQLiteRepository) Finish(ctx context.Context, id string, result Result) error {
	switch result.Status {
	case StatusCompleted, StatusCancelled, StatusFailed:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, result.Status)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE capture_sessions
		 SET finished_at = ?, frames = ?, devices = ?, status = ?, error = ?
		 WHERE id = ? AND status = ?`,
		time.Now().UTC().Format(timeFormat),
		result.Frames, result.Devices, result.Status, nullableString(result.Error),
		id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("finishing capture session: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrSessionFinished
	}
	return nil
}

// SaveDevices stores the node names seen in a session, replacing names
// already stored for the same keys.
func (r *SQLiteRepository) SaveDevices(ctx context.Context, id string, names map[uint32]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	for key, name := range names {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO session_devices (session_id, device_key, name) VALUES (?, ?, ?)
			 ON CONFLICT (session_id, device_key) DO UPDATE SET name = excluded.name`,
			id, key, name,
		)
		if err != nil {
			return fmt.Errorf("saving device %d: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing devices: %w", err)
	}
	return nil
}

// GetByID returns a session with its device names.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, address, output, frames, devices, status, error
		 FROM capture_sessions WHERE id = ?`, id)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT device_key, name FROM session_devices WHERE session_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("querying session devices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key int64
		var name string
		if err := rows.Scan(&key, &name); err != nil {
			return nil, fmt.Errorf("scanning session device: %w", err)
		}
		if s.DeviceNames == nil {
			s.DeviceNames = make(map[uint32]string)
		}
		s.DeviceNames[uint32(key)] = name // #nosec G115 -- stored from uint32
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session devices: %w", err)
	}

	return s, nil
}

// List returns the most recent sessions first. Device names are not loaded.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, address, output, frames, devices, status, error
		 FROM capture_sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying capture sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating capture sessions: %w", err)
	}
	return sessions, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		s          Session
		startedAt  string
		finishedAt sql.NullString
		errMsg     sql.NullString
	)

	err := row.Scan(&s.ID, &startedAt, &finishedAt, &s.Address, &s.Output,
		&s.Frames, &s.Devices, &s.Status, &errMsg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning capture session: %w", err)
	}

	if s.StartedAt, err = time.Parse(timeFormat, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeFormat, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		s.FinishedAt = &t
	}
	s.Error = errMsg.String

	return &s, nil
}

// nullableString returns nil for empty strings so they are stored as NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
