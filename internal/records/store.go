package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/SaurabhDhamne/AirStore/internal/ledger"
)

// Status is the lifecycle state of a stored record.
type Status string

const (
	// StatusPending means the extraction awaits confirmation.
	StatusPending Status = "PENDING"
	// StatusConfirmed means the record was committed to a sheet.
	StatusConfirmed Status = "CONFIRMED"
)

// Record is one stored extraction with its lifecycle state. Records are
// retained after confirmation as an audit trail and never deleted.
type Record struct {
	ID        string
	Payload   *ledger.ExtractionResult
	Status    Status
	CreatedAt time.Time
}

// Store persists records in SQLite, keyed by id.
type Store struct {
	db *sql.DB
}

// Open connects to (or creates) the records database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	// busy_timeout must be set via the DSN so it applies to every
	// connection in the pool, not just the one that runs the Exec below.
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS records (
        id TEXT PRIMARY KEY,
        data TEXT NOT NULL,
        status TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL
    )`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create persists a new PENDING record and returns its generated id.
func (s *Store) Create(ctx context.Context, payload *ledger.ExtractionResult) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO records (id, data, status, created_at) VALUES (?, ?, ?, ?)`,
		id,
		string(data),
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// Get returns the record with the given id, or ledger.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var (
		data      string
		status    string
		createdAt string
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT data, status, created_at FROM records WHERE id = ?`,
		id,
	).Scan(&data, &status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record %s: %w", id, err)
	}

	var payload ledger.ExtractionResult
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal record %s payload: %w", id, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse record %s created_at %q: %w", id, createdAt, err)
	}

	return &Record{
		ID:        id,
		Payload:   &payload,
		Status:    Status(status),
		CreatedAt: ts,
	}, nil
}

// Confirm transitions a PENDING record to CONFIRMED, replacing its
// payload with newPayload. The transition is a single conditional
// UPDATE so two concurrent confirms on the same id cannot both
// succeed: the second observes ledger.ErrAlreadyConfirmed.
func (s *Store) Confirm(ctx context.Context, id string, newPayload *ledger.ExtractionResult) error {
	data, err := json.Marshal(newPayload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE records SET status = ?, data = ? WHERE id = ? AND status = ?`,
		StatusConfirmed,
		string(data),
		id,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("confirm record %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirm record %s: rows affected: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	// No row transitioned: the id is unknown or the record was already
	// confirmed by another caller.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return getErr
	}
	return ledger.ErrAlreadyConfirmed
}
