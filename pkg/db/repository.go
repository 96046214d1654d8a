package db

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fly-io/update-agent/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository provides database operations for update attempts
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	// The state machine and the CLI share one connection; sqlite serializes writers anyway.
	db.SetMaxOpenConns(1)

	slog.Info("database_create_schema", "db_path", dbPath)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new attempt record
func (r *Repository) Create(a *Attempt) error {
	slog.Debug("database_create_attempt", "attempt_id", a.ID, "artifact", a.Artifact, "status", a.Status)

	query := `
		INSERT INTO attempts (id, artifact, status, size_bytes, error_message)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := r.db.Exec(query, a.ID, a.Artifact, a.Status, a.SizeBytes, a.ErrorMessage); err != nil {
		slog.Error("database_insert_failed", "attempt_id", a.ID, "error", err)
		return errors.Wrap(err, "failed to insert attempt")
	}

	return nil
}

// Get retrieves an attempt by ID. It returns nil, nil when none exists.
func (r *Repository) Get(id string) (*Attempt, error) {
	query := `
		SELECT id, artifact, status, size_bytes, error_message, created_at, updated_at
		FROM attempts WHERE id = ?
	`
	a, err := scanAttempt(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "attempt_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query attempt")
	}
	return a, nil
}

// UpdateStatus updates the status and error message of an attempt
func (r *Repository) UpdateStatus(id, status, errorMessage string) error {
	slog.Debug("database_update_status", "attempt_id", id, "status", status)

	query := `UPDATE attempts SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := r.db.Exec(query, status, errorMessage, id)
	if err != nil {
		slog.Error("database_status_update_failed", "attempt_id", id, "status", status, "error", err)
		return errors.Wrap(err, "failed to update status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_attempt_not_found_for_update", "attempt_id", id)
		return fmt.Errorf("attempt not found: id=%s", id)
	}

	return nil
}

// SetSize records the fetched artifact size
func (r *Repository) SetSize(id string, size int64) error {
	query := `UPDATE attempts SET size_bytes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.Exec(query, size, id); err != nil {
		slog.Error("database_size_update_failed", "attempt_id", id, "error", err)
		return errors.Wrap(err, "failed to update size")
	}
	return nil
}

// List retrieves the most recent attempts, newest first. limit <= 0 means all.
func (r *Repository) List(limit int) ([]*Attempt, error) {
	query := `
		SELECT id, artifact, status, size_bytes, error_message, created_at, updated_at
		FROM attempts ORDER BY created_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list attempts")
	}
	defer rows.Close()

	var attempts []*Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	return attempts, nil
}

// DeleteAll removes every attempt and returns how many were removed
func (r *Repository) DeleteAll() (int64, error) {
	slog.Info("database_delete_attempts")

	result, err := r.db.Exec(`DELETE FROM attempts`)
	if err != nil {
		slog.Error("database_delete_failed", "error", err)
		return 0, errors.Wrap(err, "failed to delete attempts")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	slog.Info("database_attempts_deleted", "count", n)
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(s scanner) (*Attempt, error) {
	var a Attempt
	var errorMessage sql.NullString
	if err := s.Scan(&a.ID, &a.Artifact, &a.Status, &a.SizeBytes, &errorMessage, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ErrorMessage = errorMessage.String
	return &a, nil
}
