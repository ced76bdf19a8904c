package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"servex_backend/internal/models"
)

// MetricsFunc summarises the live orders of a session as it is closed.
type MetricsFunc func(orders []models.Order) models.SessionMetrics

// SessionRepository defines the interface for service session persistence.
type SessionRepository interface {
	// GetActiveSession returns ErrNotFound when no session is running.
	GetActiveSession(ctx context.Context) (*models.ServiceSession, error)
	ListArchivedSessions(ctx context.Context) ([]models.ServiceSession, error)
	// StartSession returns ErrDuplicateKey if another session is already active.
	StartSession(ctx context.Context, session *models.ServiceSession) error
	// CloseSession archives the session with metrics computed over every live order and
	// removes those orders, all in one transaction. On error the session stays active.
	CloseSession(ctx context.Context, id string, endedAt time.Time, compute MetricsFunc) (*models.ServiceSession, error)
}

type sessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sql.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func scanSession(s scanner) (*models.ServiceSession, error) {
	session := &models.ServiceSession{}
	var endedAt sql.NullTime
	var metrics []byte
	if err := s.Scan(&session.ID, &session.StartedAt, &endedAt, &metrics); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}
	if len(metrics) > 0 {
		session.Metrics = &models.SessionMetrics{}
		if err := json.Unmarshal(metrics, session.Metrics); err != nil {
			return nil, fmt.Errorf("decoding metrics of session %s: %v", session.ID, err)
		}
	}
	return session, nil
}

func (r *sessionRepository) GetActiveSession(ctx context.Context) (*models.ServiceSession, error) {
	query := `SELECT id, started_at, ended_at, metrics FROM service_sessions WHERE ended_at IS NULL`
	session, err := scanSession(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting active session: %v", ErrDatabaseError, err)
	}
	return session, nil
}

func (r *sessionRepository) ListArchivedSessions(ctx context.Context) ([]models.ServiceSession, error) {
	query := `SELECT id, started_at, ended_at, metrics FROM service_sessions
	          WHERE ended_at IS NOT NULL
	          ORDER BY ended_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying archived sessions: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	sessions := []models.ServiceSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning session: %v", ErrDatabaseError, err)
		}
		sessions = append(sessions, *session)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating sessions: %v", ErrDatabaseError, err)
	}
	return sessions, nil
}

func (r *sessionRepository) StartSession(ctx context.Context, session *models.ServiceSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO service_sessions (id, started_at) VALUES ($1, $2)`,
		session.ID, session.StartedAt,
	)
	if err != nil {
		// service_sessions_single_active allows one row with ended_at IS NULL.
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: a session is already active", ErrDuplicateKey)
		}
		return fmt.Errorf("%w: starting session: %v", ErrDatabaseError, err)
	}
	return nil
}

func (r *sessionRepository) CloseSession(ctx context.Context, id string, endedAt time.Time, compute MetricsFunc) (*models.ServiceSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: starting session transaction: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	session, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, metrics FROM service_sessions
		 WHERE id = $1 AND ended_at IS NULL
		 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapWriteError(err, "locking session %s", id)
	}

	orders, err := queryOrders(ctx, tx, "", nil, true)
	if err != nil {
		return nil, err
	}
	metrics := compute(orders)
	encoded, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding session metrics: %v", ErrDatabaseError, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE service_sessions SET ended_at = $1, metrics = $2 WHERE id = $3`,
		endedAt, string(encoded), id,
	)
	if err != nil {
		return nil, wrapWriteError(err, "archiving session %s", id)
	}

	for _, o := range orders {
		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, o.ID); err != nil {
			return nil, wrapWriteError(err, "clearing order ID %d", o.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapWriteError(err, "committing session %s", id)
	}

	session.EndedAt = &endedAt
	session.Metrics = &metrics
	return session, nil
}
