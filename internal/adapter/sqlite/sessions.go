package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/onboardiq/onboardiq/internal/domain"
)

// Compile-time checks: SessionStore implements both persistence ports.
var (
	_ domain.SessionRepository = (*SessionStore)(nil)
	_ domain.CompensationStore = (*SessionStore)(nil)
)

// SessionStore implements domain.SessionRepository using SQLite.
type SessionStore struct {
	db *sql.DB
}

const sessionColumns = `id, current_step, status, completed_steps, tenant_id, admin_user_id,
	billing_ref, data, verification_token, verification_token_expires_at, verified_at,
	failure_reason, cancel_reason, ip_address, user_agent, next_action, estimated_completion,
	send_welcome_email, auto_verify, created_at, updated_at`

func (r *SessionStore) Create(ctx context.Context, s domain.Session) error {
	steps, data, err := encodeSession(s)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO onboarding_sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, string(s.CurrentStep), string(s.Status), steps, s.TenantID, s.AdminUserID,
		s.BillingRef, data, s.VerificationToken, nullTime(s.VerificationTokenExpiresAt),
		nullTime(s.VerifiedAt), s.FailureReason, s.CancelReason, s.IPAddress, s.UserAgent,
		s.NextAction, nullTime(s.EstimatedCompletion),
		boolToInt(s.SendWelcomeEmail), boolToInt(s.AutoVerify),
		s.CreatedAt.UTC().Format(timeFormat), s.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (r *SessionStore) GetByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM onboarding_sessions WHERE id = ?`, id,
	)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, err
}

func (r *SessionStore) Update(ctx context.Context, s domain.Session) error {
	result, err := r.updateTx(ctx, r.db, s)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// execer abstracts *sql.DB and *sql.Tx so the session update can run
// inside the cancellation transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SessionStore) updateTx(ctx context.Context, ex execer, s domain.Session) (sql.Result, error) {
	steps, data, err := encodeSession(s)
	if err != nil {
		return nil, err
	}

	result, err := ex.ExecContext(ctx,
		`UPDATE onboarding_sessions SET
			current_step = ?, status = ?, completed_steps = ?, tenant_id = ?, admin_user_id = ?,
			billing_ref = ?, data = ?, verification_token = ?, verification_token_expires_at = ?,
			verified_at = ?, failure_reason = ?, cancel_reason = ?, next_action = ?,
			estimated_completion = ?, updated_at = ?
		 WHERE id = ?`,
		string(s.CurrentStep), string(s.Status), steps, s.TenantID, s.AdminUserID,
		s.BillingRef, data, s.VerificationToken, nullTime(s.VerificationTokenExpiresAt),
		nullTime(s.VerifiedAt), s.FailureReason, s.CancelReason, s.NextAction,
		nullTime(s.EstimatedCompletion), time.Now().UTC().Format(timeFormat),
		s.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	return result, nil
}

func (r *SessionStore) List(ctx context.Context, filter domain.ListFilter) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM onboarding_sessions`
	var args []any

	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filter.Status))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// CancelWithCleanup persists the cancelled session and soft-deletes the
// admin account and tenant it references, all in one transaction. Either
// everything commits or nothing does; a session is never marked cancelled
// while orphaned live records remain.
func (r *SessionStore) CancelWithCleanup(ctx context.Context, s domain.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting cancellation transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeFormat)

	if s.AdminUserID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
			now, now, s.AdminUserID,
		); err != nil {
			return fmt.Errorf("soft-deleting admin account: %w", err)
		}
	}

	if s.TenantID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tenants SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
			now, now, s.TenantID,
		); err != nil {
			return fmt.Errorf("soft-deleting tenant: %w", err)
		}
	}

	if _, err := r.updateTx(ctx, tx, s); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cancellation: %w", err)
	}
	return nil
}

func encodeSession(s domain.Session) (steps, data string, err error) {
	completed := s.CompletedSteps
	if completed == nil {
		completed = []domain.Step{}
	}
	stepsBytes, err := json.Marshal(completed)
	if err != nil {
		return "", "", fmt.Errorf("encoding completed steps: %w", err)
	}
	dataBytes, err := json.Marshal(s.Data)
	if err != nil {
		return "", "", fmt.Errorf("encoding onboarding data: %w", err)
	}
	return string(stepsBytes), string(dataBytes), nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (domain.Session, error) {
	var s domain.Session
	var step, status, steps, data, createdAt, updatedAt string
	var tokenExpires, verifiedAt, estimated sql.NullString
	var sendWelcome, autoVerify int

	err := row.Scan(
		&s.ID, &step, &status, &steps, &s.TenantID, &s.AdminUserID,
		&s.BillingRef, &data, &s.VerificationToken, &tokenExpires, &verifiedAt,
		&s.FailureReason, &s.CancelReason, &s.IPAddress, &s.UserAgent,
		&s.NextAction, &estimated, &sendWelcome, &autoVerify, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("scanning session: %w", err)
	}

	s.CurrentStep = domain.Step(step)
	s.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(steps), &s.CompletedSteps); err != nil {
		return domain.Session{}, fmt.Errorf("decoding completed steps: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &s.Data); err != nil {
		return domain.Session{}, fmt.Errorf("decoding onboarding data: %w", err)
	}
	s.VerificationTokenExpiresAt = parseNullTime(tokenExpires)
	s.VerifiedAt = parseNullTime(verifiedAt)
	s.EstimatedCompletion = parseNullTime(estimated)
	s.SendWelcomeEmail = sendWelcome != 0
	s.AutoVerify = autoVerify != 0
	s.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	s.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
