package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
)

// IssueParams carries everything needed to issue or renew the session of a (user, device) pair.
type IssueParams struct {
	UserID      uuid.UUID
	DeviceToken string
	TokenHash   string
	IPAddress   string
	ExpiresAt   time.Time
	Now         time.Time
}

// SessionRepo defines the interface for session repository operations
type SessionRepo interface {
	// Issue renews the active session of (user, device) in place, or inserts a new one.
	// renewed reports which branch was taken.
	Issue(ctx context.Context, p IssueParams) (session model.Session, renewed bool, err error)
	FindActiveByTokenHash(ctx context.Context, tokenHash string) (model.SessionWithUser, error)
	Deactivate(ctx context.Context, tokenHash string) error
	Logout(ctx context.Context, tokenHash string, at time.Time) error
	TouchActivity(ctx context.Context, tokenHash string, at time.Time) error
	CountActive(ctx context.Context, userID uuid.UUID, deviceToken string) (int, error)
}

type sessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new SessionRepo instance
func NewSessionRepo(db *sql.DB) SessionRepo {
	return &sessionRepo{db: db}
}

const sessionColumns = `id, user_id, device_token, token_hash, ip_address, expires_at, is_active, last_activity, logout_at, created_at`

func scanSession(row interface{ Scan(...any) error }) (model.Session, error) {
	var s model.Session
	err := row.Scan(&s.ID, &s.UserID, &s.DeviceToken, &s.TokenHash, &s.IPAddress,
		&s.ExpiresAt, &s.IsActive, &s.LastActivity, &s.LogoutAt, &s.CreatedAt)
	return s, err
}

// Issue keeps at most one active session per (user, device). Concurrent logins for the same pair
// are serialized with a transaction-scoped advisory lock; the partial unique index
// active_sessions_one_active_per_device backs this up at the storage level.
func (r *sessionRepo) Issue(ctx context.Context, p IssueParams) (model.Session, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Session{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Blocks until we hold the lock; released on COMMIT/ROLLBACK.
	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(2, hashtext($1))`, p.UserID.String()+":"+p.DeviceToken)
	if err != nil {
		return model.Session{}, false, fmt.Errorf("advisory lock: %w", err)
	}

	existing, err := scanSession(tx.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM active_sessions
		WHERE user_id = $1 AND device_token = $2 AND is_active
		LIMIT 1
		FOR UPDATE
	`, p.UserID, p.DeviceToken))

	var (
		session model.Session
		renewed bool
	)
	switch {
	case err == nil:
		session, err = scanSession(tx.QueryRowContext(ctx, `
			UPDATE active_sessions
			SET token_hash = $2, ip_address = $3, expires_at = $4, last_activity = $5
			WHERE id = $1
			RETURNING `+sessionColumns,
			existing.ID, p.TokenHash, p.IPAddress, p.ExpiresAt, p.Now))
		if err != nil {
			return model.Session{}, false, fmt.Errorf("renew session: %w", err)
		}
		renewed = true
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			UPDATE active_sessions SET is_active = FALSE
			WHERE user_id = $1 AND device_token = $2 AND is_active
		`, p.UserID, p.DeviceToken)
		if err != nil {
			return model.Session{}, false, fmt.Errorf("deactivate stale sessions: %w", err)
		}
		session, err = scanSession(tx.QueryRowContext(ctx, `
			INSERT INTO active_sessions
				(user_id, device_token, token_hash, ip_address, expires_at, is_active, last_activity)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6)
			RETURNING `+sessionColumns,
			p.UserID, p.DeviceToken, p.TokenHash, p.IPAddress, p.ExpiresAt, p.Now))
		if err != nil {
			return model.Session{}, false, fmt.Errorf("insert session: %w", err)
		}
	default:
		return model.Session{}, false, fmt.Errorf("find active session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Session{}, false, fmt.Errorf("commit: %w", err)
	}
	return session, renewed, nil
}

// FindActiveByTokenHash returns the active session with the given token hash joined with its user
func (r *sessionRepo) FindActiveByTokenHash(ctx context.Context, tokenHash string) (model.SessionWithUser, error) {
	var out model.SessionWithUser
	s, u := &out.Session, &out.User
	err := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.user_id, s.device_token, s.token_hash, s.ip_address, s.expires_at,
		       s.is_active, s.last_activity, s.logout_at, s.created_at,
		       u.id, u.username, u.name, u.is_admin, u.is_active, u.sector
		FROM active_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1 AND s.is_active
	`, tokenHash).Scan(
		&s.ID, &s.UserID, &s.DeviceToken, &s.TokenHash, &s.IPAddress, &s.ExpiresAt,
		&s.IsActive, &s.LastActivity, &s.LogoutAt, &s.CreatedAt,
		&u.ID, &u.Username, &u.Name, &u.IsAdmin, &u.IsActive, &u.Sector,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SessionWithUser{}, fmt.Errorf("active session: %w", ErrNotFound)
		}
		return model.SessionWithUser{}, fmt.Errorf("find session: %w", err)
	}
	return out, nil
}

// Deactivate marks the session inactive. Deactivating an inactive or unknown session is a no-op.
func (r *sessionRepo) Deactivate(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE active_sessions SET is_active = FALSE WHERE token_hash = $1 AND is_active
	`, tokenHash)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

// Logout deactivates the session and stamps logout_at once; repeated calls keep the first stamp.
func (r *sessionRepo) Logout(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE active_sessions
		SET is_active = FALSE, logout_at = COALESCE(logout_at, $2)
		WHERE token_hash = $1
	`, tokenHash, at)
	if err != nil {
		return fmt.Errorf("logout session: %w", err)
	}
	return nil
}

// TouchActivity moves last_activity forward. GREATEST keeps concurrent touches order-independent.
func (r *sessionRepo) TouchActivity(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE active_sessions
		SET last_activity = GREATEST(last_activity, $2)
		WHERE token_hash = $1 AND is_active
	`, tokenHash, at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// CountActive returns the number of active sessions for (user, device)
func (r *sessionRepo) CountActive(ctx context.Context, userID uuid.UUID, deviceToken string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM active_sessions
		WHERE user_id = $1 AND device_token = $2 AND is_active
	`, userID, deviceToken).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}
