package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
)

// LoginAttemptRepo persists the append-only login audit trail
type LoginAttemptRepo interface {
	Create(ctx context.Context, attempt model.LoginAttempt) error
	CountByReason(ctx context.Context, username, reason string) (int, error)
}

type loginAttemptRepo struct {
	db *sql.DB
}

// NewLoginAttemptRepo creates a new LoginAttemptRepo instance
func NewLoginAttemptRepo(db *sql.DB) LoginAttemptRepo {
	return &loginAttemptRepo{db: db}
}

// Create appends a login attempt
func (r *loginAttemptRepo) Create(ctx context.Context, a model.LoginAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_attempts (id, username, ip_address, device_token, success, failure_reason, "timestamp")
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.Username, a.IPAddress, a.DeviceToken, a.Success, a.FailureReason, a.Timestamp)
	if err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	return nil
}

// CountByReason counts attempts for the username as typed. An empty reason counts successes.
func (r *loginAttemptRepo) CountByReason(ctx context.Context, username, reason string) (int, error) {
	var count int
	var err error
	if reason == "" {
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM login_attempts WHERE username = $1 AND success
		`, username).Scan(&count)
	} else {
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM login_attempts WHERE username = $1 AND failure_reason = $2
		`, username, reason).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count login attempts: %w", err)
	}
	return count, nil
}
