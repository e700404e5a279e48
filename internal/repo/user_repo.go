package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	Upsert(ctx context.Context, user model.User) (model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, username, password_hash, name, is_admin, is_active, sector, created_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.IsAdmin, &u.IsActive, &u.Sector, &u.CreatedAt)
	return u, err
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by case-insensitive username match.
// Equality on lower() rather than ILIKE so '%' and '_' in input are not wildcards.
func (r *userRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// Upsert creates the user or, when the username already exists (case-insensitively),
// replaces its credential and profile fields. Used by provisioning tooling.
func (r *userRepo) Upsert(ctx context.Context, user model.User) (model.User, error) {
	query := `
		INSERT INTO users (username, password_hash, name, is_admin, is_active, sector)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ((lower(username))) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			name          = EXCLUDED.name,
			is_admin      = EXCLUDED.is_admin,
			is_active     = EXCLUDED.is_active,
			sector        = EXCLUDED.sector
		RETURNING ` + userColumns
	saved, err := scanUser(r.db.QueryRowContext(ctx, query,
		strings.TrimSpace(user.Username), user.PasswordHash, user.Name, user.IsAdmin, user.IsActive, user.Sector))
	if err != nil {
		return model.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return saved, nil
}
