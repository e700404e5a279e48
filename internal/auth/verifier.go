package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ir-comercio/ir-comercio-sistema/internal/repo"
)

// Claims is the identity attached to a valid session
type Claims struct {
	UserID   uuid.UUID
	Username string
	Name     string
	Sector   string
	IsAdmin  bool
}

// Verifier validates session tokens presented by downstream services
type Verifier struct {
	sessions repo.SessionRepo
	policy   Policy
	logger   *zap.Logger
	tasks    background
}

// NewVerifier creates a new session verifier
func NewVerifier(sessions repo.SessionRepo, pol Policy, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("verify")
	return &Verifier{
		sessions: sessions,
		policy:   pol.withDefaults(),
		logger:   logger,
		tasks:    background{logger: logger},
	}
}

// Verify checks that token names an active, unexpired session of an active user and, for non-admins,
// that the business-hours window is open. Expired sessions and sessions of deactivated users are
// deactivated as a side effect; the business-hours check never deactivates.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, reject(ReasonTokenMissing)
	}
	tokenHash := HashSessionToken(token)
	now := v.policy.Clock.Now()

	found, err := v.sessions.FindActiveByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, reject(ReasonSessionNotFound)
		}
		return nil, &StorageError{Op: "find session", Err: err}
	}

	if !found.User.IsActive {
		v.deactivate(ctx, tokenHash, ReasonUserInactive)
		return nil, reject(ReasonUserInactive)
	}

	if now.After(found.Session.ExpiresAt) {
		v.deactivate(ctx, tokenHash, ReasonSessionExpired)
		return nil, reject(ReasonSessionExpired)
	}

	if !found.User.IsAdmin {
		if w := v.policy.Hours.Check(now); !w.Open {
			return nil, reject(ReasonOutsideBusinessHours)
		}
	}

	v.tasks.Go("touch_session", func(ctx context.Context) error {
		return v.sessions.TouchActivity(ctx, tokenHash, now)
	})

	return &Claims{
		UserID:   found.User.ID,
		Username: found.User.Username,
		Name:     found.User.Name,
		Sector:   found.User.Sector,
		IsAdmin:  found.User.IsAdmin,
	}, nil
}

// Wait drains in-flight last-activity updates.
func (v *Verifier) Wait() {
	v.tasks.Wait()
}

func (v *Verifier) deactivate(ctx context.Context, tokenHash string, reason Reason) {
	if err := v.sessions.Deactivate(ctx, tokenHash); err != nil {
		v.logger.Warn("deactivate session failed", zap.String("reason", string(reason)), zap.Error(err))
	}
}
