package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
	"github.com/ir-comercio/ir-comercio-sistema/internal/policy"
	"github.com/ir-comercio/ir-comercio-sistema/internal/repo"
)

const (
	// DefaultSessionTTL is the validity window of a freshly issued session.
	DefaultSessionTTL = 8 * time.Hour

	// maxUserAgentLen matches the authorized_devices column limit with headroom.
	maxUserAgentLen  = 95
	unknownUserAgent = "Unknown"
)

// Policy bundles the access checks and clock shared by login and verification.
type Policy struct {
	AllowList  *policy.AllowList
	Hours      *policy.BusinessHours
	Clock      policy.Clock
	SessionTTL time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.Clock == nil {
		p.Clock = policy.SystemClock{}
	}
	if p.Hours == nil {
		p.Hours = policy.NewBusinessHours(nil, policy.DefaultOpenHour, policy.DefaultCloseHour)
	}
	if p.SessionTTL <= 0 {
		p.SessionTTL = DefaultSessionTTL
	}
	return p
}

// LoginRequest is the input to Login
type LoginRequest struct {
	Username    string
	Password    string
	DeviceToken string
	UserAgent   string
	IP          string
}

// SessionResult is returned by a successful login
type SessionResult struct {
	UserID       uuid.UUID
	Username     string
	Name         string
	Sector       string
	IsAdmin      bool
	SessionToken string
	DeviceToken  string
	IP           string
	ExpiresAt    time.Time
	Renewed      bool
}

// Service is the session authority: it issues, renews and ends sessions
type Service struct {
	users    repo.UserRepo
	devices  repo.DeviceRepo
	sessions repo.SessionRepo
	audit    AuditLogger
	hasher   *PasswordHasher
	policy   Policy
	logger   *zap.Logger

	newToken      func() (string, string, error)
	matchPassword func(hash, password string) bool
}

// NewService creates a new session authority
func NewService(
	users repo.UserRepo,
	devices repo.DeviceRepo,
	sessions repo.SessionRepo,
	audit AuditLogger,
	hasher *PasswordHasher,
	pol Policy,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hasher == nil {
		hasher = NewPasswordHasher(0)
	}
	return &Service{
		users:    users,
		devices:  devices,
		sessions: sessions,
		audit:    audit,
		hasher:   hasher,
		policy:   pol.withDefaults(),
		logger:   logger.Named("auth"),
		newToken: GenerateSessionToken,

		matchPassword: hasher.Matches,
	}
}

// Login runs the ordered login pipeline. The first failing check ends the attempt and is audited with its reason.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*SessionResult, error) {
	now := s.policy.Clock.Now()
	allowed, ip := s.policy.AllowList.Check(req.IP)

	fail := func(reason Reason) error {
		s.record(ctx, req, ip, now, &reason)
		s.logger.Info("login rejected",
			zap.String("username", req.Username),
			zap.String("ip", ip),
			zap.String("reason", string(reason)),
		)
		return reject(reason)
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" || strings.TrimSpace(req.DeviceToken) == "" {
		return nil, fail(ReasonMissingFields)
	}

	if !allowed {
		return nil, fail(ReasonIPNotAuthorized)
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.matchPassword(s.hasher.DummyHash(), req.Password)
			return nil, fail(ReasonUserNotFound)
		}
		return nil, &StorageError{Op: "lookup user", Err: err}
	}

	if !user.IsActive {
		s.matchPassword(s.hasher.DummyHash(), req.Password)
		return nil, fail(ReasonUserInactive)
	}

	if !user.IsAdmin {
		if w := s.policy.Hours.Check(now); !w.Open {
			s.logger.Debug("outside business hours", zap.Int("weekday", w.Weekday), zap.Int("hour", w.Hour))
			return nil, fail(ReasonOutsideBusinessHours)
		}
	}

	if !s.matchPassword(user.PasswordHash, req.Password) {
		return nil, fail(ReasonWrongPassword)
	}

	userAgent := truncate(req.UserAgent, maxUserAgentLen)
	if userAgent == "" {
		userAgent = unknownUserAgent
	}
	_, err = s.devices.Upsert(ctx, model.Device{
		UserID:      user.ID,
		DeviceToken: req.DeviceToken,
		Fingerprint: deviceFingerprint(req.DeviceToken, req.UserAgent),
		DeviceName:  userAgent,
		IPAddress:   ip,
		UserAgent:   userAgent,
		IsActive:    true,
		LastAccess:  now,
	})
	if err != nil {
		return nil, &StorageError{Op: "register device", Err: err}
	}

	token, tokenHash, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	expiresAt := now.Add(s.policy.SessionTTL)

	params := repo.IssueParams{
		UserID:      user.ID,
		DeviceToken: req.DeviceToken,
		TokenHash:   tokenHash,
		IPAddress:   ip,
		ExpiresAt:   expiresAt,
		Now:         now,
	}
	session, renewed, err := s.sessions.Issue(ctx, params)
	if err != nil && repo.IsUniqueViolation(err) {
		// A concurrent login for the same device won the insert; retrying takes the renewal path.
		session, renewed, err = s.sessions.Issue(ctx, params)
	}
	if err != nil {
		return nil, &StorageError{Op: "issue session", Err: err}
	}

	s.record(ctx, req, ip, now, nil)
	s.logger.Info("login succeeded",
		zap.String("username", user.Username),
		zap.String("ip", ip),
		zap.String("session_id", session.ID.String()),
		zap.Bool("renewed", renewed),
	)

	return &SessionResult{
		UserID:       user.ID,
		Username:     user.Username,
		Name:         user.Name,
		Sector:       user.Sector,
		IsAdmin:      user.IsAdmin,
		SessionToken: token,
		DeviceToken:  req.DeviceToken,
		IP:           ip,
		ExpiresAt:    expiresAt,
		Renewed:      renewed,
	}, nil
}

// Logout deactivates the session identified by token. Unknown or already ended sessions are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return reject(ReasonTokenMissing)
	}
	if err := s.sessions.Logout(ctx, HashSessionToken(token), s.policy.Clock.Now()); err != nil {
		return &StorageError{Op: "logout", Err: err}
	}
	s.logger.Info("logout", zap.String("token", maskToken(token)))
	return nil
}

// Policy returns the access policy in effect.
func (s *Service) Policy() Policy {
	return s.policy
}

// Wait drains in-flight audit writes when the audit logger supports it.
func (s *Service) Wait() {
	if w, ok := s.audit.(interface{ Wait() }); ok {
		w.Wait()
	}
}

func (s *Service) record(ctx context.Context, req LoginRequest, ip string, at time.Time, reason *Reason) {
	if s.audit == nil {
		return
	}
	attempt := model.LoginAttempt{
		Username:    req.Username,
		IPAddress:   ip,
		DeviceToken: req.DeviceToken,
		Success:     reason == nil,
		Timestamp:   at,
	}
	if reason != nil {
		r := string(*reason)
		attempt.FailureReason = &r
	}
	s.audit.Record(ctx, attempt)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
