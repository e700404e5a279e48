package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
	"github.com/ir-comercio/ir-comercio-sistema/internal/repo"
)

// memStore is an in-memory stand-in for the users, devices, sessions and login_attempts tables.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]model.User
	devices  map[string]model.Device
	sessions []*model.Session
	attempts []model.LoginAttempt

	userErr    error
	attemptErr error
	touches    int
}

var (
	_ repo.UserRepo         = (*memStore)(nil)
	_ repo.SessionRepo      = (*memStore)(nil)
	_ repo.DeviceRepo       = deviceStore{}
	_ repo.LoginAttemptRepo = attemptStore{}
)

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[uuid.UUID]model.User),
		devices: make(map[string]model.Device),
	}
}

func (m *memStore) addUser(u model.User) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) setUserActive(id uuid.UUID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.IsActive = active
	m.users[id] = u
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userErr != nil {
		return model.User{}, m.userErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Username, strings.TrimSpace(username)) {
			return u, nil
		}
	}
	return model.User{}, fmt.Errorf("user: %w", repo.ErrNotFound)
}

func (m *memStore) Upsert(_ context.Context, u model.User) (model.User, error) {
	return m.addUser(u), nil
}

type deviceStore struct{ *memStore }

func (d deviceStore) Upsert(_ context.Context, dev model.Device) (model.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.devices[dev.DeviceToken]; ok {
		dev.ID = existing.ID
		dev.CreatedAt = existing.CreatedAt
	} else {
		dev.ID = uuid.New()
		dev.CreatedAt = dev.LastAccess
	}
	d.devices[dev.DeviceToken] = dev
	return dev, nil
}

func (m *memStore) deviceRepo() repo.DeviceRepo { return deviceStore{m} }

func (m *memStore) Issue(_ context.Context, p repo.IssueParams) (model.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.IsActive && s.UserID == p.UserID && s.DeviceToken == p.DeviceToken {
			s.TokenHash = p.TokenHash
			s.IPAddress = p.IPAddress
			s.ExpiresAt = p.ExpiresAt
			s.LastActivity = p.Now
			return *s, true, nil
		}
	}
	s := &model.Session{
		ID:           uuid.New(),
		UserID:       p.UserID,
		DeviceToken:  p.DeviceToken,
		TokenHash:    p.TokenHash,
		IPAddress:    p.IPAddress,
		ExpiresAt:    p.ExpiresAt,
		IsActive:     true,
		LastActivity: p.Now,
		CreatedAt:    p.Now,
	}
	m.sessions = append(m.sessions, s)
	return *s, false, nil
}

func (m *memStore) findByHash(tokenHash string) *model.Session {
	for _, s := range m.sessions {
		if s.TokenHash == tokenHash {
			return s
		}
	}
	return nil
}

func (m *memStore) FindActiveByTokenHash(_ context.Context, tokenHash string) (model.SessionWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.findByHash(tokenHash)
	if s == nil || !s.IsActive {
		return model.SessionWithUser{}, repo.ErrNotFound
	}
	return model.SessionWithUser{Session: *s, User: m.users[s.UserID]}, nil
}

func (m *memStore) Deactivate(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.findByHash(tokenHash); s != nil {
		s.IsActive = false
	}
	return nil
}

func (m *memStore) Logout(_ context.Context, tokenHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.findByHash(tokenHash); s != nil {
		s.IsActive = false
		if s.LogoutAt == nil {
			s.LogoutAt = &at
		}
	}
	return nil
}

func (m *memStore) TouchActivity(_ context.Context, tokenHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touches++
	if s := m.findByHash(tokenHash); s != nil && s.IsActive && at.After(s.LastActivity) {
		s.LastActivity = at
	}
	return nil
}

func (m *memStore) CountActive(_ context.Context, userID uuid.UUID, deviceToken string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.IsActive && s.UserID == userID && s.DeviceToken == deviceToken {
			n++
		}
	}
	return n, nil
}

func (m *memStore) session(tokenHash string) (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.findByHash(tokenHash)
	if s == nil {
		return model.Session{}, false
	}
	return *s, true
}

type attemptStore struct{ *memStore }

func (a attemptStore) Create(_ context.Context, attempt model.LoginAttempt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attemptErr != nil {
		return a.attemptErr
	}
	a.attempts = append(a.attempts, attempt)
	return nil
}

func (a attemptStore) CountByReason(_ context.Context, username, reason string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, at := range a.attempts {
		if at.Username != username {
			continue
		}
		if reason == "" && at.Success {
			n++
		}
		if reason != "" && at.FailureReason != nil && *at.FailureReason == reason {
			n++
		}
	}
	return n, nil
}

func (m *memStore) attemptRepo() repo.LoginAttemptRepo { return attemptStore{m} }

func (m *memStore) recorded() []model.LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.LoginAttempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}

var errStoreDown = errors.New("connection refused")
