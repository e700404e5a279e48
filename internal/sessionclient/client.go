// Package sessionclient lets protected services ask the portal whether a session token is still valid.
package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single verify-session round trip.
const DefaultTimeout = 3 * time.Second

var (
	// ErrInvalidSession means the portal answered and rejected the token.
	ErrInvalidSession = errors.New("invalid session")
	// ErrUnavailable means the portal could not be reached or answered garbage.
	ErrUnavailable = errors.New("session service unavailable")
)

// Identity is the user behind a valid session.
type Identity struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Sector   string    `json:"sector"`
	IsAdmin  bool      `json:"isAdmin"`
}

// Verifier checks a session token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// RejectedError carries the portal's reason code. It matches ErrInvalidSession under errors.Is.
type RejectedError struct {
	Status int
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid session (status %d)", e.Status)
	}
	return fmt.Sprintf("invalid session: %s", e.Reason)
}

func (e *RejectedError) Is(target error) bool { return target == ErrInvalidSession }

// Client calls POST {portal}/api/verify-session.
type Client struct {
	endpoint string
	http     *http.Client
}

// New returns a Client for the portal at baseURL. A non-positive timeout means DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/verify-session",
		http:     &http.Client{Timeout: timeout},
	}
}

type verifyRequest struct {
	SessionToken string `json:"sessionToken"`
}

type verifyResponse struct {
	Valid   bool      `json:"valid"`
	Reason  string    `json:"reason"`
	Session *Identity `json:"session"`
}

// Verify asks the portal about token. Every failure mode maps to ErrInvalidSession or ErrUnavailable.
func (c *Client) Verify(ctx context.Context, token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &RejectedError{Status: http.StatusBadRequest, Reason: "token_missing"}
	}

	body, err := json.Marshal(verifyRequest{SessionToken: token})
	if err != nil {
		return nil, fmt.Errorf("encode verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var out verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return nil, &RejectedError{Status: resp.StatusCode}
	}

	if resp.StatusCode >= 500 && !out.Valid {
		return nil, fmt.Errorf("%w: status %d (%s)", ErrUnavailable, resp.StatusCode, out.Reason)
	}
	if resp.StatusCode != http.StatusOK || !out.Valid || out.Session == nil {
		return nil, &RejectedError{Status: resp.StatusCode, Reason: out.Reason}
	}
	return out.Session, nil
}
