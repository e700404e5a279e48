package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ir-comercio/ir-comercio-sistema/internal/auth"
	"github.com/ir-comercio/ir-comercio-sistema/internal/middleware"
	"github.com/ir-comercio/ir-comercio-sistema/internal/policy"
)

// SessionAuthority issues and ends sessions
type SessionAuthority interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.SessionResult, error)
	Logout(ctx context.Context, token string) error
}

// SessionVerifier validates session tokens
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthHandler handles the portal's session endpoints
type AuthHandler struct {
	authority SessionAuthority
	verifier  SessionVerifier
	policy    auth.Policy
	logger    *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authority SessionAuthority, verifier SessionVerifier, pol auth.Policy, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pol.Clock == nil {
		pol.Clock = policy.SystemClock{}
	}
	if pol.Hours == nil {
		pol.Hours = policy.NewBusinessHours(nil, policy.DefaultOpenHour, policy.DefaultCloseHour)
	}
	return &AuthHandler{authority: authority, verifier: verifier, policy: pol, logger: logger.Named("portal")}
}

// loginRequest is the request body for POST /api/login
type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DeviceToken string `json:"deviceToken"`
}

type sessionResponse struct {
	UserID       uuid.UUID `json:"userId"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Sector       string    `json:"sector"`
	IsAdmin      bool      `json:"isAdmin"`
	SessionToken string    `json:"sessionToken"`
	DeviceToken  string    `json:"deviceToken"`
	IP           string    `json:"ip"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type loginResponse struct {
	Success bool            `json:"success"`
	Session sessionResponse `json:"session"`
}

type rejectionResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HandleLogin handles POST /api/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.authority.Login(r.Context(), auth.LoginRequest{
		Username:    req.Username,
		Password:    req.Password,
		DeviceToken: strings.TrimSpace(req.DeviceToken),
		UserAgent:   r.UserAgent(),
		IP:          policy.ClientIP(r),
	})
	if err != nil {
		if rej, ok := auth.AsRejection(err); ok {
			respondJSON(w, rej.Status(), rejectionResponse{Error: rej.Summary, Message: rej.Message})
			return
		}
		h.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		respondServerError(w, "internal server error", err)
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Session: sessionResponse{
			UserID:       res.UserID,
			Username:     res.Username,
			Name:         res.Name,
			Sector:       res.Sector,
			IsAdmin:      res.IsAdmin,
			SessionToken: res.SessionToken,
			DeviceToken:  res.DeviceToken,
			IP:           res.IP,
			ExpiresAt:    res.ExpiresAt.UTC(),
		},
	})
}

// tokenRequest is the request body for POST /api/logout and /api/verify-session
type tokenRequest struct {
	SessionToken string `json:"sessionToken"`
}

func (h *AuthHandler) readToken(r *http.Request) (string, bool) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		return "", false
	}
	if token := strings.TrimSpace(req.SessionToken); token != "" {
		return token, true
	}
	return middleware.SessionToken(r), true
}

// HandleLogout handles POST /api/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := h.readToken(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.authority.Logout(r.Context(), token); err != nil {
		if rej, ok := auth.AsRejection(err); ok {
			respondWithError(w, rej.Status(), rej.Summary)
			return
		}
		h.logger.Error("logout failed", zap.Error(err))
		respondServerError(w, "failed to log out", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type claimsResponse struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Sector   string    `json:"sector"`
	IsAdmin  bool      `json:"isAdmin"`
}

type verifyResponse struct {
	Valid   bool            `json:"valid"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Session *claimsResponse `json:"session,omitempty"`
}

// HandleVerifySession handles POST /api/verify-session
func (h *AuthHandler) HandleVerifySession(w http.ResponseWriter, r *http.Request) {
	token, ok := h.readToken(r)
	if !ok {
		respondJSON(w, http.StatusBadRequest, verifyResponse{Reason: string(auth.ReasonTokenMissing)})
		return
	}

	claims, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		if rej, ok := auth.AsRejection(err); ok {
			respondJSON(w, rej.Status(), verifyResponse{Reason: string(rej.Reason), Message: rej.Message})
			return
		}
		h.logger.Error("verify session failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, verifyResponse{
			Reason: "server_error",
			Error:  "failed to verify session",
		})
		return
	}

	respondJSON(w, http.StatusOK, verifyResponse{
		Valid: true,
		Session: &claimsResponse{
			UserID:   claims.UserID,
			Username: claims.Username,
			Name:     claims.Name,
			Sector:   claims.Sector,
			IsAdmin:  claims.IsAdmin,
		},
	})
}

// HandleIP handles GET /api/ip
func (h *AuthHandler) HandleIP(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"ip": policy.ClientIP(r)})
}

// HandleCheckIPAccess handles GET /api/check-ip-access. The allow-list itself is never disclosed.
func (h *AuthHandler) HandleCheckIPAccess(w http.ResponseWriter, r *http.Request) {
	authorized, ip := h.policy.AllowList.Check(policy.ClientIP(r))
	h.logger.Debug("ip access check", zap.String("ip", ip), zap.Bool("authorized", authorized))
	respondJSON(w, http.StatusOK, map[string]any{
		"authorized": authorized,
		"ip":         ip,
	})
}

// HandleBusinessHours handles GET /api/business-hours
func (h *AuthHandler) HandleBusinessHours(w http.ResponseWriter, r *http.Request) {
	win := h.policy.Hours.Check(h.policy.Clock.Now())
	respondJSON(w, http.StatusOK, map[string]any{
		"isBusinessHours": win.Open,
		"currentTime":     win.Local.Format("02/01/2006 15:04:05"),
		"timezone":        h.policy.Hours.Location().String(),
		// day follows the Sunday=0 convention of the browser clients.
		"day":  win.Weekday % 7,
		"hour": win.Hour,
	})
}
