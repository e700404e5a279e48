package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a rejection.
type Kind int

const (
	// KindPolicy is a workplace policy rejection (network, business hours).
	KindPolicy Kind = iota + 1
	// KindAuthentication is a credential failure; user-facing text stays generic.
	KindAuthentication
	// KindSessionInvalid means the presented session token cannot be used.
	KindSessionInvalid
	// KindBadRequest means required input was missing.
	KindBadRequest
)

// Reason is the machine-readable rejection code recorded in the audit trail and returned by verify-session.
type Reason string

const (
	ReasonMissingFields        Reason = "missing_fields"
	ReasonIPNotAuthorized      Reason = "ip_not_authorized"
	ReasonUserNotFound         Reason = "user_not_found"
	ReasonUserInactive         Reason = "user_inactive"
	ReasonOutsideBusinessHours Reason = "outside_business_hours"
	ReasonWrongPassword        Reason = "wrong_password"
	ReasonTokenMissing         Reason = "token_missing"
	ReasonSessionNotFound      Reason = "session_not_found"
	ReasonSessionExpired       Reason = "session_expired"
)

const (
	msgInvalidCredentials = "incorrect username or password"
	msgIPNotAuthorized    = "This access is not authorized outside the authorized workplace network."
	msgOutsideHours       = "This access is available only during the company's business hours."
)

// Rejection is a non-retryable, caller-visible refusal. Message is safe to show to end users.
type Rejection struct {
	Kind    Kind
	Reason  Reason
	Summary string
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Summary)
}

// Status maps the rejection to its HTTP status code.
func (r *Rejection) Status() int {
	switch r.Reason {
	case ReasonMissingFields, ReasonTokenMissing:
		return http.StatusBadRequest
	case ReasonIPNotAuthorized, ReasonOutsideBusinessHours:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

func reject(reason Reason) *Rejection {
	switch reason {
	case ReasonMissingFields:
		return &Rejection{Kind: KindBadRequest, Reason: reason, Summary: "missing required fields"}
	case ReasonTokenMissing:
		return &Rejection{Kind: KindBadRequest, Reason: reason, Summary: "session token missing"}
	case ReasonIPNotAuthorized:
		return &Rejection{Kind: KindPolicy, Reason: reason, Summary: "access denied", Message: msgIPNotAuthorized}
	case ReasonOutsideBusinessHours:
		return &Rejection{Kind: KindPolicy, Reason: reason, Summary: "outside business hours", Message: msgOutsideHours}
	case ReasonUserNotFound, ReasonUserInactive, ReasonWrongPassword:
		return &Rejection{Kind: KindAuthentication, Reason: reason, Summary: msgInvalidCredentials}
	default:
		return &Rejection{Kind: KindSessionInvalid, Reason: reason, Summary: "invalid session"}
	}
}

// AsRejection extracts a *Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// StorageError wraps a datastore failure. It surfaces as a 500 with diagnostic detail.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
