package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
	"github.com/ir-comercio/ir-comercio-sistema/internal/repo"
)

// AuditLogger records login attempts. Record is best-effort: failures are logged and never reach the caller.
type AuditLogger interface {
	Record(ctx context.Context, attempt model.LoginAttempt)
}

// Auditor implements AuditLogger on top of the login_attempts table.
type Auditor struct {
	repo   repo.LoginAttemptRepo
	logger *zap.Logger
	tasks  background
}

// NewAuditor returns an Auditor writing to repo. logger may be nil.
func NewAuditor(attempts repo.LoginAttemptRepo, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")
	return &Auditor{repo: attempts, logger: logger, tasks: background{logger: logger}}
}

// Record writes the attempt asynchronously.
func (a *Auditor) Record(_ context.Context, attempt model.LoginAttempt) {
	if a == nil || a.repo == nil {
		return
	}
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = time.Now().UTC()
	}
	a.tasks.Go("record_login_attempt", func(ctx context.Context) error {
		return a.repo.Create(ctx, attempt)
	})
}

// Wait drains in-flight audit writes. Called on shutdown.
func (a *Auditor) Wait() {
	if a == nil {
		return
	}
	a.tasks.Wait()
}
