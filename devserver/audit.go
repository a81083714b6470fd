package devserver

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess           AuditEvent = "login_success"
	AuditLoginFailure           AuditEvent = "login_failure"
	AuditLoginRateLimited       AuditEvent = "login_rate_limited"
	AuditLogout                 AuditEvent = "logout"
	AuditPasswordChanged        AuditEvent = "password_changed"
	AuditResetInitiated         AuditEvent = "password_reset_initiated"
	AuditResetVerified          AuditEvent = "password_reset_verified"
	AuditResetFailure           AuditEvent = "password_reset_failure"
	AuditPasswordReset          AuditEvent = "password_reset"
	AuditRecoveryRateLimited    AuditEvent = "recovery_rate_limited"
	AuditSecurityQuestionsSaved AuditEvent = "security_questions_updated"
	AuditRecordCreated          AuditEvent = "record_created"
	AuditRecordUpdated          AuditEvent = "record_updated"
	AuditRecordDeleted          AuditEvent = "record_deleted"
	AuditContentUpdated         AuditEvent = "content_updated"
	AuditFileUploaded           AuditEvent = "file_uploaded"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", append(base, attrs...)...)
}

// logAdmin records an event performed by or on behalf of an admin. Only the
// admin id is logged, never the email.
func (al *auditLogger) logAdmin(event AuditEvent, r *http.Request, adminID string, extra ...slog.Attr) {
	al.log(event, r, append([]slog.Attr{slog.String("admin_id", adminID)}, extra...)...)
}

func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	al.log(event, r, append([]slog.Attr{slog.String("reason", reason)}, extra...)...)
}
