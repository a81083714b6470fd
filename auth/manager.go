// Package auth manages the admin's authentication state against the remote
// API: login and logout, profile refresh, password change, security
// questions and the three remote calls of password recovery.
//
// The manager never retries and never translates transport errors; every
// *client.Error reaches the caller unchanged.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmcleod/folio/client"
	"github.com/jmcleod/folio/session"
)

const (
	// MinPasswordLength is the minimum length of a new admin password.
	MinPasswordLength = 8
	// MinAnswerLength is the minimum trimmed length of a security answer
	// when the questions are configured.
	MinAnswerLength = 2
	// QuestionCount is the number of security questions an admin keeps.
	QuestionCount = 3
)

const (
	pathLogin             = "/admin/login"
	pathLogout            = "/admin/logout"
	pathProfile           = "/admin/profile"
	pathChangePassword    = "/admin/change-password"
	pathInitiateReset     = "/admin/forgot-password/initiate"
	pathVerifyAnswers     = "/admin/forgot-password/verify"
	pathResetPassword     = "/admin/forgot-password/reset"
	pathSecurityQuestions = "/admin/security-questions"
)

// API is the subset of *client.Client the manager uses.
type API interface {
	Get(ctx context.Context, path string, out any, opts ...client.RequestOption) error
	Post(ctx context.Context, path string, body, out any, opts ...client.RequestOption) error
	Put(ctx context.Context, path string, body, out any, opts ...client.RequestOption) error
}

// Manager is the authentication state manager. Its state is the session
// store: authenticated iff the store holds a session.
type Manager struct {
	api      API
	sessions *session.Store
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New returns a Manager. The session store should already be initialised.
func New(api API, sessions *session.Store, opts ...Option) *Manager {
	m := &Manager{
		api:      api,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "auth")
	return m
}

// IsAuthenticated reports whether a session is held in memory. It does not
// re-read storage.
func (m *Manager) IsAuthenticated() bool {
	return m.sessions.Authenticated()
}

// Admin returns the current admin profile.
func (m *Manager) Admin() (session.Admin, bool) {
	sess, ok := m.sessions.Current()
	return sess.Admin, ok
}

// Login authenticates and persists the session. On any failure nothing is
// written and the previous state is kept.
func (m *Manager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var resp client.Envelope[LoginResult]
	err := m.api.Post(ctx, pathLogin, LoginRequest{Email: strings.TrimSpace(email), Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data.Token == "" {
		return nil, rejected("login", resp.Message, "Login failed")
	}
	if err := m.sessions.Save(session.Session{Token: resp.Data.Token, Admin: resp.Data.Admin}); err != nil {
		return nil, err
	}
	m.logger.Info("logged in", slog.String("admin_id", resp.Data.Admin.ID))
	return &resp.Data, nil
}

// Logout tells the server best-effort and always clears the local session.
// Only a failure to clear local storage is returned.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.api.Post(ctx, pathLogout, nil, nil); err != nil {
		m.logger.Warn("remote logout failed", slog.String("error", err.Error()))
	}
	return m.sessions.Clear()
}

// Profile fetches the admin profile and refreshes the stored copy.
func (m *Manager) Profile(ctx context.Context) (*session.Admin, error) {
	if !m.sessions.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	var resp client.Envelope[session.Admin]
	if err := m.api.Get(ctx, pathProfile, &resp); err != nil {
		return nil, err
	}
	if err := m.sessions.UpdateAdmin(resp.Data); err != nil {
		// A logout racing the refresh leaves nothing to update.
		if !errors.Is(err, session.ErrNoSession) {
			return nil, err
		}
	}
	return &resp.Data, nil
}

// ChangePassword changes the password of the logged-in admin.
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return &ValidationError{Field: "currentPassword", Message: "Current password is required"}
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	var resp client.Envelope[struct{}]
	req := ChangePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword}
	if err := m.api.Put(ctx, pathChangePassword, req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return rejected("change-password", resp.Message, "Failed to change password")
	}
	return nil
}

// InitiatePasswordReset starts recovery for email. It has no local effect.
func (m *Manager) InitiatePasswordReset(ctx context.Context, email string) (*ResetChallenge, error) {
	var resp client.Envelope[ResetChallenge]
	if err := m.api.Post(ctx, pathInitiateReset, InitiateResetRequest{Email: strings.TrimSpace(email)}, &resp); err != nil {
		return nil, err
	}
	const fallback = "Failed to initiate password reset"
	if !resp.Success {
		return nil, rejected("initiate-reset", resp.Message, fallback)
	}
	if resp.Data.ResetToken == "" {
		return nil, missingToken("initiate-reset", resp.Message, fallback)
	}
	return &resp.Data, nil
}

// VerifySecurityQuestions exchanges a reset token and ordered answers for a
// verification token.
func (m *Manager) VerifySecurityQuestions(ctx context.Context, resetToken string, answers []string) (*Verification, error) {
	var resp client.Envelope[Verification]
	req := VerifyAnswersRequest{ResetToken: resetToken, Answers: answers}
	if err := m.api.Post(ctx, pathVerifyAnswers, req, &resp); err != nil {
		return nil, err
	}
	const fallback = "Security answers could not be verified"
	if !resp.Success {
		return nil, rejected("verify-answers", resp.Message, fallback)
	}
	if resp.Data.VerificationToken == "" {
		return nil, missingToken("verify-answers", resp.Message, fallback)
	}
	return &resp.Data, nil
}

// ResetPassword sets a new password using a verification token.
func (m *Manager) ResetPassword(ctx context.Context, verificationToken, newPassword string) error {
	var resp client.Envelope[struct{}]
	req := ResetPasswordRequest{VerificationToken: verificationToken, NewPassword: newPassword}
	if err := m.api.Post(ctx, pathResetPassword, req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return rejected("reset-password", resp.Message, "Failed to reset password")
	}
	return nil
}

// SecurityQuestions returns the configured questions of the logged-in admin.
func (m *Manager) SecurityQuestions(ctx context.Context) ([]SecurityQuestion, error) {
	var resp client.Envelope[SecurityQuestionsResponse]
	if err := m.api.Get(ctx, pathSecurityQuestions, &resp); err != nil {
		return nil, err
	}
	return resp.Data.Questions, nil
}

// UpdateSecurityQuestions replaces the admin's security questions after
// validating them locally.
func (m *Manager) UpdateSecurityQuestions(ctx context.Context, qas []QuestionAnswer) error {
	if err := ValidateSecurityQuestions(qas); err != nil {
		return err
	}
	cleaned := make([]QuestionAnswer, len(qas))
	for i, qa := range qas {
		cleaned[i] = QuestionAnswer{Question: strings.TrimSpace(qa.Question), Answer: strings.TrimSpace(qa.Answer)}
	}
	var resp client.Envelope[struct{}]
	if err := m.api.Put(ctx, pathSecurityQuestions, UpdateSecurityQuestionsRequest{Questions: cleaned}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return rejected("security-questions", resp.Message, "Failed to update security questions")
	}
	return nil
}

// TokenExpiry reports the exp claim of the stored token when it is a JWT.
// The signature is not checked; this is for display only.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	token := m.sessions.Token()
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ValidatePassword applies the local new-password rules.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{
			Field:   "newPassword",
			Message: fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength),
		}
	}
	return nil
}

// ValidateSecurityQuestions checks the admin settings rules: exactly
// QuestionCount entries, non-empty questions without duplicates (ignoring
// case), and answers of at least MinAnswerLength characters.
func ValidateSecurityQuestions(qas []QuestionAnswer) error {
	if len(qas) != QuestionCount {
		return &ValidationError{
			Field:   "questions",
			Message: fmt.Sprintf("Exactly %d security questions are required", QuestionCount),
		}
	}
	seen := make(map[string]bool, len(qas))
	for i, qa := range qas {
		q := strings.TrimSpace(qa.Question)
		if q == "" {
			return &ValidationError{Field: fmt.Sprintf("questions[%d].question", i), Message: fmt.Sprintf("Question %d is required", i+1)}
		}
		key := strings.ToLower(q)
		if seen[key] {
			return &ValidationError{Field: fmt.Sprintf("questions[%d].question", i), Message: "Each security question must be different"}
		}
		seen[key] = true
		if utf8.RuneCountInString(strings.TrimSpace(qa.Answer)) < MinAnswerLength {
			return &ValidationError{
				Field:   fmt.Sprintf("questions[%d].answer", i),
				Message: fmt.Sprintf("Answer %d must be at least %d characters", i+1, MinAnswerLength),
			}
		}
	}
	return nil
}
