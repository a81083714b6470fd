package devserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/folio/auth"
	"github.com/jmcleod/folio/internal/util"
	"github.com/jmcleod/folio/storage"
)

const msgInvalidLogin = "Invalid email or password"

// Login exchanges email and password for a bearer token.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[auth.LoginRequest](w, r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	key := emailKey(req.Email)
	if key == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if blocked, retryAfter := a.rateLimiter.check(key); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "account locked")
		writeRateLimited(w, retryAfter, "Too many failed login attempts. Please try again later.")
		return
	}

	acct, err := a.loadAccount(key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrBucketNotFound) {
		a.mapError(w, r, err)
		return
	}
	if acct == nil || !acct.Password.Verify(req.Password) {
		a.rateLimiter.recordFailure(key)
		a.audit.logFailure(AuditLoginFailure, r, "invalid credentials")
		writeError(w, http.StatusUnauthorized, msgInvalidLogin)
		return
	}
	a.rateLimiter.recordSuccess(key)

	now := a.now().UTC()
	acct, err = a.updateAccount(key, func(acct *account) error {
		acct.LastLogin = &now
		return nil
	})
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	token, _, err := a.tokens.issue(key)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logAdmin(AuditLoginSuccess, r, acct.ID)
	writeData(w, http.StatusOK, "Login successful", auth.LoginResult{Token: token, Admin: acct.profile()})
}

// Logout revokes the presented token if it is valid. It always succeeds.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := bearerToken(r); ok {
		if claims, err := a.tokens.parse(token); err == nil {
			a.tokens.revoke(claims)
			a.audit.log(AuditLogout, r, slog.String("jti", claims.ID))
		}
	}
	writeData(w, http.StatusOK, "Logged out successfully", nil)
}

// Profile returns the authenticated admin.
func (a *API) Profile(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", accountFromContext(r.Context()).profile())
}

// ChangePassword replaces the password after checking the current one.
// Other sessions of the account are revoked; the calling token stays valid.
func (a *API) ChangePassword(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	claims := claimsFromContext(r.Context())
	req, err := decodeJSON[auth.ChangePasswordRequest](w, r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if !acct.Password.Verify(req.CurrentPassword) {
		a.audit.logFailure(AuditPasswordChanged, r, "current password mismatch", slog.String("admin_id", acct.ID))
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		a.mapError(w, r, err)
		return
	}
	if _, err := a.setPassword(acct.Email, req.NewPassword); err != nil {
		a.mapError(w, r, err)
		return
	}
	revoked := a.tokens.revokeSubject(emailKey(acct.Email), claims.ID)
	a.audit.logAdmin(AuditPasswordChanged, r, acct.ID, slog.Int("sessions_revoked", revoked))
	writeData(w, http.StatusOK, "Password changed successfully", nil)
}

func (a *API) setPassword(email, password string) (*account, error) {
	h, err := util.HashSecret(password, a.kdf)
	if err != nil {
		return nil, err
	}
	return a.updateAccount(email, func(acct *account) error {
		acct.Password = h
		return nil
	})
}

// GetSecurityQuestions lists the configured questions without answers.
func (a *API) GetSecurityQuestions(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	writeData(w, http.StatusOK, "", auth.SecurityQuestionsResponse{Questions: acct.prompts()})
}

// UpdateSecurityQuestions replaces all three questions and answers.
func (a *API) UpdateSecurityQuestions(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())
	req, err := decodeJSON[auth.UpdateSecurityQuestionsRequest](w, r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := auth.ValidateSecurityQuestions(req.Questions); err != nil {
		a.mapError(w, r, err)
		return
	}
	questions, err := a.hashQuestions(req.Questions)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if _, err := a.updateAccount(acct.Email, func(acct *account) error {
		acct.Questions = questions
		return nil
	}); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logAdmin(AuditSecurityQuestionsSaved, r, acct.ID)
	writeData(w, http.StatusOK, "Security questions updated successfully", nil)
}
