package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jmcleod/folio/auth"
	"github.com/jmcleod/folio/internal/util"
	"github.com/jmcleod/folio/storage"
)

// maxAnswerAttempts is how many wrong answer submissions a reset token
// survives.
const maxAnswerAttempts = 3

var (
	errResetToken        = errorf(http.StatusBadRequest, "Invalid or expired reset token")
	errVerificationToken = errorf(http.StatusBadRequest, "Invalid or expired verification token")
	errWrongAnswers      = errorf(http.StatusUnauthorized, "Security answers are incorrect")
	errNoQuestions       = errorf(http.StatusBadRequest, "Security questions are not set up for this account")
)

// resetTicket is the state behind a reset or verification token.
type resetTicket struct {
	email    string
	expires  time.Time
	attempts int
}

// resetStore holds the single-use tokens of the three-step password reset.
// Reset tokens are exchanged for verification tokens, which are exchanged
// for a password change. Both kinds are consumed on use.
type resetStore struct {
	mu            sync.Mutex
	now           func() time.Time
	resets        map[string]*resetTicket
	verifications map[string]*resetTicket
}

func newResetStore(now func() time.Time) *resetStore {
	return &resetStore{
		now:           now,
		resets:        make(map[string]*resetTicket),
		verifications: make(map[string]*resetTicket),
	}
}

func (s *resetStore) sweepLocked(now time.Time) {
	for k, t := range s.resets {
		if now.After(t.expires) {
			delete(s.resets, k)
		}
	}
	for k, t := range s.verifications {
		if now.After(t.expires) {
			delete(s.verifications, k)
		}
	}
}

func (s *resetStore) issue(set map[string]*resetTicket, email string, ttl time.Duration) (string, error) {
	token, err := util.RandomToken(32)
	if err != nil {
		return "", err
	}
	now := s.now()
	s.sweepLocked(now)
	set[token] = &resetTicket{email: email, expires: now.Add(ttl)}
	return token, nil
}

func (s *resetStore) issueReset(email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issue(s.resets, email, resetTTL)
}

// redeemReset runs check against the ticket for token. A passing check
// consumes the reset token and returns a verification token. A failing check
// counts against the ticket, which is dropped after maxAnswerAttempts.
// check runs without the store lock held; the ticket is looked up again
// afterwards, so a ticket consumed or exhausted meanwhile is not redeemed.
func (s *resetStore) redeemReset(token string, check func(email string) (bool, error)) (string, error) {
	s.mu.Lock()
	t, ok := s.resets[token]
	if !ok || s.now().After(t.expires) {
		delete(s.resets, token)
		s.mu.Unlock()
		return "", errResetToken
	}
	email := t.email
	s.mu.Unlock()

	passed, err := check(email)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resets[token] != t {
		return "", errResetToken
	}
	if !passed {
		t.attempts++
		if t.attempts >= maxAnswerAttempts {
			delete(s.resets, token)
		}
		return "", errWrongAnswers
	}
	delete(s.resets, token)
	return s.issue(s.verifications, email, verificationTTL)
}

// consumeVerification returns the email bound to token and invalidates it.
func (s *resetStore) consumeVerification(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.verifications[token]
	delete(s.verifications, token)
	if !ok || s.now().After(t.expires) {
		return "", errVerificationToken
	}
	return t.email, nil
}

// InitiatePasswordReset issues a reset token and the account's questions.
// Unknown emails get a success response without data so the endpoint does
// not reveal which accounts exist.
func (a *API) InitiatePasswordReset(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[auth.InitiateResetRequest](w, r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if emailKey(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	acct, err := a.loadAccount(req.Email)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrBucketNotFound) {
		a.audit.logFailure(AuditResetFailure, r, "unknown email")
		writeData(w, http.StatusOK, "If the account exists, password reset has been initiated", nil)
		return
	}
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if len(acct.Questions) == 0 {
		a.mapError(w, r, errNoQuestions)
		return
	}
	token, err := a.resets.issueReset(emailKey(acct.Email))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logAdmin(AuditResetInitiated, r, acct.ID)
	writeData(w, http.StatusOK, "Password reset initiated", auth.ResetChallenge{
		ResetToken: token,
		Questions:  acct.prompts(),
	})
}

// VerifySecurityAnswers exchanges a reset token and answers for a
// verification token.
func (a *API) VerifySecurityAnswers(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[auth.VerifyAnswersRequest](w, r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	var adminID string
	token, err := a.resets.redeemReset(req.ResetToken, func(email string) (bool, error) {
		acct, err := a.loadAccount(email)
		if err != nil {
			return false, err
		}
		adminID = acct.ID
		return acct.verifyAnswers(req.Answers), nil
	})
	if err != nil {
		a.audit.logFailure(AuditResetFailure, r, err.Error())
		a.mapError(w, r, err)
		return
	}
	a.audit.logAdmin(AuditResetVerified, r, adminID)
	writeData(w, http.StatusOK, "Security answers verified", auth.Verification{VerificationToken: token})
}

// ResetPassword sets a new password with a verification token.
func (a *API) ResetPassword(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[auth.ResetPasswordRequest](w, r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		a.mapError(w, r, err)
		return
	}
	email, err := a.resets.consumeVerification(req.VerificationToken)
	if err != nil {
		a.audit.logFailure(AuditResetFailure, r, err.Error())
		a.mapError(w, r, err)
		return
	}
	acct, err := a.setPassword(email, req.NewPassword)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.rateLimiter.recordSuccess(email)
	revoked := a.tokens.revokeSubject(email, "")
	a.audit.logAdmin(AuditPasswordReset, r, acct.ID, slog.Int("sessions_revoked", revoked))
	writeData(w, http.StatusOK, "Password reset successfully", nil)
}
