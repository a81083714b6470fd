// Package recovery implements the three-step password recovery wizard:
// email, then security answers, then a new password. A step advances only
// when the previous step's server call succeeded and returned the token the
// next step needs.
package recovery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/jmcleod/folio/auth"
	"github.com/jmcleod/folio/client"
)

// Step identifies the wizard's current screen.
type Step int

const (
	StepEmail    Step = 1
	StepAnswers  Step = 2
	StepPassword Step = 3
)

// AnswerSlots is the fixed number of answer inputs, independent of how many
// questions the server returns.
const AnswerSlots = 3

const (
	msgMismatch   = "Passwords do not match"
	msgDone       = "Password reset successful. Please log in with your new password."
	msgResetSpent = "Reset token already used. Go back and enter your email again."
)

var (
	// ErrWrongStep is returned when a submission does not match the current step.
	ErrWrongStep = errors.New("recovery: action not valid in current step")
	// ErrInactive is returned when the wizard is not in recovery mode.
	ErrInactive = errors.New("recovery: not in recovery mode")
	// ErrAbandoned is returned when the flow was cancelled or restarted
	// while the call was in flight; its result was discarded.
	ErrAbandoned = errors.New("recovery: flow abandoned")
)

// Backend performs the three remote recovery calls. *auth.Manager satisfies it.
type Backend interface {
	InitiatePasswordReset(ctx context.Context, email string) (*auth.ResetChallenge, error)
	VerifySecurityQuestions(ctx context.Context, resetToken string, answers []string) (*auth.Verification, error)
	ResetPassword(ctx context.Context, verificationToken, newPassword string) error
}

// State is a snapshot of the wizard.
type State struct {
	Active            bool
	Step              Step
	Email             string
	ResetToken        string
	VerificationToken string
	Questions         []auth.SecurityQuestion
	Answers           [AnswerSlots]string
	NewPassword       string
	ConfirmPassword   string
	Loading           bool
	Message           string
}

// Prompts returns the questions to render: at most AnswerSlots, each bound
// to the answer slot of the same index.
func (s State) Prompts() []auth.SecurityQuestion {
	if len(s.Questions) > AnswerSlots {
		return s.Questions[:AnswerSlots]
	}
	return s.Questions
}

func initialState() State {
	return State{Step: StepEmail}
}

// Wizard is the recovery step machine embedded in the login flow.
type Wizard struct {
	backend    Backend
	logger     *slog.Logger
	onComplete func(message string)

	mu    sync.Mutex
	state State
	// epoch changes on Start and Cancel so completions of calls issued
	// under an abandoned flow are dropped.
	epoch uint64
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wizard) {
		w.logger = logger
	}
}

// WithOnComplete registers the blocking confirmation shown after a
// successful reset.
func WithOnComplete(fn func(message string)) Option {
	return func(w *Wizard) {
		w.onComplete = fn
	}
}

// NewWizard returns a wizard in ordinary-login mode.
func NewWizard(backend Backend, opts ...Option) *Wizard {
	w := &Wizard{
		backend: backend,
		logger:  slog.Default(),
		state:   initialState(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns a copy of the current state.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.state
	st.Questions = append([]auth.SecurityQuestion(nil), w.state.Questions...)
	return st
}

// Start enters recovery mode at the email step.
func (w *Wizard) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.epoch++
	w.state = initialState()
	w.state.Active = true
}

// Cancel leaves recovery mode, silently discarding all progress.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.epoch++
	w.state = initialState()
}

// Back returns from answers to email (keeping the email) or from password
// to answers (keeping the verification token). The message is cleared.
// Back is refused while a step's call is in flight.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.Active {
		return ErrInactive
	}
	if w.state.Loading {
		return ErrWrongStep
	}
	switch w.state.Step {
	case StepAnswers:
		w.state.Step = StepEmail
	case StepPassword:
		w.state.Step = StepAnswers
	default:
		return ErrWrongStep
	}
	w.state.Message = ""
	return nil
}

// SubmitEmail runs step 1.
func (w *Wizard) SubmitEmail(ctx context.Context, email string) error {
	epoch, err := w.begin(StepEmail)
	if err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	w.mu.Lock()
	w.state.Email = email
	w.mu.Unlock()

	ch, err := w.backend.InitiatePasswordReset(ctx, email)
	if err == nil && (ch == nil || ch.ResetToken == "") {
		err = &auth.RejectedError{Op: "initiate-reset", Reason: "Failed to initiate password reset", Err: auth.ErrMissingToken}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		return ErrAbandoned
	}
	w.state.Loading = false
	if err != nil {
		w.state.Message = client.Message(err)
		return err
	}
	if len(ch.Questions) != AnswerSlots {
		w.logger.Warn("unexpected security question count",
			slog.Int("questions", len(ch.Questions)),
			slog.Int("answer_slots", AnswerSlots))
	}
	w.state.ResetToken = ch.ResetToken
	w.state.Questions = ch.Questions
	w.state.Answers = [AnswerSlots]string{}
	w.state.Step = StepAnswers
	return nil
}

// SubmitAnswers runs step 2. Entered answers are kept when verification fails.
func (w *Wizard) SubmitAnswers(ctx context.Context, answers [AnswerSlots]string) error {
	epoch, err := w.begin(StepAnswers)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.state.Answers = answers
	resetToken := w.state.ResetToken
	if resetToken == "" {
		// Spent by an earlier verification; only a new email submission
		// yields another.
		w.state.Loading = false
		w.state.Message = msgResetSpent
		w.mu.Unlock()
		return &auth.RejectedError{Op: "verify-answers", Reason: msgResetSpent, Err: auth.ErrMissingToken}
	}
	w.mu.Unlock()

	v, err := w.backend.VerifySecurityQuestions(ctx, resetToken, answers[:])
	if err == nil && (v == nil || v.VerificationToken == "") {
		err = &auth.RejectedError{Op: "verify-answers", Reason: "Security answers could not be verified", Err: auth.ErrMissingToken}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch != w.epoch {
		return ErrAbandoned
	}
	w.state.Loading = false
	if err != nil {
		w.state.Message = client.Message(err)
		return err
	}
	w.state.VerificationToken = v.VerificationToken
	w.state.ResetToken = ""
	w.state.Step = StepPassword
	return nil
}

// SubmitNewPassword runs step 3. Mismatched or short passwords fail locally
// without a backend call. On success the wizard returns to its initial state
// outside recovery mode and the completion hook runs.
func (w *Wizard) SubmitNewPassword(ctx context.Context, newPassword, confirmPassword string) error {
	w.mu.Lock()
	if err := w.checkStep(StepPassword); err != nil {
		w.mu.Unlock()
		return err
	}
	w.state.NewPassword = newPassword
	w.state.ConfirmPassword = confirmPassword
	if newPassword != confirmPassword {
		w.state.Message = msgMismatch
		w.mu.Unlock()
		return &auth.ValidationError{Field: "confirmPassword", Message: msgMismatch}
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		w.state.Message = err.Error()
		w.mu.Unlock()
		return err
	}
	w.state.Loading = true
	w.state.Message = ""
	token := w.state.VerificationToken
	epoch := w.epoch
	w.mu.Unlock()

	err := w.backend.ResetPassword(ctx, token, newPassword)

	w.mu.Lock()
	if epoch != w.epoch {
		w.mu.Unlock()
		return ErrAbandoned
	}
	if err != nil {
		w.state.Loading = false
		w.state.Message = client.Message(err)
		w.mu.Unlock()
		return err
	}
	w.state = initialState()
	onComplete := w.onComplete
	w.mu.Unlock()

	w.logger.Info("password reset completed")
	if onComplete != nil {
		onComplete(msgDone)
	}
	return nil
}

func (w *Wizard) begin(step Step) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkStep(step); err != nil {
		return 0, err
	}
	w.state.Loading = true
	w.state.Message = ""
	return w.epoch, nil
}

func (w *Wizard) checkStep(step Step) error {
	if !w.state.Active {
		return ErrInactive
	}
	if w.state.Step != step || w.state.Loading {
		return ErrWrongStep
	}
	return nil
}
