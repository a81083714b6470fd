package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmcleod/folio/auth"
	"github.com/jmcleod/folio/internal/util"
	"github.com/jmcleod/folio/internal/uuid"
	"github.com/jmcleod/folio/session"
	"github.com/jmcleod/folio/storage"
)

const (
	accountsBucket = "admins"
	defaultRole    = "admin"
)

// account is the persisted admin record, keyed by normalised email.
type account struct {
	ID        string             `json:"id"`
	Email     string             `json:"email"`
	Name      string             `json:"name"`
	Role      string             `json:"role"`
	Password  util.SecretHash    `json:"password"`
	Questions []securityQuestion `json:"questions,omitempty"`
	LastLogin *time.Time         `json:"last_login,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

type securityQuestion struct {
	Question string          `json:"question"`
	Answer   util.SecretHash `json:"answer"`
}

func (acct *account) profile() session.Admin {
	return session.Admin{
		ID:        acct.ID,
		Name:      acct.Name,
		Email:     acct.Email,
		Role:      acct.Role,
		LastLogin: acct.LastLogin,
	}
}

func (acct *account) prompts() []auth.SecurityQuestion {
	out := make([]auth.SecurityQuestion, len(acct.Questions))
	for i, q := range acct.Questions {
		out[i] = auth.SecurityQuestion{Question: q.Question}
	}
	return out
}

// verifyAnswers checks every answer so the work done does not depend on
// which answer is wrong.
func (acct *account) verifyAnswers(answers []string) bool {
	if len(acct.Questions) == 0 || len(answers) < len(acct.Questions) {
		return false
	}
	ok := true
	for i, q := range acct.Questions {
		if !q.Answer.Verify(util.NormalizeAnswer(answers[i])) {
			ok = false
		}
	}
	return ok
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func decodeAccount(data []byte) (*account, error) {
	var acct account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("decoding account: %w", err)
	}
	return &acct, nil
}

func (a *API) loadAccount(email string) (*account, error) {
	data, err := a.repo.Get(accountsBucket, emailKey(email))
	if err != nil {
		return nil, err
	}
	return decodeAccount(data)
}

// updateAccount applies fn to the stored account and writes it back in one
// transaction, so concurrent updates to different fields are not lost.
// Slow work such as hashing belongs outside fn.
func (a *API) updateAccount(email string, fn func(acct *account) error) (*account, error) {
	key := emailKey(email)
	var updated *account
	err := a.repo.Batch(accountsBucket, func(tx storage.BatchTx) error {
		data, err := tx.Get(key)
		if err != nil {
			return err
		}
		acct, err := decodeAccount(data)
		if err != nil {
			return err
		}
		if err := fn(acct); err != nil {
			return err
		}
		data, err = json.Marshal(acct)
		if err != nil {
			return fmt.Errorf("encoding account: %w", err)
		}
		updated = acct
		return tx.Put(key, data)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (a *API) hashQuestions(qas []auth.QuestionAnswer) ([]securityQuestion, error) {
	out := make([]securityQuestion, len(qas))
	for i, qa := range qas {
		h, err := util.HashSecret(util.NormalizeAnswer(qa.Answer), a.kdf)
		if err != nil {
			return nil, err
		}
		out[i] = securityQuestion{Question: strings.TrimSpace(qa.Question), Answer: h}
	}
	return out, nil
}

// SeedAdmin describes the initial administrator account.
type SeedAdmin struct {
	Email     string
	Name      string
	Password  string
	Questions []auth.QuestionAnswer
}

// Seed creates the admin account unless one already exists for the email.
// Questions are optional; when given they must pass the settings rules.
func (a *API) Seed(ctx context.Context, s SeedAdmin) error {
	email := emailKey(s.Email)
	if email == "" {
		return errors.New("seed admin: email is required")
	}
	if err := auth.ValidatePassword(s.Password); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if len(s.Questions) > 0 {
		if err := auth.ValidateSecurityQuestions(s.Questions); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	pw, err := util.HashSecret(s.Password, a.kdf)
	if err != nil {
		return err
	}
	questions, err := a.hashQuestions(s.Questions)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = "Admin"
	}
	acct := &account{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Role:      defaultRole,
		Password:  pw,
		Questions: questions,
		CreatedAt: a.now().UTC(),
	}
	data, err := json.Marshal(acct)
	if err != nil {
		return err
	}
	if err := a.repo.Create(accountsBucket, email, data); err != nil {
		if errors.Is(err, storage.ErrExists) {
			a.logger.InfoContext(ctx, "admin account already exists", slog.String("email", email))
			return nil
		}
		return fmt.Errorf("seed admin: %w", err)
	}
	a.logger.InfoContext(ctx, "admin account created", slog.String("email", email), slog.String("admin_id", acct.ID))
	return nil
}
