package devserver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jmcleod/folio/auth"
	"github.com/jmcleod/folio/client"
	"github.com/jmcleod/folio/devserver"
	"github.com/jmcleod/folio/internal/util"
	"github.com/jmcleod/folio/recovery"
	"github.com/jmcleod/folio/session"
	"github.com/jmcleod/folio/storage"
	"github.com/jmcleod/folio/storage/memory"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "initial-pass"
)

var seedQuestions = []auth.QuestionAnswer{
	{Question: "First pet?", Answer: "Rex"},
	{Question: "Birth city?", Answer: "New York"},
	{Question: "Favourite colour?", Answer: "Teal"},
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	srv      *httptest.Server
	clock    *clock
	sessions *session.Store
	client   *client.Client
	auth     *auth.Manager
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T, opts ...devserver.Option) *env {
	t.Helper()
	return setupWithRepo(t, memory.NewRepository(), opts...)
}

func setupWithRepo(t *testing.T, repo storage.Repository, opts ...devserver.Option) *env {
	t.Helper()
	clk := &clock{t: time.Now()}
	base := []devserver.Option{
		devserver.WithLogger(discardLogger()),
		devserver.WithKDFParams(util.Argon2idParams{Time: 1, MemoryKiB: 64, Parallelism: 1, KeyLen: 32}),
		devserver.WithClock(clk.now),
	}
	a := devserver.New(repo, append(base, opts...)...)
	require.NoError(t, a.Seed(t.Context(), devserver.SeedAdmin{
		Email:     adminEmail,
		Name:      "Site Admin",
		Password:  adminPassword,
		Questions: seedQuestions,
	}))
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	sessions := session.New(memory.NewRepository())
	require.NoError(t, sessions.Init())
	c, err := client.New(srv.URL+devserver.MountPath, client.WithTokenSource(sessions), client.WithLogger(discardLogger()))
	require.NoError(t, err)

	return &env{
		srv:      srv,
		clock:    clk,
		sessions: sessions,
		client:   c,
		auth:     auth.New(c, sessions, auth.WithLogger(discardLogger())),
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var ce *client.Error
	require.True(t, errors.As(err, &ce), "expected *client.Error, got %T: %v", err, err)
	return ce.StatusCode
}

func TestSeedIsIdempotent(t *testing.T) {
	a := devserver.New(memory.NewRepository(), devserver.WithLogger(discardLogger()),
		devserver.WithKDFParams(util.Argon2idParams{Time: 1, MemoryKiB: 64, Parallelism: 1, KeyLen: 32}))
	seed := devserver.SeedAdmin{Email: adminEmail, Password: adminPassword}
	require.NoError(t, a.Seed(context.Background(), seed))
	require.NoError(t, a.Seed(context.Background(), seed))

	err := a.Seed(context.Background(), devserver.SeedAdmin{Email: "x@example.com", Password: "short"})
	assert.Error(t, err)
}

func TestLoginProfileLogout(t *testing.T) {
	e := setup(t)
	ctx := t.Context()

	_, err := e.auth.Login(ctx, adminEmail, "wrong-password")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	assert.Equal(t, "Invalid email or password", client.Message(err))
	assert.False(t, e.auth.IsAuthenticated())

	res, err := e.auth.Login(ctx, "  ADMIN@example.com ", adminPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, adminEmail, res.Admin.Email)
	assert.Equal(t, "Site Admin", res.Admin.Name)
	require.NotNil(t, res.Admin.LastLogin)
	assert.True(t, e.auth.IsAuthenticated())

	exp, ok := e.auth.TokenExpiry()
	require.True(t, ok)
	assert.True(t, exp.After(e.clock.now()))

	profile, err := e.auth.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Admin.ID, profile.ID)

	token := e.sessions.Token()
	require.NoError(t, e.auth.Logout(ctx))
	assert.False(t, e.auth.IsAuthenticated())

	// The old token is revoked server side.
	stale, err := client.New(e.srv.URL+devserver.MountPath, client.WithTokenSource(client.TokenFunc(func() string { return token })))
	require.NoError(t, err)
	err = stale.Get(ctx, "/admin/profile", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := setup(t)
	ctx := t.Context()

	err := e.client.Get(ctx, "/admin/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	assert.Equal(t, "Authentication required", client.Message(err))

	err = e.client.Post(ctx, "/projects", map[string]string{"title": "x"}, nil)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	bogus, err := client.New(e.srv.URL+devserver.MountPath, client.WithTokenSource(client.TokenFunc(func() string { return "not-a-jwt" })))
	require.NoError(t, err)
	err = bogus.Get(ctx, "/admin/profile", nil)
	assert.Equal(t, "Invalid or expired token", client.Message(err))
}

func TestLogoutWithoutSessionSucceeds(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.auth.Logout(t.Context()))
}

func TestTokenExpires(t *testing.T) {
	e := setup(t, devserver.WithTokenTTL(time.Minute))
	ctx := t.Context()
	_, err := e.auth.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	e.clock.advance(2 * time.Minute)
	_, err = e.auth.Profile(ctx)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestLoginLockout(t *testing.T) {
	e := setup(t)
	ctx := t.Context()
	for i := 0; i < 5; i++ {
		_, err := e.auth.Login(ctx, adminEmail, "nope-nope")
		require.Error(t, err)
	}
	_, err := e.auth.Login(ctx, adminEmail, adminPassword)
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, statusOf(t, err))

	e.clock.advance(2 * time.Minute)
	_, err = e.auth.Login(ctx, adminEmail, adminPassword)
	assert.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	e := setup(t)
	ctx := t.Context()
	_, err := e.auth.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	err = e.auth.ChangePassword(ctx, "not-current", "brand-new-pass")
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect", client.Message(err))

	// Server side length check, bypassing the local one.
	err = e.client.Put(ctx, "/admin/change-password", auth.ChangePasswordRequest{CurrentPassword: adminPassword, NewPassword: "short"}, nil)
	assert.Equal(t, "Password must be at least 8 characters long", client.Message(err))

	require.NoError(t, e.auth.ChangePassword(ctx, adminPassword, "brand-new-pass"))
	require.NoError(t, e.auth.Logout(ctx))

	_, err = e.auth.Login(ctx, adminEmail, adminPassword)
	assert.Error(t, err)
	_, err = e.auth.Login(ctx, adminEmail, "brand-new-pass")
	assert.NoError(t, err)
}

func TestSecurityQuestionsSettings(t *testing.T) {
	e := setup(t)
	ctx := t.Context()
	_, err := e.auth.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	qs, err := e.auth.SecurityQuestions(ctx)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Equal(t, "First pet?", qs[0].Question)

	err = e.client.Put(ctx, "/admin/security-questions", auth.UpdateSecurityQuestionsRequest{
		Questions: seedQuestions[:2],
	}, nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Equal(t, "Exactly 3 security questions are required", client.Message(err))

	updated := []auth.QuestionAnswer{
		{Question: "Street?", Answer: "Elm"},
		{Question: "School?", Answer: "Central"},
		{Question: "Team?", Answer: "Hawks"},
	}
	require.NoError(t, e.auth.UpdateSecurityQuestions(ctx, updated))

	qs, err = e.auth.SecurityQuestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []auth.SecurityQuestion{{Question: "Street?"}, {Question: "School?"}, {Question: "Team?"}}, qs)
}

func TestRecoveryWizardEndToEnd(t *testing.T) {
	e := setup(t)
	ctx := t.Context()

	var done string
	w := recovery.NewWizard(e.auth, recovery.WithOnComplete(func(msg string) { done = msg }),
		recovery.WithLogger(discardLogger()))
	w.Start()

	require.NoError(t, w.SubmitEmail(ctx, adminEmail))
	st := w.State()
	assert.Equal(t, recovery.StepAnswers, st.Step)
	assert.NotEmpty(t, st.ResetToken)
	assert.Len(t, st.Prompts(), 3)

	// Answers are compared after case, width and whitespace folding.
	require.NoError(t, w.SubmitAnswers(ctx, [3]string{" rex", "new  york", "TEAL "}))
	st = w.State()
	assert.Equal(t, recovery.StepPassword, st.Step)
	assert.NotEmpty(t, st.VerificationToken)
	assert.Empty(t, st.ResetToken)

	require.NoError(t, w.SubmitNewPassword(ctx, "recovered-pass", "recovered-pass"))
	assert.Equal(t, "Password reset successful. Please log in with your new password.", done)
	assert.False(t, w.State().Active)

	_, err := e.auth.Login(ctx, adminEmail, adminPassword)
	assert.Error(t, err)
	_, err = e.auth.Login(ctx, adminEmail, "recovered-pass")
	assert.NoError(t, err)
}

func TestRecoveryWrongAnswersSurfaceServerMessage(t *testing.T) {
	e := setup(t)
	ctx := t.Context()

	w := recovery.NewWizard(e.auth, recovery.WithLogger(discardLogger()))
	w.Start()
	require.NoError(t, w.SubmitEmail(ctx, adminEmail))

	for i := 0; i < 3; i++ {
		err := w.SubmitAnswers(ctx, [3]string{"a", "b", "c"})
		require.Error(t, err)
		assert.Equal(t, "Security answers are incorrect", w.State().Message)
		assert.Equal(t, recovery.StepAnswers, w.State().Step)
	}
	// The reset token is spent after three failures.
	err := w.SubmitAnswers(ctx, [3]string{"Rex", "New York", "Teal"})
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired reset token", w.State().Message)
}

func TestRecoveryTokensAreSingleUseAndExpire(t *testing.T) {
	e := setup(t)
	ctx := t.Context()
	answers := []string{"Rex", "New York", "Teal"}

	ch, err := e.auth.InitiatePasswordReset(ctx, adminEmail)
	require.NoError(t, err)
	v, err := e.auth.VerifySecurityQuestions(ctx, ch.ResetToken, answers)
	require.NoError(t, err)

	_, err = e.auth.VerifySecurityQuestions(ctx, ch.ResetToken, answers)
	assert.Equal(t, "Invalid or expired reset token", client.Message(err))

	require.NoError(t, e.auth.ResetPassword(ctx, v.VerificationToken, "another-pass"))
	err = e.auth.ResetPassword(ctx, v.VerificationToken, "another-pass")
	assert.Equal(t, "Invalid or expired verification token", client.Message(err))

	ch, err = e.auth.InitiatePasswordReset(ctx, adminEmail)
	require.NoError(t, err)
	e.clock.advance(16 * time.Minute)
	_, err = e.auth.VerifySecurityQuestions(ctx, ch.ResetToken, answers)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestRecoveryUnknownEmailHasNoToken(t *testing.T) {
	e := setup(t)
	_, err := e.auth.InitiatePasswordReset(t.Context(), "nobody@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestRecoveryRateLimited(t *testing.T) {
	e := setup(t, devserver.WithRecoveryRateLimit(rate.Every(time.Hour), 2))
	ctx := t.Context()

	for i := 0; i < 2; i++ {
		_, err := e.auth.InitiatePasswordReset(ctx, adminEmail)
		require.NoError(t, err)
	}
	_, err := e.auth.InitiatePasswordReset(ctx, adminEmail)
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, statusOf(t, err))
}

func TestDocsAndHeaders(t *testing.T) {
	e := setup(t)

	resp, err := http.Get(e.srv.URL + "/api/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "openapi: 3.0.3")

	resp2, err := http.Get(e.srv.URL + "/api/docs")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
