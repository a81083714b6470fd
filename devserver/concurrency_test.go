package devserver_test

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/folio/admin"
	"github.com/jmcleod/folio/auth"
	"github.com/jmcleod/folio/client"
	"github.com/jmcleod/folio/devserver"
	"github.com/jmcleod/folio/storage"
	"github.com/jmcleod/folio/storage/memory"
)

// slowReads delays plain reads so interleaved read-modify-write cycles
// overlap.
type slowReads struct {
	storage.Repository
}

func (s slowReads) Get(bucket, key string) ([]byte, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Repository.Get(bucket, key)
}

func bearer(t *testing.T, e *env, token string) *client.Client {
	t.Helper()
	c, err := client.New(e.srv.URL+devserver.MountPath, client.WithTokenSource(client.TokenFunc(func() string { return token })))
	require.NoError(t, err)
	return c
}

func loginToken(t *testing.T, e *env, password string) string {
	t.Helper()
	var out client.Envelope[auth.LoginResult]
	require.NoError(t, bearer(t, e, "").Post(t.Context(), "/admin/login", auth.LoginRequest{Email: adminEmail, Password: password}, &out))
	require.NotEmpty(t, out.Data.Token)
	return out.Data.Token
}

func TestConcurrentCertificateUploadsAreAllKept(t *testing.T) {
	e := setupWithRepo(t, slowReads{memory.NewRepository()})
	ctx := t.Context()
	_, err := e.auth.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	ac := admin.New(e.client)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Go(func() {
			cert := admin.Certificate{Title: "Cert " + strconv.Itoa(i)}
			_, err := ac.Content.AddCertificate(ctx, cert, "cert.pdf", strings.NewReader("%PDF-1.4"))
			errs <- err
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	c, err := ac.Content.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Certificates, n)

	// Deleting by index under contention removes exactly one entry each.
	for range 3 {
		wg.Go(func() {
			_, err := ac.Content.DeleteCertificate(ctx, 0)
			assert.NoError(t, err)
		})
	}
	wg.Wait()
	c, err = ac.Content.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Certificates, n-3)
}

func TestLoginDuringPasswordChangeKeepsNewPassword(t *testing.T) {
	e := setupWithRepo(t, slowReads{memory.NewRepository()})
	ctx := t.Context()
	_, err := e.auth.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 3 {
		wg.Go(func() {
			// May succeed or fail depending on ordering; only the stored
			// password afterwards matters.
			var out client.Envelope[auth.LoginResult]
			_ = bearer(t, e, "").Post(ctx, "/admin/login", auth.LoginRequest{Email: adminEmail, Password: adminPassword}, &out)
		})
	}
	wg.Go(func() {
		assert.NoError(t, e.auth.ChangePassword(ctx, adminPassword, "brand-new-pass"))
	})
	wg.Wait()

	loginToken(t, e, "brand-new-pass")
	var out client.Envelope[auth.LoginResult]
	err = bearer(t, e, "").Post(ctx, "/admin/login", auth.LoginRequest{Email: adminEmail, Password: adminPassword}, &out)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestPasswordChangeRevokesOtherSessions(t *testing.T) {
	e := setup(t)
	ctx := t.Context()

	other := bearer(t, e, loginToken(t, e, adminPassword))
	_, err := e.auth.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	require.NoError(t, e.auth.ChangePassword(ctx, adminPassword, "brand-new-pass"))

	_, err = e.auth.Profile(ctx)
	assert.NoError(t, err, "the session that changed the password stays valid")
	err = other.Get(ctx, "/admin/profile", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestPasswordResetRevokesAllSessions(t *testing.T) {
	e := setup(t)
	ctx := t.Context()
	session := bearer(t, e, loginToken(t, e, adminPassword))
	require.NoError(t, session.Get(ctx, "/admin/profile", nil))

	ch, err := e.auth.InitiatePasswordReset(ctx, adminEmail)
	require.NoError(t, err)
	v, err := e.auth.VerifySecurityQuestions(ctx, ch.ResetToken, []string{"rex", "new york", "teal"})
	require.NoError(t, err)
	require.NoError(t, e.auth.ResetPassword(ctx, v.VerificationToken, "after-reset-pass"))

	err = session.Get(ctx, "/admin/profile", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	loginToken(t, e, "after-reset-pass")
}
