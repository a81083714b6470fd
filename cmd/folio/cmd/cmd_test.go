package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/folio/admin"
	"github.com/jmcleod/folio/auth"
	"github.com/jmcleod/folio/client"
	"github.com/jmcleod/folio/devserver"
	"github.com/jmcleod/folio/internal/util"
	"github.com/jmcleod/folio/storage/memory"
)

const (
	testEmail    = "admin@example.com"
	testPassword = "admin-pass"
)

type harness struct {
	srv     *httptest.Server
	dataDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	a := devserver.New(memory.NewRepository(),
		devserver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		devserver.WithKDFParams(util.Argon2idParams{Time: 1, MemoryKiB: 64, Parallelism: 1, KeyLen: 32}))
	require.NoError(t, a.Seed(t.Context(), devserver.SeedAdmin{
		Email:    testEmail,
		Name:     "Admin",
		Password: testPassword,
		Questions: []auth.QuestionAnswer{
			{Question: "First pet?", Answer: "Rex"},
			{Question: "Birth city?", Answer: "New York"},
			{Question: "Favourite colour?", Answer: "Teal"},
		},
	}))
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, dataDir: t.TempDir()}
}

func resetFlags() {
	loginEmail, recoverEmail = "", ""
	questionTexts, answerTexts = nil, nil
	projectCategory, projectFeatured, reviewApproved = "", "", ""
	projectLimit, projectOffset = 0, 0
	sectionData = ""
}

// run executes the CLI with stdin and returns stdout.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	rootCmd.SetArgs(append([]string{
		"--api-url", h.srv.URL + devserver.MountPath,
		"--data-dir", h.dataDir,
		"--log-level", "error",
	}, args...))
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

// adminClient logs in out of band to seed data.
func (h *harness) adminClient(t *testing.T) *admin.Client {
	t.Helper()
	anon, err := client.New(h.srv.URL + devserver.MountPath)
	require.NoError(t, err)
	var env client.Envelope[auth.LoginResult]
	require.NoError(t, anon.Post(t.Context(), "/admin/login", auth.LoginRequest{Email: testEmail, Password: testPassword}, &env))
	c, err := client.New(h.srv.URL+devserver.MountPath, client.WithTokenSource(client.TokenFunc(func() string { return env.Data.Token })))
	require.NoError(t, err)
	return admin.New(c)
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, testPassword+"\n", "login", "--email", testEmail)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Admin <admin@example.com>")

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Email:      admin@example.com")
	assert.Contains(t, out, "Role:       admin")
	assert.Contains(t, out, "Session:    expires")

	out, err = h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = h.run(t, "", "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestLoginPromptsForEmail(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, testEmail+"\n"+testPassword+"\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Email: ")
	assert.Contains(t, out, "Logged in as")
}

func TestLoginFailure(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "wrong-password\n", "login", "--email", testEmail)
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())
}

func TestRecover(t *testing.T) {
	h := newHarness(t)
	stdin := strings.Join([]string{testEmail, "rex", "new york", "teal", "recovered-pass", "recovered-pass"}, "\n") + "\n"
	out, err := h.run(t, stdin, "recover")
	require.NoError(t, err)
	assert.Contains(t, out, "First pet?")
	assert.Contains(t, out, "Password reset successful. Please log in with your new password.")

	_, err = h.run(t, "recovered-pass\n", "login", "--email", testEmail)
	assert.NoError(t, err)
}

func TestRecoverShowsErrorsAndStopsAtEOF(t *testing.T) {
	h := newHarness(t)
	stdin := strings.Join([]string{testEmail, "a", "b", "c"}, "\n") + "\n"
	out, err := h.run(t, stdin, "recover")
	require.Error(t, err)
	assert.Contains(t, out, "Error: Security answers are incorrect")
	assert.Equal(t, "recovery cancelled: input ended", err.Error())
}

func TestRecoverPasswordMismatchStaysOnStep(t *testing.T) {
	h := newHarness(t)
	stdin := strings.Join([]string{
		testEmail,
		"Rex", "New York", "Teal",
		"first-pass1", "other-pass1",
		"final-pass1", "final-pass1",
	}, "\n") + "\n"
	out, err := h.run(t, stdin, "recover")
	require.NoError(t, err)
	assert.Contains(t, out, "Error: Passwords do not match")
	assert.Contains(t, out, "Password reset successful.")
}

func TestRecoverBackToEmail(t *testing.T) {
	h := newHarness(t)
	stdin := strings.Join([]string{
		testEmail,
		":back",
		testEmail,
		"Rex", "New York", "Teal",
		"final-pass1", "final-pass1",
	}, "\n") + "\n"
	out, err := h.run(t, stdin, "recover")
	require.NoError(t, err)
	assert.Contains(t, out, "Password reset successful.")
}

func TestRecoverCancel(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, ":cancel\n", "recover")
	require.Error(t, err)
	assert.Equal(t, "recovery cancelled", err.Error())
}

func TestQuestionsSetAndShow(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, testPassword+"\n", "login", "--email", testEmail)
	require.NoError(t, err)

	_, err = h.run(t, "", "questions", "set",
		"--question", "Street?", "--answer", "Elm",
		"--question", "School?", "--answer", "Central")
	require.Error(t, err)
	assert.Equal(t, "Exactly 3 security questions are required", err.Error())

	out, err := h.run(t, "", "questions", "set",
		"--question", "Street?", "--answer", "Elm",
		"--question", "School?", "--answer", "Central",
		"--question", "Team?", "--answer", "Hawks")
	require.NoError(t, err)
	assert.Contains(t, out, "Security questions updated successfully")

	out, err = h.run(t, "", "questions", "show")
	require.NoError(t, err)
	assert.Equal(t, "1. Street?\n2. School?\n3. Team?\n", out)
}

func TestResourceCommands(t *testing.T) {
	h := newHarness(t)
	ac := h.adminClient(t)
	p, err := ac.Projects.Create(t.Context(), admin.Project{Title: "Folio", Category: "tools", Featured: true})
	require.NoError(t, err)
	_, err = ac.Reviews.Create(t.Context(), admin.Review{Name: "Ann", Content: "Great", Rating: 4, Approved: true})
	require.NoError(t, err)
	_, err = ac.Categories.Create(t.Context(), admin.Category{Name: "Tools"})
	require.NoError(t, err)

	out, err := h.run(t, "", "projects", "list", "--featured", "true")
	require.NoError(t, err)
	assert.Contains(t, out, "Folio")

	out, err = h.run(t, "", "projects", "get", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Folio"`)

	out, err = h.run(t, "", "categories", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "tools")

	out, err = h.run(t, "", "reviews", "list", "--approved", "true")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann")

	_, err = h.run(t, "", "projects", "delete", p.ID)
	require.Error(t, err, "delete needs a login")

	_, err = h.run(t, testPassword+"\n", "login", "--email", testEmail)
	require.NoError(t, err)

	out, err = h.run(t, "", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "total 1, featured 1")
	assert.Contains(t, out, "average rating 4.0")

	out, err = h.run(t, "", "projects", "delete", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted project "+p.ID)

	_, err = h.run(t, "", "projects", "get", p.ID)
	require.Error(t, err)
	assert.Equal(t, "Project not found", err.Error())
}

func TestContentSection(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, testPassword+"\n", "login", "--email", testEmail)
	require.NoError(t, err)

	out, err := h.run(t, "", "content", "section", "hero", "--data", `{"title":"Hello"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Hello"`)

	out, err = h.run(t, `{"bio":"From stdin"}`, "content", "section", "about")
	require.NoError(t, err)
	assert.Contains(t, out, "From stdin")

	_, err = h.run(t, "", "content", "section", "hero", "--data", "{not json")
	assert.Error(t, err)
}
