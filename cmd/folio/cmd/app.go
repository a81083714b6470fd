package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmcleod/folio/admin"
	"github.com/jmcleod/folio/auth"
	"github.com/jmcleod/folio/client"
	"github.com/jmcleod/folio/session"
	bboltstorage "github.com/jmcleod/folio/storage/bbolt"
)

const sessionFile = "session.db"

// app is the client-side object graph shared by the API commands.
type app struct {
	repo     *bboltstorage.Store
	sessions *session.Store
	client   *client.Client
	auth     *auth.Manager
	admin    *admin.Client
}

func openApp() (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(cfg.DataDir, sessionFile), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	sessions := session.New(repo, session.WithLogger(logger))
	if err := sessions.Init(); err != nil {
		repo.Close()
		return nil, err
	}
	c, err := client.New(cfg.APIURL,
		client.WithTokenSource(sessions),
		client.WithTimeout(cfg.Timeout),
		client.WithLogger(logger),
		client.WithUserAgent("folio-cli/"+Version),
	)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return &app{
		repo:     repo,
		sessions: sessions,
		client:   c,
		auth:     auth.New(c, sessions, auth.WithLogger(logger)),
		admin:    admin.New(c),
	}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		logger.Warn("closing session storage", slog.String("error", err.Error()))
	}
}

// withApp opens the app for the duration of run.
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}

// requireLogin fails fast when no session is stored.
func requireLogin(a *app) error {
	if !a.auth.IsAuthenticated() {
		return errors.New(`not logged in; run "folio login" first`)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// prompter reads answers from the command's input. Secrets are read without
// echo when the input is a terminal.
type prompter struct {
	in   *bufio.Reader
	file *os.File
	out  io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	p := &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.file = f
	}
	return p
}

// line prompts and returns the trimmed input. io.EOF means input ended.
func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.in.ReadString('\n')
	if err != nil && (s == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// secret prompts without echo on a terminal. Surrounding whitespace is kept
// except for the line ending.
func (p *prompter) secret(label string) (string, error) {
	if p.file == nil {
		fmt.Fprint(p.out, label)
		s, err := p.in.ReadString('\n')
		if err != nil && (s == "" || !errors.Is(err, io.EOF)) {
			return "", err
		}
		return strings.TrimRight(s, "\r\n"), nil
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(int(p.file.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
