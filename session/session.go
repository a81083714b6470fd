// Package session is the process-wide holder of the authenticated admin's
// token and profile. Both values are persisted together under two fixed keys
// and are never written or cleared independently.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmcleod/folio/storage"
)

const (
	// Bucket is the storage bucket holding the session keys.
	Bucket = "session"
	// TokenKey holds the raw bearer token.
	TokenKey = "adminToken"
	// ProfileKey holds the JSON-encoded admin profile.
	ProfileKey = "adminUser"
)

// ErrNoSession is returned when an operation needs a current session.
var ErrNoSession = errors.New("no active session")

// Admin is the authenticated administrator's profile.
type Admin struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// Session is the token plus profile of a logged-in admin.
type Session struct {
	Token string
	Admin Admin
}

// Listener is notified after every change to the session. ok is false once
// the session has been cleared.
type Listener func(s Session, ok bool)

// Store is the single owner of persisted session state. It is safe for
// concurrent use.
type Store struct {
	repo   storage.Repository
	logger *slog.Logger

	mu      sync.RWMutex
	current *Session

	lmu       sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New returns a Store over repo. Call Init before use.
func New(repo storage.Repository, opts ...Option) *Store {
	s := &Store{
		repo:      repo,
		logger:    slog.Default(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads the persisted session. A session exists only when both keys are
// present and the profile parses; anything else purges both keys and leaves
// the store unauthenticated without reporting an error. Only storage I/O
// failures are returned.
func (s *Store) Init() error {
	token, tokenErr := s.repo.Get(Bucket, TokenKey)
	profile, profileErr := s.repo.Get(Bucket, ProfileKey)
	if err := ioError(tokenErr); err != nil {
		return fmt.Errorf("reading session token: %w", err)
	}
	if err := ioError(profileErr); err != nil {
		return fmt.Errorf("reading session profile: %w", err)
	}

	if tokenErr == nil && profileErr == nil && len(token) > 0 {
		if admin, err := parseProfile(profile); err == nil {
			s.mu.Lock()
			s.current = &Session{Token: string(token), Admin: admin}
			s.mu.Unlock()
			return nil
		}
		s.logger.Debug("discarding unreadable session profile")
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	if tokenErr == nil || profileErr == nil {
		return s.purge()
	}
	return nil
}

// parseProfile accepts only a JSON object; "null" or scalars are corrupt.
func parseProfile(data []byte) (Admin, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Admin{}, err
	}
	if raw == nil {
		return Admin{}, errors.New("profile is not an object")
	}
	var admin Admin
	if err := json.Unmarshal(data, &admin); err != nil {
		return Admin{}, err
	}
	return admin, nil
}

// ioError filters out the "absent" errors that Init treats as no session.
func ioError(err error) error {
	if err == nil || errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrBucketNotFound) {
		return nil
	}
	return err
}

// Current returns the in-memory session. It never re-reads storage.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Authenticated reports whether a session is held in memory.
func (s *Store) Authenticated() bool {
	_, ok := s.Current()
	return ok
}

// Token implements client.TokenSource.
func (s *Store) Token() string {
	sess, _ := s.Current()
	return sess.Token
}

// Save persists sess atomically and makes it current.
func (s *Store) Save(sess Session) error {
	if sess.Token == "" {
		return errors.New("session token is required")
	}
	profile, err := json.Marshal(sess.Admin)
	if err != nil {
		return fmt.Errorf("encoding admin profile: %w", err)
	}
	err = s.repo.Batch(Bucket, func(tx storage.BatchTx) error {
		if err := tx.Put(TokenKey, []byte(sess.Token)); err != nil {
			return err
		}
		return tx.Put(ProfileKey, profile)
	})
	if err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	s.notify(sess, true)
	return nil
}

// UpdateAdmin replaces the stored profile of the current session.
func (s *Store) UpdateAdmin(admin Admin) error {
	sess, ok := s.Current()
	if !ok {
		return ErrNoSession
	}
	sess.Admin = admin
	return s.Save(sess)
}

// Clear drops the in-memory session and deletes both persisted keys.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	err := s.purge()
	s.notify(Session{}, false)
	return err
}

func (s *Store) purge() error {
	err := s.repo.Batch(Bucket, func(tx storage.BatchTx) error {
		for _, key := range []string{TokenKey, ProfileKey} {
			if err := tx.Delete(key); ioError(err) != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Subscribe registers fn for session changes and returns a function that
// removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

func (s *Store) notify(sess Session, ok bool) {
	s.lmu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(sess, ok)
	}
}
