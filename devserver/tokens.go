package devserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jmcleod/folio/internal/uuid"
)

const tokenIssuerName = "folio-devserver"

var errTokenRevoked = errors.New("token revoked")

// tokenIssuer signs and verifies HS256 bearer tokens. The signing key stays
// sealed in a memguard enclave and is only opened for the duration of a
// sign or verify call.
type tokenIssuer struct {
	key *memguard.Enclave
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time            // jti -> expiry
	issued  map[string]map[string]time.Time // subject -> jti -> expiry
}

func newTokenIssuer(secret []byte, ttl time.Duration, now func() time.Time) *tokenIssuer {
	var key *memguard.Enclave
	if len(secret) == 0 {
		key = memguard.NewBufferRandom(32).Seal()
	} else {
		key = memguard.NewEnclave(append([]byte(nil), secret...))
	}
	return &tokenIssuer{
		key:     key,
		ttl:     ttl,
		now:     now,
		revoked: make(map[string]time.Time),
		issued:  make(map[string]map[string]time.Time),
	}
}

// issue returns a signed token for subject and its claims.
func (t *tokenIssuer) issue(subject string) (string, *jwt.RegisteredClaims, error) {
	now := t.now()
	claims := &jwt.RegisteredClaims{
		ID:        uuid.New(),
		Issuer:    tokenIssuerName,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	buf, err := t.key.Open()
	if err != nil {
		return "", nil, fmt.Errorf("opening signing key: %w", err)
	}
	defer buf.Destroy()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(buf.Bytes())
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked(now)
	ids := t.issued[subject]
	if ids == nil {
		ids = make(map[string]time.Time)
		t.issued[subject] = ids
	}
	ids[claims.ID] = claims.ExpiresAt.Time
	return signed, claims, nil
}

// parse verifies signature, expiry and revocation.
func (t *tokenIssuer) parse(token string) (*jwt.RegisteredClaims, error) {
	buf, err := t.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening signing key: %w", err)
	}
	defer buf.Destroy()

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return buf.Bytes(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	_, revoked := t.revoked[claims.ID]
	t.mu.Unlock()
	if revoked {
		return nil, errTokenRevoked
	}
	return claims, nil
}

// revoke rejects the token id until it would have expired anyway.
func (t *tokenIssuer) revoke(claims *jwt.RegisteredClaims) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked(t.now())
	if claims.ExpiresAt != nil {
		t.revoked[claims.ID] = claims.ExpiresAt.Time
	}
}

// revokeSubject revokes every live token issued to subject except keep,
// which may be empty.
func (t *tokenIssuer) revokeSubject(subject, keep string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked(t.now())
	n := 0
	for id, exp := range t.issued[subject] {
		if id == keep {
			continue
		}
		t.revoked[id] = exp
		delete(t.issued[subject], id)
		n++
	}
	return n
}

func (t *tokenIssuer) sweepLocked(now time.Time) {
	for id, exp := range t.revoked {
		if now.After(exp) {
			delete(t.revoked, id)
		}
	}
	for subject, ids := range t.issued {
		for id, exp := range ids {
			if now.After(exp) {
				delete(ids, id)
			}
		}
		if len(ids) == 0 {
			delete(t.issued, subject)
		}
	}
}
