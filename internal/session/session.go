// Package session holds the bearer credential used for authenticated
// marketplace requests. There is no process-global token: callers pass a
// Provider into every operation that needs one.
package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/jask/unimarket/internal/secrets"
)

// StorageKey is the fixed application key the credential is persisted under.
const StorageKey = "unimarket_token"

// Token is an opaque bearer credential.
type Token string

// Preview returns a short prefix safe to show on screen.
func (t Token) Preview() string {
	if len(t) <= 12 {
		return string(t)
	}
	return string(t[:12]) + "..."
}

// Provider yields the current credential, if any.
type Provider interface {
	Credential() (Token, bool)
}

type staticProvider Token

func (s staticProvider) Credential() (Token, bool) {
	return Token(s), s != ""
}

// Static always returns tok. An empty token behaves like Anonymous.
func Static(tok Token) Provider { return staticProvider(tok) }

// Anonymous never returns a credential.
func Anonymous() Provider { return staticProvider("") }

// KV is the persistence the Store needs.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store is the persisted session: read once at startup, written at login.
type Store struct {
	mu     sync.RWMutex
	kv     KV
	sealer *secrets.Sealer
	token  Token
}

func NewStore(kv KV, sealer *secrets.Sealer) *Store {
	return &Store{kv: kv, sealer: sealer}
}

// Load reads the persisted credential. An unreadable value leaves the
// session anonymous and is reported to the caller.
func (s *Store) Load(ctx context.Context) error {
	sealed, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return errors.Wrap(err, "session: read")
	}
	if !ok {
		return nil
	}
	plain, err := s.sealer.OpenString(sealed)
	if err != nil {
		return errors.Wrap(err, "session: unseal")
	}
	s.mu.Lock()
	s.token = Token(plain)
	s.mu.Unlock()
	return nil
}

// Save persists tok and makes it the active credential.
func (s *Store) Save(ctx context.Context, tok Token) error {
	if tok == "" {
		return errors.New("session: empty token")
	}
	sealed, err := s.sealer.SealString(string(tok))
	if err != nil {
		return errors.Wrap(err, "session: seal")
	}
	if err := s.kv.Put(ctx, StorageKey, sealed); err != nil {
		return errors.Wrap(err, "session: write")
	}
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return nil
}

// Clear forgets the credential locally and on disk.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	if err := s.kv.Delete(ctx, StorageKey); err != nil {
		return errors.Wrap(err, "session: delete")
	}
	return nil
}

func (s *Store) Credential() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}
