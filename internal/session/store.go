package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Fickets/ticketflow/internal/domain"
	"github.com/Fickets/ticketflow/pkg/logger"
)

var ErrNotLoggedIn = errors.New("no credentials stored for actor")

// Refresher exchanges the current access token for a fresh one at the
// reissue endpoint. Injected so the store stays free of transport
// concerns.
type Refresher func(ctx context.Context, actor domain.Actor, current string) (string, error)

// Store keeps one credential entry per actor, persisted to a JSON file
// and rehydrated on construction. This is the headless analog of the web
// client's named localStorage keys and the only durable client state.
type Store struct {
	path    string
	refresh Refresher
	l       logger.Logger

	mu    sync.Mutex
	creds map[domain.Actor]*domain.Credentials
}

func NewStore(path string, refresh Refresher, l logger.Logger) (*Store, error) {
	s := &Store{
		path:    path,
		refresh: refresh,
		l:       l,
		creds:   make(map[domain.Actor]*domain.Credentials),
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var entries map[domain.Actor]*domain.Credentials
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("credentials file corrupt: %w", err)
	}
	s.creds = entries
	return nil
}

// save writes atomically so a crash mid-write never loses the old file.
func (s *Store) save() error {
	raw, err := json.MarshalIndent(s.creds, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Token(actor domain.Actor) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creds[actor]
	if !ok || c.AccessToken == "" {
		return "", ErrNotLoggedIn
	}
	return c.AccessToken, nil
}

func (s *Store) Session(actor domain.Actor) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.creds[actor]
	if !ok {
		return domain.Session{}
	}
	return c.Session()
}

// Refresh exchanges the current token and persists the replacement. A
// refresh failure clears the entry so the caller is forced to re-login.
func (s *Store) Refresh(ctx context.Context, actor domain.Actor) (string, error) {
	s.mu.Lock()
	c, ok := s.creds[actor]
	if !ok {
		s.mu.Unlock()
		return "", ErrNotLoggedIn
	}
	current := c.AccessToken
	s.mu.Unlock()

	token, err := s.refresh(ctx, actor, current)
	if err != nil {
		s.l.Warnf(ctx, "session.Store.Refresh: reissue failed for %s: %v", actor, err)
		_ = s.Clear(actor)
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[actor].AccessToken = token
	if err := s.save(); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	return token, nil
}

func (s *Store) SetCredentials(c *domain.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds[c.Actor] = c
	return s.save()
}

// Clear destroys the persisted entry for an actor (logout / reset).
func (s *Store) Clear(actor domain.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.creds, actor)
	return s.save()
}

// ExpiresSoon inspects the token's exp claim (unverified; the client is
// not the party that checks signatures) so long waits can refresh ahead
// of time instead of tripping a 401 mid-flow.
func (s *Store) ExpiresSoon(actor domain.Actor, window time.Duration) bool {
	token, err := s.Token(actor)
	if err != nil {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < window
}
