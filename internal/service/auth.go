package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-faster/errors"

	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/session"
)

// AuthAPI is the part of the marketplace client the auth flow needs.
type AuthAPI interface {
	Health(ctx context.Context) (market.HealthStatus, error)
	Register(ctx context.Context, creds market.Credentials) (market.User, error)
	Login(ctx context.Context, creds market.Credentials) (session.Token, error)
}

// ServerState is the coarse liveness shown in the status bar.
type ServerState string

const (
	Online   ServerState = "online"
	Unstable ServerState = "unstable"
	Offline  ServerState = "offline"
)

// AuthService registers accounts and keeps the persisted session current.
type AuthService struct {
	API     AuthAPI
	Session *session.Store
	Logger  *slog.Logger
}

func checkCredentials(creds market.Credentials) (market.Credentials, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" {
		return creds, &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if creds.Password == "" {
		return creds, &ValidationError{Field: "password", Reason: "must not be empty"}
	}
	return creds, nil
}

func (s *AuthService) Register(ctx context.Context, creds market.Credentials) (market.User, error) {
	creds, err := checkCredentials(creds)
	if err != nil {
		return market.User{}, err
	}
	u, err := s.API.Register(ctx, creds)
	if err != nil {
		return market.User{}, errors.Wrap(err, "register")
	}
	s.logger().InfoContext(ctx, "registered", "username", u.Username)
	return u, nil
}

// Login authenticates and persists the returned token.
func (s *AuthService) Login(ctx context.Context, creds market.Credentials) (session.Token, error) {
	creds, err := checkCredentials(creds)
	if err != nil {
		return "", err
	}
	tok, err := s.API.Login(ctx, creds)
	if err != nil {
		return "", errors.Wrap(err, "login")
	}
	if err := s.Session.Save(ctx, tok); err != nil {
		return "", err
	}
	s.logger().InfoContext(ctx, "logged in", "username", creds.Username)
	return tok, nil
}

// Logout forgets the stored token. The server keeps no session to end.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.Session.Clear(ctx)
}

// Health classifies the liveness probe. A reachable server that does not
// answer "ok" is unstable; an unreachable one is offline.
func (s *AuthService) Health(ctx context.Context) (ServerState, error) {
	h, err := s.API.Health(ctx)
	if err != nil {
		var netErr *market.NetworkError
		if errors.As(err, &netErr) {
			return Offline, err
		}
		return Unstable, err
	}
	if !h.OK() {
		return Unstable, nil
	}
	return Online, nil
}

func (s *AuthService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
