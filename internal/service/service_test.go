package service

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/unimarket/internal/database"
	"github.com/jask/unimarket/internal/database/repository"
	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/markettest"
	"github.com/jask/unimarket/internal/secrets"
	"github.com/jask/unimarket/internal/session"
)

type testEnv struct {
	ctx     context.Context
	sandbox *markettest.Server
	client  *market.Client
	repo    *repository.CategoryRepo
	store   *session.Store
}

func setupEnv(t *testing.T) testEnv {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	db, err := database.Prepare(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sb := markettest.New()
	srv := httptest.NewServer(sb)
	t.Cleanup(srv.Close)
	client, err := market.New(market.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	sealer, err := secrets.NewSealer("test-identity")
	require.NoError(t, err)

	return testEnv{
		ctx:     ctx,
		sandbox: sb,
		client:  client,
		repo:    repository.NewCategoryRepo(db),
		store:   session.NewStore(repository.NewKVRepo(db), sealer),
	}
}

// loggedIn registers a sandbox user and logs in through AuthService.
func (e testEnv) loggedIn(t *testing.T) *AuthService {
	t.Helper()
	require.NoError(t, e.sandbox.AddUser("alice", "s3cret"))
	auth := &AuthService{API: e.client, Session: e.store}
	_, err := auth.Login(e.ctx, market.Credentials{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	return auth
}
