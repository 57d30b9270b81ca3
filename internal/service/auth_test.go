package service

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/markettest"
)

func TestAuth_LoginPersistsAndLogoutClears(t *testing.T) {
	t.Parallel()
	env := setupEnv(t)
	auth := &AuthService{API: env.client, Session: env.store}

	u, err := auth.Register(env.ctx, market.Credentials{Username: " erin ", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "erin", u.Username)

	tok, err := auth.Login(env.ctx, market.Credentials{Username: "erin", Password: "pw"})
	require.NoError(t, err)
	got, ok := env.store.Credential()
	require.True(t, ok)
	require.Equal(t, tok, got)

	require.NoError(t, auth.Logout(env.ctx))
	_, ok = env.store.Credential()
	require.False(t, ok)
}

func TestAuth_BadCredentials(t *testing.T) {
	t.Parallel()
	env := setupEnv(t)
	auth := &AuthService{API: env.client, Session: env.store}

	_, err := auth.Login(env.ctx, market.Credentials{Username: "", Password: "pw"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Zero(t, env.sandbox.Calls(""))

	_, err = auth.Login(env.ctx, market.Credentials{Username: "ghost", Password: "pw"})
	require.True(t, market.IsStatus(err, http.StatusUnauthorized))
	require.Contains(t, market.Describe(err), "Incorrect username or password")
	_, ok := env.store.Credential()
	require.False(t, ok)
}

func TestAuth_Health(t *testing.T) {
	t.Parallel()
	env := setupEnv(t)
	auth := &AuthService{API: env.client, Session: env.store}

	state, err := auth.Health(env.ctx)
	require.NoError(t, err)
	require.Equal(t, Online, state)

	env.sandbox.Fail(markettest.RouteHealth, http.StatusServiceUnavailable, "draining")
	state, err = auth.Health(env.ctx)
	require.Error(t, err)
	require.Equal(t, Unstable, state)

	dead, err := market.New(market.Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	state, err = (&AuthService{API: dead}).Health(env.ctx)
	require.Error(t, err)
	require.Equal(t, Offline, state)
}
