package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/unimarket/internal/markettest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func sandboxEnv(t *testing.T) *markettest.Server {
	t.Helper()
	sb := markettest.New()
	seedSandbox(sb)
	srv := httptest.NewServer(sb)
	t.Cleanup(srv.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("UNIMARKET_CONFIG", filepath.Join(home, "config.toml"))
	t.Setenv("UNIMARKET_API_BASE_URL", srv.URL)
	return sb
}

func TestCLI_LoginListCreate(t *testing.T) {
	sb := sandboxEnv(t)
	require.NoError(t, sb.AddUser("zoe", "pw"))

	out, err := execute(t, "login", "-u", "zoe", "-p", "pw")
	require.NoError(t, err)
	require.Contains(t, out, "signed in as zoe")

	out, err = execute(t, "items", "list", "--category", "games", "--sort", "price", "--order", "desc", "--limit", "5")
	require.NoError(t, err)
	require.Contains(t, out, "Go board")
	require.Contains(t, out, "items 1-2 of 2")

	// session persisted by the login invocation
	out, err = execute(t, "items", "create", "--name", "Kite", "--price", "15", "--category", "Games")
	require.NoError(t, err)
	require.Contains(t, out, "created #8")

	out, err = execute(t, "logout")
	require.NoError(t, err)
	require.Contains(t, out, "signed out")

	_, err = execute(t, "items", "create", "--name", "Kite", "--price", "15")
	require.Error(t, err)
}

func TestCLI_ListFallsBackOnBadNumbers(t *testing.T) {
	sandboxEnv(t)
	out, err := execute(t, "items", "list", "--limit", "lots", "--offset", "x")
	require.NoError(t, err)
	require.Contains(t, out, "items 1-7 of 7")
	require.Contains(t, out, "next: --offset 10")
}

func TestCLI_ValidationFailsLocally(t *testing.T) {
	sb := sandboxEnv(t)
	_, err := execute(t, "items", "create", "--name", " ", "--price", "3")
	require.Error(t, err)
	require.Zero(t, sb.Calls(markettest.RouteCreateItem))
}

func TestCLI_CategoriesFromCache(t *testing.T) {
	sb := sandboxEnv(t)
	out, err := execute(t, "categories", "list")
	require.NoError(t, err)
	require.Contains(t, out, "1\tBooks")

	sb.Fail(markettest.RouteListCategories, 503, "down")
	out, err = execute(t, "categories", "list")
	require.NoError(t, err)
	require.Contains(t, out, "showing cached list")
	require.Contains(t, out, "3\tTools")
}
