package market_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/markettest"
	"github.com/jask/unimarket/internal/session"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newSandbox(t *testing.T, opts ...markettest.Option) (*markettest.Server, *market.Client) {
	t.Helper()
	sb := markettest.New(opts...)
	srv := httptest.NewServer(sb)
	t.Cleanup(srv.Close)
	c, err := market.New(market.Options{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return sb, c
}

func login(t *testing.T, sb *markettest.Server, c *market.Client) session.Provider {
	t.Helper()
	require.NoError(t, sb.AddUser("alice", "s3cret"))
	tok, err := c.Login(context.Background(), market.Credentials{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	return session.Static(tok)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	t.Parallel()
	_, err := market.New(market.Options{BaseURL: "/api"})
	require.Error(t, err)
}

func TestClient_HeadersAndBearer(t *testing.T) {
	t.Parallel()
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)
	c, err := market.New(market.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.ListCategories(context.Background(), session.Static("abc"))
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", got.Get("Authorization"))
	require.Equal(t, "application/json", got.Get("Accept"))
	require.NotEmpty(t, got.Get("X-Request-ID"))

	_, err = c.ListCategories(context.Background(), session.Anonymous())
	require.NoError(t, err)
	require.Empty(t, got.Get("Authorization"))
}

func TestClient_LoginEncodings(t *testing.T) {
	t.Parallel()
	for _, enc := range []market.LoginEncoding{market.LoginForm, market.LoginJSON} {
		sb := markettest.New()
		srv := httptest.NewServer(sb)
		c, err := market.New(market.Options{BaseURL: srv.URL, LoginEncoding: enc})
		require.NoError(t, err)
		require.NoError(t, sb.AddUser("bob", "pw"))

		tok, err := c.Login(context.Background(), market.Credentials{Username: "bob", Password: "pw"})
		require.NoError(t, err, "encoding %s", enc)
		require.NotEmpty(t, tok)

		_, err = c.Login(context.Background(), market.Credentials{Username: "bob", Password: "nope"})
		require.True(t, market.IsStatus(err, http.StatusUnauthorized))
		srv.Close()
	}
}

func TestClient_RegisterConflictSurfacesBody(t *testing.T) {
	t.Parallel()
	_, c := newSandbox(t)
	ctx := context.Background()

	u, err := c.Register(ctx, market.Credentials{Username: "carol", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "carol", u.Username)

	_, err = c.Register(ctx, market.Credentials{Username: "carol", Password: "pw"})
	var httpErr *market.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusConflict, httpErr.Status)
	require.Contains(t, market.Describe(err), "Username already registered")
}

func TestClient_ListItemsEchoesServerOffset(t *testing.T) {
	t.Parallel()
	sb, c := newSandbox(t)
	for i := 0; i < 12; i++ {
		sb.AddItem("item", "1.50", nil)
	}

	q := url.Values{"limit": {"5"}, "offset": {"500"}, "sort_by": {"id"}}
	page, err := c.ListItems(context.Background(), session.Anonymous(), q)
	require.NoError(t, err)
	require.Equal(t, 10, page.Offset)
	require.Len(t, page.Items, 2)
	require.NotNil(t, page.Total)
	require.Equal(t, 12, *page.Total)
	require.Nil(t, page.NextOffset)
	require.True(t, page.Items[0].Price.Equal(decimal.RequireFromString("1.5")))
}

func TestClient_ListItemsDecodeErrors(t *testing.T) {
	t.Parallel()
	bodies := map[string]string{
		"garbage":        `<html>oops</html>`,
		"missing items":  `{"offset":0}`,
		"missing offset": `{"items":[]}`,
	}
	for name, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		}))
		c, err := market.New(market.Options{BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = c.ListItems(context.Background(), session.Anonymous(), nil)
		var decErr *market.DecodeError
		require.ErrorAs(t, err, &decErr, name)
		srv.Close()
	}
}

func TestClient_NetworkError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := market.New(market.Options{BaseURL: base})
	require.NoError(t, err)
	_, err = c.Health(context.Background())
	var netErr *market.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Contains(t, market.Describe(err), "server unreachable")
}

func TestClient_CreateItemSendsNumberAndNulls(t *testing.T) {
	t.Parallel()
	var body map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":5,"name":"Widget","price":9.99,"description":null,"category_id":null,"owner_id":1}`)
	}))
	t.Cleanup(srv.Close)
	c, err := market.New(market.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	it, err := c.CreateItem(context.Background(), session.Static("t"), market.NewItem{
		Name:  "Widget",
		Price: decimal.RequireFromString("9.99"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), it.ID)
	require.Equal(t, "9.99", string(body["price"]))
	require.Equal(t, "null", string(body["description"]))
	require.Equal(t, "null", string(body["category_id"]))
}

func TestClient_UploadImageAndProbe(t *testing.T) {
	t.Parallel()
	sb, c := newSandbox(t)
	sess := login(t, sb, c)
	ctx := context.Background()

	it, err := c.CreateItem(ctx, sess, market.NewItem{Name: "Lamp", Price: decimal.NewFromInt(12)})
	require.NoError(t, err)

	require.NoError(t, c.UploadImage(ctx, sess, it.ID, market.Asset{Filename: "lamp.png", Data: pngHeader}))
	ext, data, ok := sb.Image(it.ID)
	require.True(t, ok)
	require.Equal(t, "png", ext)
	require.Equal(t, pngHeader, data)

	found, err := c.Probe(ctx, c.BaseURL()+"/uploads/items/"+strconv.FormatInt(it.ID, 10)+".png")
	require.NoError(t, err)
	require.True(t, found)
	found, err = c.Probe(ctx, c.BaseURL()+"/uploads/items/"+strconv.FormatInt(it.ID, 10)+".jpg")
	require.NoError(t, err)
	require.False(t, found)
}

func TestClient_UploadImageRequiresData(t *testing.T) {
	t.Parallel()
	sb, c := newSandbox(t)
	err := c.UploadImage(context.Background(), session.Anonymous(), 1, market.Asset{})
	require.Error(t, err)
	require.Zero(t, sb.Calls(""))
}

func TestClient_CreateItemNeedsAuth(t *testing.T) {
	t.Parallel()
	_, c := newSandbox(t)
	_, err := c.CreateItem(context.Background(), session.Anonymous(), market.NewItem{Name: "x", Price: decimal.NewFromInt(1)})
	require.True(t, market.IsStatus(err, http.StatusUnauthorized))
}
