package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/unimarket/internal/catalog"
	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/markettest"
	"github.com/jask/unimarket/internal/session"
)

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type countingAPI struct {
	creates   int
	uploads   int
	createErr error
	uploadErr error
}

func (a *countingAPI) CreateItem(_ context.Context, _ session.Provider, item market.NewItem) (market.Item, error) {
	a.creates++
	if a.createErr != nil {
		return market.Item{}, a.createErr
	}
	return market.Item{ID: 7, Name: item.Name, Price: item.Price}, nil
}

func (a *countingAPI) UploadImage(context.Context, session.Provider, int64, market.Asset) error {
	a.uploads++
	return a.uploadErr
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		draft ItemDraft
		field string
	}{
		{ItemDraft{Name: "", Price: "5"}, "name"},
		{ItemDraft{Name: "   ", Price: "5"}, "name"},
		{ItemDraft{Name: "Widget", Price: ""}, "price"},
		{ItemDraft{Name: "Widget", Price: "abc"}, "price"},
		{ItemDraft{Name: "Widget", Price: "0"}, "price"},
		{ItemDraft{Name: "Widget", Price: "-1.5"}, "price"},
		{ItemDraft{Name: "Widget", Price: "1", Description: strings.Repeat("é", 501)}, "description"},
	}
	for _, tc := range cases {
		_, err := Validate(tc.draft)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "%+v", tc.draft)
		require.Equal(t, tc.field, verr.Field)
	}

	item, err := Validate(ItemDraft{Name: "  Widget ", Price: " 9.99 ", Description: "  "})
	require.NoError(t, err)
	require.Equal(t, "Widget", item.Name)
	require.True(t, item.Price.Equal(decimal.RequireFromString("9.99")))
	require.Nil(t, item.Description)
}

func TestCreate_ValidationMakesNoRequests(t *testing.T) {
	t.Parallel()
	api := &countingAPI{}
	c := &ItemCreator{API: api, Session: session.Static("t"), Capabilities: catalog.Capabilities{SupportsImageUpload: true}}

	_, err := c.Create(context.Background(), ItemDraft{Name: "", Price: "5"}, &market.Asset{Data: pngData})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Zero(t, api.creates)
	require.Zero(t, api.uploads)
}

func TestCreate_ValidationMakesNoNetworkCalls(t *testing.T) {
	t.Parallel()
	env := setupEnv(t)
	c := &ItemCreator{API: env.client, Session: session.Static("t"), Capabilities: catalog.Capabilities{SupportsImageUpload: true}}

	_, err := c.Create(env.ctx, ItemDraft{Name: "", Price: "5"}, nil)
	require.Error(t, err)
	require.Zero(t, env.sandbox.Calls(""))
}

func TestCreate_CreateFailureSkipsAttach(t *testing.T) {
	t.Parallel()
	api := &countingAPI{createErr: &market.HTTPError{Op: "create item", Status: 401, Body: "Not authenticated"}}
	c := &ItemCreator{API: api, Capabilities: catalog.Capabilities{SupportsImageUpload: true}}

	_, err := c.Create(context.Background(), ItemDraft{Name: "Widget", Price: "9.99"}, &market.Asset{Data: pngData})
	require.Error(t, err)
	require.True(t, market.IsStatus(err, 401))
	require.Equal(t, 1, api.creates)
	require.Zero(t, api.uploads)
}

func TestCreate_AttachFailureIsPartial(t *testing.T) {
	t.Parallel()
	cause := errors.New("disk full")
	api := &countingAPI{uploadErr: cause}
	c := &ItemCreator{API: api, Capabilities: catalog.Capabilities{SupportsImageUpload: true}}

	res, err := c.Create(context.Background(), ItemDraft{Name: "Widget", Price: "9.99"}, &market.Asset{Data: pngData})
	require.NoError(t, err)
	require.Equal(t, int64(7), res.Item.ID)
	require.False(t, res.AssetAttached)
	require.ErrorIs(t, res.AssetError, cause)
	require.True(t, res.Partial())
	require.Equal(t, "created #7, image failed: disk full", res.Summary())
}

func TestCreate_UploadDisabled(t *testing.T) {
	t.Parallel()
	api := &countingAPI{}
	c := &ItemCreator{API: api, Capabilities: catalog.Capabilities{SupportsImageUpload: false}}

	res, err := c.Create(context.Background(), ItemDraft{Name: "Widget", Price: "1"}, &market.Asset{Data: pngData})
	require.NoError(t, err)
	require.ErrorIs(t, res.AssetError, ErrImageUploadDisabled)
	require.Zero(t, api.uploads)
}

func TestCreate_AgainstSandbox(t *testing.T) {
	t.Parallel()
	env := setupEnv(t)
	env.loggedIn(t)
	c := &ItemCreator{API: env.client, Session: env.store, Capabilities: catalog.Capabilities{SupportsImageUpload: true}}

	res, err := c.Create(env.ctx, ItemDraft{Name: "Widget", Price: "9.99", Description: "blue"}, &market.Asset{Filename: "w.png", Data: pngData})
	require.NoError(t, err)
	require.True(t, res.AssetAttached)
	require.NoError(t, res.AssetError)
	require.NotNil(t, res.Item.Description)
	require.Equal(t, "blue", *res.Item.Description)
	ext, _, ok := env.sandbox.Image(res.Item.ID)
	require.True(t, ok)
	require.Equal(t, "png", ext)

	env.sandbox.Fail(markettest.RouteUploadImage, http.StatusInternalServerError, "storage offline")
	res, err = c.Create(env.ctx, ItemDraft{Name: "Gadget", Price: "5"}, &market.Asset{Data: pngData})
	require.NoError(t, err)
	require.False(t, res.AssetAttached)
	require.Contains(t, res.Summary(), "storage offline")
	require.Equal(t, 2, env.sandbox.ItemCount())
}
