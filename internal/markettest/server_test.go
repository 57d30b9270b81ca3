package markettest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type listBody struct {
	Items []struct {
		ID         int64       `json:"id"`
		Name       string      `json:"name"`
		Price      json.Number `json:"price"`
		CategoryID *int64      `json:"category_id"`
	} `json:"items"`
	Offset     int  `json:"offset"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	NextOffset *int `json:"next_offset"`
}

func get(t *testing.T, s *Server, target string) (*httptest.ResponseRecorder, listBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body listBody
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestListItems_FilterSortPaginate(t *testing.T) {
	t.Parallel()
	s := New()
	tools := s.AddCategory("tools")
	toys := s.AddCategory("toys")
	s.AddItem("hammer", "20", &tools)
	s.AddItem("kite", "5", &toys)
	s.AddItem("saw", "35.5", &tools)
	s.AddItem("drill", "99", &tools)

	rec, body := get(t, s, "/items?category_id=1&sort_by=price&order=desc&limit=2&offset=0")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, body.Total)
	require.Len(t, body.Items, 2)
	require.Equal(t, "drill", body.Items[0].Name)
	require.Equal(t, "saw", body.Items[1].Name)
	require.NotNil(t, body.NextOffset)
	require.Equal(t, 2, *body.NextOffset)

	_, body = get(t, s, "/items?category_id=1&sort_by=price&order=desc&limit=2&offset=2")
	require.Len(t, body.Items, 1)
	require.Equal(t, "hammer", body.Items[0].Name)
	require.Nil(t, body.NextOffset)
}

func TestListItems_ClampsLimitAndOffset(t *testing.T) {
	t.Parallel()
	s := New(WithMaxLimit(3))
	for i := 0; i < 7; i++ {
		s.AddItem("x", "1", nil)
	}
	_, body := get(t, s, "/items?limit=50&offset=-4")
	require.Equal(t, 3, body.Limit)
	require.Equal(t, 0, body.Offset)

	_, body = get(t, s, "/items?limit=3&offset=100")
	require.Equal(t, 6, body.Offset)
	require.Len(t, body.Items, 1)

	s = New(WithoutOffsetClamp())
	s.AddItem("x", "1", nil)
	_, body = get(t, s, "/items?limit=10&offset=100")
	require.Equal(t, 100, body.Offset)
	require.Empty(t, body.Items)
}

func TestListItems_RejectsBadParameters(t *testing.T) {
	t.Parallel()
	s := New()
	for _, target := range []string{"/items?limit=ten", "/items?sort_by=rating", "/items?order=up", "/items?category_id=x"} {
		rec, _ := get(t, s, target)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, target)
	}
}

func TestFailAndCalls(t *testing.T) {
	t.Parallel()
	s := New()
	s.Fail(RouteHealth, http.StatusServiceUnavailable, "maintenance")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.Equal(t, "maintenance", string(body))

	s.Fail(RouteHealth, 0, "")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, 2, s.Calls(RouteHealth))
	require.Equal(t, 2, s.Calls(""))
}

func TestCreateItem_RequiresTokenAndValidates(t *testing.T) {
	t.Parallel()
	s := New()
	require.NoError(t, s.AddUser("dana", "pw"))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"name":"a","price":1}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("username=dana&password=pw"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	post := func(body string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		s.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusUnprocessableEntity, post(`{"name":"","price":1}`))
	require.Equal(t, http.StatusUnprocessableEntity, post(`{"name":"a","price":0}`))
	require.Equal(t, http.StatusNotFound, post(`{"name":"a","price":1,"category_id":42}`))
	require.Equal(t, http.StatusCreated, post(`{"name":"a","price":"2.50"}`))
	require.Equal(t, 1, s.ItemCount())
}
