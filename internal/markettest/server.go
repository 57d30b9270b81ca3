// Package markettest is an in-memory marketplace server. Tests point a
// market.Client at it and `unimarket sandbox` serves it for manual use.
package markettest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultLimit   = 10
	defaultMaxSize = 100
	maxDescription = 500
	maxUpload      = 8 << 20
)

// Route names accepted by Fail and Calls.
const (
	RouteHealth          = "GET /health"
	RouteRegister        = "POST /auth/register"
	RouteLogin           = "POST /auth/login"
	RouteListCategories  = "GET /categories"
	RouteCreateCategory  = "POST /categories"
	RouteListItems       = "GET /items"
	RouteCreateItem      = "POST /items"
	RouteUploadImage     = "POST /{id}/upload-image"
	RouteItemImage       = "GET /uploads/items/{file}"
	RouteItemImageHeader = "HEAD /uploads/items/{file}"
)

type user struct {
	id   int64
	name string
	hash []byte
}

type category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type item struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"-"`
	CategoryID  *int64          `json:"category_id"`
	OwnerID     int64           `json:"owner_id"`
}

func (it item) MarshalJSON() ([]byte, error) {
	type plain item
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain(it), json.Number(it.Price.String())})
}

type image struct {
	ext         string
	contentType string
	data        []byte
}

type failure struct {
	status int
	body   string
}

// Server is the sandbox. The zero value is not usable; call New.
type Server struct {
	mu         sync.Mutex
	router     chi.Router
	logger     *slog.Logger
	maxLimit   int
	clampHigh  bool
	bcryptCost int

	users      map[string]*user
	tokens     map[string]int64
	categories []category
	items      []item
	images     map[int64]image
	nextUser   int64
	nextCat    int64
	nextItem   int64

	calls    map[string]int
	failures map[string]failure
}

// Option customizes a Server.
type Option func(*Server)

// WithMaxLimit caps the page size the server will honor.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithoutOffsetClamp makes the server apply offsets past the end verbatim
// instead of pulling them back to the last page.
func WithoutOffsetClamp() Option {
	return func(s *Server) { s.clampHigh = false }
}

// WithLogger sets the request logger. Requests are not logged by default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.bcryptCost = cost }
}

// New builds a sandbox with no users, categories or items.
func New(opts ...Option) *Server {
	s := &Server{
		maxLimit:   defaultMaxSize,
		clampHigh:  true,
		bcryptCost: bcrypt.MinCost,
		users:      map[string]*user{},
		tokens:     map[string]int64{},
		images:     map[int64]image{},
		calls:      map[string]int{},
		failures:   map[string]failure{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.logger != nil {
		r.Use(s.logRequests)
	}

	r.Get("/health", s.track(RouteHealth, s.health))
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.track(RouteRegister, s.register))
		r.Post("/login", s.track(RouteLogin, s.login))
	})
	r.Get("/categories", s.track(RouteListCategories, s.listCategories))
	r.Post("/categories", s.track(RouteCreateCategory, s.requireAuth(s.createCategory)))
	r.Get("/items", s.track(RouteListItems, s.listItems))
	r.Post("/items", s.track(RouteCreateItem, s.requireAuth(s.createItem)))
	r.Post("/{id}/upload-image", s.track(RouteUploadImage, s.requireAuth(s.uploadImage)))
	r.Get("/uploads/items/{file}", s.track(RouteItemImage, s.serveImage))
	r.Head("/uploads/items/{file}", s.track(RouteItemImageHeader, s.serveImage))
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Fail makes every later request to route answer with status and body.
// A zero status removes the failure.
func (s *Server) Fail(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = failure{status: status, body: body}
}

// Calls returns how many requests reached route. An empty route counts all.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if route != "" {
		return s.calls[route]
	}
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// AddUser registers an account directly.
func (s *Server) AddUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return fmt.Errorf("user %q exists", username)
	}
	s.nextUser++
	s.users[username] = &user{id: s.nextUser, name: username, hash: hash}
	return nil
}

// AddCategory seeds a category and returns its id.
func (s *Server) AddCategory(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCat++
	s.categories = append(s.categories, category{ID: s.nextCat, Name: name})
	return s.nextCat
}

// AddItem seeds an item owned by nobody and returns its id.
func (s *Server) AddItem(name, price string, categoryID *int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextItem++
	s.items = append(s.items, item{
		ID:         s.nextItem,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		CategoryID: categoryID,
	})
	return s.nextItem
}

// Image returns the stored upload for an item.
func (s *Server) Image(itemID int64) (ext string, data []byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[itemID]
	return img.ext, img.data, ok
}

// ItemCount returns the number of stored items.
func (s *Server) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Server) track(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		f, failing := s.failures[route]
		s.mu.Unlock()
		if failing {
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		next(w, r)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("sandbox request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", r.Header.Get("X-Request-ID"),
		)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID int64)

func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		tok, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || tok == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		s.mu.Lock()
		uid, ok := s.tokens[tok]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r, uid)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&c)
		return c, err
	}
	if err := r.ParseForm(); err != nil {
		return c, err
	}
	c.Username = r.PostForm.Get("username")
	c.Password = r.PostForm.Get("password")
	return c, nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}
	if err := s.AddUser(c.Username, c.Password); err != nil {
		writeDetail(w, http.StatusConflict, "Username already registered")
		return
	}
	s.mu.Lock()
	u := s.users[c.Username]
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"id": u.id, "username": u.name})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	s.mu.Lock()
	u, ok := s.users[c.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(c.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	tok := uuid.NewString()
	s.mu.Lock()
	s.tokens[tok] = u.id
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"access_token": tok, "token_type": "bearer"})
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]category{}, s.categories...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request, _ int64) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	s.mu.Lock()
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, body.Name) {
			s.mu.Unlock()
			writeDetail(w, http.StatusConflict, "Category already exists")
			return
		}
	}
	s.nextCat++
	c := category{ID: s.nextCat, Name: strings.TrimSpace(body.Name)}
	s.categories = append(s.categories, c)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, c)
}

func intParam(q map[string][]string, key string, def int) (int, bool) {
	vals, ok := q[key]
	if !ok || len(vals) == 0 || vals[0] == "" {
		return def, true
	}
	n, err := strconv.Atoi(vals[0])
	return n, err == nil
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := intParam(q, "limit", defaultLimit)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "limit must be an integer")
		return
	}
	offset, ok := intParam(q, "offset", 0)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "offset must be an integer")
		return
	}
	var catFilter *int64
	if raw := q.Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "category_id must be an integer")
			return
		}
		catFilter = &id
	}
	sortBy := q.Get("sort_by")
	if sortBy == "" {
		sortBy = "id"
	}
	order := q.Get("order")
	if order == "" {
		order = "asc"
	}
	less, ok := itemOrder(sortBy)
	if !ok || (order != "asc" && order != "desc") {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid sort_by or order")
		return
	}

	limit = max(1, min(limit, s.maxLimit))

	s.mu.Lock()
	matched := make([]item, 0, len(s.items))
	for _, it := range s.items {
		if catFilter != nil && (it.CategoryID == nil || *it.CategoryID != *catFilter) {
			continue
		}
		matched = append(matched, it)
	}
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if order == "desc" {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	total := len(matched)
	offset = max(0, offset)
	if s.clampHigh && total > 0 && offset >= total {
		offset = ((total - 1) / limit) * limit
	}
	end := min(total, offset+limit)
	page := []item{}
	if offset < total {
		page = matched[offset:end]
	}
	var next *int
	if offset+limit < total {
		n := offset + limit
		next = &n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       page,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
		"next_offset": next,
	})
}

func itemOrder(key string) (func(a, b item) bool, bool) {
	switch key {
	case "id":
		return func(a, b item) bool { return a.ID < b.ID }, true
	case "name":
		return func(a, b item) bool { return a.Name < b.Name }, true
	case "price":
		return func(a, b item) bool { return a.Price.LessThan(b.Price) }, true
	}
	return nil, false
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request, uid int64) {
	var body struct {
		Name        string          `json:"name"`
		Price       decimal.Decimal `json:"price"`
		Description *string         `json:"description"`
		CategoryID  *int64          `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	switch {
	case strings.TrimSpace(body.Name) == "":
		writeDetail(w, http.StatusUnprocessableEntity, "name must not be empty")
		return
	case !body.Price.IsPositive():
		writeDetail(w, http.StatusUnprocessableEntity, "price must be greater than 0")
		return
	case body.Description != nil && len([]rune(*body.Description)) > maxDescription:
		writeDetail(w, http.StatusUnprocessableEntity, "description is too long")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if body.CategoryID != nil && !s.hasCategory(*body.CategoryID) {
		writeDetail(w, http.StatusNotFound, "Category not found")
		return
	}
	s.nextItem++
	it := item{
		ID:          s.nextItem,
		Name:        body.Name,
		Description: body.Description,
		Price:       body.Price,
		CategoryID:  body.CategoryID,
		OwnerID:     uid,
	}
	s.items = append(s.items, it)
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) hasCategory(id int64) bool {
	for _, c := range s.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) hasItem(id int64) bool {
	for _, it := range s.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request, _ int64) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Item not found")
		return
	}
	s.mu.Lock()
	found := s.hasItem(id)
	s.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "Item not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "file is empty")
		return
	}
	ct := header.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	ext := "jpg"
	if ct == "image/png" {
		ext = "png"
	}

	s.mu.Lock()
	s.images[id] = image{ext: ext, contentType: ct, data: data}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "filename": fmt.Sprintf("%d.%s", id, ext)})
}

func (s *Server) serveImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	base, ext, ok := strings.Cut(name, ".")
	id, err := strconv.ParseInt(base, 10, 64)
	if !ok || err != nil {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	img, found := s.images[id]
	s.mu.Unlock()
	if !found || img.ext != ext {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", img.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.data)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(img.data)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
