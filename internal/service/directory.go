package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/go-faster/errors"

	"github.com/jask/unimarket/internal/database/repository"
	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/session"
)

// CategoryAPI is the part of the marketplace client the directory needs.
type CategoryAPI interface {
	ListCategories(ctx context.Context, sess session.Provider) ([]market.Category, error)
	CreateCategory(ctx context.Context, sess session.Provider, name string) (market.Category, error)
}

// CategoryDirectory keeps the category list for pickers and filters. It is
// refreshed serially; a failed fetch falls back to the last persisted list.
type CategoryDirectory struct {
	API     CategoryAPI
	Cache   *repository.CategoryRepo
	Session session.Provider
	Logger  *slog.Logger

	mu     sync.Mutex
	cats   []market.Category
	loaded bool
}

// List returns the known categories, fetching them on first use. Failures
// are logged and yield whatever is cached, possibly nothing.
func (d *CategoryDirectory) List(ctx context.Context) []market.Category {
	d.mu.Lock()
	if d.loaded {
		out := append([]market.Category(nil), d.cats...)
		d.mu.Unlock()
		return out
	}
	d.mu.Unlock()
	cats, _ := d.Refresh(ctx)
	return cats
}

// Refresh refetches from the server. On failure it returns the cached list
// together with the fetch error.
func (d *CategoryDirectory) Refresh(ctx context.Context) ([]market.Category, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cats, err := d.API.ListCategories(ctx, d.session())
	if err != nil {
		d.logger().WarnContext(ctx, "category fetch failed; using cache", "error", err)
		cached := d.loadCached(ctx)
		if !d.loaded {
			d.cats = cached
			d.loaded = true
		}
		return append([]market.Category(nil), d.cats...), errors.Wrap(err, "refresh categories")
	}
	d.cats = cats
	d.loaded = true
	d.persist(ctx)
	return append([]market.Category(nil), cats...), nil
}

// Create adds a category on the server and to the local list.
func (d *CategoryDirectory) Create(ctx context.Context, name string) (market.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return market.Category{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.API.CreateCategory(ctx, d.session(), name)
	if err != nil {
		return market.Category{}, errors.Wrap(err, "create category")
	}
	if !d.loaded {
		// persist rewrites the whole cache, so start from what it holds
		d.cats = d.loadCached(ctx)
		d.loaded = true
	}
	d.cats = append(d.cats, c)
	d.persist(ctx)
	return c, nil
}

// Resolve finds a category by id or case-insensitive name. An unknown name
// error suggests the closest known name.
func (d *CategoryDirectory) Resolve(ctx context.Context, ref string) (market.Category, error) {
	ref = strings.TrimSpace(ref)
	cats := d.List(ctx)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, c := range cats {
			if c.ID == id {
				return c, nil
			}
		}
		return market.Category{}, errors.Errorf("unknown category id %d", id)
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, ref) {
			return c, nil
		}
	}
	if best, ok := closestName(ref, cats); ok {
		return market.Category{}, errors.Errorf("unknown category %q (did you mean %q?)", ref, best)
	}
	return market.Category{}, errors.Errorf("unknown category %q", ref)
}

func closestName(ref string, cats []market.Category) (string, bool) {
	needle := strings.ToLower(ref)
	best, bestDist := "", -1
	for _, c := range cats {
		dist := levenshtein.ComputeDistance(needle, strings.ToLower(c.Name))
		if bestDist < 0 || dist < bestDist {
			best, bestDist = c.Name, dist
		}
	}
	// suggestions further away than half the input are noise
	if bestDist < 0 || bestDist > max(2, len(ref)/2) {
		return "", false
	}
	return best, true
}

// Label is a display name for a category id, used by filters and listings.
func Label(cats []market.Category, id *int64) string {
	if id == nil {
		return "all categories"
	}
	for _, c := range cats {
		if c.ID == *id {
			return c.Name
		}
	}
	return fmt.Sprintf("category %d", *id)
}

func (d *CategoryDirectory) loadCached(ctx context.Context) []market.Category {
	if d.Cache == nil {
		return nil
	}
	rows, err := d.Cache.List(ctx)
	if err != nil {
		d.logger().WarnContext(ctx, "category cache read failed", "error", err)
		return nil
	}
	out := make([]market.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, market.Category{ID: r.ID, Name: r.Name})
	}
	return out
}

func (d *CategoryDirectory) persist(ctx context.Context) {
	if d.Cache == nil {
		return
	}
	rows := make([]repository.Category, 0, len(d.cats))
	for _, c := range d.cats {
		rows = append(rows, repository.Category{ID: c.ID, Name: c.Name})
	}
	if err := d.Cache.ReplaceAll(ctx, rows); err != nil {
		d.logger().WarnContext(ctx, "category cache write failed", "error", err)
	}
}

func (d *CategoryDirectory) session() session.Provider {
	if d.Session == nil {
		return session.Anonymous()
	}
	return d.Session
}

func (d *CategoryDirectory) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
