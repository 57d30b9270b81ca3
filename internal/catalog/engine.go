package catalog

import (
	"context"
	"log/slog"
	"net/url"
	"sync/atomic"

	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/session"
)

// Lister fetches one page of items. *market.Client satisfies it.
type Lister interface {
	ListItems(ctx context.Context, sess session.Provider, query url.Values) (market.Page, error)
}

// Engine runs listing requests and tags each with a generation so that a
// response to a superseded request can be recognised and dropped.
type Engine struct {
	lister  Lister
	session session.Provider
	caps    Capabilities
	logger  *slog.Logger
	gen     atomic.Uint64
}

func NewEngine(lister Lister, sess session.Provider, caps Capabilities, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if sess == nil {
		sess = session.Anonymous()
	}
	return &Engine{lister: lister, session: sess, caps: caps, logger: logger}
}

func (e *Engine) Capabilities() Capabilities { return e.caps }

// Result is the outcome of one listing request. View carries the confirmed
// offset on success and the requested one on failure.
type Result struct {
	Generation uint64
	View       ViewState
	Page       market.Page
	Err        error
}

// FetchPage issues the request for view without touching the generation.
func (e *Engine) FetchPage(ctx context.Context, view ViewState) (market.Page, error) {
	return e.lister.ListItems(ctx, e.session, BuildQuery(view, e.caps))
}

// Begin claims a new generation. Everything issued before it becomes stale.
func (e *Engine) Begin() uint64 { return e.gen.Add(1) }

// IsCurrent reports whether gen is the latest generation handed out.
func (e *Engine) IsCurrent(gen uint64) bool { return e.gen.Load() == gen }

// Run fetches view under a generation obtained from Begin.
func (e *Engine) Run(ctx context.Context, gen uint64, view ViewState) Result {
	page, err := e.FetchPage(ctx, view)
	if err != nil {
		e.logger.WarnContext(ctx, "item listing failed", "generation", gen, "offset", view.PageOffset, "error", err)
		return Result{Generation: gen, View: view, Err: err}
	}
	if page.Offset != view.PageOffset {
		e.logger.DebugContext(ctx, "server adjusted offset", "requested", view.PageOffset, "applied", page.Offset)
	}
	return Result{Generation: gen, View: view.Confirm(page), Page: page}
}

// Load is Begin followed by Run.
func (e *Engine) Load(ctx context.Context, view ViewState) Result {
	return e.Run(ctx, e.Begin(), view)
}

// Accept reports whether res belongs to the latest request and may be shown.
func (e *Engine) Accept(res Result) bool {
	if !e.IsCurrent(res.Generation) {
		e.logger.Debug("dropping stale listing", "generation", res.Generation)
		return false
	}
	return true
}
