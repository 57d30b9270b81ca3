package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-faster/errors"

	"github.com/jask/unimarket/internal/catalog"
	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/service"
	"github.com/jask/unimarket/internal/session"
)

// Services are the collaborators the browser drives.
type Services struct {
	Engine    *catalog.Engine
	Creator   *service.ItemCreator
	Directory *service.CategoryDirectory
	Auth      *service.AuthService
	Session   session.Provider
	Images    catalog.ImageLocator
	Prober    catalog.Prober
}

// App is the catalog browser. It owns the ViewState; every change to it
// issues a fresh listing request under a new generation.
type App struct {
	ctx        context.Context
	svc        Services
	keys       keyMap
	view       catalog.ViewState
	listing    catalog.Listing
	loaded     bool
	loading    bool
	categories []market.Category
	cursor     int
	form       *createForm
	image      imageInfo
	server     service.ServerState
	status     string
	statusErr  bool
}

type imageInfo struct {
	itemID int64
	url    string
	found  bool
	known  bool
}

type (
	pageMsg       struct{ res catalog.Result }
	categoriesMsg struct {
		cats []market.Category
		err  error
	}
	createdMsg struct {
		res service.CreationResult
		err error
	}
	imageMsg struct {
		itemID int64
		url    string
		found  bool
	}
	healthMsg struct{ state service.ServerState }
)

func New(ctx context.Context, svc Services, initial catalog.ViewState) *App {
	if svc.Session == nil {
		svc.Session = session.Anonymous()
	}
	return &App{
		ctx:  ctx,
		svc:  svc,
		keys: newKeyMap(svc.Engine.Capabilities().SupportsSortOrder),
		view: initial,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.load(), a.loadCategories(false), a.checkHealth())
}

// load starts a listing request for the current view. The generation is
// claimed here, on the update goroutine, so key order decides which
// response wins.
func (a *App) load() tea.Cmd {
	eng := a.svc.Engine
	gen := eng.Begin()
	view := a.view
	a.loading = true
	return func() tea.Msg {
		return pageMsg{res: eng.Run(a.ctx, gen, view)}
	}
}

func (a *App) loadCategories(refresh bool) tea.Cmd {
	dir := a.svc.Directory
	if dir == nil {
		return nil
	}
	return func() tea.Msg {
		if refresh {
			cats, err := dir.Refresh(a.ctx)
			return categoriesMsg{cats: cats, err: err}
		}
		return categoriesMsg{cats: dir.List(a.ctx)}
	}
}

func (a *App) checkHealth() tea.Cmd {
	auth := a.svc.Auth
	if auth == nil {
		return nil
	}
	return func() tea.Msg {
		state, _ := auth.Health(a.ctx)
		return healthMsg{state: state}
	}
}

func (a *App) resolveImage(itemID int64) tea.Cmd {
	if a.svc.Prober == nil || len(a.svc.Images.Extensions) == 0 {
		return nil
	}
	loc, prober := a.svc.Images, a.svc.Prober
	return func() tea.Msg {
		url, found := loc.Resolve(a.ctx, prober, itemID)
		return imageMsg{itemID: itemID, url: url, found: found}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if a.form != nil {
			return a.updateForm(m)
		}
		return a.handleKey(m)
	case pageMsg:
		if !a.svc.Engine.Accept(m.res) {
			return a, nil
		}
		a.loading = false
		a.loaded = true
		a.view = m.res.View
		a.listing = catalog.Render(m.res)
		a.image = imageInfo{}
		if a.cursor >= len(a.listing.Items) {
			a.cursor = max(0, len(a.listing.Items)-1)
		}
	case categoriesMsg:
		a.categories = m.cats
		if m.err != nil {
			a.setStatus("categories unavailable, using cache: "+market.Describe(m.err), true)
		}
	case createdMsg:
		return a.handleCreated(m)
	case imageMsg:
		a.image = imageInfo{itemID: m.itemID, url: m.url, found: m.found, known: true}
	case healthMsg:
		a.server = m.state
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(m, a.keys.Next):
		a.view = a.view.NextPage()
		return a, a.load()
	case key.Matches(m, a.keys.Prev):
		a.view = a.view.PreviousPage()
		return a, a.load()
	case key.Matches(m, a.keys.Sort):
		a.view = a.view.WithSort(a.view.SortKey.Next(), a.view.SortOrder)
		return a, a.load()
	case key.Matches(m, a.keys.Order):
		a.view = a.view.WithSort(a.view.SortKey, a.view.SortOrder.Toggle())
		return a, a.load()
	case key.Matches(m, a.keys.Category):
		a.view = a.view.WithCategory(a.nextCategory())
		return a, a.load()
	case key.Matches(m, a.keys.Reload):
		return a, a.load()
	case key.Matches(m, a.keys.Categories):
		a.setStatus("refreshing categories...", false)
		return a, a.loadCategories(true)
	case key.Matches(m, a.keys.Add):
		a.form = newCreateForm(a.svc.Engine.Capabilities().SupportsImageUpload)
		return a, nil
	case key.Matches(m, a.keys.Image):
		if it, ok := a.selected(); ok {
			a.image = imageInfo{itemID: it.ID}
			return a, a.resolveImage(it.ID)
		}
	case key.Matches(m, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(m, a.keys.Down):
		if a.cursor < len(a.listing.Items)-1 {
			a.cursor++
		}
	}
	return a, nil
}

// nextCategory cycles the filter: all, then each category in order.
func (a *App) nextCategory() *int64 {
	if len(a.categories) == 0 {
		return nil
	}
	if a.view.CategoryFilter == nil {
		id := a.categories[0].ID
		return &id
	}
	for i, c := range a.categories {
		if c.ID == *a.view.CategoryFilter && i+1 < len(a.categories) {
			id := a.categories[i+1].ID
			return &id
		}
	}
	return nil
}

func (a *App) selected() (market.Item, bool) {
	if a.listing.State != catalog.ListingItems || a.cursor >= len(a.listing.Items) {
		return market.Item{}, false
	}
	return a.listing.Items[a.cursor], true
}

func (a *App) updateForm(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.String() == "ctrl+c" {
		return a, tea.Quit
	}
	submit, closed, cmd := a.form.update(m)
	if closed {
		a.form = nil
		return a, nil
	}
	if !submit {
		return a, cmd
	}
	a.form.submitting = true
	a.form.err = ""
	return a, a.submit(a.form.values())
}

func (a *App) submit(v formValues) tea.Cmd {
	creator, dir := a.svc.Creator, a.svc.Directory
	return func() tea.Msg {
		draft := service.ItemDraft{Name: v.Name, Price: v.Price, Description: v.Description}
		if v.Category != "" {
			if dir == nil {
				return createdMsg{err: errors.New("categories unavailable")}
			}
			c, err := dir.Resolve(a.ctx, v.Category)
			if err != nil {
				return createdMsg{err: err}
			}
			draft.CategoryID = &c.ID
		}
		var asset *market.Asset
		if v.ImagePath != "" {
			data, err := os.ReadFile(v.ImagePath)
			if err != nil {
				return createdMsg{err: errors.Wrap(err, "read image")}
			}
			asset = &market.Asset{Filename: filepath.Base(v.ImagePath), Data: data}
		}
		res, err := creator.Create(a.ctx, draft, asset)
		return createdMsg{res: res, err: err}
	}
}

func (a *App) handleCreated(m createdMsg) (tea.Model, tea.Cmd) {
	if m.err != nil {
		if a.form != nil {
			a.form.submitting = false
			a.form.err = market.Describe(m.err)
		} else {
			a.setStatus(market.Describe(m.err), true)
		}
		return a, nil
	}
	a.form = nil
	a.setStatus(m.res.Summary(), m.res.Partial())
	return a, a.load()
}

func (a *App) setStatus(s string, isErr bool) {
	a.status = s
	a.statusErr = isErr
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("unimarket"))
	b.WriteString("  ")
	b.WriteString(a.headerLine())
	b.WriteString("\n\n")

	if a.form != nil {
		b.WriteString(a.form.view())
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(a.listingView())
	b.WriteString("\n\n")
	if a.status != "" {
		if a.statusErr {
			b.WriteString(errorStyle.Render(a.status))
		} else {
			b.WriteString(successStyle.Render(a.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(renderHelp(a.keys.ShortHelp()))
	return b.String()
}

func (a *App) headerLine() string {
	parts := []string{
		service.Label(a.categories, a.view.CategoryFilter),
		"sort " + string(a.view.SortKey),
	}
	if a.svc.Engine.Capabilities().SupportsSortOrder {
		parts = append(parts, string(a.view.SortOrder))
	}
	parts = append(parts, fmt.Sprintf("page size %d", a.view.PageSize))
	if tok, ok := a.svc.Session.Credential(); ok {
		parts = append(parts, "signed in ("+tok.Preview()+")")
	} else {
		parts = append(parts, "anonymous")
	}
	line := headerStyle.Render(strings.Join(parts, " | "))
	if a.server != "" {
		style, ok := stateStyleFor[string(a.server)]
		if !ok {
			style = dimStyle
		}
		line += "  " + style.Render(string(a.server))
	}
	return line
}

func (a *App) listingView() string {
	if !a.loaded {
		return dimStyle.Render("loading...")
	}
	var body string
	switch a.listing.State {
	case catalog.ListingError:
		body = errorStyle.Render(a.listing.Text())
	case catalog.ListingEmpty:
		body = emptyStyle.Render(a.listing.Text())
	default:
		rows := make([]string, 0, len(a.listing.Items))
		for i, it := range a.listing.Items {
			line := catalog.ItemLine(it)
			if i == a.cursor {
				rows = append(rows, cursorStyle.Render("> "+line))
				continue
			}
			rows = append(rows, rowStyle.Render("  "+line))
		}
		body = lipgloss.JoinVertical(lipgloss.Left, rows...)
	}
	footer := dimStyle.Render(a.listing.Summary())
	if a.loading {
		footer += dimStyle.Render("  (loading)")
	}
	if a.image.itemID != 0 {
		footer += "\n" + a.imageLine()
	}
	return body + "\n" + footer
}

func (a *App) imageLine() string {
	switch {
	case !a.image.known:
		return dimStyle.Render(fmt.Sprintf("image #%d: looking...", a.image.itemID))
	case a.image.found:
		return fmt.Sprintf("image #%d: %s", a.image.itemID, a.image.url)
	default:
		return dimStyle.Render(fmt.Sprintf("image #%d: none", a.image.itemID))
	}
}
