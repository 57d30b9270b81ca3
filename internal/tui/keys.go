package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Next       key.Binding
	Prev       key.Binding
	Sort       key.Binding
	Order      key.Binding
	Category   key.Binding
	Reload     key.Binding
	Add        key.Binding
	Categories key.Binding
	Image      key.Binding
	Up         key.Binding
	Down       key.Binding
	Quit       key.Binding
}

func newKeyMap(orderSupported bool) keyMap {
	k := keyMap{
		Next:       key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n", "next page")),
		Prev:       key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p", "prev page")),
		Sort:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Order:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order")),
		Category:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "category")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Add:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add item")),
		Categories: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "refresh categories")),
		Image:      key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "image")),
		Up:         key.NewBinding(key.WithKeys("up", "k")),
		Down:       key.NewBinding(key.WithKeys("down", "j")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
	k.Order.SetEnabled(orderSupported)
	return k
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Sort, k.Order, k.Category, k.Reload, k.Add, k.Categories, k.Image, k.Quit}
}

func renderHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		if h.Key == "" && h.Desc == "" {
			continue
		}
		parts = append(parts, keyStyle.Render(h.Key)+" "+dimStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
