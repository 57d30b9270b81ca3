package catalog

import (
	"fmt"
	"strings"

	"github.com/jask/unimarket/internal/market"
)

// ListingState says which of the three listing outcomes is on screen.
type ListingState int

const (
	ListingItems ListingState = iota
	ListingEmpty
	ListingError
)

const (
	EmptyText       = "No items match this view."
	errorTextPrefix = "Could not load items: "
)

// Listing is what the user sees for a Result. A failed load never shows the
// previous items and never looks like an empty result.
type Listing struct {
	State  ListingState
	Items  []market.Item
	Offset int
	Total  *int
	Err    error
}

func Render(res Result) Listing {
	if res.Err != nil {
		return Listing{State: ListingError, Offset: res.View.PageOffset, Err: res.Err}
	}
	l := Listing{Items: res.Page.Items, Offset: res.Page.Offset, Total: res.Page.Total}
	if len(res.Page.Items) == 0 {
		l.State = ListingEmpty
	}
	return l
}

// Summary is the one-line position indicator, e.g. "items 11-15 of 42".
func (l Listing) Summary() string {
	switch l.State {
	case ListingError:
		return "error"
	case ListingEmpty:
		return fmt.Sprintf("offset %d: no items", l.Offset)
	}
	s := fmt.Sprintf("items %d-%d", l.Offset+1, l.Offset+len(l.Items))
	if l.Total != nil {
		s += fmt.Sprintf(" of %d", *l.Total)
	}
	return s
}

// Text renders the listing as plain lines in server order.
func (l Listing) Text() string {
	switch l.State {
	case ListingError:
		return errorTextPrefix + market.Describe(l.Err)
	case ListingEmpty:
		return EmptyText
	}
	var b strings.Builder
	for i, it := range l.Items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ItemLine(it))
	}
	return b.String()
}

// ItemLine formats one item.
func ItemLine(it market.Item) string {
	line := fmt.Sprintf("#%d  %s  %s", it.ID, it.Name, it.Price.StringFixed(2))
	if it.CategoryID != nil {
		line += fmt.Sprintf("  [cat %d]", *it.CategoryID)
	}
	if it.Description != nil && *it.Description != "" {
		line += "  " + *it.Description
	}
	return line
}
