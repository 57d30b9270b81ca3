// Package catalog turns a listing view into item requests and keeps the
// pagination cursor in step with what the server actually applied.
package catalog

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/jask/unimarket/internal/market"
)

// DefaultPageSize is used whenever no usable page size is known.
const DefaultPageSize = 10

// SortKey is the item field the server sorts by.
type SortKey string

const (
	SortByID    SortKey = "id"
	SortByName  SortKey = "name"
	SortByPrice SortKey = "price"
)

var sortKeys = []SortKey{SortByID, SortByName, SortByPrice}

// ParseSortKey accepts id, name or price (case-insensitive).
func ParseSortKey(raw string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range sortKeys {
		if k == known {
			return k, nil
		}
	}
	return "", errors.Errorf("unknown sort key %q", raw)
}

// Next cycles id -> name -> price -> id.
func (k SortKey) Next() SortKey {
	for i, known := range sortKeys {
		if k == known {
			return sortKeys[(i+1)%len(sortKeys)]
		}
	}
	return SortByName
}

// SortOrder is ascending or descending.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// ParseSortOrder accepts asc/desc and the long forms.
func ParseSortOrder(raw string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return "", errors.Errorf("unknown sort order %q", raw)
}

func (o SortOrder) Toggle() SortOrder {
	if o == Descending {
		return Ascending
	}
	return Descending
}

// Capabilities describes the optional features the server supports.
type Capabilities struct {
	SupportsSortOrder   bool
	SupportsImageUpload bool
}

// ViewState is the declarative description of the listing on screen.
type ViewState struct {
	CategoryFilter *int64
	SortKey        SortKey
	SortOrder      SortOrder
	PageSize       int
	PageOffset     int
}

func (v ViewState) pageSize() int {
	if v.PageSize < 1 {
		return DefaultPageSize
	}
	return v.PageSize
}

// BuildQuery encodes v as /items query parameters. The category is left out
// entirely when no filter is set and order is sent only when caps allow it.
func BuildQuery(v ViewState, caps Capabilities) url.Values {
	q := url.Values{}
	if v.CategoryFilter != nil {
		q.Set("category_id", strconv.FormatInt(*v.CategoryFilter, 10))
	}
	q.Set("limit", strconv.Itoa(v.pageSize()))
	q.Set("offset", strconv.Itoa(max(0, v.PageOffset)))
	key := v.SortKey
	if key == "" {
		key = SortByName
	}
	q.Set("sort_by", string(key))
	if caps.SupportsSortOrder {
		order := v.SortOrder
		if order == "" {
			order = Ascending
		}
		q.Set("order", string(order))
	}
	return q
}

// Confirm adopts the offset the server echoed in p. The requested offset is
// discarded even when it differs.
func (v ViewState) Confirm(p market.Page) ViewState {
	v.PageOffset = p.Offset
	return v
}

// NextPage moves the cursor one page forward.
func (v ViewState) NextPage() ViewState {
	v.PageOffset = Next(v.PageOffset, v.PageSize)
	return v
}

// PreviousPage moves the cursor one page back, stopping at zero.
func (v ViewState) PreviousPage() ViewState {
	v.PageOffset = Previous(v.PageOffset, v.PageSize)
	return v
}

// WithCategory changes the filter and rewinds to the first page.
func (v ViewState) WithCategory(id *int64) ViewState {
	v.CategoryFilter = id
	v.PageOffset = 0
	return v
}

// WithSort changes the sort and rewinds to the first page.
func (v ViewState) WithSort(key SortKey, order SortOrder) ViewState {
	v.SortKey = key
	v.SortOrder = order
	v.PageOffset = 0
	return v
}

// ParseLimit reads a page size typed by the user. Blank, non-numeric or
// non-positive input keeps last, or DefaultPageSize if last is unusable too.
func ParseLimit(raw string, last int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n >= 1 {
		return n
	}
	if last >= 1 {
		return last
	}
	return DefaultPageSize
}

// ParseOffset reads an offset typed by the user, keeping last (or 0) when
// the input is unusable.
func ParseOffset(raw string, last int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n >= 0 {
		return n
	}
	return max(0, last)
}
