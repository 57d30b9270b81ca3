package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Prober checks whether a URL currently serves something.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (bool, error)
}

// ImageLocator guesses where the server published an item's image. The
// server does not report the stored extension, so each configured extension
// is tried in order.
type ImageLocator struct {
	BaseURL    string
	Path       string
	Extensions []string
}

// Candidates lists the possible image URLs for itemID, most likely first.
func (l ImageLocator) Candidates(itemID int64) []string {
	base := strings.TrimRight(l.BaseURL, "/")
	dir := "/" + strings.Trim(l.Path, "/")
	out := make([]string, 0, len(l.Extensions))
	for _, ext := range l.Extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" {
			continue
		}
		out = append(out, fmt.Sprintf("%s%s/%d.%s", base, dir, itemID, ext))
	}
	return out
}

// Resolve returns the first candidate the prober confirms. A probe error
// moves on to the next candidate. Having no image is a normal outcome and
// is reported as found == false.
func (l ImageLocator) Resolve(ctx context.Context, p Prober, itemID int64) (string, bool) {
	for _, candidate := range l.Candidates(itemID) {
		if ctx.Err() != nil {
			return "", false
		}
		ok, err := p.Probe(ctx, candidate)
		if err == nil && ok {
			return candidate, true
		}
	}
	return "", false
}
