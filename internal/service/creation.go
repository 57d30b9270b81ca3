package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/jask/unimarket/internal/catalog"
	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/session"
)

const maxDescriptionRunes = 500

// ErrImageUploadDisabled is reported in CreationResult.AssetError when an
// image was supplied but the server has no upload capability.
var ErrImageUploadDisabled = errors.New("image upload is not supported by this server")

// ValidationError is a local rejection; nothing was sent to the server.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

// ItemAPI is the part of the marketplace client item creation needs.
type ItemAPI interface {
	CreateItem(ctx context.Context, sess session.Provider, item market.NewItem) (market.Item, error)
	UploadImage(ctx context.Context, sess session.Provider, itemID int64, asset market.Asset) error
}

// ItemDraft is unvalidated form input.
type ItemDraft struct {
	Name        string
	Price       string
	Description string
	CategoryID  *int64
}

// CreationResult is the outcome of a create that got past phase one. The
// item exists on the server even when AssetError is set.
type CreationResult struct {
	Item          market.Item
	AssetAttached bool
	AssetError    error
}

// Partial reports a created item whose image could not be attached.
func (r CreationResult) Partial() bool { return r.AssetError != nil }

// Summary is the status line shown after a create.
func (r CreationResult) Summary() string {
	switch {
	case r.AssetError != nil:
		return fmt.Sprintf("created #%d, image failed: %s", r.Item.ID, market.Describe(r.AssetError))
	case r.AssetAttached:
		return fmt.Sprintf("created #%d with image", r.Item.ID)
	default:
		return fmt.Sprintf("created #%d", r.Item.ID)
	}
}

// Validate turns a draft into a request body or explains what is wrong.
func Validate(d ItemDraft) (market.NewItem, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return market.NewItem{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	rawPrice := strings.TrimSpace(d.Price)
	price, err := decimal.NewFromString(rawPrice)
	if err != nil || rawPrice == "" {
		return market.NewItem{}, &ValidationError{Field: "price", Reason: "must be a number"}
	}
	if !price.IsPositive() {
		return market.NewItem{}, &ValidationError{Field: "price", Reason: "must be greater than 0"}
	}
	item := market.NewItem{Name: name, Price: price, CategoryID: d.CategoryID}
	if desc := strings.TrimSpace(d.Description); desc != "" {
		if utf8.RuneCountInString(desc) > maxDescriptionRunes {
			return market.NewItem{}, &ValidationError{Field: "description", Reason: fmt.Sprintf("must be at most %d characters", maxDescriptionRunes)}
		}
		item.Description = &desc
	}
	return item, nil
}

// ItemCreator performs the create-then-attach transaction. The two phases
// are independent: a failed attach never removes the created item.
type ItemCreator struct {
	API          ItemAPI
	Session      session.Provider
	Capabilities catalog.Capabilities
	Logger       *slog.Logger
}

// Create validates d, creates the item and, if image is non-nil, attaches
// it. An error is returned only when nothing was created.
func (c *ItemCreator) Create(ctx context.Context, d ItemDraft, image *market.Asset) (CreationResult, error) {
	body, err := Validate(d)
	if err != nil {
		return CreationResult{}, err
	}
	logger := c.logger()

	item, err := c.API.CreateItem(ctx, c.Session, body)
	if err != nil {
		logger.WarnContext(ctx, "create item failed", "name", body.Name, "error", err)
		return CreationResult{}, errors.Wrap(err, "create item")
	}
	res := CreationResult{Item: item}
	if image == nil {
		return res, nil
	}
	if !c.Capabilities.SupportsImageUpload {
		res.AssetError = ErrImageUploadDisabled
		return res, nil
	}
	if err := c.API.UploadImage(ctx, c.Session, item.ID, *image); err != nil {
		logger.WarnContext(ctx, "image attach failed; item kept", "item_id", item.ID, "error", err)
		res.AssetError = err
		return res, nil
	}
	res.AssetAttached = true
	logger.InfoContext(ctx, "item created", "item_id", item.ID, "image", true)
	return res, nil
}

func (c *ItemCreator) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
