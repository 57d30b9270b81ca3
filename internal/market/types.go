package market

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Category is a server-assigned grouping of items.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Item is a marketplace listing as returned by the server.
type Item struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description *string         `json:"description"`
	CategoryID  *int64          `json:"category_id"`
	OwnerID     *int64          `json:"owner_id,omitempty"`
}

// NewItem is the create-item request body. Absent optional fields are sent as null.
type NewItem struct {
	Name        string
	Price       decimal.Decimal
	Description *string
	CategoryID  *int64
}

// MarshalJSON sends the price as a JSON number rather than decimal's quoted string.
func (n NewItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string      `json:"name"`
		Price       json.Number `json:"price"`
		Description *string     `json:"description"`
		CategoryID  *int64      `json:"category_id"`
	}{
		Name:        n.Name,
		Price:       json.Number(n.Price.String()),
		Description: n.Description,
		CategoryID:  n.CategoryID,
	})
}

// Page is one slice of the item listing. Offset is the server's echo of the
// offset it actually applied and is authoritative over what was requested.
type Page struct {
	Items      []Item
	Offset     int
	Limit      *int
	Total      *int
	NextOffset *int
}

type pageEnvelope struct {
	Items      *[]Item `json:"items"`
	Offset     *int    `json:"offset"`
	Limit      *int    `json:"limit"`
	Total      *int    `json:"total"`
	NextOffset *int    `json:"next_offset"`
}

// Credentials are the username/password pair for register and login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the public part of a registered account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HealthStatus is the liveness probe body.
type HealthStatus struct {
	Status string `json:"status"`
}

func (h HealthStatus) OK() bool { return h.Status == "ok" }

// Asset is a binary image attached to an item after creation.
type Asset struct {
	Filename    string
	ContentType string
	Data        []byte
}

// LoginEncoding selects how credentials are posted to /auth/login.
type LoginEncoding string

const (
	LoginForm LoginEncoding = "form"
	LoginJSON LoginEncoding = "json"
)
