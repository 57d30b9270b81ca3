package repository

import "time"

// Category is a cached copy of a server category.
type Category struct {
	ID        int64
	Name      string
	Position  int
	FetchedAt time.Time
}
