package book

import (
	"errors"
	"time"
)

type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN          string    `json:"isbn"`
	PublishedYear *int      `json:"published_year,omitempty"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Input is the full set of writable fields, used by create and replace.
type Input struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	PublishedYear *int   `json:"published_year"`
	Description   string `json:"description"`
}

// Patch carries only the fields a partial update touches.
type Patch struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	ISBN          *string `json:"isbn"`
	PublishedYear *int    `json:"published_year"`
	Description   *string `json:"description"`
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.ISBN == nil && p.PublishedYear == nil && p.Description == nil
}

type ListFilter struct {
	Author string
	Query  string
	Limit  int
	Offset int
}

var ErrNotFound = errors.New("book not found")
