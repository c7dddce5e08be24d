package models

import (
	"time"

	"github.com/uptrace/bun"
)

// MaxCopiesPerTitle bounds the copy counts accepted on book create and update.
const MaxCopiesPerTitle = 20

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID              int        `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Title           string     `bun:",nullzero" json:"title"`
	Author          string     `bun:",nullzero" json:"author"`
	ISBN            *string    `bun:"isbn" json:"isbn,omitempty"`
	GenreID         *int       `json:"genre_id,omitempty"`
	PublisherName   *string    `json:"publisher_name,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	Language        *string    `json:"language,omitempty"`
	Description     *string    `json:"description,omitempty"`
	TotalCopies     int        `json:"total_copies"`
	AvailableCopies int        `json:"available_copies"`

	Genre *Genre `bun:"rel:belongs-to,join:genre_id=id" json:"genre,omitempty"`
}
