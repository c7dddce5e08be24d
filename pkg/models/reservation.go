package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ReservationStatusActive    = "active"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusApproved  = "approved"
	ReservationStatusCompleted = "completed"
)

type Reservation struct {
	bun.BaseModel `bun:"table:reservations,alias:r"`

	ID              int       `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	UserID          int       `bun:",nullzero" json:"user_id"`
	BookID          int       `bun:",nullzero" json:"book_id"`
	ReservationDate time.Time `json:"reservation_date"`
	Status          string    `bun:",nullzero" json:"status"`
	QueuePosition   int       `json:"queue_position"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Book *Book `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
}
