package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID          int       `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	EventDate   time.Time `json:"event_date"`
	EventName   string    `bun:",nullzero" json:"event_name"`
	Description *string   `json:"description,omitempty"`
	Timing      *string   `json:"timing,omitempty"`
}
