package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	FineStatusPaid    = "paid"
	FineStatusNotPaid = "not_paid"
)

type Fine struct {
	bun.BaseModel `bun:"table:fines,alias:f"`

	ID         int             `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	UserID     int             `bun:",nullzero" json:"user_id"`
	BookID     int             `bun:",nullzero" json:"book_id"`
	Amount     decimal.Decimal `bun:"type:text" json:"amount"`
	FineDate   time.Time       `json:"fine_date"`
	PaidStatus string          `bun:",nullzero" json:"paid_status"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Book *Book `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
}
