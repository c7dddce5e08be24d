package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID               int       `bun:",pk,nullzero" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Name             string    `bun:",nullzero" json:"name"`
	Email            string    `bun:",nullzero" json:"email"`
	PasswordHash     string    `json:"-"`
	Address          *string   `json:"address,omitempty"`
	PhoneNumber      *string   `json:"phone_number,omitempty"`
	RegistrationDate time.Time `json:"registration_date"`
	BookCount        int       `json:"book_count"`
	Role             string    `bun:",nullzero" json:"role"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
