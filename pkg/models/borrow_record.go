package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Borrow record states. Ordinary loans and approved pre-bookings
// (BorrowStatusBookingAllocated) are the ones that count as loans for
// returns and fines.
const (
	BorrowStatusOrdinary         = "ordinary"
	BorrowStatusBookingSuccess   = "booking_success"
	BorrowStatusCancelled        = "cancelled"
	BorrowStatusBookingAllocated = "booking_allocated"
)

// LoanStatuses are the statuses of records that represent a book physically
// on loan.
var LoanStatuses = []string{BorrowStatusOrdinary, BorrowStatusBookingAllocated}

type BorrowRecord struct {
	bun.BaseModel `bun:"table:borrow_records,alias:br"`

	ID         int        `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	UserID     int        `bun:",nullzero" json:"user_id"`
	BookID     int        `bun:",nullzero" json:"book_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
	Status     string     `bun:",nullzero" json:"status"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Book *Book `bun:"rel:belongs-to,join:book_id=id" json:"book,omitempty"`
}

// IsOnLoan reports whether the record is an unreturned loan.
func (br *BorrowRecord) IsOnLoan() bool {
	if br.ReturnDate != nil {
		return false
	}
	return br.Status == BorrowStatusOrdinary || br.Status == BorrowStatusBookingAllocated
}
