package models

import "time"

const (
	NotificationBorrowCreated       = "borrow.created"
	NotificationReservationApproved = "reservation.approved"
	NotificationPrebookingCreated   = "prebooking.created"
	NotificationPrebookingCancelled = "prebooking.cancelled"
	NotificationPrebookingApproved  = "prebooking.approved"
	NotificationOverdueReminder     = "reminder.overdue"
	NotificationReservationReminder = "reminder.reservation"
)

// Notification is a circulation event published after its transaction
// commits. It is stored as the data of a notify job.
type Notification struct {
	Type           string     `json:"type"`
	UserID         int        `json:"user_id"`
	BookID         int        `json:"book_id,omitempty"`
	BorrowRecordID int        `json:"borrow_record_id,omitempty"`
	ReservationID  int        `json:"reservation_id,omitempty"`
	PickupDeadline *time.Time `json:"pickup_deadline,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// WantsReceipt reports whether the notification carries a borrow receipt.
func (n *Notification) WantsReceipt() bool {
	return n.Type == NotificationBorrowCreated || n.Type == NotificationPrebookingApproved
}
