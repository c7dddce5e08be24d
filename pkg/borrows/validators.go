package borrows

type CreateBorrowPayload struct {
	UserID     *int   `json:"user_id" validate:"omitempty,min=1"`
	BookID     int    `json:"book_id" validate:"required,min=1"`
	BorrowDate string `json:"borrow_date" validate:"date"`
}

// ReturnBorrowPayload names the loan by id, or by book for the caller (or
// for user_id when an admin returns on someone's behalf).
type ReturnBorrowPayload struct {
	ID         *int   `json:"id" validate:"omitempty,min=1"`
	UserID     *int   `json:"user_id" validate:"omitempty,min=1"`
	BookID     *int   `json:"book_id" validate:"required_without=ID,omitempty,min=1"`
	ReturnDate string `json:"return_date" validate:"date"`
}

type BorrowReservedPayload struct {
	UserID *int `json:"user_id" validate:"omitempty,min=1"`
	BookID int  `json:"book_id" validate:"required,min=1"`
}

type ListBorrowsQuery struct {
	Limit    int   `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset   int   `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Returned *bool `query:"returned" json:"returned,omitempty"`
}

type BetweenQuery struct {
	Limit     int    `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset    int    `query:"offset" json:"offset,omitempty" validate:"min=0"`
	StartDate string `query:"start_date" json:"start_date" validate:"required,date"`
	EndDate   string `query:"end_date" json:"end_date" validate:"required,date"`
}
