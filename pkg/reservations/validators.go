package reservations

type CreateReservationPayload struct {
	UserID *int `json:"user_id" validate:"omitempty,min=1"`
	BookID int  `json:"book_id" validate:"required,min=1"`
}

type CancelReservationPayload struct {
	UserID    *int   `json:"user_id" validate:"omitempty,min=1"`
	BookTitle string `json:"book_title" validate:"required,max=300"`
}

type ListReservationsQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}
