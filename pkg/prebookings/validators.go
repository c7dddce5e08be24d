package prebookings

type HoldPayload struct {
	UserID *int `json:"user_id" validate:"omitempty,min=1"`
	BookID int  `json:"book_id" validate:"required,min=1"`
}

type ApprovePayload struct {
	UserID int `json:"user_id" validate:"required,min=1"`
	BookID int `json:"book_id" validate:"required,min=1"`
}
