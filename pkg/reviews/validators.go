package reviews

type CreateReviewPayload struct {
	BookID      int     `json:"book_id" validate:"required,min=1"`
	Rating      int     `json:"rating" validate:"required,min=1,max=5"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

type UpdateReviewPayload struct {
	Rating      *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

type ListReviewsQuery struct {
	Limit  int  `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset int  `query:"offset" json:"offset,omitempty" validate:"min=0"`
	BookID *int `query:"book_id" json:"book_id,omitempty" validate:"omitempty,min=1"`
}
