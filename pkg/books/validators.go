package books

type CreateBookPayload struct {
	Title           string  `json:"title" validate:"required,max=300"`
	Author          string  `json:"author" validate:"required,max=200"`
	ISBN            *string `json:"isbn" validate:"omitempty,max=20"`
	GenreID         *int    `json:"genre_id" validate:"omitempty,min=1"`
	PublisherName   *string `json:"publisher_name" validate:"omitempty,max=200"`
	PublicationDate string  `json:"publication_date" validate:"date"`
	Language        *string `json:"language" validate:"omitempty,max=50"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	TotalCopies     int     `json:"total_copies" validate:"min=0,max=20"`
}

type UpdateBookPayload struct {
	Title           *string `json:"title,omitempty" validate:"omitempty,max=300"`
	Author          *string `json:"author,omitempty" validate:"omitempty,max=200"`
	ISBN            *string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	GenreID         *int    `json:"genre_id,omitempty" validate:"omitempty,min=1"`
	PublisherName   *string `json:"publisher_name,omitempty" validate:"omitempty,max=200"`
	PublicationDate *string `json:"publication_date,omitempty" validate:"omitempty,date"`
	Language        *string `json:"language,omitempty" validate:"omitempty,max=50"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	TotalCopies     *int    `json:"total_copies,omitempty" validate:"omitempty,min=0,max=20"`
}

type ListBooksQuery struct {
	Limit     int     `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=100"`
	Offset    int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Genre     *string `query:"genre" json:"genre,omitempty" validate:"omitempty,max=100"`
	Author    *string `query:"author" json:"author,omitempty" validate:"omitempty,max=200"`
	Language  *string `query:"language" json:"language,omitempty" validate:"omitempty,max=50"`
	Publisher *string `query:"publisher" json:"publisher,omitempty" validate:"omitempty,max=200"`
	Title     *string `query:"title" json:"title,omitempty" validate:"omitempty,max=300"`
}

type SuggestionsQuery struct {
	Field string `query:"field" json:"field" validate:"required,oneof=title author language publisher"`
	Query string `query:"query" json:"query" validate:"max=100"`
	Limit int    `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=50"`
}
