package users

type CreateUserPayload struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8"`
	Address     *string `json:"address" validate:"omitempty,max=255"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,phone"`
	// Role is only honoured when an admin creates the account.
	Role string `json:"role" validate:"omitempty,oneof=user admin"`
}

type UpdateUserPayload struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Password    *string `json:"password" validate:"omitempty,min=8"`
	Address     *string `json:"address" validate:"omitempty,max=255"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,phone"`
	Role        *string `json:"role" validate:"omitempty,oneof=user admin"`
}

type ListUsersQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}
