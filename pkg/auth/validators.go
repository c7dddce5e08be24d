package auth

// LoginPayload represents the login request body.
type LoginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RequestOTPPayload struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPPayload struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=4,numeric"`
}

type ResetPasswordPayload struct {
	ResetToken  string `json:"reset_token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// LoginResponse carries the access token and the user it was issued for.
type LoginResponse struct {
	Token string      `json:"token"`
	User  interface{} `json:"user"`
}

type VerifyOTPResponse struct {
	ResetToken string `json:"reset_token"`
}
