package models

type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=5,max=30"`
	Email           string `json:"email" validate:"required,email,max=320"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=5,max=30"`
	Password string `json:"password" validate:"required,password"`
}

// AuthResponse is the body of every auth endpoint. User is null after logout.
type AuthResponse struct {
	User *UserView `json:"user"`
	Auth bool      `json:"auth"`
}

type ErrorResponse struct {
	Status  int          `json:"status"`
	Message string       `json:"message"`
	Fields  []FieldIssue `json:"fields,omitempty"`
}

type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
