package request

// RegisterRequest is the request body for registering an account
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CompleteRequest is the request body for applying an external verdict
type CompleteRequest struct {
	Winner string `json:"winner,omitempty"`
	Reason string `json:"reason"`
}
