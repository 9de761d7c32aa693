package domain

// ============================================================
// Auth: request / response types
// ============================================================

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResponse is the body for 200 from POST /v1/auth/login.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
	User        User   `json:"user"`
}

// BackendLoginResponse is what the dealer backend returns from POST /auth/login.
type BackendLoginResponse struct {
	User UserProfile `json:"user"`
}
